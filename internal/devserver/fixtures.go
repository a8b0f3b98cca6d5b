package devserver

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldops/internal/model"
)

type User struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	DriverID  string `yaml:"driver_id"`
	CarrierID string `yaml:"carrier_id"`
}

type Load struct {
	LoadID    string `yaml:"load_id"`
	DriverID  string `yaml:"driver_id"`
	CarrierID string `yaml:"carrier_id"`
	Pickup    string `yaml:"pickup"`
	Delivery  string `yaml:"delivery"`
	Status    string `yaml:"status"`
}

type Contact struct {
	Name  string `yaml:"name"`
	Phone string `yaml:"phone"`
}

// Fixtures is the data set the development server answers from.
type Fixtures struct {
	Users      []User               `yaml:"users"`
	Loads      []Load               `yaml:"loads"`
	Deliveries map[string][]Contact `yaml:"deliveries"`
}

// DefaultFixtures is one driver with a load in every status.
func DefaultFixtures() Fixtures {
	return Fixtures{
		Users: []User{
			{Username: "driver", Password: "driver", DriverID: "17", CarrierID: "4"},
		},
		Loads: []Load{
			{LoadID: "628", DriverID: "17", CarrierID: "4", Pickup: "Dallas, TX", Delivery: "Tulsa, OK", Status: "CarrierChosen"},
			{LoadID: "629", DriverID: "17", CarrierID: "4", Pickup: "Austin, TX", Delivery: "Denver, CO", Status: "Assigned"},
			{LoadID: "630", DriverID: "17", CarrierID: "4", Pickup: "Houston, TX", Delivery: "Memphis, TN", Status: "Dispatched"},
			{LoadID: "632", DriverID: "17", CarrierID: "4", Pickup: "El Paso, TX", Delivery: "Phoenix, AZ", Status: "PickUp"},
			{LoadID: "633", DriverID: "17", CarrierID: "4", Pickup: "Laredo, TX", Delivery: "Wichita, KS", Status: "PickUp"},
			{LoadID: "634", DriverID: "17", CarrierID: "4", Pickup: "Waco, TX", Delivery: "Omaha, NE", Status: "Delivered"},
			{LoadID: "635", DriverID: "17", CarrierID: "4", Pickup: "Amarillo, TX", Delivery: "Reno, NV", Status: "Invoiced"},
			{LoadID: "636", DriverID: "17", CarrierID: "4", Pickup: "Lubbock, TX", Delivery: "Boise, ID", Status: "Complete"},
		},
		Deliveries: map[string][]Contact{
			"634": {{Name: "Dana Ruiz", Phone: "555-0134"}},
		},
	}
}

// LoadFixtures reads a YAML fixture file. An empty path yields DefaultFixtures.
func LoadFixtures(path string) (Fixtures, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultFixtures(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures %s: %w", path, err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return Fixtures{}, fmt.Errorf("invalid fixtures %s: %w", path, err)
	}
	return f, nil
}

func (f Fixtures) Validate() error {
	var errs []error
	seenUsers := map[string]bool{}
	for i, u := range f.Users {
		if strings.TrimSpace(u.Username) == "" || u.DriverID == "" || u.CarrierID == "" {
			errs = append(errs, fmt.Errorf("users[%d]: username, driver_id and carrier_id are required", i))
		}
		if seenUsers[u.Username] {
			errs = append(errs, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username))
		}
		seenUsers[u.Username] = true
	}
	seenLoads := map[string]bool{}
	for i, l := range f.Loads {
		if strings.TrimSpace(l.LoadID) == "" {
			errs = append(errs, fmt.Errorf("loads[%d]: load_id is required", i))
		}
		if seenLoads[l.LoadID] {
			errs = append(errs, fmt.Errorf("loads[%d]: duplicate load_id %q", i, l.LoadID))
		}
		seenLoads[l.LoadID] = true
		if _, err := model.ParseLoadStatus(l.Status); err != nil {
			errs = append(errs, fmt.Errorf("loads[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (f Fixtures) user(username, password string) (User, bool) {
	for _, u := range f.Users {
		if u.Username == username && u.Password == password {
			return u, true
		}
	}
	return User{}, false
}

func (f Fixtures) loads(driverID, carrierID string, status model.LoadStatus) []model.Load {
	out := []model.Load{}
	for _, l := range f.Loads {
		if l.DriverID != driverID || l.CarrierID != carrierID {
			continue
		}
		s, err := model.ParseLoadStatus(l.Status)
		if err != nil || s != status {
			continue
		}
		out = append(out, model.Load{
			LoadID:      model.ID(l.LoadID),
			LocPickup:   l.Pickup,
			LocDelivery: l.Delivery,
			Status:      s,
		})
	}
	return out
}

func (f Fixtures) hasLoad(loadID string) bool {
	for _, l := range f.Loads {
		if l.LoadID == loadID {
			return true
		}
	}
	return false
}
