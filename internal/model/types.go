package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ChecklistItem is one required shot of the pickup photo checklist.
type ChecklistItem struct {
	Label         string `json:"label"`
	Description   string `json:"description"`
	SequenceIndex int    `json:"sequence_index"`
}

// StagedPhoto is a captured image that has been moved into the private staging area.
type StagedPhoto struct {
	Label     string `json:"label"`
	FileName  string `json:"file_name"`
	LocalPath string `json:"local_path"`
}

// ID is an identifier the backend sends either as a JSON string or a JSON number.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("parse id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// Driver identifies the authenticated driver and their carrier.
type Driver struct {
	DriverID  ID `json:"drv_Id"`
	CarrierID ID `json:"carrId"`
}

func (d Driver) Valid() bool {
	return d.DriverID != "" && d.CarrierID != ""
}

type Load struct {
	LoadID      ID         `json:"load_id"`
	LocPickup   string     `json:"locPickup"`
	LocDelivery string     `json:"locDelivery"`
	Status      LoadStatus `json:"load_status"`
}

type DeliveryDetail struct {
	DriverName  string `json:"drvName"`
	DriverPhone string `json:"drvPhone"`
}
