package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldops/internal/fsstore"
	"fieldops/internal/model"
)

var ErrNotLoggedIn = errors.New("not logged in; run `fieldops login`")

// DriverSession is what login leaves behind for later commands.
type DriverSession struct {
	Username   string       `json:"username"`
	Driver     model.Driver `json:"driver"`
	Server     string       `json:"server"`
	LoggedInAt string       `json:"logged_in_at"`
}

func NewDriverSession(username, server string, driver model.Driver) DriverSession {
	return DriverSession{
		Username:   username,
		Driver:     driver,
		Server:     server,
		LoggedInAt: time.Now().UTC().Format(time.RFC3339),
	}
}

func ReadSession(path string) (DriverSession, error) {
	var s DriverSession
	if err := fsstore.ReadJSON(path, &s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DriverSession{}, ErrNotLoggedIn
		}
		return DriverSession{}, fmt.Errorf("read session %s: %w", path, err)
	}
	if !s.Driver.Valid() {
		return DriverSession{}, ErrNotLoggedIn
	}
	return s, nil
}

func WriteSession(path string, s DriverSession) error {
	if err := fsstore.Mkdir(filepath.Dir(path), fsstore.PrivateDirPerm); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return fsstore.WriteJSON(path, s)
}

// ClearSession reports whether a session file was removed.
func ClearSession(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
