package capture

import (
	"errors"
	"fmt"
)

// Kind classifies failures the driver has to act on.
type Kind string

const (
	KindPermission Kind = "permission"
	KindCapture    Kind = "capture"
	KindStorage    Kind = "storage"
	KindUpload     Kind = "upload"
)

var (
	ErrBusy           = errors.New("another capture or upload is in flight")
	ErrNotReady       = errors.New("action not available in the current phase")
	ErrNotCaptured    = errors.New("label has not been captured yet")
	errPermissionDeny = errors.New("camera permission was not granted")
)

type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind carried by err, or "" for gating errors
// such as ErrBusy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
