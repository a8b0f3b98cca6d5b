// Package device adapts capture hardware to blocking permission and shutter calls.
package device

import (
	"context"
	"errors"
)

type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
)

var (
	ErrUnavailable = errors.New("capture device unavailable")
	ErrCancelled   = errors.New("capture cancelled")

	// ErrPermission is returned by Capture when access was revoked after it had been granted.
	ErrPermission = errors.New("camera permission denied")
)

// RawImage is a freshly captured image still sitting in the device's own
// temporary location. It must be moved out before the device cleans up.
type RawImage struct {
	Path string
}

// Camera is implemented by every capture backend. Calls block until the
// device answers or ctx is done.
type Camera interface {
	RequestPermission(ctx context.Context) (PermissionState, error)
	Capture(ctx context.Context) (RawImage, error)
}

type CaptureError struct {
	Device string
	Err    error
}

func (e *CaptureError) Error() string {
	return "capture on " + e.Device + ": " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
