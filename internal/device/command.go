package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// OutputPlaceholder in a shutter command is replaced by the image path.
const OutputPlaceholder = "{output}"

// exit status shells and most capture tools use after SIGINT.
const cancelledExitCode = 130

// CommandCamera fires an external shutter program such as libcamera-still or
// fswebcam once per capture.
type CommandCamera struct {
	Command    []string
	DevicePath string
	TempDir    string
	Logger     *zap.Logger
}

func (c *CommandCamera) name() string {
	if len(c.Command) == 0 {
		return "command camera"
	}
	return filepath.Base(c.Command[0])
}

func (c *CommandCamera) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *CommandCamera) RequestPermission(ctx context.Context) (PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	if len(c.Command) == 0 || strings.TrimSpace(c.Command[0]) == "" {
		return PermissionDenied, fmt.Errorf("%w: no shutter command configured", ErrUnavailable)
	}
	if _, err := exec.LookPath(c.Command[0]); err != nil {
		return PermissionDenied, fmt.Errorf("%w: shutter command %q not found on PATH", ErrUnavailable, c.Command[0])
	}

	devicePath := strings.TrimSpace(c.DevicePath)
	if devicePath == "" {
		return PermissionGranted, nil
	}
	f, err := os.Open(devicePath)
	if err != nil {
		if os.IsPermission(err) {
			c.logger().Info("camera access denied", zap.String("device", devicePath))
			return PermissionDenied, nil
		}
		return PermissionDenied, fmt.Errorf("%w: open %s: %v", ErrUnavailable, devicePath, err)
	}
	_ = f.Close()
	return PermissionGranted, nil
}

func (c *CommandCamera) Capture(ctx context.Context) (RawImage, error) {
	if len(c.Command) == 0 {
		return RawImage{}, &CaptureError{Device: c.name(), Err: fmt.Errorf("%w: no shutter command configured", ErrUnavailable)}
	}

	dir := strings.TrimSpace(c.TempDir)
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return RawImage{}, &CaptureError{Device: c.name(), Err: fmt.Errorf("%w: create temp dir: %v", ErrUnavailable, err)}
	}
	out := filepath.Join(dir, fmt.Sprintf("fieldops-shot-%d-%d.jpg", os.Getpid(), time.Now().UnixNano()))
	args := shutterArgs(c.Command[1:], out)

	cmd := exec.CommandContext(ctx, c.Command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	if ctx.Err() != nil {
		_ = os.Remove(out)
		return RawImage{}, &CaptureError{Device: c.name(), Err: ErrCancelled}
	}
	if err != nil {
		_ = os.Remove(out)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == cancelledExitCode {
			return RawImage{}, &CaptureError{Device: c.name(), Err: ErrCancelled}
		}
		return RawImage{}, &CaptureError{
			Device: c.name(),
			Err:    fmt.Errorf("%w: %v: %s", ErrUnavailable, err, strings.TrimSpace(stderr.String())),
		}
	}

	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(out)
		return RawImage{}, &CaptureError{Device: c.name(), Err: fmt.Errorf("%w: shutter produced no image", ErrUnavailable)}
	}
	c.logger().Debug("shutter fired",
		zap.String("path", out),
		zap.Int64("bytes", info.Size()),
		zap.Duration("took", time.Since(start)),
	)
	return RawImage{Path: out}, nil
}

func shutterArgs(template []string, out string) []string {
	args := make([]string, 0, len(template)+1)
	replaced := false
	for _, a := range template {
		if strings.Contains(a, OutputPlaceholder) {
			a = strings.ReplaceAll(a, OutputPlaceholder, out)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, out)
	}
	return args
}
