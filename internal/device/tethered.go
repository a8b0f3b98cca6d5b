package device

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const DefaultSettle = 500 * time.Millisecond

// TetheredCamera treats the next image a tethering app drops into Inbox as the
// shot. A file counts once no further writes arrive for Settle.
type TetheredCamera struct {
	Inbox  string
	Settle time.Duration
	Logger *zap.Logger
}

func (c *TetheredCamera) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *TetheredCamera) RequestPermission(ctx context.Context) (PermissionState, error) {
	if err := ctx.Err(); err != nil {
		return PermissionDenied, err
	}
	inbox := strings.TrimSpace(c.Inbox)
	if inbox == "" {
		return PermissionDenied, fmt.Errorf("%w: no tether inbox configured", ErrUnavailable)
	}
	f, err := os.Open(inbox)
	if err != nil {
		if os.IsPermission(err) {
			return PermissionDenied, nil
		}
		return PermissionDenied, fmt.Errorf("%w: open inbox %s: %v", ErrUnavailable, inbox, err)
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && err != io.EOF {
		if os.IsPermission(err) {
			return PermissionDenied, nil
		}
		return PermissionDenied, fmt.Errorf("%w: read inbox %s: %v", ErrUnavailable, inbox, err)
	}
	return PermissionGranted, nil
}

func (c *TetheredCamera) Capture(ctx context.Context) (RawImage, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return RawImage{}, &CaptureError{Device: "tether", Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}
	defer watcher.Close()
	if err := watcher.Add(c.Inbox); err != nil {
		if os.IsPermission(err) {
			return RawImage{}, &CaptureError{Device: "tether", Err: ErrPermission}
		}
		return RawImage{}, &CaptureError{Device: "tether", Err: fmt.Errorf("%w: watch %s: %v", ErrUnavailable, c.Inbox, err)}
	}

	settle := c.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	candidate := ""
	for {
		select {
		case <-ctx.Done():
			return RawImage{}, &CaptureError{Device: "tether", Err: ErrCancelled}
		case ev, ok := <-watcher.Events:
			if !ok {
				return RawImage{}, &CaptureError{Device: "tether", Err: fmt.Errorf("%w: watcher closed", ErrUnavailable)}
			}
			if !isImageFile(ev.Name) || !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			candidate = ev.Name
			timer.Reset(settle)
		case werr, ok := <-watcher.Errors:
			if !ok {
				return RawImage{}, &CaptureError{Device: "tether", Err: fmt.Errorf("%w: watcher closed", ErrUnavailable)}
			}
			return RawImage{}, &CaptureError{Device: "tether", Err: fmt.Errorf("%w: %v", ErrUnavailable, werr)}
		case <-timer.C:
			info, err := os.Stat(candidate)
			if err != nil || info.Size() == 0 {
				candidate = ""
				continue
			}
			c.logger().Debug("tethered shot received", zap.String("path", candidate), zap.Int64("bytes", info.Size()))
			return RawImage{Path: candidate}, nil
		}
	}
}

func isImageFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".jpg", ".jpeg":
		return true
	default:
		return false
	}
}
