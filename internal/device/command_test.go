package device

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func installShutter(t *testing.T, script string) string {
	t.Helper()
	fakeBin := filepath.Join(t.TempDir(), "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(fakeBin, "fake-shutter"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	return fakeBin
}

func TestCommandCameraCaptureWritesIntoTempDir(t *testing.T) {
	installShutter(t, `#!/usr/bin/env bash
set -euo pipefail
printf 'jpeg-bytes' > "$2"
`)
	tmp := t.TempDir()
	cam := &CommandCamera{Command: []string{"fake-shutter", "-o", OutputPlaceholder}, TempDir: tmp}

	state, err := cam.RequestPermission(context.Background())
	if err != nil || state != PermissionGranted {
		t.Fatalf("permission: state=%s err=%v", state, err)
	}

	img, err := cam.Capture(context.Background())
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if filepath.Dir(img.Path) != tmp {
		t.Fatalf("image %s not in device temp dir %s", img.Path, tmp)
	}
	data, err := os.ReadFile(img.Path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "jpeg-bytes" {
		t.Fatalf("unexpected image content %q", data)
	}
}

func TestCommandCameraFailureIsUnavailable(t *testing.T) {
	installShutter(t, `#!/usr/bin/env bash
echo "no camera detected" >&2
exit 1
`)
	cam := &CommandCamera{Command: []string{"fake-shutter", "{output}"}, TempDir: t.TempDir()}

	_, err := cam.Capture(context.Background())
	var capErr *CaptureError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CaptureError, got %v", err)
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "no camera detected") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
}

func TestCommandCameraUserCancelExitCode(t *testing.T) {
	installShutter(t, "#!/usr/bin/env bash\nexit 130\n")
	cam := &CommandCamera{Command: []string{"fake-shutter"}, TempDir: t.TempDir()}

	_, err := cam.Capture(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestCommandCameraEmptyImageIsUnavailable(t *testing.T) {
	installShutter(t, "#!/usr/bin/env bash\n: > \"$1\"\n")
	cam := &CommandCamera{Command: []string{"fake-shutter"}, TempDir: t.TempDir()}

	_, err := cam.Capture(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCommandCameraPermission(t *testing.T) {
	installShutter(t, "#!/usr/bin/env bash\nexit 0\n")

	missing := &CommandCamera{Command: []string{"definitely-not-a-shutter-binary"}}
	if _, err := missing.RequestPermission(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for missing binary, got %v", err)
	}

	noDevice := &CommandCamera{Command: []string{"fake-shutter"}, DevicePath: filepath.Join(t.TempDir(), "video9")}
	state, err := noDevice.RequestPermission(context.Background())
	if state != PermissionDenied || !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected denied+unavailable for missing device, got %s %v", state, err)
	}

	node := filepath.Join(t.TempDir(), "video0")
	if err := os.WriteFile(node, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	ok := &CommandCamera{Command: []string{"fake-shutter"}, DevicePath: node}
	state, err = ok.RequestPermission(context.Background())
	if err != nil || state != PermissionGranted {
		t.Fatalf("expected granted, got %s %v", state, err)
	}
}

func TestShutterArgsAppendsOutputWithoutPlaceholder(t *testing.T) {
	got := shutterArgs([]string{"-n"}, "/tmp/x.jpg")
	if strings.Join(got, " ") != "-n /tmp/x.jpg" {
		t.Fatalf("unexpected args %v", got)
	}
	got = shutterArgs([]string{"--file={output}"}, "/tmp/x.jpg")
	if strings.Join(got, " ") != "--file=/tmp/x.jpg" {
		t.Fatalf("unexpected args %v", got)
	}
}
