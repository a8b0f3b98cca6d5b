package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fieldops/internal/config"
	"fieldops/internal/device"
)

type stubCamera struct {
	state device.PermissionState
	err   error
}

func (s stubCamera) RequestPermission(context.Context) (device.PermissionState, error) {
	return s.state, s.err
}

func (s stubCamera) Capture(context.Context) (device.RawImage, error) {
	return device.RawImage{}, device.ErrUnavailable
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func testConfig(t *testing.T) config.Config {
	t.Helper()
	tmp := t.TempDir()
	cfg := config.Default()
	cfg.StagingDir = filepath.Join(tmp, "staging")
	cfg.SessionPath = filepath.Join(tmp, "state", "session.json")
	return cfg
}

func TestRunAllChecksPass(t *testing.T) {
	cfg := testConfig(t)
	res := Run(context.Background(), Options{
		Config: cfg,
		Camera: stubCamera{state: device.PermissionGranted},
		Server: stubPinger{},
	})
	if !res.OK {
		t.Fatalf("expected all checks ok: %+v", res.Checks)
	}
	if len(res.Checks) != 4 {
		t.Fatalf("expected 4 checks, got %d", len(res.Checks))
	}
	if _, err := os.Stat(cfg.StagingDir); err != nil {
		t.Fatalf("staging dir not created: %v", err)
	}
}

func TestRunReportsCameraAndServerFailures(t *testing.T) {
	cfg := testConfig(t)
	res := Run(context.Background(), Options{
		Config: cfg,
		Camera: stubCamera{state: device.PermissionDenied, err: device.ErrUnavailable},
		Server: stubPinger{err: errors.New("connection refused")},
	})
	if res.OK {
		t.Fatal("expected failure")
	}
	failed := map[string]string{}
	for _, c := range res.Checks {
		if !c.OK {
			failed[c.Name] = c.Message
		}
	}
	if len(failed) != 2 {
		t.Fatalf("expected camera and server failures, got %+v", failed)
	}
	if failed["server:"+cfg.Server] != "connection refused" {
		t.Fatalf("unexpected server message: %+v", failed)
	}
}

func TestInitCreatesConfigOnce(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	res, err := Init(context.Background(), InitOptions{ConfigPath: path, Config: cfg})
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if !res.CreatedConfig || !res.Doctor.OK {
		t.Fatalf("unexpected first init result: %+v", res)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not written: %v", err)
	}

	res, err = Init(context.Background(), InitOptions{ConfigPath: path, Config: cfg})
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	if res.CreatedConfig {
		t.Fatal("expected existing config to be kept")
	}
}
