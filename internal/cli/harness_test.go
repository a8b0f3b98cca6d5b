package cli

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"fieldops/internal/capture"
	"fieldops/internal/config"
	"fieldops/internal/devserver"
	"fieldops/internal/staging"
)

type harness struct {
	tmp        string
	configPath string
	stagingDir string
	server     *devserver.Server
}

// newHarness wires a devserver, a fake shutter binary on PATH and a config
// file pointing at both. The shutter counts its invocations and fails the one
// numbered $FAKE_SHUTTER_FAIL_ON.
func newHarness(t *testing.T, failUploads int) *harness {
	t.Helper()
	tmp := t.TempDir()

	srv, err := devserver.New(devserver.Options{
		Fixtures:      devserver.DefaultFixtures(),
		UploadDir:     filepath.Join(tmp, "received"),
		ExpectedParts: 7,
		FailUploads:   failUploads,
	})
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	fakeBin := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(fakeBin, 0o755); err != nil {
		t.Fatal(err)
	}
	shutter := `#!/usr/bin/env bash
set -euo pipefail
n=$(( $(cat "$FAKE_SHUTTER_COUNT" 2>/dev/null || echo 0) + 1 ))
echo "$n" > "$FAKE_SHUTTER_COUNT"
if [ "$n" = "${FAKE_SHUTTER_FAIL_ON:-0}" ]; then
  echo "lens busy" >&2
  exit 1
fi
out="${@: -1}"
printf 'fake jpeg %s' "$n" > "$out"
`
	if err := os.WriteFile(filepath.Join(fakeBin, "fake-shutter"), []byte(shutter), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	t.Setenv(config.EnvServer, "")
	t.Setenv("FAKE_SHUTTER_COUNT", filepath.Join(tmp, "shutter-count"))
	t.Setenv("FAKE_SHUTTER_FAIL_ON", "")

	h := &harness{
		tmp:        tmp,
		configPath: filepath.Join(tmp, "config.yaml"),
		stagingDir: filepath.Join(tmp, "staging"),
		server:     srv,
	}
	cfg := `server: ` + ts.URL + `
staging_dir: ` + h.stagingDir + `
session_path: ` + filepath.Join(tmp, "state", "session.json") + `
camera:
  mode: command
  command: [fake-shutter, "-o", "{output}"]
  device: /dev/null
log:
  level: debug
  file: ` + filepath.Join(tmp, "fieldops.log") + `
`
	if err := os.WriteFile(h.configPath, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return h
}

func withStdin(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	orig := os.Stdin
	os.Stdin = f
	t.Cleanup(func() {
		os.Stdin = orig
		_ = f.Close()
	})
}

func (h *harness) shutterCalls(t *testing.T) int {
	t.Helper()
	data, err := os.ReadFile(os.Getenv("FAKE_SHUTTER_COUNT"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatal(err)
	}
	return n
}

// headlessController builds a capture session from the harness config the
// same way the capture command does.
func (h *harness) headlessController(t *testing.T, load string) *capture.Controller {
	t.Helper()
	configPath, server, verbose := h.configPath, "", false
	e, err := loadEnv(commonFlags{config: &configPath, server: &server, verbose: &verbose})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(e.close)
	store, err := staging.Open(e.cfg.StagingDir, load, e.logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	ctrl, err := capture.New(capture.Options{
		LoadNumber: load,
		Camera:     e.camera(),
		Store:      store,
		Uploader:   e.uploader(7),
		Logger:     e.logger,
	})
	if err != nil {
		t.Fatal(err)
	}
	return ctrl
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".jpg") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestHarnessLoginCaptureUpload(t *testing.T) {
	h := newHarness(t, 0)

	withStdin(t, "driver\n")
	if err := Run([]string{"login", "--config", h.configPath, "--username", "driver", "--password-stdin"}); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	cfg, err := config.Load(h.configPath)
	if err != nil {
		t.Fatal(err)
	}
	session, err := config.ReadSession(cfg.SessionPath)
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if session.Driver.DriverID != "17" || session.Driver.CarrierID != "4" {
		t.Fatalf("unexpected session: %+v", session)
	}

	if err := Run([]string{"loads", "--config", h.configPath, "--status", "PickUp"}); err != nil {
		t.Fatalf("loads failed: %v", err)
	}

	withStdin(t, "")
	if err := Run([]string{"capture", "--config", h.configPath, "--load", "632", "--no-tui"}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	batches := h.server.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected one uploaded batch, got %d", len(batches))
	}
	want := []string{"632OD.jpg", "632LS.jpg", "632WS.jpg", "632FR.jpg", "632RS.jpg", "632BK.jpg", "632TP.jpg"}
	if strings.Join(batches[0].Files, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected batch files: %v", batches[0].Files)
	}
	if batches[0].LoadNumber != "632" {
		t.Fatalf("batch load number = %q", batches[0].LoadNumber)
	}
	if left := stagedFiles(t, h.stagingDir); len(left) != 0 {
		t.Fatalf("expected staged photos to be purged, found %v", left)
	}
}

func TestHarnessUploadFailureKeepsStagedPhotos(t *testing.T) {
	h := newHarness(t, 1)

	withStdin(t, "")
	err := Run([]string{"capture", "--config", h.configPath, "--load", "633", "--no-tui"})
	if err == nil || !strings.Contains(err.Error(), "upload failed") {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if got := len(stagedFiles(t, h.stagingDir)); got != 7 {
		t.Fatalf("expected 7 staged photos after failed upload, got %d", got)
	}
	if len(h.server.Batches()) != 0 {
		t.Fatal("no batch should have been stored")
	}

	// The lock is released, so a fresh session can run and overwrite in place.
	withStdin(t, "")
	if err := Run([]string{"capture", "--config", h.configPath, "--load", "633", "--no-tui", "--keep-staged"}); err != nil {
		t.Fatalf("second capture failed: %v", err)
	}
	if got := len(stagedFiles(t, h.stagingDir)); got != 7 {
		t.Fatalf("expected staged photos kept with --keep-staged, got %d", got)
	}
	if len(h.server.Batches()) != 1 {
		t.Fatal("expected the second attempt to upload")
	}
}

func TestHarnessLoginRejectsBadPassword(t *testing.T) {
	h := newHarness(t, 0)
	withStdin(t, "wrong\n")
	err := Run([]string{"login", "--config", h.configPath, "--username", "driver", "--password-stdin"})
	if err == nil || !strings.Contains(err.Error(), "incorrect username or password") {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestHarnessLoadsRequiresSession(t *testing.T) {
	h := newHarness(t, 0)
	err := Run([]string{"loads", "--config", h.configPath})
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Fatalf("expected not-logged-in error, got %v", err)
	}
}

func TestHarnessDoctor(t *testing.T) {
	h := newHarness(t, 0)
	if err := Run([]string{"doctor", "--config", h.configPath}); err != nil {
		t.Fatalf("doctor failed: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	if err := Run([]string{"nope"}); err == nil {
		t.Fatal("expected error for unknown command")
	}
}

func TestHarnessCaptureRetriesFailedShot(t *testing.T) {
	h := newHarness(t, 0)
	t.Setenv("FAKE_SHUTTER_FAIL_ON", "4")

	withStdin(t, "")
	if err := Run([]string{"capture", "--config", h.configPath, "--load", "632", "--no-tui"}); err != nil {
		t.Fatalf("capture should retry the failed shot, got %v", err)
	}
	if got := h.shutterCalls(t); got != 8 {
		t.Fatalf("expected 8 shutter calls (one retry), got %d", got)
	}
	batches := h.server.Batches()
	if len(batches) != 1 {
		t.Fatalf("expected one uploaded batch, got %d", len(batches))
	}
	want := "632OD.jpg,632LS.jpg,632WS.jpg,632FR.jpg,632RS.jpg,632BK.jpg,632TP.jpg"
	if got := strings.Join(batches[0].Files, ","); got != want {
		t.Fatalf("unexpected batch files: %s", got)
	}
}

func TestHeadlessUploadRetryResendsStagedBatch(t *testing.T) {
	h := newHarness(t, 1)
	ctrl := h.headlessController(t, "633")

	in := strings.Repeat("\n", 7) + "y\n"
	err := runCaptureHeadless(context.Background(), ctrl, headlessOptions{in: strings.NewReader(in), interactive: true})
	if err != nil {
		t.Fatalf("upload retry failed: %v", err)
	}
	if got := h.shutterCalls(t); got != 7 {
		t.Fatalf("retry must not reshoot, got %d shutter calls", got)
	}
	batches := h.server.Batches()
	if len(batches) != 1 || len(batches[0].Files) != 7 || batches[0].LoadNumber != "633" {
		t.Fatalf("unexpected batches: %+v", batches)
	}
	if left := stagedFiles(t, h.stagingDir); len(left) != 0 {
		t.Fatalf("expected staged photos purged after the retry, found %v", left)
	}
}

func TestHeadlessUploadRetryDeclinedKeepsPhotos(t *testing.T) {
	h := newHarness(t, 1)
	ctrl := h.headlessController(t, "633")

	in := strings.Repeat("\n", 7) + "n\n"
	err := runCaptureHeadless(context.Background(), ctrl, headlessOptions{in: strings.NewReader(in), interactive: true})
	if err == nil || !strings.Contains(err.Error(), "upload failed") {
		t.Fatalf("expected upload failure, got %v", err)
	}
	if got := len(stagedFiles(t, h.stagingDir)); got != 7 {
		t.Fatalf("expected 7 staged photos, got %d", got)
	}
	if len(h.server.Batches()) != 0 {
		t.Fatal("no batch should have been stored")
	}
}
