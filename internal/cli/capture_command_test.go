package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"fieldops/internal/capture"
	"fieldops/internal/device"
	"fieldops/internal/model"
	"fieldops/internal/staging"
	"fieldops/internal/upload"
)

type scriptedCamera struct {
	dir   string
	deny  bool
	shots int
}

func (c *scriptedCamera) RequestPermission(context.Context) (device.PermissionState, error) {
	if c.deny {
		return device.PermissionDenied, nil
	}
	return device.PermissionGranted, nil
}

func (c *scriptedCamera) Capture(context.Context) (device.RawImage, error) {
	c.shots++
	path := filepath.Join(c.dir, fmt.Sprintf("raw-%d.jpg", c.shots))
	if err := os.WriteFile(path, []byte("img"), 0o600); err != nil {
		return device.RawImage{}, err
	}
	return device.RawImage{Path: path}, nil
}

type nopUploader struct{}

func (nopUploader) Upload(context.Context, string, []model.StagedPhoto) (upload.Receipt, error) {
	return upload.Receipt{StatusCode: 200, Parts: 7}, nil
}

func newTestCaptureModel(t *testing.T, cam *scriptedCamera) captureModel {
	t.Helper()
	store, err := staging.Open(filepath.Join(t.TempDir(), "staging"), "632", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cam.dir = t.TempDir()

	ctrl, err := capture.New(capture.Options{LoadNumber: "632", Camera: cam, Store: store, Uploader: nopUploader{}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return newCaptureModel(ctx, cancel, ctrl, true)
}

// runCmd executes a controller command synchronously and feeds the result back.
func runCmd(t *testing.T, m captureModel, cmd tea.Cmd) captureModel {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	msg, ok := cmd().(captureResultMsg)
	if !ok {
		t.Fatal("expected captureResultMsg")
	}
	next, _ := m.Update(msg)
	return next.(captureModel)
}

func start(t *testing.T, m captureModel) captureModel {
	t.Helper()
	return runCmd(t, m, controllerCmd("start", func() error { return m.ctrl.Start(m.ctx) }))
}

func TestCaptureModelIgnoresKeysWhileBusy(t *testing.T) {
	m := newTestCaptureModel(t, &scriptedCamera{})
	if !m.busy {
		t.Fatal("model should start busy until permission resolves")
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	if cmd != nil || !next.(captureModel).busy {
		t.Fatal("expected keys to be ignored while busy")
	}
}

func TestCaptureModelSpaceCapturesCurrentItem(t *testing.T) {
	m := start(t, newTestCaptureModel(t, &scriptedCamera{}))
	if m.snap.Phase != model.PhaseReadyToCapture {
		t.Fatalf("phase = %s", m.snap.Phase)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
	m2 := next.(captureModel)
	if !m2.busy {
		t.Fatal("expected busy while capturing")
	}
	m3 := runCmd(t, m2, cmd)
	if m3.busy || m3.snap.CurrentIndex != 1 || len(m3.snap.StagedPhotos) != 1 {
		t.Fatalf("unexpected snapshot after capture: %+v", m3.snap)
	}
	if m3.snap.StagedPhotos[0].FileName != "632OD.jpg" {
		t.Fatalf("staged file = %s", m3.snap.StagedPhotos[0].FileName)
	}
}

func TestCaptureModelFullChecklistUploads(t *testing.T) {
	m := start(t, newTestCaptureModel(t, &scriptedCamera{}))
	for i := 0; i < 7; i++ {
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m = runCmd(t, next.(captureModel), cmd)
	}
	if !m.snap.Done() {
		t.Fatalf("expected upload succeeded, got %s", m.snap.Phase)
	}
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	_ = next
	if cmd == nil {
		t.Fatal("enter after success should quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("expected tea.Quit")
	}
}

func TestCaptureModelPermissionDenied(t *testing.T) {
	cam := &scriptedCamera{deny: true}
	m := start(t, newTestCaptureModel(t, cam))
	if m.snap.Phase != model.PhasePermissionDenied {
		t.Fatalf("phase = %s", m.snap.Phase)
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace}); cmd != nil {
		t.Fatal("capture must be inert without permission")
	}

	cam.deny = false
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m2 := runCmd(t, next.(captureModel), cmd)
	if m2.snap.Phase != model.PhaseReadyToCapture {
		t.Fatalf("phase after grant = %s", m2.snap.Phase)
	}
}

func TestCaptureModelRecaptureMode(t *testing.T) {
	m := start(t, newTestCaptureModel(t, &scriptedCamera{}))

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	if next.(captureModel).mode != captureModeChecklist {
		t.Fatal("re-capture needs at least one staged photo")
	}

	for i := 0; i < 2; i++ {
		next, cmd := m.Update(tea.KeyMsg{Type: tea.KeySpace})
		m = runCmd(t, next.(captureModel), cmd)
	}
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m2 := next.(captureModel)
	if m2.mode != captureModeRecapture || m2.cursor != 1 {
		t.Fatalf("expected recapture mode on last staged photo, got mode=%v cursor=%d", m2.mode, m2.cursor)
	}

	next, _ = m2.Update(tea.KeyMsg{Type: tea.KeyUp})
	next, cmd := next.(captureModel).Update(tea.KeyMsg{Type: tea.KeyEnter})
	m3 := runCmd(t, next.(captureModel), cmd)
	if m3.mode != captureModeChecklist || m3.snap.CurrentIndex != 2 {
		t.Fatalf("recapture must not move the index: %+v", m3.snap)
	}
	if m3.snap.Notice.Message != "Replaced Odometer photo." {
		t.Fatalf("notice = %q", m3.snap.Notice.Message)
	}
}
