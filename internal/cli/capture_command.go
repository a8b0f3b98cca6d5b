package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"fieldops/internal/capture"
	"fieldops/internal/checklist"
	"fieldops/internal/model"
	"fieldops/internal/staging"
)

type captureMode int

const (
	captureModeChecklist captureMode = iota
	captureModeRecapture
)

type captureModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	ctrl   *capture.Controller
	items  []model.ChecklistItem
	keep   bool

	snap     capture.Session
	busy     bool
	busyText string
	purged   bool
	mode     captureMode
	cursor   int
	width    int
	spinner  spinner.Model
}

type captureResultMsg struct {
	op  string
	err error
}

type capturePurgeMsg struct {
	err error
}

var (
	captureDoneMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("[x]")
	captureCurrentMark = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true).Render("[>]")
	capturePendingMark = tuiMutedStyle.Render("[ ]")
)

func runCapture(args []string) error {
	fs := flag.NewFlagSet("capture", flag.ContinueOnError)
	common := addCommonFlags(fs)
	loadID := fs.String("load", "", "load id (photo file prefix)")
	keepStaged := fs.Bool("keep-staged", false, "keep staged photos after a successful upload")
	noTUI := fs.Bool("no-tui", false, "line-oriented capture (tethered rigs, scripts)")
	jsonOut := fs.Bool("json", false, "print the final session as JSON (with --no-tui)")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	load := strings.TrimSpace(*loadID)
	if load == "" {
		var err error
		load, err = promptRequired("load id")
		if err != nil {
			return err
		}
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	defer e.close()
	logger := e.logger.Named("capture")
	if s, err := e.session(); err == nil {
		logger = logger.With(zap.String("driver", s.Driver.DriverID.String()))
	}

	store, err := staging.Open(e.cfg.StagingDir, load, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	items := checklist.Pickup()
	ctrl, err := capture.New(capture.Options{
		LoadNumber: load,
		Checklist:  items,
		Camera:     e.camera(),
		Store:      store,
		Uploader:   e.uploader(len(items)),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	keep := *keepStaged || e.cfg.KeepStaged

	if *noTUI || !stdinIsTTY() {
		return runCaptureHeadless(ctx, ctrl, headlessOptions{
			in:          os.Stdin,
			interactive: stdinIsTTY(),
			keep:        keep,
			jsonOut:     *jsonOut,
		})
	}

	m := newCaptureModel(ctx, cancel, ctrl, keep)
	finalModel, err := tea.NewProgram(m).Run()
	if err != nil {
		return err
	}
	fm, ok := finalModel.(captureModel)
	if !ok {
		return nil
	}
	snap := ctrl.Snapshot()
	switch {
	case snap.Done():
		fmt.Printf("load %s: %d photos uploaded\n", load, len(snap.StagedPhotos))
		if fm.keep {
			fmt.Printf("staged photos kept in %s\n", store.Root())
		}
		return nil
	case snap.Phase == model.PhaseUploadFailed:
		return fmt.Errorf("load %s: upload failed; staged photos kept in %s", load, store.Root())
	default:
		fmt.Printf("load %s: stopped at %d/%d photos\n", load, snap.CurrentIndex, snap.Total)
		return nil
	}
}

// headlessShotAttempts bounds back-to-back failures of one shot when nobody is
// at the terminal to decide whether to keep trying.
const headlessShotAttempts = 3

type headlessOptions struct {
	in          io.Reader
	interactive bool
	keep        bool
	jsonOut     bool
}

// runCaptureHeadless walks the checklist without a TUI. On a terminal it waits
// for Enter before each shot and offers to re-send a failed batch; otherwise it
// fires as soon as the camera allows.
func runCaptureHeadless(ctx context.Context, ctrl *capture.Controller, opts headlessOptions) error {
	reader := bufio.NewReader(opts.in)
	say := func(format string, args ...any) {
		if !opts.jsonOut {
			fmt.Printf(format, args...)
		}
	}

	if err := ctrl.Start(ctx); err != nil {
		return fmt.Errorf("%s: %w", ctrl.Snapshot().Notice.Message, err)
	}
	failures := 0
shots:
	for {
		item, ok := ctrl.Current()
		if !ok {
			break
		}
		snap := ctrl.Snapshot()
		say("[%d/%d] %s\n", snap.CurrentIndex+1, snap.Total, snap.Notice.Message)
		if opts.interactive {
			fmt.Print("press Enter to capture " + item.Label + " ")
			if _, err := reader.ReadString('\n'); err != nil {
				return err
			}
		}

		err := ctrl.Capture(ctx)
		switch kind := capture.KindOf(err); {
		case err == nil:
			failures = 0
		case kind == capture.KindUpload:
			break shots
		case (kind == capture.KindCapture || kind == capture.KindStorage) && ctx.Err() == nil:
			failures++
			if !opts.interactive && failures >= headlessShotAttempts {
				return fmt.Errorf("%s: %w", ctrl.Snapshot().Notice.Message, err)
			}
			say("%s\n", ctrl.Snapshot().Notice.Message)
		default:
			return fmt.Errorf("%s: %w", ctrl.Snapshot().Notice.Message, err)
		}
	}

	for opts.interactive && ctrl.Snapshot().Phase == model.PhaseUploadFailed {
		fmt.Print(ctrl.Snapshot().Notice.Message + " Retry upload? [Y/n]: ")
		line, err := reader.ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		if answer == "n" || answer == "no" || (err != nil && answer == "") {
			break
		}
		if err := ctrl.Upload(ctx); err != nil && capture.KindOf(err) != capture.KindUpload {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	snap := ctrl.Snapshot()
	if snap.Done() && !opts.keep {
		if err := ctrl.Purge(); err != nil {
			return fmt.Errorf("purge staged photos: %w", err)
		}
	}
	if opts.jsonOut {
		if err := printJSON(snap); err != nil {
			return err
		}
	} else {
		fmt.Println(snap.Notice.Message)
	}
	if snap.Phase == model.PhaseUploadFailed {
		return errors.New("photo upload failed; the staged photos are kept for the next attempt")
	}
	return nil
}

func newCaptureModel(ctx context.Context, cancel context.CancelFunc, ctrl *capture.Controller, keep bool) captureModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return captureModel{
		ctx:      ctx,
		cancel:   cancel,
		ctrl:     ctrl,
		items:    ctrl.Checklist(),
		keep:     keep,
		snap:     ctrl.Snapshot(),
		busy:     true,
		busyText: "Loading camera permissions...",
		spinner:  sp,
	}
}

func (m captureModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, controllerCmd("start", func() error { return m.ctrl.Start(m.ctx) }))
}

func (m captureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case captureResultMsg:
		m.busy = false
		m.busyText = ""
		m.snap = m.ctrl.Snapshot()
		if m.snap.Done() && !m.keep && !m.purged {
			return m, purgeCmd(m.ctrl)
		}
		return m, nil
	case capturePurgeMsg:
		m.purged = msg.err == nil
		if msg.err != nil {
			m.snap.Notice = capture.Notice{Level: capture.NoticeError, Message: "Uploaded, but staged photos could not be removed: " + msg.err.Error()}
		}
		return m, nil
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			return m, tea.Quit
		}
		if m.busy {
			return m, nil
		}
		if m.mode == captureModeRecapture {
			return m.updateRecapture(msg)
		}
		return m.updateChecklist(msg)
	}
	return m, nil
}

func (m captureModel) updateChecklist(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		return m, tea.Quit
	case " ", "space", "enter", "c":
		if m.snap.Done() && msg.String() == "enter" {
			return m, tea.Quit
		}
		if !m.snap.CanCapture() {
			return m, nil
		}
		item, _ := m.ctrl.Current()
		m.busy = true
		m.busyText = "Capturing " + item.Description + "..."
		if m.snap.CurrentIndex == m.snap.Total-1 {
			m.busyText = "Capturing " + item.Description + " and uploading..."
		}
		return m, controllerCmd("capture", func() error { return m.ctrl.Capture(m.ctx) })
	case "p":
		if m.snap.Phase != model.PhasePermissionDenied {
			return m, nil
		}
		m.busy = true
		m.busyText = "Requesting camera permission..."
		return m, controllerCmd("permission", func() error { return m.ctrl.RequestPermission(m.ctx) })
	case "u":
		if !m.snap.CanUpload() {
			return m, nil
		}
		m.busy = true
		m.busyText = "Uploading photos..."
		return m, controllerCmd("upload", func() error { return m.ctrl.Upload(m.ctx) })
	case "r":
		if len(m.snap.StagedPhotos) == 0 {
			return m, nil
		}
		if m.snap.Phase != model.PhaseReadyToCapture && m.snap.Phase != model.PhaseUploadFailed {
			return m, nil
		}
		m.mode = captureModeRecapture
		m.cursor = len(m.snap.StagedPhotos) - 1
		return m, nil
	}
	return m, nil
}

func (m captureModel) updateRecapture(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	staged := m.snap.StagedPhotos
	switch msg.String() {
	case "esc", "q":
		m.mode = captureModeChecklist
		return m, nil
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(staged)-1 {
			m.cursor++
		}
		return m, nil
	case "enter", " ", "space":
		if m.cursor < 0 || m.cursor >= len(staged) {
			return m, nil
		}
		label := staged[m.cursor].Label
		m.mode = captureModeChecklist
		m.busy = true
		m.busyText = "Re-capturing " + label + "..."
		return m, controllerCmd("recapture", func() error { return m.ctrl.Recapture(m.ctx, label) })
	}
	return m, nil
}

func (m captureModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	header := tuiTitleStyle.Render(fmt.Sprintf("load %s photo checklist", m.snap.LoadNumber)) + "  " +
		tuiMutedStyle.Render(fmt.Sprintf("%d/%d  %s", m.snap.CurrentIndex, m.snap.Total, m.snap.Phase))

	lines := make([]string, 0, len(m.items))
	for i, item := range m.items {
		mark := capturePendingMark
		switch {
		case i < len(m.snap.StagedPhotos):
			mark = captureDoneMark
		case i == m.snap.CurrentIndex && m.snap.Phase != model.PhaseUploadSucceeded:
			mark = captureCurrentMark
		}
		line := fmt.Sprintf("%s %s  %s", mark, item.Label, item.Description)
		if m.mode == captureModeRecapture && i == m.cursor {
			line = tuiSelStyle.Render(fmt.Sprintf("[~] %s  %s", item.Label, item.Description))
		}
		lines = append(lines, line)
	}
	panel := tuiPanelStyle.Width(clampInt(width-2, 40, 100)).Render(strings.Join(lines, "\n"))

	notice := m.snap.Notice.Message
	if m.busy {
		notice = m.spinner.View() + " " + m.busyText
	}
	noticeStyle := tuiMutedStyle
	switch m.snap.Notice.Level {
	case capture.NoticeError:
		noticeStyle = tuiErrorStyle
	case capture.NoticeSuccess:
		noticeStyle = tuiOKStyle
	}
	if m.busy {
		noticeStyle = tuiMutedStyle
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, panel, noticeStyle.Render(wrapOrTrim(notice, width-2)), tuiMutedStyle.Render(m.hints()))
}

func (m captureModel) hints() string {
	if m.busy {
		return "ctrl+c: abort"
	}
	if m.mode == captureModeRecapture {
		return "up/down: choose photo | enter: re-capture | esc: back"
	}
	switch m.snap.Phase {
	case model.PhasePermissionDenied:
		return "p: grant permission | q: quit"
	case model.PhaseReadyToCapture:
		if len(m.snap.StagedPhotos) > 0 {
			return "space/enter: take photo | r: re-capture | q: quit"
		}
		return "space/enter: take photo | q: quit"
	case model.PhaseUploadFailed:
		return "u: upload again | r: re-capture | q: quit (photos stay staged)"
	case model.PhaseUploadSucceeded:
		return "enter/q: done"
	default:
		return "q: quit"
	}
}

func controllerCmd(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return captureResultMsg{op: op, err: fn()}
	}
}

func purgeCmd(ctrl *capture.Controller) tea.Cmd {
	return func() tea.Msg {
		return capturePurgeMsg{err: ctrl.Purge()}
	}
}
