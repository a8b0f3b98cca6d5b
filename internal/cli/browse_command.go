package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"fieldops/internal/fieldapi"
	"fieldops/internal/model"
)

type browseMode int

const (
	browseModeList browseMode = iota
	browseModeDetail
)

// browseTabs is the initial CarrierChosen view followed by the menu tabs.
var browseTabs = append([]model.LoadStatus{model.LoadStatusCarrierChosen}, model.BrowseStatuses...)

type browseModel struct {
	client *fieldapi.Client
	driver model.Driver

	tab     int
	loads   map[model.LoadStatus][]model.Load
	loading bool
	cursor  int
	width   int
	height  int
	mode    browseMode
	spinner spinner.Model

	selected      model.Load
	delivery      []model.DeliveryDetail
	deliveryBusy  bool
	statusMessage string
	launchCapture string
}

type browseLoadedMsg struct {
	status model.LoadStatus
	loads  []model.Load
	err    error
}

type browseDeliveryMsg struct {
	loadID  model.ID
	details []model.DeliveryDetail
	err     error
}

func runBrowse(args []string) error {
	fs := flag.NewFlagSet("browse", flag.ContinueOnError)
	common := addCommonFlags(fs)
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !stdinIsTTY() {
		return errors.New("browse requires an interactive terminal (TTY); use `fieldops loads` instead")
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	session, err := e.session()
	if err != nil {
		e.close()
		return err
	}

	m := newBrowseModel(e.client, session.Driver)
	finalModel, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	e.close()
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "tty") {
			return errors.New("browse requires an interactive terminal (TTY)")
		}
		return err
	}
	if fm, ok := finalModel.(browseModel); ok && fm.launchCapture != "" {
		fmt.Printf("load %s: opening photo checklist...\n", fm.launchCapture)
		passthrough := []string{"--config", e.configPath, "--load", fm.launchCapture}
		if s := strings.TrimSpace(*common.server); s != "" {
			passthrough = append(passthrough, "--server", s)
		}
		return runCapture(passthrough)
	}
	return nil
}

func newBrowseModel(client *fieldapi.Client, driver model.Driver) browseModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return browseModel{
		client:  client,
		driver:  driver,
		loads:   map[model.LoadStatus][]model.Load{},
		loading: true,
		spinner: sp,
	}
}

func (m browseModel) currentStatus() model.LoadStatus {
	return browseTabs[m.tab]
}

func (m browseModel) currentLoads() []model.Load {
	return m.loads[m.currentStatus()]
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchLoadsCmd(m.client, m.driver, m.currentStatus()))
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case browseLoadedMsg:
		if msg.status == m.currentStatus() {
			m.loading = false
		}
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.loads[msg.status] = msg.loads
		if msg.status == m.currentStatus() {
			m.cursor = clampInt(m.cursor, 0, maxInt(len(msg.loads)-1, 0))
			m.statusMessage = fmt.Sprintf("%d %s loads", len(msg.loads), msg.status)
		}
		return m, nil
	case browseDeliveryMsg:
		if msg.loadID != m.selected.LoadID {
			return m, nil
		}
		m.deliveryBusy = false
		if msg.err != nil {
			m.statusMessage = "error: " + msg.err.Error()
			return m, nil
		}
		m.delivery = msg.details
		return m, nil
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch m.mode {
	case browseModeDetail:
		return m.updateDetail(keyMsg)
	default:
		return m.updateList(keyMsg)
	}
}

func (m browseModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	loads := m.currentLoads()
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down", "j":
		if m.cursor < len(loads)-1 {
			m.cursor++
		}
		return m, nil
	case "right", "l", "tab":
		return m.switchTab((m.tab + 1) % len(browseTabs))
	case "left", "h", "shift+tab":
		return m.switchTab((m.tab - 1 + len(browseTabs)) % len(browseTabs))
	case "r":
		m.loading = true
		return m, fetchLoadsCmd(m.client, m.driver, m.currentStatus())
	case "enter":
		if len(loads) == 0 || m.cursor >= len(loads) {
			m.statusMessage = "no load selected"
			return m, nil
		}
		return m.openLoad(loads[m.cursor])
	}
	return m, nil
}

func (m browseModel) switchTab(tab int) (tea.Model, tea.Cmd) {
	m.tab = tab
	m.cursor = 0
	if _, cached := m.loads[m.currentStatus()]; cached {
		m.statusMessage = fmt.Sprintf("%d %s loads", len(m.currentLoads()), m.currentStatus())
		return m, nil
	}
	m.loading = true
	m.statusMessage = ""
	return m, fetchLoadsCmd(m.client, m.driver, m.currentStatus())
}

// openLoad sends the load to the screen its status selects.
func (m browseModel) openLoad(load model.Load) (tea.Model, tea.Cmd) {
	m.selected = load
	m.delivery = nil
	switch model.ScreenFor(load.Status) {
	case model.ScreenPhotoChecklist:
		m.launchCapture = load.LoadID.String()
		m.statusMessage = "opening photo checklist..."
		return m, tea.Quit
	case model.ScreenDeliveryDetail:
		m.mode = browseModeDetail
		m.deliveryBusy = true
		return m, fetchDeliveryCmd(m.client, load.LoadID)
	default:
		m.mode = browseModeDetail
		return m, nil
	}
}

func (m browseModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "esc", "backspace", "enter":
		m.mode = browseModeList
		m.deliveryBusy = false
		return m, nil
	}
	return m, nil
}

func (m browseModel) View() string {
	width, height := m.width, m.height
	if width <= 0 {
		width = 100
	}
	if height <= 0 {
		height = 30
	}
	header := tuiTitleStyle.Render("fieldops loads") + "  " + tuiMutedStyle.Render("driver "+m.driver.DriverID.String()+" / carrier "+m.driver.CarrierID.String()) + "\n" +
		tuiMutedStyle.Render("left/right: status | up/down: move | enter: open | r: refresh | q: quit")

	var body string
	if m.mode == browseModeDetail {
		body = m.renderDetail(width)
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left, m.renderTabs(), m.renderList(width, height))
	}
	status := statusLine(m.statusMessage, "Tip: loads in PickUp open the photo checklist.", width)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, status)
}

func (m browseModel) renderTabs() string {
	tabs := make([]string, 0, len(browseTabs))
	for i, s := range browseTabs {
		style := tuiTabStyle
		if i == m.tab {
			style = tuiTabOnStyle
		}
		tabs = append(tabs, style.Render(s.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (m browseModel) renderList(width, height int) string {
	if m.loading {
		return tuiPanelStyle.Width(width - 2).Render(m.spinner.View() + " loading " + m.currentStatus().String() + " loads...")
	}
	loads := m.currentLoads()
	if len(loads) == 0 {
		return tuiPanelStyle.Width(width - 2).Render(tuiMutedStyle.Render("No loads in " + m.currentStatus().String() + "."))
	}

	maxRows := clampInt(height-8, 4, 30)
	start, end := listWindow(len(loads), m.cursor, maxRows)
	lines := make([]string, 0, maxRows+2)
	if start > 0 {
		lines = append(lines, tuiMutedStyle.Render("..."))
	}
	for i := start; i < end; i++ {
		l := loads[i]
		line := fmt.Sprintf("#%s  %s -> %s", l.LoadID, defaultIfEmpty(l.LocPickup, "?"), defaultIfEmpty(l.LocDelivery, "?"))
		line = truncateRunes(line, maxInt(width-8, 10))
		if i == m.cursor {
			line = tuiSelStyle.Width(maxInt(width-6, 6)).Render(line)
		}
		lines = append(lines, line)
	}
	if end < len(loads) {
		lines = append(lines, tuiMutedStyle.Render("..."))
	}
	return tuiPanelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m browseModel) renderDetail(width int) string {
	l := m.selected
	lines := []string{}
	switch model.ScreenFor(l.Status) {
	case model.ScreenDeliveryDetail:
		lines = append(lines, "Delivery Details", "")
		lines = append(lines, kv("Load ID", l.LoadID.String()))
		switch {
		case m.deliveryBusy:
			lines = append(lines, m.spinner.View()+" loading delivery details...")
		case len(m.delivery) == 0:
			lines = append(lines, tuiMutedStyle.Render("No delivery details recorded."))
		default:
			for _, d := range m.delivery {
				lines = append(lines, "", kv("Driver Name", d.DriverName), kv("Driver Phone", d.DriverPhone))
			}
		}
	default:
		lines = append(lines, l.Status.String()+" Screen", "")
		lines = append(lines, kv("Load ID", l.LoadID.String()))
		lines = append(lines, kv("Status", l.Status.String()))
		lines = append(lines, kv("Pickup", defaultIfEmpty(l.LocPickup, "-")))
		lines = append(lines, kv("Delivery", defaultIfEmpty(l.LocDelivery, "-")))
	}
	lines = append(lines, "", tuiMutedStyle.Render("esc: back"))
	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], maxInt(width-6, 12))
	}
	return tuiPanelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func fetchLoadsCmd(client *fieldapi.Client, driver model.Driver, status model.LoadStatus) tea.Cmd {
	return func() tea.Msg {
		loads, err := client.Loads(context.Background(), driver, status)
		return browseLoadedMsg{status: status, loads: loads, err: err}
	}
}

func fetchDeliveryCmd(client *fieldapi.Client, loadID model.ID) tea.Cmd {
	return func() tea.Msg {
		details, err := client.Delivery(context.Background(), loadID)
		return browseDeliveryMsg{loadID: loadID, details: details, err: err}
	}
}
