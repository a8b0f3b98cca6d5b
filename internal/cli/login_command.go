package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"fieldops/internal/config"
	"fieldops/internal/fieldapi"
	"fieldops/internal/model"
)

type loginFormField struct {
	Key    string
	Label  string
	Help   string
	Secret bool
	Value  string
}

type loginForm struct {
	Title  string
	Fields []loginFormField
	Index  int
	Input  textinput.Model
	Error  string
	Saving bool
}

type loginModel struct {
	client *fieldapi.Client
	form   *loginForm
	width  int

	driver    model.Driver
	username  string
	cancelled bool
}

type loginResultMsg struct {
	driver model.Driver
	err    error
}

func runLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	common := addCommonFlags(fs)
	username := fs.String("username", "", "driver username")
	passwordStdin := fs.Bool("password-stdin", false, "read the password from stdin")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	defer e.close()

	user := strings.TrimSpace(*username)
	var driver model.Driver
	switch {
	case *passwordStdin:
		if user == "" {
			return errors.New("--username is required with --password-stdin")
		}
		password, err := readSecret(os.Stdin)
		if err != nil {
			return err
		}
		driver, err = e.client.Login(context.Background(), user, password)
		if err != nil {
			return loginError(err)
		}
	case stdinIsTTY():
		m := loginModel{client: e.client, form: newLoginForm(user, 80)}
		finalModel, err := tea.NewProgram(m).Run()
		if err != nil {
			return err
		}
		fm, ok := finalModel.(loginModel)
		if !ok || fm.cancelled || !fm.driver.Valid() {
			return errors.New("login cancelled")
		}
		driver, user = fm.driver, fm.username
	default:
		return errors.New("login requires an interactive terminal (TTY) or --username with --password-stdin")
	}

	session := config.NewDriverSession(user, e.cfg.Server, driver)
	if err := config.WriteSession(e.cfg.SessionPath, session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	e.logger.Info("session stored", zap.String("path", e.cfg.SessionPath))

	if *jsonOut {
		return printJSON(session)
	}
	fmt.Printf("logged in as %s (driver %s, carrier %s)\n", user, driver.DriverID, driver.CarrierID)
	return nil
}

func runLogout(args []string) error {
	fs := flag.NewFlagSet("logout", flag.ContinueOnError)
	common := addCommonFlags(fs)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	e, err := loadEnv(common)
	if err != nil {
		return err
	}
	defer e.close()

	if !*yes {
		if s, err := e.session(); err == nil {
			ok, err := promptConfirm(fmt.Sprintf("Log out %s? [y/N]: ", s.Username))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("logout cancelled")
				return nil
			}
		}
	}

	removed, err := config.ClearSession(e.cfg.SessionPath)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(map[string]any{"removed": removed, "session_path": e.cfg.SessionPath})
	}
	if removed {
		fmt.Println("logged out")
	} else {
		fmt.Println("no stored session")
	}
	return nil
}

func loginError(err error) error {
	if errors.Is(err, fieldapi.ErrBadCredentials) {
		return errors.New("incorrect username or password, please try again")
	}
	if errors.Is(err, fieldapi.ErrUnexpectedResponse) {
		return fmt.Errorf("unexpected server response, please try again: %w", err)
	}
	return fmt.Errorf("login failed, please try again later: %w", err)
}

func newLoginForm(username string, width int) *loginForm {
	f := &loginForm{
		Title: "fieldops login",
		Fields: []loginFormField{
			{Key: "username", Label: "Username", Help: "Driver account name", Value: username},
			{Key: "password", Label: "Password", Help: "Hidden while typing", Secret: true},
		},
	}
	if username != "" {
		f.Index = 1
	}
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 256
	input.Width = clampInt(width-8, 20, 120)
	f.Input = input
	f.loadFieldIntoInput()
	f.Input.Focus()
	return f
}

func (f *loginForm) currentField() loginFormField {
	if f.Index < 0 {
		f.Index = 0
	}
	if f.Index >= len(f.Fields) {
		f.Index = len(f.Fields) - 1
	}
	return f.Fields[f.Index]
}

func (f *loginForm) commitInput() {
	v := f.Input.Value()
	if !f.Fields[f.Index].Secret {
		v = strings.TrimSpace(v)
	}
	f.Fields[f.Index].Value = v
}

func (f *loginForm) loadFieldIntoInput() {
	curr := f.currentField()
	f.Input.EchoMode = textinput.EchoNormal
	if curr.Secret {
		f.Input.EchoMode = textinput.EchoPassword
		f.Input.EchoCharacter = '•'
	}
	f.Input.SetValue(curr.Value)
	f.Input.CursorEnd()
}

func (f *loginForm) value(key string) string {
	for _, field := range f.Fields {
		if field.Key == key {
			return field.Value
		}
	}
	return ""
}

func (m loginModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m loginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.form.Input.Width = clampInt(m.width-8, 20, 120)
		return m, nil
	case loginResultMsg:
		m.form.Saving = false
		if msg.err != nil {
			m.form.Error = loginError(msg.err).Error()
			m.form.Fields[1].Value = ""
			m.form.Index = 1
			m.form.loadFieldIntoInput()
			return m, nil
		}
		m.driver = msg.driver
		m.username = m.form.value("username")
		return m, tea.Quit
	case tea.KeyMsg:
		return m.updateForm(msg)
	}
	return m, nil
}

func (m loginModel) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.form.Saving {
		return m, nil
	}
	switch msg.String() {
	case "ctrl+c", "esc":
		m.cancelled = true
		return m, tea.Quit
	case "up", "shift+tab":
		m.form.commitInput()
		if m.form.Index > 0 {
			m.form.Index--
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "down", "tab":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
		}
		m.form.loadFieldIntoInput()
		return m, nil
	case "enter":
		m.form.commitInput()
		if m.form.Index < len(m.form.Fields)-1 {
			m.form.Index++
			m.form.loadFieldIntoInput()
			return m, nil
		}
		username, password := m.form.value("username"), m.form.value("password")
		if username == "" || password == "" {
			m.form.Error = "username and password are required"
			return m, nil
		}
		m.form.Error = ""
		m.form.Saving = true
		return m, loginCmd(m.client, username, password)
	}

	var cmd tea.Cmd
	m.form.Input, cmd = m.form.Input.Update(msg)
	m.form.Fields[m.form.Index].Value = m.form.Input.Value()
	return m, cmd
}

func (m loginModel) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	header := tuiTitleStyle.Render(m.form.Title)
	hints := tuiMutedStyle.Render("tab/shift+tab or up/down: move | enter: next/log in | esc: cancel")

	lines := make([]string, 0, len(m.form.Fields))
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := f.Value
		if f.Secret && display != "" {
			display = strings.Repeat("•", len([]rune(display)))
		}
		if display == "" {
			display = tuiMutedStyle.Render("(empty)")
		}
		lines = append(lines, wrapOrTrim(fmt.Sprintf("%s%s: %s", prefix, f.Label, display), maxInt(width-6, 20)))
	}

	curr := m.form.currentField()
	body := strings.Join(lines, "\n") + "\n\n" + curr.Label + "\n" + tuiMutedStyle.Render(curr.Help) + "\n" + m.form.Input.View()
	if m.form.Saving {
		body += "\n" + tuiMutedStyle.Render("Logging in...")
	}
	if strings.TrimSpace(m.form.Error) != "" {
		body += "\n" + tuiErrorStyle.Render(m.form.Error)
	}
	panel := tuiPanelStyle.Width(clampInt(width-2, 40, 100)).Render(body)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel)
}

func loginCmd(client *fieldapi.Client, username, password string) tea.Cmd {
	return func() tea.Msg {
		driver, err := client.Login(context.Background(), username, password)
		return loginResultMsg{driver: driver, err: err}
	}
}
