package tui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/banao-ai/jarvisctl/pkg/chat"
	"github.com/banao-ai/jarvisctl/pkg/logger"
)

// stateMsg wakes the UI after a controller event; the model re-reads the
// snapshot rather than carrying payloads around.
type stateMsg struct {
	event chat.Event
}

// actionDoneMsg reports a dispatched action. Outcomes land in the
// snapshot, so only the error is kept for logging.
type actionDoneMsg struct {
	action string
	err    error
}

type Model struct {
	ctrl     *chat.Controller
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	snap     chat.Snapshot
	history  []string
	histIdx  int
	showHelp bool
	width    int
	height   int
	ready    bool
}

func New(ctrl *chat.Controller) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about your documents..."
	ti.CharLimit = 1000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = spinnerStyle

	return Model{
		ctrl:    ctrl,
		input:   ti,
		spinner: sp,
		snap:    ctrl.Snapshot(),
		histIdx: -1,
	}
}

// Run starts the interactive console. The controller must already be
// started; its status poll and question load keep running underneath.
func Run(ctrl *chat.Controller) error {
	p := tea.NewProgram(New(ctrl), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, listenCmd(m.ctrl))
}

func listenCmd(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg{event: <-ctrl.Events()}
	}
}

func actionCmd(ctrl *chat.Controller, name string, req chat.ActionRequest) tea.Cmd {
	return func() tea.Msg {
		_, err := ctrl.Do(name, req)
		return actionDoneMsg{action: name, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport = viewport.New(msg.Width, max(msg.Height-chromeRows, 1))
		m.input.Width = max(msg.Width-4, 10)
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(max(msg.Width-6, 20)),
		)
		if err == nil {
			m.renderer = renderer
		}
		m.ready = true
		m.refreshViewport(true)
		return m, nil

	case stateMsg:
		m.snap = m.ctrl.Snapshot()
		if m.ready {
			m.refreshViewport(msg.event.Kind == chat.EventTranscript)
		}
		return m, listenCmd(m.ctrl)

	case actionDoneMsg:
		if msg.err != nil {
			logger.DebugCF("tui", "Action finished with error",
				map[string]interface{}{"action": msg.action, "error": msg.err.Error()})
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.snap.Typing || m.snap.Uploading || m.snap.Ingesting {
			m.refreshViewport(false)
		}
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// The error modal blocks everything until dismissed.
	if m.snap.ModalError != "" {
		switch msg.String() {
		case "esc", "enter":
			return m, actionCmd(m.ctrl, "dismiss", chat.ActionRequest{})
		case "ctrl+c":
			return m, tea.Quit
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		return m.submit()

	case "up":
		if len(m.history) > 0 {
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
			}
			m.input.SetValue(m.history[len(m.history)-1-m.histIdx])
			m.input.CursorEnd()
		}
		return m, nil

	case "down":
		if m.histIdx > 0 {
			m.histIdx--
			m.input.SetValue(m.history[len(m.history)-1-m.histIdx])
			m.input.CursorEnd()
		} else if m.histIdx == 0 {
			m.histIdx = -1
			m.input.SetValue("")
		}
		return m, nil

	case "pgup":
		m.viewport.HalfViewUp()
		return m, nil

	case "pgdown":
		m.viewport.HalfViewDown()
		return m, nil
	}

	// On the welcome screen a bare digit picks an example question.
	if m.input.Value() == "" && len(m.snap.Entries) == 0 && len(msg.String()) == 1 {
		if n, err := strconv.Atoi(msg.String()); err == nil && n >= 1 && n <= len(m.snap.Questions) {
			m.input.SetValue(m.snap.Questions[n-1])
			m.input.CursorEnd()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	raw := strings.TrimSpace(m.input.Value())
	if raw == "" {
		return m, nil
	}
	// one request at a time; the text stays in the input
	if m.snap.Typing && !strings.HasPrefix(raw, "/") {
		return m, nil
	}

	m.history = append(m.history, raw)
	m.histIdx = -1
	m.input.SetValue("")
	m.showHelp = false

	if strings.HasPrefix(raw, "/") {
		return m.runCommand(raw)
	}
	return m, actionCmd(m.ctrl, "send", chat.ActionRequest{Message: raw})
}

func (m Model) runCommand(raw string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(raw)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		m.showHelp = true
		m.refreshViewport(false)
		return m, nil

	case "/quit", "/exit":
		return m, tea.Quit

	case "/clear":
		return m, actionCmd(m.ctrl, "clear", chat.ActionRequest{})

	case "/status":
		return m, actionCmd(m.ctrl, "status", chat.ActionRequest{})

	case "/questions":
		return m, actionCmd(m.ctrl, "questions", chat.ActionRequest{})

	case "/upload":
		if len(args) == 0 {
			m.showHelp = true
			m.refreshViewport(false)
			return m, nil
		}
		return m, actionCmd(m.ctrl, "upload", chat.ActionRequest{Paths: args})

	case "/ingest":
		if len(args) == 0 {
			m.showHelp = true
			m.refreshViewport(false)
			return m, nil
		}
		clearExisting := false
		if args[len(args)-1] == "clear" {
			clearExisting = true
			args = args[:len(args)-1]
		}
		return m, actionCmd(m.ctrl, "ingest", chat.ActionRequest{Paths: args, ClearExisting: clearExisting})
	}

	m.showHelp = true
	m.refreshViewport(false)
	return m, nil
}
