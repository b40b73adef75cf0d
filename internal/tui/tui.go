// Package tui is the interactive terminal for the session. It renders the
// transcript and the connection state and only changes domain state through
// Session.Submit and the connection controls.
package tui

import (
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/codefionn/pulseterm/internal/features"
	"github.com/codefionn/pulseterm/internal/logger"
	"github.com/codefionn/pulseterm/internal/session"
	"github.com/codefionn/pulseterm/internal/socketclient"
	"golang.org/x/term"
)

// Controller is the part of the connection manager the terminal drives.
// *socketclient.Client satisfies it.
type Controller interface {
	Connect()
	Disconnect()
}

// sessionChangedMsg tells the model to refresh from the session
type sessionChangedMsg struct{}

// RendererReadyMsg is sent when async renderer creation completes
type RendererReadyMsg struct {
	Renderer *glamour.TermRenderer
	Width    int
	Err      error
}

// Model is the bubbletea model of the terminal
type Model struct {
	session *session.Session
	conn    Controller
	flags   *features.FeatureFlags
	log     *logger.Logger

	// changes is signalled, coalesced, after every session change
	changes     chan struct{}
	unsubscribe func()

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	renderer         *glamour.TermRenderer
	rendererCache    map[int]*glamour.TermRenderer
	rendererInFlight bool
	// markdown holds rendered frozen answers by entry ID for the current width
	markdown map[string]string

	entries []session.Entry
	state   socketclient.ConnectionState
	busy    bool

	width                int
	height               int
	contentWidth         int
	renderWrapWidth      int
	ready                bool
	viewportRefreshToken int
	quitting             bool
}

// New creates the terminal model for sess. conn receives reconnect and
// quit requests. flags may be nil.
func New(sess *session.Session, conn Controller, flags *features.FeatureFlags) *Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()

	sp := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(statusStyle.MarginLeft(0)),
	)

	m := &Model{
		session:       sess,
		conn:          conn,
		flags:         flags,
		log:           logger.Global().WithPrefix("tui"),
		changes:       make(chan struct{}, 1),
		input:         ti,
		viewport:      viewport.New(80, 20),
		spinner:       sp,
		rendererCache: make(map[int]*glamour.TermRenderer),
		markdown:      make(map[string]string),
		contentWidth:  80,
	}

	m.unsubscribe = sess.Subscribe(func(session.Change) {
		select {
		case m.changes <- struct{}{}:
		default:
		}
	})
	m.refresh()

	return m
}

// Run starts the terminal program and blocks until the user quits
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return sessionChangedMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	initialWindowSize := func() tea.Msg {
		fd := int(os.Stdout.Fd())
		if !term.IsTerminal(fd) {
			return nil
		}
		if width, height, err := term.GetSize(fd); err == nil && width > 0 && height > 0 {
			return tea.WindowSizeMsg{Width: width, Height: height}
		}
		return nil
	}

	cmds := []tea.Cmd{textinput.Blink, waitForChange(m.changes), initialWindowSize}
	if m.busy && m.flags.AnimationsEnabled() {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// refresh copies the session's current view into the model
func (m *Model) refresh() {
	m.entries = m.session.Snapshot()
	m.state = m.session.State()
	m.busy = m.session.Busy()

	if m.state == socketclient.StateConnected {
		m.input.Placeholder = placeholderConnected
	} else {
		m.input.Placeholder = placeholderWaiting
	}
	m.updateViewport()
}

func (m *Model) applyWindowSize(width, height int) tea.Cmd {
	if width <= 0 || height <= 0 {
		return nil
	}
	m.width = width
	m.height = height
	m.contentWidth = width

	vpHeight := height - chromeHeight
	if vpHeight < 1 {
		vpHeight = 1
	}
	if !m.ready {
		m.viewport = viewport.New(width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vpHeight
	}
	m.input.Width = max(width-4, 10)

	wrapWidth := width - 4
	if wrapWidth < 20 {
		wrapWidth = width
	}
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var rendererCmd tea.Cmd
	if wrapWidth != m.renderWrapWidth || m.renderer == nil {
		m.renderWrapWidth = wrapWidth
		m.markdown = make(map[string]string)
		if cached, ok := m.rendererCache[wrapWidth]; ok {
			m.renderer = cached
		} else if m.flags.IsMarkdownEnabled() && !m.rendererInFlight {
			m.rendererInFlight = true
			rendererCmd = createRendererAsync(wrapWidth)
		}
	}

	m.updateViewport()
	return tea.Batch(rendererCmd, m.scheduleViewportRefresh())
}

func createRendererAsync(wrapWidth int) tea.Cmd {
	return func() tea.Msg {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrapWidth),
			glamour.WithPreservedNewLines(),
		)
		return RendererReadyMsg{Renderer: renderer, Width: wrapWidth, Err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		return m, m.applyWindowSize(msg.Width, msg.Height)

	case sessionChangedMsg:
		wasBusy := m.busy
		m.refresh()
		cmds := []tea.Cmd{waitForChange(m.changes)}
		if m.busy && !wasBusy && m.flags.AnimationsEnabled() {
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case RendererReadyMsg:
		m.rendererInFlight = false
		if msg.Err != nil {
			m.log.Warn("markdown renderer unavailable: %v", msg.Err)
			return m, nil
		}
		m.rendererCache[msg.Width] = msg.Renderer
		if msg.Width == m.renderWrapWidth {
			m.renderer = msg.Renderer
			m.markdown = make(map[string]string)
			m.updateViewport()
		} else if _, ok := m.rendererCache[m.renderWrapWidth]; !ok {
			m.rendererInFlight = true
			return m, createRendererAsync(m.renderWrapWidth)
		}
		return m, nil

	case viewportRefreshMsg:
		if msg.token == m.viewportRefreshToken {
			m.updateViewport()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		m.unsubscribe()
		m.conn.Disconnect()
		return m, tea.Quit

	case "ctrl+r":
		m.log.Info("manual reconnect requested")
		m.conn.Connect()
		return m, nil

	case "enter":
		m.submit()
		return m, nil

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit hands the input to the session when it would be accepted
func (m *Model) submit() {
	text := m.input.Value()
	if strings.TrimSpace(text) == "" || !m.session.CanSubmit() {
		return
	}
	if m.session.Submit(text) {
		m.input.Reset()
	}
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	sb := acquireBuilder()
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	sb.WriteString(m.renderInput())
	sb.WriteString(m.renderMainFooter())
	return builderString(sb)
}

// scheduleViewportRefresh debounces a re-render after resizing
func (m *Model) scheduleViewportRefresh() tea.Cmd {
	m.viewportRefreshToken++
	token := m.viewportRefreshToken
	return tea.Tick(resizeViewportDebounce, func(time.Time) tea.Msg {
		return viewportRefreshMsg{token: token}
	})
}
