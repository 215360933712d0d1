package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// rawLine stores an unstyled output line with its classification, so we
// can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text    string
	kind    lineKind
	isInput bool // true for echoed console input
}

// Model is the Bubble Tea model for the console UI.
type Model struct {
	pipeName string
	dial     Dialer
	conn     Conn

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated output (unstyled, for re-wrapping)

	width      int
	height     int
	ready      bool
	quitting   bool
	connected  bool
	busy       bool // a roundtrip is in flight
	roundtrips int
	latency    time.Duration
}

// connMsg carries the outcome of a dial into the Update loop.
type connMsg struct {
	conn Conn
	err  error
}

// respMsg carries one roundtrip outcome into the Update loop.
type respMsg struct {
	cmd     string
	resp    string
	err     error
	elapsed time.Duration
}

// NewModel creates a console model that will dial the given endpoint.
func NewModel(pipeName string, dial Dialer) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		pipeName: pipeName,
		dial:     dial,
		input:    ti,
		history:  NewHistory(100),
	}
}

// Run starts the Bubble Tea program.
func Run(pipeName string, dial Dialer) error {
	m := NewModel(pipeName, dial)
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init dials the bridge and starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.connectCmd())
}

func (m Model) connectCmd() tea.Cmd {
	pipeName, dial := m.pipeName, m.dial
	return func() tea.Msg {
		conn, err := dial(pipeName)
		return connMsg{conn: conn, err: err}
	}
}

func (m Model) sendCmd(cmd string) tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		start := time.Now()
		resp, err := conn.Roundtrip(cmd)
		return respMsg{cmd: cmd, resp: resp, err: err, elapsed: time.Since(start)}
	}
}

// Update handles messages (key presses, window resize, roundtrip results).
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		vpHeight := m.height - 2 // 1 status bar + 1 input line
		if vpHeight < 1 {
			vpHeight = 1
		}

		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.KeyMap = viewportKeyMap()
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}

		m.refreshViewport()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.quitting = true
			if m.conn != nil {
				m.conn.Close()
			}
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "up":
			if prev, ok := m.history.Prev(); ok {
				m.input.SetValue(prev)
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if next, ok := m.history.Next(); ok {
				m.input.SetValue(next)
				m.input.CursorEnd()
			} else {
				m.input.SetValue("")
				m.history.ResetCursor()
			}
			return m, nil

		case "pgup", "pgdown":
			var vpCmd tea.Cmd
			m.viewport, vpCmd = m.viewport.Update(msg)
			return m, vpCmd
		}

	case connMsg:
		if msg.err != nil {
			m.connected = false
			m = m.appendSystem(fmt.Sprintf("Connect failed: %v. /reconnect to retry.", msg.err))
		} else {
			m.conn = msg.conn
			m.connected = true
			m = m.appendSystem(fmt.Sprintf("Connected to %s.", m.pipeName))
		}

	case respMsg:
		m.busy = false
		m.roundtrips++
		m.latency = msg.elapsed
		if msg.err != nil {
			m = m.appendLine(rawLine{text: "roundtrip failed: " + msg.err.Error(), kind: kindError})
		} else {
			m = m.appendLine(rawLine{text: msg.resp, kind: classifyResponse(msg.resp)})
		}
	}

	var inputCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	cmds = append(cmds, inputCmd)

	return m, tea.Batch(cmds...)
}

// handleEnter processes the submitted input line.
func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")

	if input == "" {
		return m, nil
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		return m.handleMeta(input)
	}

	if !m.connected {
		m = m.appendSystem("Not connected. /reconnect to retry.")
		return m, nil
	}
	if m.busy {
		m = m.appendSystem("Still waiting on the previous response.")
		return m, nil
	}

	cmd, err := Expand(input)
	if err != nil {
		m = m.appendSystem(err.Error())
		return m, nil
	}

	m.busy = true
	m = m.appendLine(rawLine{text: "> " + cmd, isInput: true})
	return m, m.sendCmd(cmd)
}

// handleMeta dispatches meta-commands.
func (m Model) handleMeta(input string) (tea.Model, tea.Cmd) {
	switch strings.Fields(input)[0] {
	case "/quit", "/exit":
		m.quitting = true
		if m.conn != nil {
			m.conn.Close()
		}
		return m, tea.Quit

	case "/help":
		for _, line := range helpLines() {
			m = m.appendLine(rawLine{text: line, kind: kindSystem})
		}
		return m, nil

	case "/reconnect":
		if m.conn != nil {
			m.conn.Close()
		}
		m.connected = false
		m.busy = false
		m = m.appendSystem("Reconnecting...")
		return m, m.connectCmd()

	default:
		m = m.appendSystem(fmt.Sprintf("Unknown command: %s. Type /help for available commands.", input))
		return m, nil
	}
}

func (m Model) appendSystem(text string) Model {
	return m.appendLine(rawLine{text: text, kind: kindSystem})
}

// appendLine adds one line to the transcript and refreshes the viewport.
func (m Model) appendLine(line rawLine) Model {
	m.rawLines = append(m.rawLines, line)
	m.refreshViewport()
	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current
// width and updates the viewport content.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}

	width := m.width
	if width < 10 {
		width = 10
	}

	var styled []string
	for _, rl := range m.rawLines {
		if rl.text == "" {
			styled = append(styled, "")
			continue
		}

		wrapped := wordWrap(rl.text, width)

		switch {
		case rl.isInput:
			styled = append(styled, styleSent.Render(wrapped))
		case rl.kind == kindSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	var result strings.Builder
	words := strings.Fields(text)
	lineLen := 0

	for i, word := range words {
		wLen := len(word)

		if i == 0 {
			result.WriteString(word)
			lineLen = wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(word)
			lineLen = wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// renderStatusBar produces a full-width inverted status line showing the
// endpoint, connection state, roundtrip count, and last latency.
func (m Model) renderStatusBar() string {
	state := "offline"
	if m.connected {
		state = "connected"
	}
	if m.busy {
		state = "waiting"
	}

	left := fmt.Sprintf(" %s | %s", m.pipeName, state)
	right := ""
	if m.roundtrips > 0 {
		right = fmt.Sprintf("#%d | %s ", m.roundtrips, m.latency.Round(time.Millisecond))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + right
	return styleStatusBar.Width(m.width).Render(bar)
}

// View renders the full layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Connecting..."
	}

	return m.viewport.View() + "\n" + m.renderStatusBar() + "\n" + m.input.View()
}

// viewportKeyMap returns a viewport keymap with Up/Down disabled
// (we use those for input history).
func viewportKeyMap() viewport.KeyMap {
	return viewport.KeyMap{
		PageDown:     key.NewBinding(key.WithKeys("pgdown")),
		PageUp:       key.NewBinding(key.WithKeys("pgup")),
		HalfPageDown: key.NewBinding(key.WithKeys("ctrl+d")),
		HalfPageUp:   key.NewBinding(key.WithKeys("ctrl+u")),
		Up:           key.NewBinding(key.WithDisabled()),
		Down:         key.NewBinding(key.WithDisabled()),
	}
}
