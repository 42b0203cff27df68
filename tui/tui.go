// Package tui provides a Bubble Tea terminal UI for the questline engine.
package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nathoo/questline/cli"
	"github.com/nathoo/questline/engine"
	"github.com/nathoo/questline/loader"
)

// rawLine stores an unstyled output line with its classification,
// so we can re-wrap and re-style when the terminal is resized.
type rawLine struct {
	text     string
	kind     lineKind
	isInput  bool // true for echoed player input
	isSystem bool // true for meta-command output
}

// Model is the Bubble Tea model for the questline TUI.
type Model struct {
	engine    *engine.Engine
	game      *loader.Game
	meta      *cli.Meta
	callbacks <-chan func()

	viewport viewport.Model
	input    textinput.Model
	history  *History

	rawLines []rawLine // accumulated output lines (unstyled, for re-wrapping)

	width    int
	height   int
	ready    bool
	quitting bool
}

// gameOutputMsg carries output from the engine into the Update loop.
type gameOutputMsg struct {
	input    string   // echoed player input (empty for intro and timers)
	lines    []string // output lines
	isSystem bool     // true for meta-command output
}

// callbackMsg carries a due timer callback into the Update loop so it runs
// on the same goroutine as every other engine call.
type callbackMsg struct {
	fn func()
}

// New creates a TUI model wired to the given engine. callbacks may be nil.
func New(eng *engine.Engine, game *loader.Game, callbacks <-chan func()) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Focus()
	ti.CharLimit = 256
	ti.PromptStyle = styleInputPrompt

	return Model{
		engine:    eng,
		game:      game,
		meta:      &cli.Meta{Engine: eng},
		callbacks: callbacks,
		input:     ti,
		history:   NewHistory(100),
	}
}

// Run starts the Bubble Tea program.
func Run(eng *engine.Engine, game *loader.Game, callbacks <-chan func(), trace bool) error {
	m := New(eng, game, callbacks)
	m.meta.Trace = trace
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}

// Init returns the initial commands: intro text and the first wait for a
// timer callback.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.initialOutput(), m.waitCallback())
}

func (m Model) initialOutput() tea.Cmd {
	return func() tea.Msg {
		var lines []string
		if m.game != nil {
			meta := m.game.Meta
			header := meta.Title
			if meta.Version != "" {
				header += " v" + meta.Version
			}
			if meta.Author != "" {
				header += " by " + meta.Author
			}
			if header != "" {
				lines = append(lines, header, "")
			}
			if meta.Intro != "" {
				lines = append(lines, meta.Intro, "")
			}
		}
		lines = append(lines, "Type 'help' for commands, '/help' for system commands.")
		return gameOutputMsg{lines: lines}
	}
}

// waitCallback blocks on the callback channel and delivers the next one.
func (m Model) waitCallback() tea.Cmd {
	if m.callbacks == nil {
		return nil
	}
	ch := m.callbacks
	return func() tea.Msg {
		fn, ok := <-ch
		if !ok {
			return nil
		}
		return callbackMsg{fn: fn}
	}
}

// Update handles messages (key presses, window resize, game output, timers).
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
			return m, tea.Quit

		case "enter":
			return m.handleEnter()

		case "tab":
			m.input.SetValue(complete(m.input.Value()))
			m.input.CursorEnd()
			return m, nil

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

	case callbackMsg:
		msg.fn()
		m = m.appendResult("", m.engine.Drain())
		return m, m.waitCallback()

	case gameOutputMsg:
		m = m.appendOutput(msg)
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

	// "again" / "g" repeats the last command.
	lower := strings.ToLower(input)
	if lower == "again" || lower == "g" {
		last, ok := m.history.Last()
		if !ok {
			m = m.appendOutput(gameOutputMsg{
				input: input, lines: []string{"Nothing to repeat."}, isSystem: true,
			})
			return m, nil
		}
		input = last
	}

	m.history.Push(input)
	m.history.ResetCursor()

	// Meta-commands.
	if strings.HasPrefix(input, "/") {
		output, quit := m.meta.Handle(input)
		m = m.appendOutput(gameOutputMsg{input: input, lines: output, isSystem: true})
		if quit {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	m = m.appendResult(input, m.engine.Step(input))
	return m, nil
}

// appendResult adds an engine result, with trace lines when enabled.
func (m Model) appendResult(input string, res engine.Result) Model {
	lines := res.Output
	if m.meta.Trace {
		lines = append(lines, cli.TraceLines(res)...)
	}
	if input == "" && len(lines) == 0 {
		return m
	}
	return m.appendOutput(gameOutputMsg{input: input, lines: lines})
}

// appendOutput adds lines to the transcript and refreshes the viewport.
func (m Model) appendOutput(msg gameOutputMsg) Model {
	if msg.input != "" {
		m.rawLines = append(m.rawLines, rawLine{
			text: "> " + msg.input, isInput: true,
		})
	}

	for _, line := range msg.lines {
		rl := rawLine{text: line, isSystem: msg.isSystem}
		if !msg.isSystem {
			rl.kind = classifyLine(line)
		}
		m.rawLines = append(m.rawLines, rl)
	}

	// Blank line separator between turns.
	m.rawLines = append(m.rawLines, rawLine{})

	m.refreshViewport()

	return m
}

// refreshViewport re-wraps and re-styles all raw lines at the current width
// and updates the viewport content.
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
			styled = append(styled, stylePlayerInput.Render(wrapped))
		case rl.isSystem:
			styled = append(styled, styledSystemMsg(wrapped))
		default:
			styled = append(styled, renderLineKind(wrapped, rl.kind))
		}
	}

	m.viewport.SetContent(strings.Join(styled, "\n"))
	m.viewport.GotoBottom()
}

// wordWrap wraps text to fit within the given width, breaking at word
// boundaries. Leading indentation is kept on every wrapped line.
func wordWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}

	trimmed := strings.TrimLeft(text, " ")
	indent := text[:len(text)-len(trimmed)]

	var result strings.Builder
	lineLen := 0

	for i, word := range strings.Fields(trimmed) {
		wLen := len(word)

		if i == 0 {
			result.WriteString(indent)
			result.WriteString(word)
			lineLen = len(indent) + wLen
			continue
		}

		if lineLen+1+wLen > width {
			result.WriteString("\n")
			result.WriteString(indent)
			result.WriteString(word)
			lineLen = len(indent) + wLen
		} else {
			result.WriteString(" ")
			result.WriteString(word)
			lineLen += 1 + wLen
		}
	}

	return result.String()
}

// View renders the full TUI layout: viewport + status bar + input.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
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
