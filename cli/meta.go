package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nathoo/questline/engine"
	"github.com/nathoo/questline/store"
)

// DefaultSlot is the save slot /save and /load use without an argument.
const DefaultSlot = "quicksave"

// metaTimeout bounds store access from meta-commands.
const metaTimeout = 5 * time.Second

// Meta handles the slash commands shared by the plain CLI and the TUI.
type Meta struct {
	Engine *engine.Engine
	Trace  bool
}

// Handle runs one meta-command. It returns the output lines and whether
// the session should end.
func (m *Meta) Handle(input string) ([]string, bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil, false
	}
	cmd := parts[0]
	var arg string
	if len(parts) > 1 {
		arg = parts[1]
	}

	switch cmd {
	case "/quit", "/exit":
		return []string{"Goodbye."}, true

	case "/save":
		return m.cmdSave(arg), false

	case "/load":
		return m.cmdLoad(arg), false

	case "/help":
		return m.cmdHelp(), false

	case "/state":
		return m.cmdState(), false

	case "/trace":
		m.Trace = !m.Trace
		if m.Trace {
			return []string{"Trace output enabled."}, false
		}
		return []string{"Trace output disabled."}, false

	default:
		return []string{fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd)}, false
	}
}

func (m *Meta) cmdSave(slot string) []string {
	if slot == "" {
		slot = DefaultSlot
	}
	if !store.ValidKey(slot) {
		return []string{fmt.Sprintf("Save failed: invalid slot name %q.", slot)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), metaTimeout)
	defer cancel()

	if err := m.Engine.SaveTo(ctx, m.Engine.Store(), slot); err != nil {
		return []string{fmt.Sprintf("Save failed: %v", err)}
	}
	return []string{fmt.Sprintf("Game saved to %s.", slot)}
}

func (m *Meta) cmdLoad(slot string) []string {
	if slot == "" {
		slot = DefaultSlot
	}
	ctx, cancel := context.WithTimeout(context.Background(), metaTimeout)
	defer cancel()

	d, err := m.Engine.LoadFrom(ctx, m.Engine.Store(), slot)
	if errors.Is(err, store.ErrNotFound) {
		return []string{fmt.Sprintf("No save named %s.", slot)}
	}
	if err != nil {
		return []string{fmt.Sprintf("Load failed: %v", err)}
	}

	out := []string{fmt.Sprintf("Game loaded from %s (saved %s).",
		slot, time.UnixMilli(d.SavedAt).Format(time.DateTime))}
	// Restoring may re-present a dialogue node.
	return append(out, m.Engine.Drain().Output...)
}

func (m *Meta) cmdHelp() []string {
	help := []string{
		"System:",
		"  /save [slot]  Save game (default: quicksave)",
		"  /load [slot]  Load game (default: quicksave)",
		"  /quit         Exit game",
		"  /help         Show this help",
		"  /state        Show engine state and save slots",
		"  /trace        Toggle event trace output",
		"",
		"Game commands:",
	}
	for _, line := range engine.Help() {
		help = append(help, "  "+line)
	}
	return help
}

func (m *Meta) cmdState() []string {
	out := m.Engine.Step("status").Output
	st := m.Engine.Store()
	if st == nil {
		return append(out, "Saves: (no store)")
	}
	ctx, cancel := context.WithTimeout(context.Background(), metaTimeout)
	defer cancel()
	keys, err := st.Keys(ctx)
	if err != nil {
		return append(out, fmt.Sprintf("Saves: %v", err))
	}
	if len(keys) == 0 {
		return append(out, "Saves: none")
	}
	return append(out, "Saves: "+strings.Join(keys, ", "))
}

// TraceLines formats the events of a result for trace output.
func TraceLines(res engine.Result) []string {
	if len(res.Events) == 0 {
		return nil
	}
	lines := []string{fmt.Sprintf("[trace] Events: %d", len(res.Events))}
	for _, ev := range res.Events {
		lines = append(lines, fmt.Sprintf("[trace]   #%d %s %+v", ev.Seq, ev.Kind, ev.Payload))
	}
	return lines
}
