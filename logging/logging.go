// Package logging builds the slog loggers used by the engine and the CLI.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// New returns a text logger writing to w at the given level. Level tags
// are colored when w is a terminal.
func New(w io.Writer, level slog.Level) *slog.Logger {
	r := lipgloss.NewRenderer(w)
	styles := map[slog.Level]lipgloss.Style{
		slog.LevelDebug: r.NewStyle().Foreground(lipgloss.Color("5")),
		slog.LevelInfo:  r.NewStyle().Foreground(lipgloss.Color("2")),
		slog.LevelWarn:  r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		slog.LevelError: r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}

	h := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				return slog.String(slog.TimeKey, a.Value.Time().Format("15:04:05"))
			case slog.LevelKey:
				lvl, ok := a.Value.Any().(slog.Level)
				if !ok {
					return a
				}
				style, ok := styles[lvl]
				if !ok {
					return a
				}
				return slog.String(slog.LevelKey, style.Render(lvl.String()))
			}
			return a
		},
	})
	return slog.New(h)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel parses debug, info, warn or error (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
