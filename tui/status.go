package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// renderStatusBar produces a full-width inverted status line showing the
// game title, quest and achievement totals on the left and the dialogue
// and notice state on the right.
func (m Model) renderStatusBar() string {
	s := m.engine.Status()

	title := "questline"
	if m.game != nil && m.game.Meta.Title != "" {
		title = m.game.Meta.Title
	}
	left := fmt.Sprintf(" %s | Quests: %d | Points: %d | Activity: %d",
		title, s.ActiveQuests, s.Points, s.Activity)
	if s.Title != "" {
		left += " | " + s.Title
	}

	var right []string
	if s.Dialogue != "" {
		d := "Talking: " + s.Dialogue
		if s.BattlePending {
			d += " (battle)"
		}
		right = append(right, d)
	}
	if s.Notices > 0 {
		right = append(right, fmt.Sprintf("Notices: %d", s.Notices))
	}
	right = append(right, m.engine.Now().Format("Mon 15:04")+" ")
	r := strings.Join(right, " | ")

	// Drop the right side entirely rather than overlap.
	if lipgloss.Width(left)+lipgloss.Width(r)+1 > m.width {
		r = ""
	}
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(r)
	if gap < 0 {
		gap = 0
	}

	bar := left + strings.Repeat(" ", gap) + r
	return styleStatusBar.Width(m.width).Render(bar)
}
