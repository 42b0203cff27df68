package tui

// History keeps recent commands for Up/Down recall. The oldest entry is
// dropped once max is reached.
type History struct {
	entries []string
	max     int
	cursor  int // -1 while editing fresh input
}

// NewHistory creates a history buffer with the given maximum size.
func NewHistory(max int) *History {
	return &History{max: max, cursor: -1}
}

// Push records a command. Repeating the previous command is not recorded.
func (h *History) Push(cmd string) {
	if last, ok := h.Last(); ok && last == cmd {
		return
	}
	h.entries = append(h.entries, cmd)
	if over := len(h.entries) - h.max; over > 0 {
		h.entries = append([]string(nil), h.entries[over:]...)
	}
}

// Last returns the most recent command.
func (h *History) Last() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	return h.entries[len(h.entries)-1], true
}

// Prev moves toward older entries and stops at the oldest.
func (h *History) Prev() (string, bool) {
	if len(h.entries) == 0 {
		return "", false
	}
	switch {
	case h.cursor == -1:
		h.cursor = len(h.entries) - 1
	case h.cursor > 0:
		h.cursor--
	}
	return h.entries[h.cursor], true
}

// Next moves toward newer entries. Moving past the newest returns
// ("", false) and goes back to fresh input.
func (h *History) Next() (string, bool) {
	if h.cursor == -1 {
		return "", false
	}
	h.cursor++
	if h.cursor >= len(h.entries) {
		h.cursor = -1
		return "", false
	}
	return h.entries[h.cursor], true
}

// ResetCursor returns to fresh input.
func (h *History) ResetCursor() {
	h.cursor = -1
}
