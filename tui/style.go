package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles used throughout the TUI.
var (
	styleStatusBar = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Bold(true)

	styleInputPrompt = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleNarration = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255"))

	styleNotice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	styleReward = lipgloss.NewStyle().
			Foreground(lipgloss.Color("220"))

	styleProgress = lipgloss.NewStyle().
			Foreground(lipgloss.Color("110"))

	styleSpeaker = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228")).
			Bold(true)

	styleDialogue = lipgloss.NewStyle().
			Foreground(lipgloss.Color("228"))

	styleChoice = lipgloss.NewStyle().
			Foreground(lipgloss.Color("81"))

	styleSystem = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	styleError = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stylePlayerInput = lipgloss.NewStyle().
				Foreground(lipgloss.Color("34"))

	styleTrace = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// lineKind identifies the type of an output line for styling.
type lineKind int

const (
	kindNarration lineKind = iota
	kindNotice
	kindReward
	kindProgress
	kindDialogue
	kindChoice
	kindSystem
	kindError
	kindTrace
)

var errorPrefixes = []string{
	"You can't",
	"There is no",
	"I don't know",
	"Nobody is talking",
	"Not enough activity",
	"Usage:",
}

// classifyLine determines what kind of output line this is.
func classifyLine(line string) lineKind {
	switch {
	case strings.HasPrefix(line, "[trace]"):
		return kindTrace
	case strings.HasPrefix(line, "[!]"), strings.HasPrefix(line, "[toast]"):
		return kindNotice
	case strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]"):
		return kindSystem
	case strings.HasPrefix(line, "Received:"), strings.HasPrefix(line, "Claimed "):
		return kindReward
	case strings.HasPrefix(line, "  ") && isChoice(strings.TrimSpace(line)):
		return kindChoice
	case strings.HasPrefix(line, "  "):
		return kindProgress
	case strings.HasPrefix(line, "* ") && strings.HasSuffix(line, " *"):
		return kindDialogue
	case hasErrorPrefix(line):
		return kindError
	case speakerSplit(line) > 0:
		return kindDialogue
	default:
		return kindNarration
	}
}

func hasErrorPrefix(line string) bool {
	for _, p := range errorPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// isChoice matches "3) label".
func isChoice(s string) bool {
	i := strings.Index(s, ") ")
	if i <= 0 {
		return false
	}
	for _, r := range s[:i] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// speakerSplit returns the index of the ": " after a short speaker name,
// or -1 when the line is not "Speaker: text".
func speakerSplit(line string) int {
	i := strings.Index(line, ": ")
	if i <= 0 || i > 24 {
		return -1
	}
	name := line[:i]
	if strings.ContainsAny(name, "[]()/") || statusLabels[name] || strings.HasPrefix(name, "Quest ") {
		return -1
	}
	return i
}

// statusLabels are "Label: value" lines the console prints that are not
// speech.
var statusLabels = map[string]bool{
	"Time":          true,
	"Time left":     true,
	"Active quests": true,
	"Title":         true,
	"Dialogue":      true,
	"Notices":       true,
	"Rewards":       true,
	"Saves":         true,
	"Usage":         true,
}

// renderLineKind applies the style for a given lineKind.
func renderLineKind(line string, kind lineKind) string {
	switch kind {
	case kindNotice:
		return styleNotice.Render(line)
	case kindReward:
		return styleReward.Render(line)
	case kindProgress:
		return styleProgress.Render(line)
	case kindChoice:
		return styleChoice.Render(line)
	case kindDialogue:
		return styledSpeech(line)
	case kindSystem:
		return styleSystem.Render(line)
	case kindError:
		return styleError.Render(line)
	case kindTrace:
		return styleTrace.Render(line)
	default:
		return styleNarration.Render(line)
	}
}

// styledSpeech renders "Speaker: text" with the speaker name bold.
func styledSpeech(line string) string {
	i := speakerSplit(line)
	if i < 0 {
		return styleDialogue.Render(line)
	}
	return styleSpeaker.Render(line[:i+1]) + styleDialogue.Render(line[i+1:])
}

// styledSystemMsg renders a system message in gray with brackets.
func styledSystemMsg(text string) string {
	return styleSystem.Render("[" + text + "]")
}
