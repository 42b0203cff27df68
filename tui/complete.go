package tui

import (
	"strings"

	"github.com/nathoo/questline/engine"
)

var metaCommands = []string{"/save", "/load", "/help", "/state", "/trace", "/quit"}

// complete extends the first word of input to the only command it is a
// prefix of, or to the longest prefix shared by all candidates.
func complete(input string) string {
	if strings.Contains(input, " ") || input == "" {
		return input
	}
	words := engine.Verbs()
	if strings.HasPrefix(input, "/") {
		words = metaCommands
	}

	var matches []string
	for _, w := range words {
		if strings.HasPrefix(w, input) {
			matches = append(matches, w)
		}
	}
	switch len(matches) {
	case 0:
		return input
	case 1:
		return matches[0] + " "
	}
	prefix := matches[0]
	for _, w := range matches[1:] {
		for !strings.HasPrefix(w, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}
	return prefix
}
