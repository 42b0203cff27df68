// Package parser converts console command strings into Intent structs.
// Intentionally dumb: no NLP, just pattern matching.
package parser

import (
	"strings"

	"github.com/nathoo/questline/types"
)

var verbAliases = map[string]string{
	// Quests
	"q":       "quests",
	"journal": "quests",
	"log":     "quests",
	"take":    "accept",
	"start":   "accept",
	"turnin":  "complete",
	"submit":  "complete",
	"drop":    "abandon",

	// Gameplay events
	"k":      "kill",
	"slay":   "kill",
	"defeat": "kill",
	"get":    "collect",
	"pick":   "collect",
	"loot":   "collect",
	"cast":   "use",
	"beat":   "clear",

	// Achievements and titles
	"a":     "achievements",
	"ach":   "achievements",
	"t":     "titles",
	"wear":  "equip",

	// Dialogue
	"speak": "talk",
	"n":     "next",
	"c":     "choose",
	"ff":    "skip",
	"leave": "end",
	"fight": "battle",

	// Activity and notifications
	"daily":   "activity",
	"act":     "activity",
	"ack":     "ok",
	"dismiss": "ok",
	"z":       "wait",
}

var fillers = map[string]bool{
	"the": true, "a": true, "an": true,
	"to": true, "with": true, "about": true,
}

// Parse converts a raw command string into an Intent. The verb is lowercased
// and aliased; arguments keep their case because ids are case-sensitive.
// A bare number selects a dialogue choice.
func Parse(input string) types.Intent {
	input = strings.TrimSpace(input)
	if input == "" {
		return types.Intent{}
	}

	words := strings.Fields(input)
	words[0] = strings.ToLower(words[0])

	// "1" → choose 1
	if len(words) == 1 && isNumber(words[0]) {
		return types.Intent{Verb: "choose", Args: []string{words[0]}}
	}

	// Handle multi-word verb phrases before general parsing.
	words = expandMultiWordVerbs(words)

	if alias, ok := verbAliases[words[0]]; ok {
		words[0] = alias
	}

	return types.Intent{
		Verb: words[0],
		Args: stripFillers(words[1:]),
	}
}

// expandMultiWordVerbs handles "talk to", "turn in", "level up" etc.
func expandMultiWordVerbs(words []string) []string {
	if len(words) < 2 {
		return words
	}
	second := strings.ToLower(words[1])

	switch words[0] {
	case "talk", "speak":
		if second == "to" || second == "with" {
			return append([]string{"talk"}, words[2:]...)
		}
	case "turn":
		if second == "in" {
			return append([]string{"complete"}, words[2:]...)
		}
	case "pick":
		if second == "up" {
			return append([]string{"collect"}, words[2:]...)
		}
	case "level":
		if second == "up" && len(words) == 3 {
			return []string{"level", words[2]}
		}
	case "force":
		if second == "complete" {
			return append([]string{"force"}, words[2:]...)
		}
	}
	return words
}

// stripFillers removes articles and prepositions.
func stripFillers(words []string) []string {
	var result []string
	for _, w := range words {
		if fillers[strings.ToLower(w)] {
			continue
		}
		result = append(result, w)
	}
	return result
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
