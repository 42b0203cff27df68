package cond

import (
	"errors"
	"testing"
	"time"

	"github.com/nathoo/questline/types"
)

type fakeEnv struct {
	quests       map[string]types.QuestState
	completed    map[string]time.Time
	achievements map[string]types.AchievementState
}

func (f fakeEnv) QuestState(id string) (types.QuestState, bool) {
	st, ok := f.quests[id]
	return st, ok
}

func (f fakeEnv) QuestCompletedAt(id string) (time.Time, bool) {
	at, ok := f.completed[id]
	return at, ok
}

func (f fakeEnv) AchievementState(id string) (types.AchievementState, bool) {
	st, ok := f.achievements[id]
	return st, ok
}

var now = time.Date(2026, 3, 11, 12, 0, 0, 0, time.UTC)

func testEnv() fakeEnv {
	return fakeEnv{
		quests: map[string]types.QuestState{
			"q_done":   types.QuestCompleted,
			"q_active": types.QuestAccepted,
			"q_ready":  types.QuestSubmittable,
		},
		completed: map[string]time.Time{
			"q_done": now.Add(-50 * time.Hour),
		},
		achievements: map[string]types.AchievementState{
			"a_unlocked": types.AchievementUnlocked,
			"a_claimed":  types.AchievementClaimed,
		},
	}
}

func TestEval(t *testing.T) {
	e := New(0, nil)
	scope := Scope{
		Scene:  "town",
		Timing: "enter",
		Now:    now,
		Vars:   map[string]any{"level": 12, "name": "hero", "vip": true, "ratio": 0.5},
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"empty", "", true},
		{"blank", "   ", true},
		{"literal true", "true", true},
		{"arithmetic", "1 + 2 * 3 == 7", true},
		{"comparison on var", "level >= 10", true},
		{"string var", `name == "hero"`, true},
		{"bool var", "vip", true},
		{"float var", "ratio < 1", true},
		{"scene", `scene == "town" and timing == "enter"`, true},
		{"scene mismatch", `scene == "dungeon"`, false},
		{"c-style and", "level > 5 && vip", true},
		{"c-style or", "level > 50 || vip", true},
		{"c-style not", "!vip", false},
		{"c-style not equal", "level != 12", false},
		{"operators inside strings untouched", `name ~= "a && b"`, true},
		{"quest state", `QuestState("q_done") == "completed"`, true},
		{"unknown quest state is nil", `QuestState("nope") == nil`, true},
		{"quest active accepted", `QuestActive("q_active")`, true},
		{"quest active submittable", `QuestActive("q_ready")`, true},
		{"quest active completed", `QuestActive("q_done")`, false},
		{"quest completed", `QuestCompleted("q_done")`, true},
		{"achievement unlocked", `AchievementUnlocked("a_unlocked")`, true},
		{"claimed counts as unlocked", `AchievementUnlocked("a_claimed")`, true},
		{"achievement claimed", `AchievementClaimed("a_unlocked")`, false},
		{"days since quest", `DaysSinceQuest("q_done") == 2`, true},
		{"days since never", `DaysSinceQuest("q_active") == -1`, true},
		{"zero is false", "0", false},
		{"number is true", "3", true},
		{"empty string is false", `""`, false},
		{"nil is false", "nil", false},
		{"math lib", "math.max(1, level) == 12", true},
		{"string lib", `string.len(name) == 4`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.expr, testEnv(), scope)
			if err != nil {
				t.Fatalf("Eval(%q) error: %v", tt.expr, err)
			}
			if got != tt.want {
				t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEval_Errors(t *testing.T) {
	e := New(0, nil)
	tests := []struct {
		name string
		expr string
	}{
		{"parse error", "1 +"},
		{"statement rejected", "x = 1"},
		{"runtime error", "undefined_var + 1"},
		{"sandboxed loadstring", `loadstring("return 1")()`},
		{"sandboxed require", `require("os")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Eval(tt.expr, testEnv(), Scope{Now: now})
			if err == nil {
				t.Fatalf("Eval(%q) should fail", tt.expr)
			}
			var ce *Error
			if !errors.As(err, &ce) {
				t.Fatalf("error %T is not *cond.Error", err)
			}
			if ce.Expr != tt.expr {
				t.Errorf("Error.Expr = %q, want %q", ce.Expr, tt.expr)
			}
		})
	}
}

func TestCheck_Policy(t *testing.T) {
	e := New(0, nil)
	broken := "1 +"

	if !e.Check(broken, testEnv(), Scope{}, FailOpen) {
		t.Error("FailOpen should resolve a broken expression to true")
	}
	if e.Check(broken, testEnv(), Scope{}, FailClosed) {
		t.Error("FailClosed should resolve a broken expression to false")
	}
	if e.Check("false", testEnv(), Scope{}, FailOpen) {
		t.Error("a valid false expression stays false under FailOpen")
	}
}

func TestCompile(t *testing.T) {
	e := New(0, nil)
	if err := e.Compile(`QuestCompleted("a") && level > 3`); err != nil {
		t.Errorf("Compile valid: %v", err)
	}
	if err := e.Compile(""); err != nil {
		t.Errorf("Compile empty: %v", err)
	}
	if err := e.Compile("((("); err == nil {
		t.Error("Compile should reject unbalanced parentheses")
	}
}

func TestEval_NilEnv(t *testing.T) {
	e := New(time.Second, nil)
	got, err := e.Eval(`not QuestCompleted("q") and DaysSinceQuest("q") == -1`, nil, Scope{})
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !got {
		t.Error("nil env should treat every id as unknown")
	}
}

func TestRewrite(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"a && b", "a  and  b"},
		{"a || b", "a  or  b"},
		{"a != b", "a ~= b"},
		{"!a", " not a"},
		{`"x && y" && z`, `"x && y"  and  z`},
		{`'it\'s !' || q`, `'it\'s !'  or  q`},
	}
	for _, tt := range tests {
		if got := Rewrite(tt.in); got != tt.want {
			t.Errorf("Rewrite(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
