// Package cond evaluates auto-accept and trigger conditions.
//
// Conditions are Lua expressions run in a sandboxed VM with only the base,
// math and string libraries. C-style operators (&&, ||, !, !=) are accepted
// as aliases. Every evaluation gets a fresh VM whose globals are built from
// the current quest/achievement state and the caller's scope.
package cond

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nathoo/questline/types"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Policy decides what a failed evaluation resolves to.
type Policy int

const (
	// FailOpen treats errors as satisfied. Used for auto-accept so a broken
	// expression cannot soft-lock content.
	FailOpen Policy = iota
	// FailClosed treats errors as unsatisfied. Used for trigger gating.
	FailClosed
)

// DefaultTimeout bounds a single evaluation.
const DefaultTimeout = 50 * time.Millisecond

// Env exposes read-only engine state to expressions.
type Env interface {
	QuestState(id string) (types.QuestState, bool)
	QuestCompletedAt(id string) (time.Time, bool)
	AchievementState(id string) (types.AchievementState, bool)
}

// Scope carries caller-supplied values. Vars may hold bool, string, and any
// integer or float type.
type Scope struct {
	Scene  string
	Timing string
	Now    time.Time
	Vars   map[string]any
}

// Error is a parse or runtime failure of an expression.
type Error struct {
	Expr string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("condition %q: %v", e.Expr, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ErrTimeout is wrapped when an evaluation exceeds its deadline.
var ErrTimeout = errors.New("evaluation timed out")

// Evaluator compiles and runs condition expressions. Compiled chunks are
// cached by source text and shared across VMs.
type Evaluator struct {
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	protos map[string]*lua.FunctionProto
}

// New creates an evaluator. A zero timeout uses DefaultTimeout; a nil
// logger discards warnings.
func New(timeout time.Duration, logger *slog.Logger) *Evaluator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Evaluator{
		timeout: timeout,
		logger:  logger,
		protos:  map[string]*lua.FunctionProto{},
	}
}

// Compile parses an expression without running it.
func (e *Evaluator) Compile(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return nil
	}
	_, err := e.proto(expr)
	return err
}

// Eval evaluates expr. An empty expression is true.
func (e *Evaluator) Eval(expr string, env Env, scope Scope) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	proto, err := e.proto(expr)
	if err != nil {
		return false, err
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()
	openSafeLibs(L)
	sandbox(L)
	bindScope(L, env, scope)

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	L.SetContext(ctx)

	L.Push(L.NewFunctionFromProto(proto))
	if err := L.PCall(0, 1, nil); err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return false, &Error{Expr: expr, Err: err}
	}
	ret := L.Get(-1)
	L.Pop(1)
	return truthy(ret), nil
}

// Check evaluates expr and never fails: errors are logged and resolved by
// the policy.
func (e *Evaluator) Check(expr string, env Env, scope Scope, policy Policy) bool {
	ok, err := e.Eval(expr, env, scope)
	if err == nil {
		return ok
	}
	fallback := policy == FailOpen
	e.logger.Warn("condition failed", "expr", expr, "err", err, "resolved", fallback)
	return fallback
}

func (e *Evaluator) proto(expr string) (*lua.FunctionProto, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.protos[expr]; ok {
		return p, nil
	}
	src := "return (" + Rewrite(expr) + ")"
	chunk, err := parse.Parse(strings.NewReader(src), "<condition>")
	if err != nil {
		return nil, &Error{Expr: expr, Err: err}
	}
	p, err := lua.Compile(chunk, "<condition>")
	if err != nil {
		return nil, &Error{Expr: expr, Err: err}
	}
	e.protos[expr] = p
	return p, nil
}

// Rewrite translates C-style operators to Lua outside string literals.
func Rewrite(expr string) string {
	var b strings.Builder
	b.Grow(len(expr) + 8)
	var quote byte
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			b.WriteByte(c)
			if c == '\\' && i+1 < len(expr) {
				i++
				b.WriteByte(expr[i])
			} else if c == quote {
				quote = 0
			}
			continue
		}
		var next byte
		if i+1 < len(expr) {
			next = expr[i+1]
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
			b.WriteByte(c)
		case c == '&' && next == '&':
			b.WriteString(" and ")
			i++
		case c == '|' && next == '|':
			b.WriteString(" or ")
			i++
		case c == '!' && next == '=':
			b.WriteString("~=")
			i++
		case c == '!':
			b.WriteString(" not ")
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenString(L)
	lua.OpenMath(L)
}

func sandbox(L *lua.LState) {
	dangerous := []string{
		"dofile", "loadfile", "load", "loadstring", "require",
		"rawset", "rawget", "rawequal",
		"collectgarbage", "setfenv", "getfenv", "module",
	}
	for _, name := range dangerous {
		L.SetGlobal(name, lua.LNil)
	}
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		tbl.RawSetString("randomseed", lua.LNil)
	}
}

// bindScope installs the predicates and scalar globals for one evaluation.
func bindScope(L *lua.LState, env Env, scope Scope) {
	now := scope.Now
	if now.IsZero() {
		now = time.Now()
	}

	questState := func(id string) (types.QuestState, bool) {
		if env == nil {
			return "", false
		}
		return env.QuestState(id)
	}
	achState := func(id string) (types.AchievementState, bool) {
		if env == nil {
			return "", false
		}
		return env.AchievementState(id)
	}

	L.SetGlobal("QuestState", L.NewFunction(func(L *lua.LState) int {
		st, ok := questState(L.CheckString(1))
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		L.Push(lua.LString(st))
		return 1
	}))
	L.SetGlobal("QuestActive", L.NewFunction(func(L *lua.LState) int {
		st, _ := questState(L.CheckString(1))
		L.Push(lua.LBool(st == types.QuestAccepted || st == types.QuestSubmittable))
		return 1
	}))
	L.SetGlobal("QuestCompleted", L.NewFunction(func(L *lua.LState) int {
		st, _ := questState(L.CheckString(1))
		L.Push(lua.LBool(st == types.QuestCompleted))
		return 1
	}))
	L.SetGlobal("AchievementUnlocked", L.NewFunction(func(L *lua.LState) int {
		st, _ := achState(L.CheckString(1))
		L.Push(lua.LBool(st == types.AchievementUnlocked || st == types.AchievementClaimed))
		return 1
	}))
	L.SetGlobal("AchievementClaimed", L.NewFunction(func(L *lua.LState) int {
		st, _ := achState(L.CheckString(1))
		L.Push(lua.LBool(st == types.AchievementClaimed))
		return 1
	}))
	L.SetGlobal("DaysSinceQuest", L.NewFunction(func(L *lua.LState) int {
		id := L.CheckString(1)
		if env == nil {
			L.Push(lua.LNumber(-1))
			return 1
		}
		at, ok := env.QuestCompletedAt(id)
		if !ok || at.IsZero() {
			L.Push(lua.LNumber(-1))
			return 1
		}
		L.Push(lua.LNumber(int(now.Sub(at) / (24 * time.Hour))))
		return 1
	}))

	L.SetGlobal("scene", lua.LString(scope.Scene))
	L.SetGlobal("timing", lua.LString(scope.Timing))
	L.SetGlobal("now", lua.LNumber(now.Unix()))
	for name, v := range scope.Vars {
		L.SetGlobal(name, toLValue(v))
	}
}

func toLValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case string:
		return lua.LString(val)
	case int:
		return lua.LNumber(val)
	case int32:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case uint:
		return lua.LNumber(val)
	case float32:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// truthy: bools as is, numbers when non-zero, strings when non-empty.
func truthy(v lua.LValue) bool {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return val != 0
	case lua.LString:
		return val != ""
	case *lua.LNilType:
		return false
	default:
		return lua.LVAsBool(v)
	}
}
