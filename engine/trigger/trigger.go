// Package trigger starts dialogues on their own when a scene/timing pair
// matches a dialogue's trigger declaration.
package trigger

import (
	"io"
	"log/slog"
	"sort"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/cond"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/dialogue"
	"github.com/nathoo/questline/types"
)

// Dispatcher picks and starts the best matching triggered dialogue.
type Dispatcher struct {
	cat    *content.Catalog
	in     *dialogue.Interpreter
	eval   *cond.Evaluator
	env    cond.Env
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a dispatcher. A nil clock uses the system clock.
func New(cat *content.Catalog, in *dialogue.Interpreter, eval *cond.Evaluator, env cond.Env, clk clock.Clock, logger *slog.Logger) *Dispatcher {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{cat: cat, in: in, eval: eval, env: env, clock: clk, logger: logger}
}

// Candidates returns the dialogues whose trigger matches scene and timing,
// highest priority first, ties in definition order. Conditions are not
// evaluated.
func (d *Dispatcher) Candidates(scene, timing string) []*types.Dialogue {
	var out []*types.Dialogue
	for _, dlg := range d.cat.Dialogues() {
		t := dlg.Trigger
		if t == nil {
			continue
		}
		if t.Scene != "" && t.Scene != scene {
			continue
		}
		if t.Timing != "" && t.Timing != timing {
			continue
		}
		out = append(out, dlg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Trigger.Priority > out[j].Trigger.Priority
	})
	return out
}

// Dispatch starts the first eligible dialogue for scene/timing and returns
// its id. Nothing starts while a battle is pending. Side dialogues that were
// already viewed are skipped, and a condition that fails to evaluate counts
// as unmet.
func (d *Dispatcher) Dispatch(scene, timing string, vars map[string]any) (string, bool) {
	if d.in.Suspended() {
		d.logger.Debug("trigger ignored, battle pending", "scene", scene, "timing", timing)
		return "", false
	}
	scope := cond.Scope{Scene: scene, Timing: timing, Now: d.clock.Now(), Vars: vars}

	for _, dlg := range d.Candidates(scene, timing) {
		if dlg.Kind == types.DialogueSide && d.in.Viewed(dlg.ID) {
			continue
		}
		if !d.eval.Check(dlg.Trigger.Condition, d.env, scope, cond.FailClosed) {
			continue
		}
		if err := d.in.Start(dlg.ID); err != nil {
			d.logger.Warn("triggered dialogue failed to start", "dialogue", dlg.ID, "err", err)
			return "", false
		}
		d.logger.Debug("dialogue triggered", "dialogue", dlg.ID, "scene", scene, "timing", timing)
		return dlg.ID, true
	}
	return "", false
}
