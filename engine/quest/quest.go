// Package quest implements the quest lifecycle: acceptance, objective
// progress, completion with rewards and follow-ups, and periodic resets.
package quest

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/cond"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/ledger"
	"github.com/nathoo/questline/engine/period"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/types"
)

var (
	ErrNotFound          = errors.New("quest not found")
	ErrAlreadyAccepted   = errors.New("quest already accepted")
	ErrAlreadyCompleted  = errors.New("quest already completed")
	ErrLocked            = errors.New("quest prerequisites not met")
	ErrDailyLimit        = errors.New("quest daily limit reached")
	ErrInvalidTransition = errors.New("invalid quest state transition")
)

// Options configures an Engine. Zero values get working defaults.
type Options struct {
	Clock    clock.Clock
	Eval     *cond.Evaluator
	Env      cond.Env // state visible to accept conditions; defaults to the engine itself
	Schedule *period.Schedule
	Logger   *slog.Logger
}

// Engine owns every quest instance.
type Engine struct {
	cat    *content.Catalog
	bus    *events.Bus
	clock  clock.Clock
	eval   *cond.Evaluator
	env    cond.Env
	sched  *period.Schedule
	logger *slog.Logger

	quests     map[string]*types.Quest
	lastReset  map[period.Kind]time.Time
	dependants map[string][]string
	completing map[string]bool
}

// New creates a quest engine and subscribes it to ProgressReported.
func New(cat *content.Catalog, bus *events.Bus, opts Options) *Engine {
	e := &Engine{
		cat:        cat,
		bus:        bus,
		clock:      opts.Clock,
		eval:       opts.Eval,
		env:        opts.Env,
		sched:      opts.Schedule,
		logger:     opts.Logger,
		quests:     map[string]*types.Quest{},
		lastReset:  map[period.Kind]time.Time{},
		dependants: map[string][]string{},
		completing: map[string]bool{},
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.eval == nil {
		e.eval = cond.New(0, e.logger)
	}
	if e.env == nil {
		e.env = e
	}
	if e.sched == nil {
		e.sched = period.MustDefault()
	}
	for _, def := range cat.Quests() {
		for _, pre := range def.Prerequisites {
			e.dependants[pre.ID] = append(e.dependants[pre.ID], def.ID)
		}
	}

	events.On(bus, func(p events.ProgressReported) { e.ReportEvent(p.Progress) })
	return e
}

// SetEnv replaces the state visible to accept conditions.
func (e *Engine) SetEnv(env cond.Env) {
	e.env = env
}

// Get returns a copy of a quest, creating it on first reference.
func (e *Engine) Get(id string) (types.Quest, bool) {
	q := e.instance(id)
	if q == nil {
		return types.Quest{}, false
	}
	return clone(q), true
}

// List returns every defined quest in definition order.
func (e *Engine) List() []types.Quest {
	defs := e.cat.Quests()
	out := make([]types.Quest, 0, len(defs))
	for _, def := range defs {
		out = append(out, clone(e.instance(def.ID)))
	}
	return out
}

// Accept moves a quest to accepted.
func (e *Engine) Accept(id string) (types.Quest, error) {
	if err := e.accept(id, false); err != nil {
		return types.Quest{}, err
	}
	return clone(e.quests[id]), nil
}

func (e *Engine) accept(id string, auto bool) error {
	def, ok := e.cat.Quest(id)
	if !ok {
		return ErrNotFound
	}
	q := e.instance(id)
	e.refreshLock(def, q)

	switch q.State {
	case types.QuestAccepted, types.QuestSubmittable:
		return ErrAlreadyAccepted
	case types.QuestLocked:
		return ErrLocked
	case types.QuestCompleted:
		if !def.Repeatable || (def.MaxRepeat > 0 && q.RepeatCount >= def.MaxRepeat) {
			return ErrAlreadyCompleted
		}
	}
	if def.DailyLimit > 0 && q.DailyCompletedCount >= def.DailyLimit {
		return ErrDailyLimit
	}

	q.State = types.QuestAccepted
	q.Progress = map[string]int{}
	q.AcceptedAt = e.clock.Now()
	e.bus.Emit(events.QuestAccepted{QuestID: id, Auto: auto})
	e.TryComplete(id)
	return nil
}

// ReportEvent applies a gameplay event to every quest that was accepted
// when the event arrived, in definition order. Quests accepted while the
// event is applied (follow-ups) do not see it. Progress is clamped to each
// objective's target.
func (e *Engine) ReportEvent(p types.Progress) {
	var accepted []*types.QuestDef
	for _, def := range e.cat.Quests() {
		if q, ok := e.quests[def.ID]; ok && q.State == types.QuestAccepted {
			accepted = append(accepted, def)
		}
	}
	for _, def := range accepted {
		q, ok := e.quests[def.ID]
		if !ok || q.State != types.QuestAccepted {
			continue
		}
		l := ledger.Ledger(q.Progress)
		changed := false
		for _, obj := range def.Objectives {
			if !ledger.Matches(obj, p) {
				continue
			}
			v, ok := l.Apply(obj.ID, p, obj.TargetCount)
			if !ok {
				continue
			}
			changed = true
			e.bus.Emit(events.QuestProgressUpdated{
				QuestID:     def.ID,
				ObjectiveID: obj.ID,
				Progress:    v,
				Target:      obj.TargetCount,
			})
		}
		if changed {
			e.TryComplete(def.ID)
		}
	}
}

// TryComplete promotes an accepted quest whose objectives are all met to
// submittable, completing it straight away when it auto-completes.
// Returns true if the quest became submittable.
func (e *Engine) TryComplete(id string) bool {
	def, ok := e.cat.Quest(id)
	if !ok {
		return false
	}
	q, ok := e.quests[id]
	if !ok || q.State != types.QuestAccepted {
		return false
	}
	if !ledger.Ledger(q.Progress).Met(def.Objectives) {
		return false
	}
	q.State = types.QuestSubmittable
	e.bus.Emit(events.QuestSubmittable{QuestID: id})
	if def.AutoComplete {
		if err := e.Complete(id, false); err != nil {
			e.logger.Warn("auto-complete failed", "quest", id, "err", err)
		}
	}
	return true
}

// Complete moves a submittable quest to completed. With force, any quest
// that is not locked or already completed is completed and its objectives
// filled.
func (e *Engine) Complete(id string, force bool) error {
	def, ok := e.cat.Quest(id)
	if !ok {
		return ErrNotFound
	}
	q := e.instance(id)

	if force {
		switch q.State {
		case types.QuestLocked, types.QuestCompleted:
			return ErrInvalidTransition
		}
		ledger.Ledger(q.Progress).Fill(def.Objectives)
	} else if q.State != types.QuestSubmittable {
		return ErrInvalidTransition
	}

	// 1. Transition.
	q.State = types.QuestCompleted
	q.CompletedAt = e.clock.Now()
	q.RepeatCount++
	q.DailyCompletedCount++

	e.completing[id] = true
	defer delete(e.completing, id)

	e.bus.Emit(events.QuestCompleted{
		QuestID:        id,
		Type:           def.Type,
		Forced:         force,
		RepeatCount:    q.RepeatCount,
		ActivityPoints: def.ActivityPoints,
		BattlePassExp:  def.BattlePassExp,
	})

	// 2. Rewards.
	rewards := append([]types.Reward(nil), def.Rewards...)
	if def.BattlePassExp > 0 {
		rewards = append(rewards, types.Reward{Type: types.RewardBattlePassExp, Count: def.BattlePassExp})
	}
	if len(rewards) > 0 {
		e.bus.Emit(events.RewardGranted{Source: events.SourceQuest, SourceID: id, Rewards: rewards})
	}

	// 3. Unlock dependants.
	var unlocked []*types.QuestDef
	for _, depID := range e.dependants[id] {
		dep, ok := e.quests[depID]
		if !ok || dep.State != types.QuestLocked {
			continue
		}
		depDef, _ := e.cat.Quest(depID)
		if e.refreshLock(depDef, dep) {
			unlocked = append(unlocked, depDef)
		}
	}

	// 4. Auto-accept follow-ups and freshly unlocked dependants.
	for _, ref := range def.FollowUps {
		next := ref.Def
		if next == nil {
			next, _ = e.cat.Quest(ref.ID)
		}
		if next == nil {
			e.logger.Warn("unknown follow-up quest", "quest", id, "follow_up", ref.ID)
			continue
		}
		if next.AutoAccept {
			e.tryAutoAccept(next)
		}
	}
	for _, dep := range unlocked {
		if dep.AutoAccept {
			e.tryAutoAccept(dep)
		}
	}
	return nil
}

// Abandon drops an accepted quest back to not-accepted and clears progress.
func (e *Engine) Abandon(id string) error {
	q, err := e.active(id)
	if err != nil {
		return err
	}
	q.State = types.QuestNotAccepted
	q.Progress = map[string]int{}
	q.AcceptedAt = time.Time{}
	e.bus.Emit(events.QuestAbandoned{QuestID: id})
	return nil
}

// Fail marks an accepted quest as failed.
func (e *Engine) Fail(id string) error {
	q, err := e.active(id)
	if err != nil {
		return err
	}
	q.State = types.QuestFailed
	e.bus.Emit(events.QuestFailed{QuestID: id})
	return nil
}

func (e *Engine) active(id string) (*types.Quest, error) {
	if _, ok := e.cat.Quest(id); !ok {
		return nil, ErrNotFound
	}
	q := e.instance(id)
	if q.State != types.QuestAccepted && q.State != types.QuestSubmittable {
		return nil, ErrInvalidTransition
	}
	return q, nil
}

// CheckExpiry expires time-limited quests whose limit has run out and
// returns their ids.
func (e *Engine) CheckExpiry() []string {
	now := e.clock.Now()
	var expired []string
	for _, def := range e.cat.Quests() {
		if def.TimeLimit <= 0 {
			continue
		}
		q, ok := e.quests[def.ID]
		if !ok || (q.State != types.QuestAccepted && q.State != types.QuestSubmittable) {
			continue
		}
		if now.Sub(q.AcceptedAt) < def.TimeLimit {
			continue
		}
		q.State = types.QuestExpired
		expired = append(expired, def.ID)
		e.bus.Emit(events.QuestExpired{QuestID: def.ID})
	}
	return expired
}

// CheckAutoAccept accepts every auto-accept quest whose prerequisites and
// condition hold. Broken conditions count as satisfied.
func (e *Engine) CheckAutoAccept() []string {
	var accepted []string
	for _, def := range e.cat.Quests() {
		if def.AutoAccept && e.tryAutoAccept(def) {
			accepted = append(accepted, def.ID)
		}
	}
	return accepted
}

func (e *Engine) tryAutoAccept(def *types.QuestDef) bool {
	if e.completing[def.ID] {
		return false
	}
	q := e.instance(def.ID)
	e.refreshLock(def, q)
	if q.State != types.QuestNotAccepted {
		return false
	}
	scope := cond.Scope{Now: e.clock.Now()}
	if !e.eval.Check(def.AcceptCondition, e.env, scope, cond.FailOpen) {
		return false
	}
	if err := e.accept(def.ID, true); err != nil {
		e.logger.Debug("auto-accept rejected", "quest", def.ID, "err", err)
		return false
	}
	return true
}

// ResetIfDue runs each periodic reset whose boundary has been crossed since
// it last ran, and returns the periods that were reset. Calling it again
// within the same period does nothing. A period that never ran only records
// its current boundary.
func (e *Engine) ResetIfDue(now time.Time) []period.Kind {
	var done []period.Kind
	for _, kind := range period.All {
		last := e.lastReset[kind]
		boundary, due := e.sched.Due(kind, last, now)
		if !due {
			continue
		}
		e.lastReset[kind] = boundary
		if last.IsZero() {
			continue
		}
		ids := e.resetPeriod(kind)
		done = append(done, kind)
		e.bus.Emit(events.QuestReset{Period: string(kind), QuestIDs: ids})
	}
	if len(done) > 0 {
		e.CheckAutoAccept()
	}
	return done
}

var periodTypes = map[period.Kind]types.QuestType{
	period.Daily:   types.QuestDaily,
	period.Weekly:  types.QuestWeekly,
	period.Monthly: types.QuestMonthly,
}

func (e *Engine) resetPeriod(kind period.Kind) []string {
	var ids []string
	for _, def := range e.cat.Quests() {
		q, ok := e.quests[def.ID]
		if !ok {
			continue
		}
		if kind == period.Daily {
			q.DailyCompletedCount = 0
		}
		if def.Type != periodTypes[kind] {
			continue
		}
		q.State = e.initialState(def)
		q.Progress = map[string]int{}
		q.AcceptedAt = time.Time{}
		q.CompletedAt = time.Time{}
		q.DailyCompletedCount = 0
		ids = append(ids, def.ID)
	}
	return ids
}

// LastReset returns when a period was last reset.
func (e *Engine) LastReset(kind period.Kind) time.Time {
	return e.lastReset[kind]
}

// ResetAll destroys every quest instance and reset marker.
func (e *Engine) ResetAll() {
	e.quests = map[string]*types.Quest{}
	e.lastReset = map[period.Kind]time.Time{}
}

// QuestState implements cond.Env without creating instances.
func (e *Engine) QuestState(id string) (types.QuestState, bool) {
	if q, ok := e.quests[id]; ok {
		return q.State, true
	}
	def, ok := e.cat.Quest(id)
	if !ok {
		return "", false
	}
	return e.initialState(def), true
}

// QuestCompletedAt implements cond.Env.
func (e *Engine) QuestCompletedAt(id string) (time.Time, bool) {
	q, ok := e.quests[id]
	if !ok || q.CompletedAt.IsZero() {
		return time.Time{}, false
	}
	return q.CompletedAt, true
}

// AchievementState implements cond.Env; the quest engine knows none.
func (e *Engine) AchievementState(string) (types.AchievementState, bool) {
	return "", false
}

// Save returns the engine's save shape in definition order.
func (e *Engine) Save() save.QuestManager {
	m := save.QuestManager{
		Quests:           []save.QuestSave{},
		LastDailyReset:   save.Millis(e.lastReset[period.Daily]),
		LastWeeklyReset:  save.Millis(e.lastReset[period.Weekly]),
		LastMonthlyReset: save.Millis(e.lastReset[period.Monthly]),
	}
	for _, def := range e.cat.Quests() {
		q, ok := e.quests[def.ID]
		if !ok {
			continue
		}
		m.Quests = append(m.Quests, save.QuestSave{
			ID:                  q.ID,
			State:               string(q.State),
			Progress:            ledger.Ledger(q.Progress).Clone(),
			AcceptedAt:          save.Millis(q.AcceptedAt),
			CompletedAt:         save.Millis(q.CompletedAt),
			RepeatCount:         q.RepeatCount,
			DailyCompletedCount: q.DailyCompletedCount,
		})
	}
	return m
}

// Load replaces all quest state. It never emits events. Saved quests that
// are no longer defined are dropped.
func (e *Engine) Load(m save.QuestManager) {
	e.quests = map[string]*types.Quest{}
	for _, qs := range m.Quests {
		if _, ok := e.cat.Quest(qs.ID); !ok {
			e.logger.Warn("dropping saved quest with no definition", "quest", qs.ID)
			continue
		}
		e.quests[qs.ID] = &types.Quest{
			ID:                  qs.ID,
			State:               types.QuestState(qs.State),
			Progress:            ledger.Ledger(qs.Progress).Clone(),
			AcceptedAt:          save.Time(qs.AcceptedAt),
			CompletedAt:         save.Time(qs.CompletedAt),
			RepeatCount:         qs.RepeatCount,
			DailyCompletedCount: qs.DailyCompletedCount,
		}
	}
	e.lastReset = map[period.Kind]time.Time{}
	for kind, ms := range map[period.Kind]int64{
		period.Daily:   m.LastDailyReset,
		period.Weekly:  m.LastWeeklyReset,
		period.Monthly: m.LastMonthlyReset,
	} {
		if ms != 0 {
			e.lastReset[kind] = save.Time(ms)
		}
	}
}

// instance returns the live quest, creating it lazily. Returns nil for
// unknown ids.
func (e *Engine) instance(id string) *types.Quest {
	if q, ok := e.quests[id]; ok {
		return q
	}
	def, ok := e.cat.Quest(id)
	if !ok {
		return nil
	}
	q := &types.Quest{ID: id, State: e.initialState(def), Progress: map[string]int{}}
	e.quests[id] = q
	return q
}

func (e *Engine) initialState(def *types.QuestDef) types.QuestState {
	if e.prerequisitesMet(def) {
		return types.QuestNotAccepted
	}
	return types.QuestLocked
}

// prerequisitesMet: every resolved prerequisite is completed. Unresolved
// references are ignored so bad content cannot lock a quest forever.
func (e *Engine) prerequisitesMet(def *types.QuestDef) bool {
	for _, pre := range def.Prerequisites {
		if pre.Def == nil {
			if _, ok := e.cat.Quest(pre.ID); !ok {
				continue
			}
		}
		q, ok := e.quests[pre.ID]
		if !ok || q.RepeatCount == 0 && q.State != types.QuestCompleted {
			return false
		}
	}
	return true
}

// refreshLock unlocks a locked quest whose prerequisites are now met.
func (e *Engine) refreshLock(def *types.QuestDef, q *types.Quest) bool {
	if q.State != types.QuestLocked || !e.prerequisitesMet(def) {
		return false
	}
	q.State = types.QuestNotAccepted
	return true
}

func clone(q *types.Quest) types.Quest {
	out := *q
	out.Progress = ledger.Ledger(q.Progress).Clone()
	return out
}
