// Package engine wires the quest, achievement, dialogue, trigger, activity
// and notification components onto one event bus and exposes the console
// Step() orchestrator.
package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/nathoo/questline/engine/achievement"
	"github.com/nathoo/questline/engine/activity"
	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/cond"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/dialogue"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/notify"
	"github.com/nathoo/questline/engine/period"
	"github.com/nathoo/questline/engine/quest"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/engine/trigger"
	"github.com/nathoo/questline/store"
	"github.com/nathoo/questline/types"
)

// Options configures an Engine. Zero values get working defaults.
type Options struct {
	Clock     clock.Clock
	Scheduler clock.Scheduler // dialogue auto-advance; nil disables it
	Logger    *slog.Logger

	Schedules      period.Specs
	EvalTimeout    time.Duration
	ActorCacheSize int
	MaxSteps       int

	// Store receives an autosave under AutoSaveKey after every state change.
	// A nil Store or empty key disables autosave.
	Store       store.Store
	AutoSaveKey string

	// Presenter shows announcements. Nil emits NotificationPresented.
	Presenter func(notify.Notification)
	// AutoDismiss completes every announcement as soon as it is presented.
	AutoDismiss bool
}

// Engine holds every component and the wiring between them.
type Engine struct {
	Catalog      *content.Catalog
	Bus          *events.Bus
	Quests       *quest.Engine
	Achievements *achievement.Engine
	Dialogue     *dialogue.Interpreter
	Triggers     *trigger.Dispatcher
	Activity     *activity.Tracker
	Notices      *notify.Sequencer

	clock     clock.Clock
	logger    *slog.Logger
	presenter func(notify.Notification)

	store       store.Store
	autoSaveKey string
	writer      *Writer

	recent []events.Event
	dirty  bool
	depth  int
}

// New builds every component over cat.
func New(cat *content.Catalog, opts Options) (*Engine, error) {
	e := &Engine{
		Catalog:     cat,
		Bus:         events.NewBus(),
		clock:       opts.Clock,
		logger:      opts.Logger,
		store:       opts.Store,
		autoSaveKey: opts.AutoSaveKey,
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	sched, err := period.New(opts.Schedules)
	if err != nil {
		return nil, err
	}
	actors, err := content.NewActors(cat, opts.ActorCacheSize)
	if err != nil {
		return nil, err
	}
	eval := cond.New(opts.EvalTimeout, e.logger.With("component", "cond"))

	// 1. Record every event for the console and mark state-changing ones.
	// Subscribed first so it sees events in emission order.
	e.Bus.SubscribeAll(e.record)

	// 2. Engines. Each subscribes itself to ProgressReported.
	e.Quests = quest.New(cat, e.Bus, quest.Options{
		Clock:    e.clock,
		Eval:     eval,
		Schedule: sched,
		Logger:   e.logger.With("component", "quest"),
	})
	e.Achievements = achievement.New(cat, e.Bus, achievement.Options{
		Clock:  e.clock,
		Logger: e.logger.With("component", "achievement"),
	})
	env := stateEnv{quests: e.Quests, achievements: e.Achievements}
	e.Quests.SetEnv(env)

	var sch clock.Scheduler
	if opts.Scheduler != nil {
		sch = persistingScheduler{inner: opts.Scheduler, e: e}
	}
	e.Dialogue = dialogue.New(cat, e.Bus, effects{e}, dialogue.Options{
		Scheduler: sch,
		Actors:    actors,
		Logger:    e.logger.With("component", "dialogue"),
		MaxSteps:  opts.MaxSteps,
	})
	e.Triggers = trigger.New(cat, e.Dialogue, eval, env, e.clock, e.logger.With("component", "trigger"))
	e.Activity, err = activity.New(cat, e.Bus, activity.Options{
		Schedule: sched,
		Logger:   e.logger.With("component", "activity"),
	})
	if err != nil {
		return nil, err
	}
	e.Notices = notify.New(e.Bus, e.logger.With("component", "notify"))
	e.presenter = opts.Presenter
	if opts.AutoDismiss {
		inner := e.presenter
		e.presenter = func(n notify.Notification) {
			if inner != nil {
				inner(n)
			} else {
				e.Bus.Emit(events.NotificationPresented{NotificationID: n.ID, Event: n.Event})
			}
			e.Notices.NotifyComplete()
		}
	}

	// 3. Cross-cutting wiring.
	events.On(e.Bus, func(ev events.QuestCompleted) {
		e.Report(types.Progress{Type: types.ObjectiveCompleteQuest, TargetID: ev.QuestID, Amount: 1})
	})
	events.On(e.Bus, e.Activity.OnQuestCompleted)
	events.On(e.Bus, func(ev events.AchievementUnlocked) {
		e.Report(types.Progress{Type: types.ObjectiveUnlockAchievement, TargetID: ev.AchievementID, Amount: 1})
		e.Quests.CheckAutoAccept()
	})
	events.On(e.Bus, func(ev events.RewardGranted) {
		for _, r := range ev.Rewards {
			if r.Type == types.RewardTitle {
				e.Achievements.Titles().Unlock(r.Title)
			}
		}
	})
	for _, k := range announced {
		e.Bus.Subscribe(k, func(ev events.Event) {
			e.Notices.Enqueue(ev, e.presenter)
		})
	}

	if e.store != nil && e.autoSaveKey != "" {
		e.writer = NewWriter(e.store, e.logger.With("component", "writer"))
	}

	// 4. Initial auto-accept pass.
	e.do(func() { e.Quests.CheckAutoAccept() })
	return e, nil
}

// announced are the events that get a popup.
var announced = []events.Kind{
	events.KindQuestAccepted,
	events.KindQuestCompleted,
	events.KindAchievementUnlocked,
	events.KindAchievementStageCompleted,
	events.KindTitleUnlocked,
	events.KindActivityTierClaimed,
}

// persisted are the events after which the autosave is refreshed.
var persisted = map[events.Kind]bool{
	events.KindQuestAccepted:              true,
	events.KindQuestProgressUpdated:       true,
	events.KindQuestSubmittable:           true,
	events.KindQuestCompleted:             true,
	events.KindQuestFailed:                true,
	events.KindQuestExpired:               true,
	events.KindQuestAbandoned:             true,
	events.KindQuestReset:                 true,
	events.KindAchievementProgressUpdated: true,
	events.KindAchievementUnlocked:        true,
	events.KindAchievementStageClaimed:    true,
	events.KindAchievementClaimed:         true,
	events.KindTitleUnlocked:              true,
	events.KindTitleEquipped:              true,
	events.KindDialogueStarted:            true,
	events.KindDialogueNodeEntered:        true,
	events.KindDialogueEnded:              true,
	events.KindBattleResolved:             true,
	events.KindActivityPointsChanged:      true,
	events.KindActivityTierClaimed:        true,
	events.KindActivityReset:              true,
}

func (e *Engine) record(ev events.Event) {
	e.recent = append(e.recent, ev)
	if persisted[ev.Kind] {
		e.dirty = true
	}
}

// do runs one top-level operation and refreshes the autosave afterwards.
// Nested calls only run fn.
func (e *Engine) do(fn func()) {
	e.depth++
	defer func() {
		e.depth--
		if e.depth == 0 {
			e.autosave()
		}
	}()
	fn()
}

func (e *Engine) autosave() {
	if !e.dirty || e.writer == nil {
		return
	}
	e.dirty = false
	data, err := save.Marshal(e.Snapshot())
	if err != nil {
		e.logger.Error("autosave encode failed", "err", err)
		return
	}
	e.writer.Submit(e.autoSaveKey, data)
}

// Report feeds a gameplay event to every objective ledger.
func (e *Engine) Report(p types.Progress) {
	e.do(func() { e.Bus.Emit(events.ProgressReported{Progress: p}) })
}

// Tick runs the periodic resets that are due and expires timed-out quests.
func (e *Engine) Tick() {
	e.do(func() {
		now := e.clock.Now()
		if done := e.Quests.ResetIfDue(now); len(done) > 0 {
			e.logger.Info("periodic reset", "periods", done)
		}
		if expired := e.Quests.CheckExpiry(); len(expired) > 0 {
			e.logger.Info("quests expired", "quests", expired)
		}
		e.Activity.ResetIfDue(now)
	})
}

// Now returns the engine clock's time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Store returns the configured store, or nil.
func (e *Engine) Store() store.Store {
	return e.store
}

// Flush waits for pending autosaves.
func (e *Engine) Flush(ctx context.Context) error {
	if e.writer == nil {
		return nil
	}
	return e.writer.Flush(ctx)
}

// Close flushes the autosave writer and closes the store.
func (e *Engine) Close() error {
	if e.writer != nil {
		e.writer.Close()
	}
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Status is a one-line summary for status bars.
type Status struct {
	ActiveQuests  int
	Points        int
	Activity      int
	Title         string
	Dialogue      string
	BattlePending bool
	Notices       int
}

// Status summarizes the current state.
func (e *Engine) Status() Status {
	s := Status{
		Points:        e.Achievements.TotalPoints(),
		Activity:      e.Activity.Points(),
		Title:         e.Achievements.Titles().Equipped(),
		BattlePending: e.Dialogue.Suspended(),
		Notices:       e.Notices.Pending(),
	}
	if _, ok := e.Notices.Active(); ok {
		s.Notices++
	}
	for _, q := range e.Quests.List() {
		if q.State == types.QuestAccepted || q.State == types.QuestSubmittable {
			s.ActiveQuests++
		}
	}
	s.Dialogue, _ = e.Dialogue.Current()
	return s
}

// stateEnv exposes quest and achievement state to condition expressions.
type stateEnv struct {
	quests       *quest.Engine
	achievements *achievement.Engine
}

func (s stateEnv) QuestState(id string) (types.QuestState, bool) {
	return s.quests.QuestState(id)
}

func (s stateEnv) QuestCompletedAt(id string) (time.Time, bool) {
	return s.quests.QuestCompletedAt(id)
}

func (s stateEnv) AchievementState(id string) (types.AchievementState, bool) {
	return s.achievements.AchievementState(id)
}

// effects applies dialogue grants to the quest and achievement engines.
type effects struct{ e *Engine }

func (f effects) GrantQuest(id string) error {
	_, err := f.e.Quests.Accept(id)
	if errors.Is(err, quest.ErrAlreadyAccepted) {
		return nil
	}
	return err
}

func (f effects) CompleteQuest(id string) error {
	return f.e.Quests.Complete(id, true)
}

func (f effects) GrantAchievement(id string) error {
	return f.e.Achievements.ForceUnlock(id)
}

// persistingScheduler refreshes the autosave after timer callbacks, which
// run outside any engine operation.
type persistingScheduler struct {
	inner clock.Scheduler
	e     *Engine
}

func (s persistingScheduler) AfterFunc(d time.Duration, fn func()) clock.Timer {
	return s.inner.AfterFunc(d, func() { s.e.do(fn) })
}
