// Package achievement implements one-time, cumulative, staged and hidden
// achievements, stage claiming and the title registry.
package achievement

import (
	"errors"
	"io"
	"log/slog"
	"sort"

	"github.com/nathoo/questline/engine/clock"
	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/ledger"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/types"
)

var (
	ErrNotFound          = errors.New("achievement not found")
	ErrNotStaged         = errors.New("achievement is not staged")
	ErrStageNotFound     = errors.New("stage not found")
	ErrStageNotReached   = errors.New("stage target not reached")
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrInvalidTransition = errors.New("invalid achievement state transition")
)

// DefaultStageKey is the progress key of a staged achievement whose stage
// objective has no id.
const DefaultStageKey = "stage"

// Options configures an Engine.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Engine owns every achievement instance and the title registry.
type Engine struct {
	cat    *content.Catalog
	bus    *events.Bus
	clock  clock.Clock
	logger *slog.Logger

	achievements map[string]*types.Achievement
	titles       *Titles
	points       int
}

// New creates an achievement engine and subscribes it to ProgressReported.
func New(cat *content.Catalog, bus *events.Bus, opts Options) *Engine {
	e := &Engine{
		cat:          cat,
		bus:          bus,
		clock:        opts.Clock,
		logger:       opts.Logger,
		achievements: map[string]*types.Achievement{},
		titles:       newTitles(bus),
	}
	if e.clock == nil {
		e.clock = clock.System{}
	}
	if e.logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	events.On(bus, func(p events.ProgressReported) { e.ReportEvent(p.Progress) })
	return e
}

// Titles returns the title registry.
func (e *Engine) Titles() *Titles {
	return e.titles
}

// TotalPoints returns the points of every unlocked achievement.
func (e *Engine) TotalPoints() int {
	return e.points
}

// Get returns a copy of an achievement, creating it on first reference.
func (e *Engine) Get(id string) (types.Achievement, bool) {
	a := e.instance(id)
	if a == nil {
		return types.Achievement{}, false
	}
	return clone(a), true
}

// List returns every achievement in definition order.
func (e *Engine) List() []types.Achievement {
	defs := e.cat.Achievements()
	out := make([]types.Achievement, 0, len(defs))
	for _, def := range defs {
		out = append(out, clone(e.instance(def.ID)))
	}
	return out
}

// Visible is List without hidden achievements that are not yet unlocked.
func (e *Engine) Visible() []types.Achievement {
	var out []types.Achievement
	for _, def := range e.cat.Achievements() {
		a := e.instance(def.ID)
		if def.Type == types.AchievementHidden && a.State != types.AchievementUnlocked && a.State != types.AchievementClaimed {
			continue
		}
		out = append(out, clone(a))
	}
	return out
}

// ReportEvent applies a gameplay event to every achievement that was in
// progress when the event arrived. Achievements unlocked by this event's
// own effects start counting from the next one.
func (e *Engine) ReportEvent(p types.Progress) {
	var open []*types.AchievementDef
	for _, def := range e.cat.Achievements() {
		a := e.instance(def.ID)
		e.refreshLock(def, a)
		if a.State == types.AchievementInProgress {
			open = append(open, def)
		}
	}
	for _, def := range open {
		a, ok := e.achievements[def.ID]
		if !ok || a.State != types.AchievementInProgress {
			continue
		}
		l := ledger.Ledger(a.Progress)

		switch def.Type {
		case types.AchievementOneTime:
			changed := false
			for _, obj := range def.Objectives {
				if !ledger.Matches(obj, p) {
					continue
				}
				if v, ok := l.ApplyMax(obj.ID, p, obj.TargetCount); ok {
					changed = true
					e.emitProgress(def.ID, obj.ID, v, obj.TargetCount)
				}
			}
			if changed {
				e.checkUnlockCondition(def, a)
			}

		case types.AchievementCumulative, types.AchievementHidden:
			changed := false
			for _, obj := range def.Objectives {
				if !ledger.Matches(obj, p) {
					continue
				}
				if v, ok := l.Apply(obj.ID, p, obj.TargetCount); ok {
					changed = true
					e.emitProgress(def.ID, obj.ID, v, obj.TargetCount)
				}
			}
			if changed {
				e.checkUnlockCondition(def, a)
			}

		case types.AchievementStaged:
			if len(def.Stages) == 0 || !ledger.Matches(def.StageObjective, p) {
				continue
			}
			key := stageKey(def)
			prev := l.Get(key)
			limit := def.Stages[len(def.Stages)-1].TargetCount
			v, ok := l.Apply(key, p, limit)
			if !ok {
				continue
			}
			e.emitProgress(def.ID, key, v, limit)
			e.emitCrossedStages(def, a, prev, v)

		default:
			e.logger.Warn("unknown achievement type", "achievement", def.ID, "type", def.Type)
		}
	}
}

func (e *Engine) emitProgress(id, objID string, v, target int) {
	e.bus.Emit(events.AchievementProgressUpdated{
		AchievementID: id,
		ObjectiveID:   objID,
		Progress:      v,
		Target:        target,
	})
}

// emitCrossedStages announces every unclaimed stage whose target lies in
// (prev, v].
func (e *Engine) emitCrossedStages(def *types.AchievementDef, a *types.Achievement, prev, v int) {
	for i, st := range def.Stages {
		if prev < st.TargetCount && st.TargetCount <= v && !a.ClaimedStages[st.ID] {
			e.bus.Emit(events.AchievementStageCompleted{AchievementID: def.ID, StageID: st.ID, StageIndex: i})
		}
	}
}

// checkUnlockCondition unlocks a non-staged achievement whose objectives are
// all met. Staged achievements never unlock here; their stages are claimed.
func (e *Engine) checkUnlockCondition(def *types.AchievementDef, a *types.Achievement) {
	switch def.Type {
	case types.AchievementOneTime, types.AchievementCumulative, types.AchievementHidden:
		if ledger.Ledger(a.Progress).Met(def.Objectives) {
			e.unlock(def, a, false)
		}
	case types.AchievementStaged:
	}
}

func (e *Engine) unlock(def *types.AchievementDef, a *types.Achievement, forced bool) {
	a.State = types.AchievementUnlocked
	a.UnlockedAt = e.clock.Now()
	e.points += def.Points
	e.bus.Emit(events.AchievementUnlocked{AchievementID: def.ID, Points: def.Points, Forced: forced})
	e.titles.Unlock(def.Title)
	e.refreshDependants()
}

// refreshDependants opens every locked achievement whose prerequisites are
// now met.
func (e *Engine) refreshDependants() {
	for _, def := range e.cat.Achievements() {
		if a, ok := e.achievements[def.ID]; ok {
			e.refreshLock(def, a)
		}
	}
}

// StageProgress returns the counter a staged achievement's stages compare
// against.
func (e *Engine) StageProgress(id string) int {
	def, ok := e.cat.Achievement(id)
	if !ok || def.Type != types.AchievementStaged {
		return 0
	}
	if a, ok := e.achievements[id]; ok {
		return a.Progress[stageKey(def)]
	}
	return 0
}

// HasNewStageCompleted reports whether a staged achievement has a reached
// but unclaimed stage at or after its current stage index.
func (e *Engine) HasNewStageCompleted(id string) bool {
	def, ok := e.cat.Achievement(id)
	if !ok || def.Type != types.AchievementStaged {
		return false
	}
	a := e.instance(id)
	progress := a.Progress[stageKey(def)]
	for i := a.CurrentStageIndex; i < len(def.Stages); i++ {
		st := def.Stages[i]
		if progress >= st.TargetCount && !a.ClaimedStages[st.ID] {
			return true
		}
	}
	return false
}

// ClaimStage claims one reached stage of a staged achievement and returns
// its rewards. Stages are threshold based: any reached stage may be claimed
// in any order. Claiming every stage claims the achievement.
func (e *Engine) ClaimStage(id, stageID string) ([]types.Reward, error) {
	def, ok := e.cat.Achievement(id)
	if !ok {
		return nil, ErrNotFound
	}
	if def.Type != types.AchievementStaged {
		return nil, ErrNotStaged
	}
	idx := -1
	for i, st := range def.Stages {
		if st.ID == stageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrStageNotFound
	}
	a := e.instance(id)
	stage := def.Stages[idx]
	if a.ClaimedStages[stageID] {
		return nil, ErrAlreadyClaimed
	}
	if a.Progress[stageKey(def)] < stage.TargetCount {
		return nil, ErrStageNotReached
	}

	// 1. Mark the stage and advance the index to the lowest unclaimed stage.
	a.ClaimedStages[stageID] = true
	next := len(def.Stages)
	for i, st := range def.Stages {
		if !a.ClaimedStages[st.ID] {
			next = i
			break
		}
	}
	if next > a.CurrentStageIndex {
		a.CurrentStageIndex = next
	}

	// 2. Stage rewards and title.
	e.titles.Unlock(stage.Title)
	e.bus.Emit(events.AchievementStageClaimed{AchievementID: id, StageID: stageID, StageIndex: idx})
	if len(stage.Rewards) > 0 {
		e.bus.Emit(events.RewardGranted{
			Source:   events.SourceAchievementStage,
			SourceID: id + "/" + stageID,
			Rewards:  append([]types.Reward(nil), stage.Rewards...),
		})
	}

	// 3. Every stage claimed: the achievement itself is done.
	if next == len(def.Stages) {
		now := e.clock.Now()
		if a.UnlockedAt.IsZero() {
			a.UnlockedAt = now
		}
		a.State = types.AchievementClaimed
		a.ClaimedAt = now
		e.points += def.Points
		e.bus.Emit(events.AchievementUnlocked{AchievementID: id, Points: def.Points})
		e.bus.Emit(events.AchievementClaimed{AchievementID: id})
		e.titles.Unlock(def.Title)
		e.grant(events.SourceAchievement, id, def.Rewards)
	}
	return append([]types.Reward(nil), stage.Rewards...), nil
}

// Claim claims an unlocked non-staged achievement and returns its rewards.
func (e *Engine) Claim(id string) ([]types.Reward, error) {
	def, ok := e.cat.Achievement(id)
	if !ok {
		return nil, ErrNotFound
	}
	if def.Type == types.AchievementStaged {
		return nil, ErrInvalidTransition
	}
	a := e.instance(id)
	switch a.State {
	case types.AchievementClaimed:
		return nil, ErrAlreadyClaimed
	case types.AchievementUnlocked:
	default:
		return nil, ErrInvalidTransition
	}
	a.State = types.AchievementClaimed
	a.ClaimedAt = e.clock.Now()
	e.bus.Emit(events.AchievementClaimed{AchievementID: id})
	e.grant(events.SourceAchievement, id, def.Rewards)
	return append([]types.Reward(nil), def.Rewards...), nil
}

func (e *Engine) grant(source events.RewardSource, id string, rewards []types.Reward) {
	if len(rewards) == 0 {
		return
	}
	e.bus.Emit(events.RewardGranted{Source: source, SourceID: id, Rewards: append([]types.Reward(nil), rewards...)})
}

// ForceUnlock fills an achievement's progress and unlocks it regardless of
// prerequisites. Staged achievements have every stage made claimable
// instead. Calling it on a finished achievement does nothing.
func (e *Engine) ForceUnlock(id string) error {
	def, ok := e.cat.Achievement(id)
	if !ok {
		return ErrNotFound
	}
	a := e.instance(id)
	if a.State == types.AchievementUnlocked || a.State == types.AchievementClaimed {
		return nil
	}
	if a.State == types.AchievementLocked {
		a.State = types.AchievementInProgress
	}

	switch def.Type {
	case types.AchievementStaged:
		if len(def.Stages) == 0 {
			return nil
		}
		key := stageKey(def)
		prev := a.Progress[key]
		limit := def.Stages[len(def.Stages)-1].TargetCount
		if prev >= limit {
			return nil
		}
		a.Progress[key] = limit
		e.emitProgress(id, key, limit, limit)
		e.emitCrossedStages(def, a, prev, limit)
	default:
		ledger.Ledger(a.Progress).Fill(def.Objectives)
		e.unlock(def, a, true)
	}
	return nil
}

// AchievementState implements part of cond.Env without creating instances.
func (e *Engine) AchievementState(id string) (types.AchievementState, bool) {
	if a, ok := e.achievements[id]; ok {
		return a.State, true
	}
	def, ok := e.cat.Achievement(id)
	if !ok {
		return "", false
	}
	return e.initialState(def), true
}

// Save returns the engine's save shape in definition order.
func (e *Engine) Save() save.AchievementManager {
	m := save.AchievementManager{
		Achievements:    []save.AchievementSave{},
		TotalPoints:     e.points,
		UnlockedTitles:  e.titles.Unlocked(),
		EquippedTitleID: e.titles.Equipped(),
	}
	for _, def := range e.cat.Achievements() {
		a, ok := e.achievements[def.ID]
		if !ok {
			continue
		}
		m.Achievements = append(m.Achievements, save.AchievementSave{
			ID:                a.ID,
			State:             string(a.State),
			Progress:          ledger.Ledger(a.Progress).Clone(),
			CurrentStageIndex: a.CurrentStageIndex,
			ClaimedStages:     claimedList(def, a.ClaimedStages),
			UnlockedAt:        save.Millis(a.UnlockedAt),
			ClaimedAt:         save.Millis(a.ClaimedAt),
		})
	}
	return m
}

// Load replaces all achievement and title state without emitting events.
func (e *Engine) Load(m save.AchievementManager) {
	e.achievements = map[string]*types.Achievement{}
	for _, as := range m.Achievements {
		if _, ok := e.cat.Achievement(as.ID); !ok {
			e.logger.Warn("dropping saved achievement with no definition", "achievement", as.ID)
			continue
		}
		claimed := map[string]bool{}
		for _, s := range as.ClaimedStages {
			claimed[s] = true
		}
		e.achievements[as.ID] = &types.Achievement{
			ID:                as.ID,
			State:             types.AchievementState(as.State),
			Progress:          ledger.Ledger(as.Progress).Clone(),
			CurrentStageIndex: as.CurrentStageIndex,
			ClaimedStages:     claimed,
			UnlockedAt:        save.Time(as.UnlockedAt),
			ClaimedAt:         save.Time(as.ClaimedAt),
		}
	}
	e.points = m.TotalPoints
	e.titles.load(m.UnlockedTitles, m.EquippedTitleID)
}

// ResetAll destroys every achievement instance, the points and the titles.
func (e *Engine) ResetAll() {
	e.achievements = map[string]*types.Achievement{}
	e.points = 0
	e.titles.load(nil, "")
}

func (e *Engine) instance(id string) *types.Achievement {
	if a, ok := e.achievements[id]; ok {
		return a
	}
	def, ok := e.cat.Achievement(id)
	if !ok {
		return nil
	}
	a := &types.Achievement{
		ID:            id,
		State:         e.initialState(def),
		Progress:      map[string]int{},
		ClaimedStages: map[string]bool{},
	}
	e.achievements[id] = a
	return a
}

func (e *Engine) initialState(def *types.AchievementDef) types.AchievementState {
	if e.prerequisitesMet(def) {
		return types.AchievementInProgress
	}
	return types.AchievementLocked
}

// prerequisitesMet: every known prerequisite is unlocked or claimed.
func (e *Engine) prerequisitesMet(def *types.AchievementDef) bool {
	for _, pre := range def.Prerequisites {
		if _, ok := e.cat.Achievement(pre.ID); !ok {
			continue
		}
		a, ok := e.achievements[pre.ID]
		if !ok || (a.State != types.AchievementUnlocked && a.State != types.AchievementClaimed) {
			return false
		}
	}
	return true
}

func (e *Engine) refreshLock(def *types.AchievementDef, a *types.Achievement) {
	if a.State == types.AchievementLocked && e.prerequisitesMet(def) {
		a.State = types.AchievementInProgress
	}
}

func stageKey(def *types.AchievementDef) string {
	if def.StageObjective.ID != "" {
		return def.StageObjective.ID
	}
	return DefaultStageKey
}

// claimedList orders claimed stages by stage definition, unknown ids last.
func claimedList(def *types.AchievementDef, claimed map[string]bool) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, st := range def.Stages {
		if claimed[st.ID] {
			out = append(out, st.ID)
			seen[st.ID] = true
		}
	}
	var rest []string
	for id := range claimed {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

func clone(a *types.Achievement) types.Achievement {
	out := *a
	out.Progress = ledger.Ledger(a.Progress).Clone()
	out.ClaimedStages = make(map[string]bool, len(a.ClaimedStages))
	for k, v := range a.ClaimedStages {
		out.ClaimedStages[k] = v
	}
	return out
}
