// Package activity accumulates daily activity points from completed daily
// quests and hands out the tier rewards they unlock.
package activity

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/nathoo/questline/engine/content"
	"github.com/nathoo/questline/engine/events"
	"github.com/nathoo/questline/engine/period"
	"github.com/nathoo/questline/engine/save"
	"github.com/nathoo/questline/types"
)

var (
	ErrUnknownTier    = errors.New("unknown activity tier")
	ErrNotEnough      = errors.New("not enough activity points")
	ErrAlreadyClaimed = errors.New("activity tier already claimed")
)

// Options configures a Tracker.
type Options struct {
	Schedule *period.Schedule
	Logger   *slog.Logger
}

// Tracker holds today's points and claimed tiers.
type Tracker struct {
	bus    *events.Bus
	sched  *period.Schedule
	logger *slog.Logger

	tiers     []types.ActivityTier
	points    int
	claimed   map[string]bool
	lastReset time.Time
}

// New builds a tracker over the catalog's tier table. Tiers must have
// distinct, non-negative point thresholds.
func New(cat *content.Catalog, bus *events.Bus, opts Options) (*Tracker, error) {
	tiers := cat.ActivityTiers()
	for i, t := range tiers {
		if t.RequiredPoints < 0 {
			return nil, fmt.Errorf("activity tier %q: negative required points", t.ID)
		}
		if i > 0 && t.RequiredPoints == tiers[i-1].RequiredPoints {
			return nil, fmt.Errorf("activity tiers %q and %q share threshold %d", tiers[i-1].ID, t.ID, t.RequiredPoints)
		}
	}
	tr := &Tracker{
		bus:     bus,
		sched:   opts.Schedule,
		logger:  opts.Logger,
		tiers:   tiers,
		claimed: map[string]bool{},
	}
	if tr.sched == nil {
		tr.sched = period.MustDefault()
	}
	if tr.logger == nil {
		tr.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return tr, nil
}

// Points returns today's points.
func (t *Tracker) Points() int {
	return t.points
}

// Tiers returns the tier table in ascending threshold order.
func (t *Tracker) Tiers() []types.ActivityTier {
	return append([]types.ActivityTier(nil), t.tiers...)
}

// Claimed reports whether a tier was claimed today.
func (t *Tracker) Claimed(id string) bool {
	return t.claimed[id]
}

// Claimable returns the reached but unclaimed tiers.
func (t *Tracker) Claimable() []types.ActivityTier {
	var out []types.ActivityTier
	for _, tier := range t.tiers {
		if tier.RequiredPoints <= t.points && !t.claimed[tier.ID] {
			out = append(out, tier)
		}
	}
	return out
}

// Add adds points. Non-positive amounts are ignored.
func (t *Tracker) Add(n int, source string) {
	if n <= 0 {
		return
	}
	t.points += n
	t.bus.Emit(events.ActivityPointsChanged{Points: t.points, Delta: n, Source: source})
}

// OnQuestCompleted credits the activity points of completed daily quests.
func (t *Tracker) OnQuestCompleted(ev events.QuestCompleted) {
	if ev.Type != types.QuestDaily {
		return
	}
	t.Add(ev.ActivityPoints, ev.QuestID)
}

// Claim grants a reached tier's rewards once per day.
func (t *Tracker) Claim(id string) error {
	tier, ok := t.tier(id)
	if !ok {
		return ErrUnknownTier
	}
	if t.claimed[id] {
		return ErrAlreadyClaimed
	}
	if t.points < tier.RequiredPoints {
		return ErrNotEnough
	}
	t.claimed[id] = true
	if len(tier.Rewards) > 0 {
		t.bus.Emit(events.RewardGranted{
			Source:   events.SourceActivity,
			SourceID: id,
			Rewards:  append([]types.Reward(nil), tier.Rewards...),
		})
	}
	t.bus.Emit(events.ActivityTierClaimed{TierID: id})
	return nil
}

func (t *Tracker) tier(id string) (types.ActivityTier, bool) {
	for _, tier := range t.tiers {
		if tier.ID == id {
			return tier, true
		}
	}
	return types.ActivityTier{}, false
}

// ResetIfDue zeroes points and claims when a daily boundary has been
// crossed since the last reset. The first call only records the boundary.
func (t *Tracker) ResetIfDue(now time.Time) bool {
	last := t.lastReset
	boundary, due := t.sched.Due(period.Daily, last, now)
	if !due {
		return false
	}
	t.lastReset = boundary
	if last.IsZero() {
		return false
	}
	t.points = 0
	t.claimed = map[string]bool{}
	t.logger.Debug("activity reset", "boundary", boundary)
	t.bus.Emit(events.ActivityReset{})
	return true
}

// Save returns the tracker's save shape. Claimed tiers follow tier order.
func (t *Tracker) Save() save.ActivitySave {
	s := save.ActivitySave{
		Points:       t.points,
		ClaimedTiers: []string{},
		LastReset:    save.Millis(t.lastReset),
	}
	for _, tier := range t.tiers {
		if t.claimed[tier.ID] {
			s.ClaimedTiers = append(s.ClaimedTiers, tier.ID)
		}
	}
	return s
}

// Load restores saved state. Unknown tiers are dropped.
func (t *Tracker) Load(s save.ActivitySave) {
	t.points = max(s.Points, 0)
	t.claimed = map[string]bool{}
	for _, id := range s.ClaimedTiers {
		if _, ok := t.tier(id); !ok {
			t.logger.Warn("dropping unknown claimed activity tier", "tier", id)
			continue
		}
		t.claimed[id] = true
	}
	t.lastReset = save.Time(s.LastReset)
}
