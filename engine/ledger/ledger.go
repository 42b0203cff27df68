// Package ledger tracks per-entity objective progress and implements the
// objective matching rule shared by quests and achievements.
package ledger

import "github.com/nathoo/questline/types"

// Ledger maps objective IDs to progress counts. Unset objectives are 0.
type Ledger map[string]int

// New returns an empty ledger.
func New() Ledger {
	return Ledger{}
}

// Get returns the progress of an objective.
func (l Ledger) Get(id string) int {
	return l[id]
}

// Set overwrites the progress of an objective.
func (l Ledger) Set(id string, value int) {
	l[id] = value
}

// Add increments the progress of an objective and returns the new value.
func (l Ledger) Add(id string, delta int) int {
	l[id] += delta
	return l[id]
}

// Reset clears every entry.
func (l Ledger) Reset() {
	for k := range l {
		delete(l, k)
	}
}

// Clone returns an independent copy. A nil ledger clones to an empty one.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Met returns true if every objective has reached its target.
// An empty objective list is vacuously met.
func (l Ledger) Met(objectives []types.Objective) bool {
	for _, obj := range objectives {
		if l[obj.ID] < obj.TargetCount {
			return false
		}
	}
	return true
}

// Fill sets every objective to its target count.
func (l Ledger) Fill(objectives []types.Objective) {
	for _, obj := range objectives {
		if l[obj.ID] < obj.TargetCount {
			l[obj.ID] = obj.TargetCount
		}
	}
}

// Matches reports whether a gameplay event counts toward an objective.
//
// An objective without a target ID matches every event of its type. An
// objective with a target ID only matches events carrying the same ID, so a
// target-less event never advances it.
func Matches(obj types.Objective, ev types.Progress) bool {
	if obj.Type != ev.Type {
		return false
	}
	if obj.TargetID == "" {
		return true
	}
	if ev.TargetID == "" {
		return false
	}
	return obj.TargetID == ev.TargetID
}

// Apply updates one objective from an event: absolute events set the value,
// others add to it. The result is clamped to limit when limit > 0 and never
// drops below zero. Returns the new value and whether it changed.
func (l Ledger) Apply(id string, ev types.Progress, limit int) (int, bool) {
	old := l[id]
	next := old + ev.Amount
	if ev.Absolute {
		next = ev.Amount
	}
	if limit > 0 && next > limit {
		next = limit
	}
	if next < 0 {
		next = 0
	}
	if next == old {
		return old, false
	}
	l[id] = next
	return next, true
}

// ApplyMax keeps the largest single event amount seen for an objective.
// Used for one-shot objectives where amounts do not accumulate.
func (l Ledger) ApplyMax(id string, ev types.Progress, limit int) (int, bool) {
	old := l[id]
	next := ev.Amount
	if limit > 0 && next > limit {
		next = limit
	}
	if next <= old {
		return old, false
	}
	l[id] = next
	return next, true
}
