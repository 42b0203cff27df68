// Package clock provides the engine's notion of time and its only
// asynchronous primitive: cancellable, host-serialized timers.
package clock

import (
	"sort"
	"sync/atomic"
	"time"
)

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	// Stop cancels the timer. Returns false if it already fired or was stopped.
	Stop() bool
}

// Scheduler schedules callbacks. Implementations must never run a callback
// concurrently with engine code.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// System is the wall clock, optionally pinned to a location.
type System struct {
	Location *time.Location
}

// Now returns the current wall time.
func (s System) Now() time.Time {
	if s.Location != nil {
		return time.Now().In(s.Location)
	}
	return time.Now()
}

// Manual is a deterministic clock and scheduler. Time only moves when
// Advance or Set is called, and due timers fire on the caller's goroutine.
type Manual struct {
	now    time.Time
	timers []*manualTimer
	order  int
}

type manualTimer struct {
	at      time.Time
	order   int
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewManual creates a manual clock starting at now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the manual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// AfterFunc schedules fn to run once the clock has advanced by d.
func (m *Manual) AfterFunc(d time.Duration, fn func()) Timer {
	m.order++
	t := &manualTimer{at: m.now.Add(d), order: m.order, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves time forward and fires due timers in deadline order.
// Timers scheduled by a firing callback are honored if they fall due
// within the same advance.
func (m *Manual) Advance(d time.Duration) {
	m.Set(m.now.Add(d))
}

// Set jumps to an absolute time, firing timers due at or before it.
func (m *Manual) Set(t time.Time) {
	for {
		next := m.nextDue(t)
		if next == nil {
			break
		}
		if next.at.After(m.now) {
			m.now = next.at
		}
		next.fired = true
		next.fn()
	}
	if t.After(m.now) {
		m.now = t
	}
	m.compact()
}

// Pending returns the number of timers that have neither fired nor stopped.
func (m *Manual) Pending() int {
	n := 0
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			n++
		}
	}
	return n
}

func (m *Manual) nextDue(limit time.Time) *manualTimer {
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.fired && !t.stopped && !t.at.After(limit) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at.Equal(due[j].at) {
			return due[i].order < due[j].order
		}
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (m *Manual) compact() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.fired && !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
}

// Serial runs real timers but hands their callbacks to the host through C.
// The host drains C on its own goroutine, which serializes callbacks with
// every other engine call.
type Serial struct {
	C chan func()
}

// NewSerial creates a Serial scheduler with a buffered callback channel.
func NewSerial(buffer int) *Serial {
	return &Serial{C: make(chan func(), buffer)}
}

type serialTimer struct {
	t       *time.Timer
	stopped atomic.Bool
}

func (t *serialTimer) Stop() bool {
	if t.stopped.Swap(true) {
		return false
	}
	return t.t.Stop()
}

// AfterFunc schedules fn; once due it is posted to C. A timer stopped after
// posting but before the host runs it is skipped.
func (s *Serial) AfterFunc(d time.Duration, fn func()) Timer {
	st := &serialTimer{}
	st.t = time.AfterFunc(d, func() {
		s.C <- func() {
			if st.stopped.Swap(true) {
				return
			}
			fn()
		}
	})
	return st
}
