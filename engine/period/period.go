// Package period computes daily, weekly and monthly reset boundaries from
// cron schedules.
package period

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Kind names a reset period.
type Kind string

const (
	Daily   Kind = "daily"
	Weekly  Kind = "weekly"
	Monthly Kind = "monthly"
)

// All lists the periods in reset order.
var All = []Kind{Daily, Weekly, Monthly}

// Specs are the cron expressions of each boundary.
type Specs struct {
	Daily   string `yaml:"daily" env:"DAILY"`
	Weekly  string `yaml:"weekly" env:"WEEKLY"`
	Monthly string `yaml:"monthly" env:"MONTHLY"`
}

// DefaultSpecs resets at local midnight, Monday midnight and
// first-of-month midnight.
func DefaultSpecs() Specs {
	return Specs{
		Daily:   "0 0 * * *",
		Weekly:  "0 0 * * 1",
		Monthly: "0 0 1 * *",
	}
}

// lookback is how far before now the search for the last boundary starts.
// It is doubled until a boundary is found or maxLookbacks is reached.
var lookback = map[Kind]time.Duration{
	Daily:   48 * time.Hour,
	Weekly:  8 * 24 * time.Hour,
	Monthly: 32 * 24 * time.Hour,
}

const maxLookbacks = 5

// Schedule holds the parsed boundary schedules.
type Schedule struct {
	scheds map[Kind]cron.Schedule
}

// New parses the specs. Empty specs fall back to the defaults.
func New(specs Specs) (*Schedule, error) {
	defaults := DefaultSpecs()
	if specs.Daily == "" {
		specs.Daily = defaults.Daily
	}
	if specs.Weekly == "" {
		specs.Weekly = defaults.Weekly
	}
	if specs.Monthly == "" {
		specs.Monthly = defaults.Monthly
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Schedule{scheds: map[Kind]cron.Schedule{}}
	for kind, spec := range map[Kind]string{Daily: specs.Daily, Weekly: specs.Weekly, Monthly: specs.Monthly} {
		sched, err := parser.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("parsing %s reset %q: %w", kind, spec, err)
		}
		s.scheds[kind] = sched
	}
	return s, nil
}

// MustDefault returns the default schedule.
func MustDefault() *Schedule {
	s, err := New(DefaultSpecs())
	if err != nil {
		panic(err)
	}
	return s
}

// Last returns the most recent boundary at or before now, in now's location.
// Returns the zero time if no boundary is found within the lookback window.
func (s *Schedule) Last(kind Kind, now time.Time) time.Time {
	sched, ok := s.scheds[kind]
	if !ok {
		return time.Time{}
	}
	window := lookback[kind]
	for i := 0; i < maxLookbacks; i++ {
		var last time.Time
		// cron.Next is strictly after its argument; step back one second so a
		// boundary exactly at the window start is still found.
		t := now.Add(-window).Add(-time.Second)
		for {
			next := sched.Next(t)
			if next.IsZero() || next.After(now) {
				break
			}
			last = next
			t = next
		}
		if !last.IsZero() {
			return last
		}
		window *= 2
	}
	return time.Time{}
}

// Next returns the first boundary strictly after now.
func (s *Schedule) Next(kind Kind, now time.Time) time.Time {
	sched, ok := s.scheds[kind]
	if !ok {
		return time.Time{}
	}
	return sched.Next(now)
}

// Due reports whether a boundary has been crossed since last, i.e. whether
// the period's reset still has to run. Returns the boundary to record.
func (s *Schedule) Due(kind Kind, last, now time.Time) (time.Time, bool) {
	b := s.Last(kind, now)
	if b.IsZero() {
		return time.Time{}, false
	}
	return b, last.Before(b)
}
