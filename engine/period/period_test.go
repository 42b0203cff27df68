package period

import (
	"testing"
	"time"
)

func TestLast(t *testing.T) {
	s := MustDefault()
	loc := time.UTC
	// Wednesday 2026-03-11 15:30.
	now := time.Date(2026, 3, 11, 15, 30, 0, 0, loc)

	tests := []struct {
		kind Kind
		want time.Time
	}{
		{Daily, time.Date(2026, 3, 11, 0, 0, 0, 0, loc)},
		{Weekly, time.Date(2026, 3, 9, 0, 0, 0, 0, loc)},
		{Monthly, time.Date(2026, 3, 1, 0, 0, 0, 0, loc)},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := s.Last(tt.kind, now)
			if !got.Equal(tt.want) {
				t.Errorf("Last(%s) = %v, want %v", tt.kind, got, tt.want)
			}
		})
	}
}

func TestLast_ExactlyOnBoundary(t *testing.T) {
	s := MustDefault()
	midnight := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC) // a Monday
	if got := s.Last(Daily, midnight); !got.Equal(midnight) {
		t.Errorf("Last(daily) = %v, want %v", got, midnight)
	}
	if got := s.Last(Weekly, midnight); !got.Equal(midnight) {
		t.Errorf("Last(weekly) = %v, want %v", got, midnight)
	}
}

func TestNext(t *testing.T) {
	s := MustDefault()
	now := time.Date(2026, 3, 31, 23, 0, 0, 0, time.UTC)
	want := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	if got := s.Next(Monthly, now); !got.Equal(want) {
		t.Errorf("Next(monthly) = %v, want %v", got, want)
	}
}

func TestDue_IdempotentWithinPeriod(t *testing.T) {
	s := MustDefault()
	now := time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC)

	b, due := s.Due(Daily, time.Time{}, now)
	if !due {
		t.Fatal("first check should be due")
	}
	// Record the boundary; later in the same day nothing is due.
	if _, due := s.Due(Daily, b, now.Add(10*time.Hour)); due {
		t.Error("second check within the same day should not be due")
	}
	// The next day it is due again.
	if _, due := s.Due(Daily, b, now.Add(20*time.Hour)); !due {
		t.Error("check on the next day should be due")
	}
}

func TestNew_CustomAndInvalid(t *testing.T) {
	s, err := New(Specs{Daily: "0 5 * * *"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	now := time.Date(2026, 3, 11, 4, 0, 0, 0, time.UTC)
	want := time.Date(2026, 3, 10, 5, 0, 0, 0, time.UTC)
	if got := s.Last(Daily, now); !got.Equal(want) {
		t.Errorf("Last(daily) with 05:00 reset = %v, want %v", got, want)
	}

	if _, err := New(Specs{Weekly: "not a cron"}); err == nil {
		t.Error("expected error for invalid spec")
	}
}
