package reporting

import (
	"testing"
	"time"
)

func TestResolveNamedPeriods(t *testing.T) {
	now := time.Date(2026, 8, 14, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		period    string
		wantStart time.Time
	}{
		{"daily", time.Date(2026, 8, 13, 15, 30, 0, 0, time.UTC)},
		{"weekly", time.Date(2026, 8, 7, 15, 30, 0, 0, time.UTC)},
		{"monthly", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)},
		{"quarterly", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)},
		{"yearly", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.period, func(t *testing.T) {
			w := Resolve(tt.period, "", "", now)
			if !w.Bounded {
				t.Fatal("expected bounded window")
			}
			if !w.Start.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", w.Start, tt.wantStart)
			}
			if !w.End.Equal(now) {
				t.Errorf("end = %v, want %v", w.End, now)
			}
			// The window never starts after it ends.
			if w.Start.After(w.End) {
				t.Errorf("start %v after end %v", w.Start, w.End)
			}
		})
	}
}

func TestResolveQuarterBoundaries(t *testing.T) {
	tests := []struct {
		month time.Month
		want  time.Month
	}{
		{time.January, time.January},
		{time.March, time.January},
		{time.April, time.April},
		{time.June, time.April},
		{time.July, time.July},
		{time.October, time.October},
		{time.December, time.October},
	}

	for _, tt := range tests {
		now := time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC)
		w := Resolve("quarterly", "", "", now)
		if w.Start.Month() != tt.want || w.Start.Day() != 1 {
			t.Errorf("quarter start for %s = %v, want month %s day 1", tt.month, w.Start, tt.want)
		}
	}
}

func TestResolveNamedPeriodWinsOverCustomBounds(t *testing.T) {
	now := time.Date(2026, 8, 14, 12, 0, 0, 0, time.UTC)
	w := Resolve("monthly", "2020-01-01", "2020-12-31", now)
	if w.Period != PeriodMonthly {
		t.Errorf("period = %s", w.Period)
	}
	if w.Start.Year() != 2026 {
		t.Errorf("custom bounds should be ignored, got start %v", w.Start)
	}
}

func TestResolveCustomBounds(t *testing.T) {
	now := time.Now()
	w := Resolve("all", "2026-01-01", "2026-01-31", now)
	if !w.Bounded {
		t.Fatal("expected bounded window")
	}

	from, to := w.Bounds()
	if from != "2026-01-01T00:00:00" {
		t.Errorf("from = %s", from)
	}
	if to != "2026-01-31T23:59:59" {
		t.Errorf("to = %s (date-only bound should cover the day)", to)
	}
}

func TestResolveUnknownAndMalformed(t *testing.T) {
	now := time.Now()

	// Unknown token, no bounds: whole dataset.
	w := Resolve("fortnightly", "", "", now)
	if w.Bounded {
		t.Errorf("unknown period should be unbounded, got %+v", w)
	}
	if from, to := w.Bounds(); from != "" || to != "" {
		t.Errorf("unbounded window should render empty bounds")
	}

	// Malformed custom bounds: whole dataset.
	w = Resolve("", "yesterday", "today", now)
	if w.Bounded {
		t.Errorf("malformed bounds should be unbounded, got %+v", w)
	}

	// One bound missing: whole dataset.
	w = Resolve("", "2026-01-01", "", now)
	if w.Bounded {
		t.Errorf("single bound should be unbounded, got %+v", w)
	}
}
