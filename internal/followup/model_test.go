package followup

import (
	"testing"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

func TestDueDate(t *testing.T) {
	arrival := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		slot Type
		want time.Time
	}{
		{TypeTwoWeeks, time.Date(2026, 3, 16, 9, 15, 0, 0, time.UTC)},
		{TypeOneMonth, time.Date(2026, 4, 2, 9, 15, 0, 0, time.UTC)},
		{TypeThreeMonths, time.Date(2026, 6, 2, 9, 15, 0, 0, time.UTC)},
		{TypeSixMonths, time.Date(2026, 9, 2, 9, 15, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(string(tt.slot), func(t *testing.T) {
			if got := DueDate(arrival, tt.slot); !got.Equal(tt.want) {
				t.Errorf("DueDate(%s) = %v, want %v", tt.slot, got, tt.want)
			}
		})
	}
}

func TestDueDateMonthEndClamp(t *testing.T) {
	// Jan 31 + 1 month lands on the last day of February, not March 3.
	arrival := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	got := DueDate(arrival, TypeOneMonth)
	want := time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DueDate(1month) = %v, want %v", got, want)
	}

	// Leap year keeps Feb 29.
	arrival = time.Date(2028, 1, 31, 12, 0, 0, 0, time.UTC)
	got = DueDate(arrival, TypeOneMonth)
	want = time.Date(2028, 2, 29, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("leap DueDate(1month) = %v, want %v", got, want)
	}

	// Aug 31 + 6 months: February again.
	arrival = time.Date(2025, 8, 31, 0, 0, 0, 0, time.UTC)
	got = DueDate(arrival, TypeSixMonths)
	want = time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("DueDate(6months) = %v, want %v", got, want)
	}
}

func TestParseType(t *testing.T) {
	for _, slot := range Schedule {
		if got, err := ParseType(string(slot)); err != nil || got != slot {
			t.Errorf("ParseType(%s) = %v, %v", slot, got, err)
		}
	}
	if _, err := ParseType("9months"); err == nil {
		t.Error("expected error for unknown slot")
	}
	if _, err := ParseType(""); err == nil {
		t.Error("expected error for empty slot")
	}
}

func TestBuildPlan(t *testing.T) {
	plan := BuildPlan("p1", "2026-03-02T09:15:00", []Type{TypeTwoWeeks, TypeThreeMonths})

	if plan.Complete {
		t.Error("plan should not be complete")
	}
	if len(plan.Available) != 2 {
		t.Fatalf("expected 2 available slots, got %v", plan.Available)
	}
	// Canonical order is preserved regardless of what was recorded.
	if plan.Available[0].Type != TypeOneMonth || plan.Available[1].Type != TypeSixMonths {
		t.Errorf("unexpected slot order: %v", plan.Available)
	}
	if plan.Available[0].Due != "2026-04-02T09:15:00" {
		t.Errorf("1month due = %s", plan.Available[0].Due)
	}
	if plan.Available[1].Due != "2026-09-02T09:15:00" {
		t.Errorf("6months due = %s", plan.Available[1].Due)
	}
}

func TestBuildPlanComplete(t *testing.T) {
	plan := BuildPlan("p1", "2026-03-02T09:15:00", Schedule)
	if !plan.Complete {
		t.Error("expected complete plan")
	}
	if len(plan.Available) != 0 {
		t.Errorf("expected no available slots, got %v", plan.Available)
	}
}

func TestBuildPlanMalformedArrival(t *testing.T) {
	before := time.Now()
	plan := BuildPlan("p1", "garbage", nil)
	if len(plan.Available) != len(Schedule) {
		t.Fatalf("expected full schedule, got %v", plan.Available)
	}

	// Counted from today when the arrival cannot be parsed.
	due, err := types.ParseTimestamp(plan.Available[0].Due)
	if err != nil {
		t.Fatalf("due not parseable: %v", err)
	}
	earliest := before.AddDate(0, 0, 14).Add(-time.Minute)
	latest := time.Now().AddDate(0, 0, 14).Add(time.Minute)
	if due.Before(earliest) || due.After(latest) {
		t.Errorf("2weeks due %v not ~14 days from now", due)
	}
}

func TestRequestFollowUp(t *testing.T) {
	hb := 11.5
	req := Request{
		Type:             "2weeks",
		ReturnedAt:       "2026-03-16",
		TraumaCounseling: "Y",
		HIVTest:          "ND",
		Hb:               &hb,
	}

	fu, err := req.FollowUp("p1", "nurse1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fu.Type != TypeTwoWeeks {
		t.Errorf("type = %s", fu.Type)
	}
	if fu.ReturnedAt != "2026-03-16T00:00:00" {
		t.Errorf("returned_at = %s", fu.ReturnedAt)
	}
	if fu.TraumaCounseling != types.TriYes || fu.HIVTest != types.TriNotDone {
		t.Errorf("tri-states not normalized: %+v", fu)
	}
	if fu.PEPRefill != types.TriUnknown {
		t.Errorf("absent field should be unknown, got %s", fu.PEPRefill)
	}
	if fu.Hb == nil || *fu.Hb != 11.5 {
		t.Errorf("hb = %v", fu.Hb)
	}
	if fu.RecordedBy != "nurse1" {
		t.Errorf("recorded_by = %s", fu.RecordedBy)
	}

	if _, err := (&Request{Type: "never"}).FollowUp("p1", ""); err == nil {
		t.Error("expected error for unknown slot")
	}
}

// TestScheduleScenario walks a record through the whole schedule the
// way the clinic would.
func TestScheduleScenario(t *testing.T) {
	arrival := "2026-01-31T08:00:00"
	var recorded []Type

	wantDues := map[Type]string{
		TypeTwoWeeks:    "2026-02-14T08:00:00",
		TypeOneMonth:    "2026-02-28T08:00:00",
		TypeThreeMonths: "2026-04-30T08:00:00",
		TypeSixMonths:   "2026-07-31T08:00:00",
	}

	for i, slot := range Schedule {
		plan := BuildPlan("p1", arrival, recorded)
		if plan.Complete {
			t.Fatalf("plan complete after %d visits", i)
		}
		next := plan.Available[0]
		if next.Type != slot {
			t.Fatalf("expected next slot %s, got %s", slot, next.Type)
		}
		if next.Due != wantDues[slot] {
			t.Errorf("%s due = %s, want %s", slot, next.Due, wantDues[slot])
		}
		recorded = append(recorded, next.Type)
	}

	if plan := BuildPlan("p1", arrival, recorded); !plan.Complete {
		t.Error("expected complete plan after all visits")
	}
}
