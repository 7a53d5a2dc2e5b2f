package patient

import (
	"net/url"
	"strings"
	"testing"
)

func TestFilterConditionsEmpty(t *testing.T) {
	conditions, args, next := Filter{}.Conditions(1)
	if len(conditions) != 0 || len(args) != 0 {
		t.Errorf("empty filter produced conditions %v args %v", conditions, args)
	}
	if next != 1 {
		t.Errorf("expected placeholder counter unchanged, got %d", next)
	}
}

func TestFilterConditionsSearch(t *testing.T) {
	conditions, args, next := Filter{Search: "jane"}.Conditions(1)
	if len(conditions) != 1 {
		t.Fatalf("expected 1 condition, got %v", conditions)
	}
	if !strings.Contains(conditions[0], "ILIKE $1") {
		t.Errorf("unexpected condition %q", conditions[0])
	}
	if len(args) != 1 || args[0] != "%jane%" {
		t.Errorf("unexpected args %v", args)
	}
	if next != 2 {
		t.Errorf("expected next placeholder 2, got %d", next)
	}
}

func TestFilterConditionsMalformedValuesDropped(t *testing.T) {
	f := Filter{
		Sex:      "banana",
		AgeGroup: "middle-aged",
		FollowUp: "9years",
		From:     "not-a-date",
		To:       "also-not",
	}
	conditions, args, _ := f.Conditions(1)
	if len(conditions) != 0 || len(args) != 0 {
		t.Errorf("malformed values should be dropped, got %v %v", conditions, args)
	}
}

func TestFilterConditionsFollowUpBands(t *testing.T) {
	tests := []struct {
		followUp string
		contains string
		argCount int
	}{
		{"none", "NOT EXISTS", 0},
		{"partial", "BETWEEN 1 AND 3", 0},
		{"complete", ">= 4", 0},
		{"2weeks", "followup_type = $1", 1},
	}

	for _, tt := range tests {
		t.Run(tt.followUp, func(t *testing.T) {
			conditions, args, _ := Filter{FollowUp: tt.followUp}.Conditions(1)
			if len(conditions) != 1 {
				t.Fatalf("expected 1 condition, got %v", conditions)
			}
			if !strings.Contains(conditions[0], tt.contains) {
				t.Errorf("condition %q does not contain %q", conditions[0], tt.contains)
			}
			if len(args) != tt.argCount {
				t.Errorf("expected %d args, got %v", tt.argCount, args)
			}
		})
	}
}

func TestFilterConditionsDateWindow(t *testing.T) {
	f := Filter{From: "2026-01-01", To: "2026-01-31"}
	conditions, args, next := f.Conditions(3)

	if len(conditions) != 2 {
		t.Fatalf("expected 2 conditions, got %v", conditions)
	}
	if conditions[0] != "p.arrival_at >= $3" {
		t.Errorf("unexpected from condition %q", conditions[0])
	}
	if conditions[1] != "p.arrival_at <= $4" {
		t.Errorf("unexpected to condition %q", conditions[1])
	}
	// A date-only upper bound must include the whole day.
	if args[1] != "2026-01-31T23:59:59" {
		t.Errorf("expected end-of-day upper bound, got %v", args[1])
	}
	if next != 5 {
		t.Errorf("expected next placeholder 5, got %d", next)
	}
}

func TestFilterConditionsAgeGroups(t *testing.T) {
	tests := []struct {
		group string
		want  string
	}{
		{"child", "p.age < 18"},
		{"adult", "p.age >= 18"},
		{"0-9", "p.age BETWEEN 0 AND 9"},
		{"50+", "p.age >= 50"},
	}

	for _, tt := range tests {
		if got := ageCondition(tt.group); got != tt.want {
			t.Errorf("ageCondition(%q) = %q, want %q", tt.group, got, tt.want)
		}
	}
}

func TestFilterFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("search", "  1001 ")
	q.Set("sex", "F")
	q.Set("follow_up", "none")

	f := FilterFromQuery(q)
	if f.Search != "1001" {
		t.Errorf("search not trimmed: %q", f.Search)
	}
	if f.Sex != "F" || f.FollowUp != "none" {
		t.Errorf("unexpected filter %+v", f)
	}
}
