package events

import "testing"

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		eventType string
		pattern   string
		want      bool
	}{
		{"patient.registered", "patient.*", true},
		{"patient.registered", "patient.registered", true},
		{"patient.registered", "followup.*", false},
		{"followup.recorded", "*", true},
		{"patient.registered", "patient", false},
		{"patient", "patient.*", false},
	}

	for _, tt := range tests {
		if got := matchesPattern(tt.eventType, tt.pattern); got != tt.want {
			t.Errorf("matchesPattern(%q, %q) = %v, want %v", tt.eventType, tt.pattern, got, tt.want)
		}
	}
}

func TestPatternToRegex(t *testing.T) {
	if got := patternToRegex("patient.*"); got != `patient\..*` {
		t.Errorf("patternToRegex = %q", got)
	}
}

func TestNewEventWithActor(t *testing.T) {
	e := NewEvent("patient.registered", "patient-service", map[string]string{"opd_no": "1001"})
	if e.ID == "" {
		t.Error("expected generated event ID")
	}
	if e.Type != "patient.registered" {
		t.Errorf("unexpected type %s", e.Type)
	}

	e = e.WithActor("user-1", "staff", "10.0.0.1")
	if e.ActorID != "user-1" || e.ActorType != "staff" || e.ActorIP != "10.0.0.1" {
		t.Errorf("actor not set: %+v", e)
	}
}
