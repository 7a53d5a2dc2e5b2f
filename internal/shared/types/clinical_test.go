package types

import (
	"testing"
	"time"
)

// TestParseTriState tests normalization of clinical form values
func TestParseTriState(t *testing.T) {
	tests := []struct {
		input string
		want  TriState
	}{
		{"Y", TriYes},
		{"yes", TriYes},
		{"POSITIVE", TriYes},
		{"n", TriNo},
		{"No", TriNo},
		{"negative", TriNo},
		{"ND", TriNotDone},
		{"not done", TriNotDone},
		{"NA", TriNotApplicable},
		{"n/a", TriNotApplicable},
		{"", TriUnknown},
		{"maybe", TriUnknown},
		{"  yes  ", TriYes},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseTriState(tt.input); got != tt.want {
				t.Errorf("ParseTriState(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseSex tests the canonical sex vocabulary
func TestParseSex(t *testing.T) {
	tests := []struct {
		input   string
		want    Sex
		wantErr bool
	}{
		{"F", SexFemale, false},
		{"f", SexFemale, false},
		{"Female", SexFemale, false},
		{"M", SexMale, false},
		{"male", SexMale, false},
		{"", "", true},
		{"X", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSex(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseSex(%q) expected error, got %s", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSex(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseSex(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

// TestParseTimestamp tests the accepted stored timestamp forms
func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-01-01T10:00:00", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-01-01T10:00", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-01-01 10:00:00", time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-01-01", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if _, err := ParseTimestamp("not-a-date"); err == nil {
		t.Error("expected error for malformed timestamp")
	}
}

// TestTimestampLexicalOrder checks that the stored form sorts
// chronologically when compared as text.
func TestTimestampLexicalOrder(t *testing.T) {
	earlier := FormatTimestamp(time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC))
	later := FormatTimestamp(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	if !(earlier < later) {
		t.Errorf("expected %q < %q lexically", earlier, later)
	}
}
