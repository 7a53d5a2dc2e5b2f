package types

import (
	"fmt"
	"strings"
	"time"
)

// Clinical timestamps are stored as sortable text so that lexical
// comparison matches chronological comparison. Arrival and incident
// times use TimestampLayout; date-only fields use DateLayout.
const (
	TimestampLayout = "2006-01-02T15:04:05"
	DateLayout      = "2006-01-02"
)

// FormatTimestamp renders t in the canonical stored form.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp parses a stored timestamp, accepting the truncated
// forms the intake forms produce (date only, or date with hh:mm).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", "T"))
	for _, layout := range []string{TimestampLayout, "2006-01-02T15:04", DateLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// TriState is the canonical value of a clinical yes/no form field.
// The paper registers use free-form Y/N/ND/NA marks; everything is
// normalized through ParseTriState exactly once, at the edge.
type TriState string

const (
	TriYes           TriState = "yes"
	TriNo            TriState = "no"
	TriNotDone       TriState = "not_done"
	TriNotApplicable TriState = "not_applicable"
	TriUnknown       TriState = "unknown"
)

// ParseTriState normalizes a form value. Unrecognized or empty input
// maps to TriUnknown; it never fails.
func ParseTriState(s string) TriState {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true", "1", "pos", "positive", "reactive":
		return TriYes
	case "n", "no", "false", "0", "neg", "negative", "non-reactive":
		return TriNo
	case "nd", "not done", "not_done", "notdone":
		return TriNotDone
	case "na", "n/a", "not applicable", "not_applicable":
		return TriNotApplicable
	default:
		return TriUnknown
	}
}

// IsYes reports whether the flag was recorded as given/positive.
func (t TriState) IsYes() bool {
	return t == TriYes
}

// Sex is the canonical sex vocabulary. Reporting defines the female
// share as sex = 'F' exactly; free-form spellings are normalized here.
type Sex string

const (
	SexFemale Sex = "F"
	SexMale   Sex = "M"
)

// ParseSex normalizes a form value into the canonical vocabulary.
func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "f", "female":
		return SexFemale, nil
	case "m", "male":
		return SexMale, nil
	default:
		return "", fmt.Errorf("unrecognized sex %q", s)
	}
}
