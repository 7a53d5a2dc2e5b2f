package followup

import (
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/errors"
	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Type names a slot in the follow-up schedule.
type Type string

const (
	TypeTwoWeeks    Type = "2weeks"
	TypeOneMonth    Type = "1month"
	TypeThreeMonths Type = "3months"
	TypeSixMonths   Type = "6months"
)

// Schedule is the canonical visit order after the initial visit.
var Schedule = []Type{TypeTwoWeeks, TypeOneMonth, TypeThreeMonths, TypeSixMonths}

// ParseType validates a schedule slot name.
func ParseType(s string) (Type, error) {
	for _, t := range Schedule {
		if Type(s) == t {
			return t, nil
		}
	}
	return "", errors.Validation("validation failed", map[string]string{
		"followup_type": "followup_type must be one of 2weeks, 1month, 3months, 6months",
	})
}

// DueDate computes when a slot falls due, counted from arrival. The
// two-week slot is a plain 14 days; the month slots land on the same
// day of the target month, clamped to its last day when the arrival
// day does not exist there (Jan 31 + 1 month = Feb 28/29).
func DueDate(arrival time.Time, t Type) time.Time {
	switch t {
	case TypeTwoWeeks:
		return arrival.AddDate(0, 0, 14)
	case TypeOneMonth:
		return addMonthsClamped(arrival, 1)
	case TypeThreeMonths:
		return addMonthsClamped(arrival, 3)
	case TypeSixMonths:
		return addMonthsClamped(arrival, 6)
	}
	return arrival
}

func addMonthsClamped(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), 0, t.Location())
	lastDay := first.AddDate(0, 1, -1).Day()

	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day,
		t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// Slot is one pending schedule entry with its due date.
type Slot struct {
	Type Type   `json:"type"`
	Due  string `json:"due"`
}

// Plan lists the schedule slots not yet recorded for a patient, in
// canonical order, and whether the schedule is complete.
type Plan struct {
	PatientID types.ID `json:"patient_id"`
	Available []Slot   `json:"available"`
	Complete  bool     `json:"complete"`
}

// BuildPlan computes the remaining schedule from the arrival timestamp
// and the slots already recorded. An unparseable arrival counts the
// schedule from today so the clinic still gets workable dates.
func BuildPlan(patientID types.ID, arrivalAt string, recorded []Type) Plan {
	arrival, err := types.ParseTimestamp(arrivalAt)
	if err != nil {
		arrival = time.Now()
	}

	done := make(map[Type]bool, len(recorded))
	for _, t := range recorded {
		done[t] = true
	}

	plan := Plan{PatientID: patientID}
	for _, t := range Schedule {
		if done[t] {
			continue
		}
		plan.Available = append(plan.Available, Slot{
			Type: t,
			Due:  types.FormatTimestamp(DueDate(arrival, t)),
		})
	}
	plan.Complete = len(plan.Available) == 0

	return plan
}

// FollowUp is a recorded follow-up visit. One row per patient per
// schedule slot.
type FollowUp struct {
	ID        types.ID `json:"id"`
	PatientID types.ID `json:"patient_id"`
	Type      Type     `json:"followup_type"`

	ReturnedAt      string `json:"returned_at,omitempty"`
	NextAppointment string `json:"next_appointment,omitempty"`

	TraumaCounseling    types.TriState `json:"trauma_counseling"`
	AdherenceCounseling types.TriState `json:"adherence_counseling"`
	PEPRefill           types.TriState `json:"pep_refill"`
	PEPCompletion       types.TriState `json:"pep_completion"`

	HIVTest       types.TriState `json:"hiv_test"`
	PregnancyTest types.TriState `json:"pregnancy_test"`
	HepBTest      types.TriState `json:"hep_b_test"`
	SyphilisTest  types.TriState `json:"syphilis_test"`

	// Monitoring labs while on PEP
	Hb  *float64 `json:"hb,omitempty"`
	ALT *int     `json:"alt,omitempty"`

	TTGiven    types.TriState `json:"tt_given"`
	Referral   string         `json:"referral,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	RecordedBy string         `json:"recorded_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request carries a follow-up form submission.
type Request struct {
	Type string `json:"followup_type"`

	ReturnedAt      string `json:"returned_at"`
	NextAppointment string `json:"next_appointment"`

	TraumaCounseling    string `json:"trauma_counseling"`
	AdherenceCounseling string `json:"adherence_counseling"`
	PEPRefill           string `json:"pep_refill"`
	PEPCompletion       string `json:"pep_completion"`

	HIVTest       string `json:"hiv_test"`
	PregnancyTest string `json:"pregnancy_test"`
	HepBTest      string `json:"hep_b_test"`
	SyphilisTest  string `json:"syphilis_test"`

	Hb  *float64 `json:"hb"`
	ALT *int     `json:"alt"`

	TTGiven  string `json:"tt_given"`
	Referral string `json:"referral"`
	Notes    string `json:"notes"`
}

// FollowUp converts the form into a record for the given patient.
func (r *Request) FollowUp(patientID types.ID, recordedBy string) (*FollowUp, error) {
	t, err := ParseType(r.Type)
	if err != nil {
		return nil, err
	}

	returned := r.ReturnedAt
	if returned == "" {
		returned = types.FormatTimestamp(time.Now())
	} else if ts, err := types.ParseTimestamp(returned); err == nil {
		returned = types.FormatTimestamp(ts)
	}

	next := r.NextAppointment
	if next != "" {
		if ts, err := types.ParseTimestamp(next); err == nil {
			next = types.FormatTimestamp(ts)
		}
	}

	return &FollowUp{
		ID:                  types.NewID(),
		PatientID:           patientID,
		Type:                t,
		ReturnedAt:          returned,
		NextAppointment:     next,
		TraumaCounseling:    types.ParseTriState(r.TraumaCounseling),
		AdherenceCounseling: types.ParseTriState(r.AdherenceCounseling),
		PEPRefill:           types.ParseTriState(r.PEPRefill),
		PEPCompletion:       types.ParseTriState(r.PEPCompletion),
		HIVTest:             types.ParseTriState(r.HIVTest),
		PregnancyTest:       types.ParseTriState(r.PregnancyTest),
		HepBTest:            types.ParseTriState(r.HepBTest),
		SyphilisTest:        types.ParseTriState(r.SyphilisTest),
		Hb:                  r.Hb,
		ALT:                 r.ALT,
		TTGiven:             types.ParseTriState(r.TTGiven),
		Referral:            r.Referral,
		Notes:               r.Notes,
		RecordedBy:          recordedBy,
	}, nil
}
