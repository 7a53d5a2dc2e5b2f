package patient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Filter holds the patient list constraints. Zero values mean "no
// constraint"; unparseable values are dropped rather than rejected so
// a stale link still renders an (unfiltered) list.
type Filter struct {
	// Search matches name, OPD number or national ID.
	Search string

	Sex          string
	ViolenceType string
	CaseType     string

	// AgeGroup is "child" (<18), "adult" (>=18) or one of the report
	// bands: 0-9, 10-17, 18-24, 25-49, 50+.
	AgeGroup string

	// FollowUp is "none" (no visits), "partial" (some but not all
	// schedule slots), "complete" (all slots), or a specific slot
	// name such as "2weeks".
	FollowUp string

	// From/To bound the arrival timestamp, inclusive.
	From string
	To   string

	Limit  int
	Offset int
}

// FilterFromQuery builds a Filter from URL query parameters.
func FilterFromQuery(q url.Values) Filter {
	return Filter{
		Search:       strings.TrimSpace(q.Get("search")),
		Sex:          q.Get("sex"),
		ViolenceType: q.Get("violence_type"),
		CaseType:     q.Get("case_type"),
		AgeGroup:     q.Get("age_group"),
		FollowUp:     q.Get("follow_up"),
		From:         q.Get("from"),
		To:           q.Get("to"),
	}
}

// scheduleSlots mirrors the follow-up schedule length. A patient with
// this many recorded visits has completed the schedule.
const scheduleSlots = 4

var followUpSlots = map[string]bool{
	"2weeks":  true,
	"1month":  true,
	"3months": true,
	"6months": true,
}

// Conditions renders the filter as SQL conditions over the patients
// table aliased p, with placeholders starting at argNum. It returns
// the conditions, their arguments and the next placeholder number.
func (f Filter) Conditions(argNum int) ([]string, []any, int) {
	var conditions []string
	var args []any

	if f.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(p.name ILIKE $%d OR p.opd_no ILIKE $%d OR p.national_id ILIKE $%d)",
			argNum, argNum, argNum))
		args = append(args, "%"+f.Search+"%")
		argNum++
	}

	if sex, err := types.ParseSex(f.Sex); err == nil {
		conditions = append(conditions, fmt.Sprintf("p.sex = $%d", argNum))
		args = append(args, string(sex))
		argNum++
	}

	if f.ViolenceType != "" {
		conditions = append(conditions, fmt.Sprintf("p.violence_type = $%d", argNum))
		args = append(args, f.ViolenceType)
		argNum++
	}

	if f.CaseType != "" {
		conditions = append(conditions, fmt.Sprintf("p.case_type = $%d", argNum))
		args = append(args, f.CaseType)
		argNum++
	}

	if cond := ageCondition(f.AgeGroup); cond != "" {
		conditions = append(conditions, cond)
	}

	switch f.FollowUp {
	case "":
		// no constraint
	case "none":
		conditions = append(conditions,
			"NOT EXISTS (SELECT 1 FROM follow_ups f WHERE f.patient_id = p.id)")
	case "partial":
		conditions = append(conditions, fmt.Sprintf(
			"(SELECT COUNT(*) FROM follow_ups f WHERE f.patient_id = p.id) BETWEEN 1 AND %d",
			scheduleSlots-1))
	case "complete":
		conditions = append(conditions, fmt.Sprintf(
			"(SELECT COUNT(*) FROM follow_ups f WHERE f.patient_id = p.id) >= %d",
			scheduleSlots))
	default:
		if followUpSlots[f.FollowUp] {
			conditions = append(conditions, fmt.Sprintf(
				"EXISTS (SELECT 1 FROM follow_ups f WHERE f.patient_id = p.id AND f.followup_type = $%d)",
				argNum))
			args = append(args, f.FollowUp)
			argNum++
		}
		// unknown slot name: no constraint
	}

	if t, err := types.ParseTimestamp(f.From); f.From != "" && err == nil {
		conditions = append(conditions, fmt.Sprintf("p.arrival_at >= $%d", argNum))
		args = append(args, types.FormatTimestamp(t))
		argNum++
	}

	if t, err := types.ParseTimestamp(f.To); f.To != "" && err == nil {
		// A date-only bound covers the whole day.
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && len(f.To) <= len(types.DateLayout) {
			t = t.Add(24*time.Hour - time.Second)
		}
		conditions = append(conditions, fmt.Sprintf("p.arrival_at <= $%d", argNum))
		args = append(args, types.FormatTimestamp(t))
		argNum++
	}

	return conditions, args, argNum
}

// ageCondition maps an age group token to a SQL condition. Unknown
// tokens yield no condition.
func ageCondition(group string) string {
	switch group {
	case "child":
		return "p.age < 18"
	case "adult":
		return "p.age >= 18"
	case "0-9":
		return "p.age BETWEEN 0 AND 9"
	case "10-17":
		return "p.age BETWEEN 10 AND 17"
	case "18-24":
		return "p.age BETWEEN 18 AND 24"
	case "25-49":
		return "p.age BETWEEN 25 AND 49"
	case "50+":
		return "p.age >= 50"
	default:
		return ""
	}
}
