package reporting

import "math"

// Count is one bucket in a report breakdown. Pct is the share of the
// report total, to one decimal place.
type Count struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// Pct computes n as a percentage of total, rounded to one decimal.
// A zero total yields 0 rather than NaN.
func Pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}

// ageBands are the fixed report bands used by the ministry template.
var ageBands = []struct {
	Label string
	Min   int
	Max   int // -1 means open-ended
}{
	{"0-9", 0, 9},
	{"10-17", 10, 17},
	{"18-24", 18, 24},
	{"25-49", 25, 49},
	{"50+", 50, -1},
}

// KPIs are the dashboard headline figures, as shares of the report
// total.
type KPIs struct {
	FemalePct   float64 `json:"female_pct"`
	MinorPct    float64 `json:"minor_pct"`
	PEPGivenPct float64 `json:"pep_given_pct"`
	ReferredPct float64 `json:"referred_pct"`
}

// Report is the aggregate view backing the dashboard and exports.
type Report struct {
	Window Window `json:"window"`
	Total  int    `json:"total"`
	KPIs   KPIs   `json:"kpis"`

	ByViolenceType []Count `json:"by_violence_type"`
	BySex          []Count `json:"by_sex"`
	ByAgeBand      []Count `json:"by_age_band"`
	ByMonth        []Count `json:"by_month"`

	// Interventions counts patients whose initial visit records the
	// service as given (tri-state yes).
	Interventions []Count `json:"interventions"`

	FollowUp FollowUpStats `json:"follow_up"`
	Outcomes []Count       `json:"outcomes"`
}

// FollowUpStats buckets patients by schedule progress.
type FollowUpStats struct {
	None          int     `json:"none"`
	Partial       int     `json:"partial"`
	Complete      int     `json:"complete"`
	CompletionPct float64 `json:"completion_pct"`
}
