package reporting

import (
	"time"

	"github.com/openclinic-ke/gbvcare/internal/shared/types"
)

// Period names a reporting window anchored to the current time.
type Period string

const (
	PeriodDaily     Period = "daily"
	PeriodWeekly    Period = "weekly"
	PeriodMonthly   Period = "monthly"
	PeriodQuarterly Period = "quarterly"
	PeriodYearly    Period = "yearly"
	PeriodAll       Period = "all"
)

// Window is a resolved reporting interval. Unbounded windows cover
// the whole dataset.
type Window struct {
	Period  Period    `json:"period"`
	Start   time.Time `json:"start,omitempty"`
	End     time.Time `json:"end,omitempty"`
	Bounded bool      `json:"bounded"`
}

// Resolve maps a period token and optional custom bounds to a window.
// A named period other than "all" always wins over the custom bounds;
// custom bounds apply only with period "all" or empty. Unknown tokens
// and unparseable bounds fall back to the full dataset, so a mistyped
// query still renders a report.
func Resolve(period, from, to string, now time.Time) Window {
	switch Period(period) {
	case PeriodDaily:
		return Window{Period: PeriodDaily, Start: now.AddDate(0, 0, -1), End: now, Bounded: true}
	case PeriodWeekly:
		return Window{Period: PeriodWeekly, Start: now.AddDate(0, 0, -7), End: now, Bounded: true}
	case PeriodMonthly:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{Period: PeriodMonthly, Start: start, End: now, Bounded: true}
	case PeriodQuarterly:
		qm := time.Month((int(now.Month())-1)/3*3 + 1)
		start := time.Date(now.Year(), qm, 1, 0, 0, 0, 0, now.Location())
		return Window{Period: PeriodQuarterly, Start: start, End: now, Bounded: true}
	case PeriodYearly:
		start := time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
		return Window{Period: PeriodYearly, Start: start, End: now, Bounded: true}
	}

	// Custom bounds, when both parse.
	if from != "" && to != "" {
		start, errFrom := types.ParseTimestamp(from)
		end, errTo := types.ParseTimestamp(to)
		if errFrom == nil && errTo == nil {
			// A date-only upper bound covers the whole day.
			if end.Hour() == 0 && end.Minute() == 0 && end.Second() == 0 {
				end = end.Add(24*time.Hour - time.Second)
			}
			return Window{Period: PeriodAll, Start: start, End: end, Bounded: true}
		}
	}

	return Window{Period: PeriodAll}
}

// Bounds renders the window as stored-timestamp bounds for SQL text
// comparison against arrival_at.
func (w Window) Bounds() (string, string) {
	if !w.Bounded {
		return "", ""
	}
	return types.FormatTimestamp(w.Start), types.FormatTimestamp(w.End)
}
