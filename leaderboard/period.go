package leaderboard

import (
	"errors"
	"time"
)

// Period selects the aggregation window for a leaderboard.
type Period string

const (
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodAllTime Period = "all_time"
)

// ErrUnknownPeriod is returned when a period string cannot be parsed.
var ErrUnknownPeriod = errors.New("unknown leaderboard period")

// ParsePeriod maps the values accepted on the API to a Period.
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "weekly", "week":
		return PeriodWeekly, nil
	case "monthly", "month":
		return PeriodMonthly, nil
	case "all_time", "alltime", "all":
		return PeriodAllTime, nil
	}
	return "", ErrUnknownPeriod
}

func (p Period) span() time.Duration {
	switch p {
	case PeriodWeekly:
		return 7 * 24 * time.Hour
	case PeriodMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Window returns the period's [start, end) range ending at asOf. Weekly is
// the trailing 7x24h, monthly the trailing 30x24h. For all-time the window is
// unbounded at the start and bounded is false.
func (p Period) Window(asOf time.Time) (start, end time.Time, bounded bool) {
	end = asOf.UTC()
	if span := p.span(); span > 0 {
		return end.Add(-span), end, true
	}
	return time.Time{}, end, false
}

// PreviousWindow returns the equal-length window immediately preceding the
// current one. All-time has no preceding period and reports ok false.
func (p Period) PreviousWindow(asOf time.Time) (start, end time.Time, ok bool) {
	span := p.span()
	if span == 0 {
		return time.Time{}, time.Time{}, false
	}
	end = asOf.UTC().Add(-span)
	return end.Add(-span), end, true
}
