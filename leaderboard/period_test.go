package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	for raw, want := range map[string]Period{
		"weekly":   PeriodWeekly,
		"week":     PeriodWeekly,
		"monthly":  PeriodMonthly,
		"month":    PeriodMonthly,
		"all_time": PeriodAllTime,
		"alltime":  PeriodAllTime,
		"all":      PeriodAllTime,
	} {
		got, err := ParsePeriod(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParsePeriod("fortnight")
	assert.ErrorIs(t, err, ErrUnknownPeriod)
}

func TestWindowSpans(t *testing.T) {
	at := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	start, end, bounded := PeriodWeekly.Window(at)
	assert.True(t, bounded)
	assert.Equal(t, at, end)
	assert.Equal(t, at.Add(-7*24*time.Hour), start)

	start, end, bounded = PeriodMonthly.Window(at)
	assert.True(t, bounded)
	assert.Equal(t, at.Add(-30*24*time.Hour), start)
	assert.Equal(t, at, end)

	_, end, bounded = PeriodAllTime.Window(at)
	assert.False(t, bounded)
	assert.Equal(t, at, end)
}

func TestPreviousWindowIsAdjacentAndEqualLength(t *testing.T) {
	at := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

	curStart, _, _ := PeriodWeekly.Window(at)
	prevStart, prevEnd, ok := PeriodWeekly.PreviousWindow(at)
	require.True(t, ok)
	assert.Equal(t, curStart, prevEnd, "windows must be adjacent")
	assert.Equal(t, 7*24*time.Hour, prevEnd.Sub(prevStart))

	_, _, ok = PeriodAllTime.PreviousWindow(at)
	assert.False(t, ok)
}
