package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-09")
	require.NoError(t, err)
	assert.Equal(t, 2025, m.Year)
	assert.Equal(t, time.September, m.Month)
	assert.Equal(t, "2025-09", m.String())

	_, err = ParseMonth("2025-13")
	require.Error(t, err)
	_, err = ParseMonth("september 2025")
	require.Error(t, err)
}

func TestMonthDays(t *testing.T) {
	assert.Equal(t, 30, Month{2025, time.September}.Days())
	assert.Equal(t, 31, Month{2025, time.December}.Days())
	assert.Equal(t, 28, Month{2025, time.February}.Days())
	assert.Equal(t, 29, Month{2024, time.February}.Days())
}

func TestOccurrencesInMonth(t *testing.T) {
	sep := Month{2025, time.September}
	// September 2025 starts on a Monday and has 30 days.
	assert.Equal(t, 5, OccurrencesInMonth(time.Monday, sep))
	assert.Equal(t, 5, OccurrencesInMonth(time.Tuesday, sep))
	assert.Equal(t, 4, OccurrencesInMonth(time.Saturday, sep))
	assert.Equal(t, 4, OccurrencesInMonth(time.Sunday, sep))
}

func TestOccurrencesSumToMonthLength(t *testing.T) {
	months := []Month{
		{2024, time.February},
		{2025, time.February},
		{2025, time.September},
		{2025, time.December},
		{2026, time.January},
	}
	for _, m := range months {
		total := 0
		for wd := time.Sunday; wd <= time.Saturday; wd++ {
			n := OccurrencesInMonth(wd, m)
			assert.GreaterOrEqual(t, n, 4)
			assert.LessOrEqual(t, n, 5)
			total += n
		}
		assert.Equal(t, m.Days(), total, m.String())
	}
}

func TestWeekdayDatesInMonth(t *testing.T) {
	dates := WeekdayDatesInMonth(time.Monday, Month{2025, time.September}, time.UTC)
	require.Len(t, dates, 5)
	days := make([]int, len(dates))
	for i, d := range dates {
		days[i] = d.Day()
		assert.Equal(t, time.Monday, d.Weekday())
	}
	assert.Equal(t, []int{1, 8, 15, 22, 29}, days)
}

func TestRemainingOccurrences(t *testing.T) {
	sep := Month{2025, time.September}
	cancel := time.Date(2025, time.September, 16, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, RemainingOccurrences(time.Monday, sep, cancel))

	// Cancellation on an occurrence day keeps that day.
	onMonday := time.Date(2025, time.September, 22, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, 2, RemainingOccurrences(time.Monday, sep, onMonday))

	afterAll := time.Date(2025, time.September, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, RemainingOccurrences(time.Monday, sep, afterAll))
}

func TestTimeOfDayRoundTrip(t *testing.T) {
	tod, err := ParseTimeOfDay("09:30")
	require.NoError(t, err)
	assert.Equal(t, 570, tod.Minutes())
	assert.Equal(t, "09:30", tod.String())

	_, err = ParseTimeOfDay("25:00")
	require.Error(t, err)
}

func TestTimeOfDayOn(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	tod, _ := ParseTimeOfDay("14:00")
	anchored := tod.On(time.Date(2025, time.September, 8, 0, 0, 0, 0, loc), loc)
	assert.Equal(t, 14, anchored.Hour())
	assert.Equal(t, 8, anchored.Day())
	assert.Equal(t, loc, anchored.Location())
}

func TestNormalizeTimezone(t *testing.T) {
	loc, name := NormalizeTimezone("America/Chicago")
	assert.Equal(t, "America/Chicago", name)
	assert.NotNil(t, loc)

	_, name = NormalizeTimezone("EST")
	assert.Equal(t, "America/New_York", name)

	_, name = NormalizeTimezone("not/a/zone")
	assert.Equal(t, "UTC", name)

	_, name = NormalizeTimezone("")
	assert.Equal(t, "UTC", name)
}
