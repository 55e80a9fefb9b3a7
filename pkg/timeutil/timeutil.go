package timeutil

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month ("YYYY-MM").
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses the canonical YYYY-MM representation.
func ParseMonth(raw string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return Month{}, fmt.Errorf("parse month %q: %w", raw, err)
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// MonthOf returns the calendar month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// String renders the canonical YYYY-MM form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Days returns the number of calendar days in the month.
func (m Month) Days() int {
	// day 0 of the next month is the last day of this one
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// First returns midnight on the first day of the month in loc.
func (m Month) First(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Next returns the following calendar month.
func (m Month) Next() Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// Previous returns the preceding calendar month.
func (m Month) Previous() Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return Month{Year: t.Year(), Month: t.Month()}
}

// OccurrencesInMonth counts how many times the weekday falls within the
// month, using the month's own calendar days.
func OccurrencesInMonth(weekday time.Weekday, m Month) int {
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	firstHit := 1 + offset
	if firstHit > m.Days() {
		return 0
	}
	return 1 + (m.Days()-firstHit)/7
}

// WeekdayDatesInMonth lists every calendar date in the month falling on the
// weekday, as midnights in loc, in ascending order.
func WeekdayDatesInMonth(weekday time.Weekday, m Month, loc *time.Location) []time.Time {
	if loc == nil {
		loc = time.UTC
	}
	first := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	var dates []time.Time
	for day := 1 + offset; day <= m.Days(); day += 7 {
		dates = append(dates, time.Date(m.Year, m.Month, day, 0, 0, 0, 0, loc))
	}
	return dates
}

// RemainingOccurrences counts weekday dates within the month falling on or
// after the given date (compared by calendar day, not instant).
func RemainingOccurrences(weekday time.Weekday, m Month, from time.Time) int {
	fromDay := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	count := 0
	for _, d := range WeekdayDatesInMonth(weekday, m, time.UTC) {
		if !d.Before(fromDay) {
			count++
		}
	}
	return count
}

// TimeOfDay is a wall-clock position expressed in minutes since midnight.
type TimeOfDay int

// ParseTimeOfDay parses the HH:MM representation.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", raw, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

// String renders the HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Minutes returns the minutes-since-midnight value.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

// Duration converts the wall-clock position to a duration since midnight.
func (t TimeOfDay) Duration() time.Duration {
	return time.Duration(t) * time.Minute
}

// On anchors the time of day onto a calendar date in loc.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = date.Location()
	}
	return time.Date(date.Year(), date.Month(), date.Day(), int(t)/60, int(t)%60, 0, 0, loc)
}

// MarshalJSON renders the HH:MM form.
func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts the HH:MM form.
func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value stores the minutes-since-midnight integer.
func (t TimeOfDay) Value() (driver.Value, error) {
	return int64(t), nil
}

// Scan loads the minutes-since-midnight integer.
func (t *TimeOfDay) Scan(value interface{}) error {
	switch v := value.(type) {
	case int64:
		*t = TimeOfDay(v)
		return nil
	case nil:
		*t = 0
		return nil
	default:
		return fmt.Errorf("unsupported type %T for TimeOfDay", value)
	}
}

// timezone aliases seen in stored profile data; the field was free text for a
// long time so a handful of non-IANA spellings survive.
var timezoneAliases = map[string]string{
	"EST":     "America/New_York",
	"EDT":     "America/New_York",
	"CST":     "America/Chicago",
	"CDT":     "America/Chicago",
	"MST":     "America/Denver",
	"MDT":     "America/Denver",
	"PST":     "America/Los_Angeles",
	"PDT":     "America/Los_Angeles",
	"GMT":     "UTC",
	"LONDON":  "Europe/London",
	"CENTRAL": "America/Chicago",
	"EASTERN": "America/New_York",
	"PACIFIC": "America/Los_Angeles",
}

// NormalizeTimezone resolves a caller-supplied timezone identifier into a
// location, tolerating common aliases. Unresolvable input falls back to UTC;
// the returned name is the identifier actually applied.
func NormalizeTimezone(raw string) (*time.Location, string) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return time.UTC, "UTC"
	}
	if alias, ok := timezoneAliases[strings.ToUpper(name)]; ok {
		name = alias
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC, "UTC"
	}
	return loc, name
}
