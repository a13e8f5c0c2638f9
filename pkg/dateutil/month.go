// Package dateutil provides helpers for YYYYMM evaluation-month keys and
// calendar-day arithmetic used by the measurement engines.
package dateutil

import (
	"fmt"
	"time"
)

// MonthLayout is the layout of an evaluation-month key.
const MonthLayout = "200601"

// ParseMonth parses a YYYYMM key into the first day of that month (UTC).
func ParseMonth(key string) (time.Time, error) {
	if len(key) != 6 {
		return time.Time{}, fmt.Errorf("invalid month key %q: expected YYYYMM", key)
	}
	t, err := time.Parse(MonthLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid month key %q: %w", key, err)
	}
	return t, nil
}

// ValidMonth reports whether key is a well-formed YYYYMM string.
func ValidMonth(key string) bool {
	_, err := ParseMonth(key)
	return err == nil
}

// MonthKey formats t as YYYYMM.
func MonthKey(t time.Time) string {
	return t.Format(MonthLayout)
}

// MonthStart returns the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of the month containing t.
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// AddMonths shifts a month key by n calendar months. Invalid keys are returned unchanged.
func AddMonths(key string, n int) string {
	t, err := ParseMonth(key)
	if err != nil {
		return key
	}
	return MonthKey(t.AddDate(0, n, 0))
}

// PrevMonth returns the month key immediately before key.
func PrevMonth(key string) string {
	return AddMonths(key, -1)
}

// MonthsBetween returns the calendar-month distance from a to b (b - a).
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// MonthKeysBetween is MonthsBetween for YYYYMM keys.
func MonthKeysBetween(from, to string) (int, error) {
	a, err := ParseMonth(from)
	if err != nil {
		return 0, err
	}
	b, err := ParseMonth(to)
	if err != nil {
		return 0, err
	}
	return MonthsBetween(a, b), nil
}

// MonthRange returns every month key from from through to, inclusive.
// An empty slice is returned when to precedes from.
func MonthRange(from, to string) ([]string, error) {
	n, err := MonthKeysBetween(from, to)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return []string{}, nil
	}
	months := make([]string, 0, n+1)
	for i := 0; i <= n; i++ {
		months = append(months, AddMonths(from, i))
	}
	return months, nil
}

// DaysInclusive counts calendar days in [from, to]. It returns 0 when to is before from.
func DaysInclusive(from, to time.Time) int {
	from = truncateDay(from)
	to = truncateDay(to)
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours()/24) + 1
}

// OverlapDays counts the days of the month that fall inside [start, end].
func OverlapDays(month time.Time, start, end time.Time) int {
	lo := MonthStart(month)
	hi := MonthEnd(month)
	if start.After(lo) {
		lo = start
	}
	if end.Before(hi) {
		hi = end
	}
	return DaysInclusive(lo, hi)
}

// MaxMonth returns the later of two month keys. Keys compare lexically.
func MaxMonth(a, b string) string {
	if a > b {
		return a
	}
	return b
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
