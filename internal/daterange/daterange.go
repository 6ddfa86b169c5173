// Package daterange resolves reporting periods into concrete time windows.
package daterange

import (
	"strings"
	"time"

	"github.com/nikhil/worktrack/internal/apperr"
)

// Period is a reporting granularity.
type Period string

const (
	Daily   Period = "daily"
	Weekly  Period = "weekly"
	Monthly Period = "monthly"
	Yearly  Period = "yearly"
)

// DateLayout is the accepted reference date format.
const DateLayout = "2006-01-02"

// Range is an inclusive window. End is the last millisecond of the final day.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Days returns the number of calendar days covered by the range.
func (r Range) Days() int {
	days := 0
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

// ParsePeriod validates a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case Daily, Weekly, Monthly, Yearly:
		return p, nil
	}
	return "", apperr.Validation("unknown period %q", s)
}

// ParseDate parses a YYYY-MM-DD reference date in loc. An empty string yields now.
func ParseDate(s string, now time.Time, loc *time.Location) (time.Time, error) {
	if s == "" {
		return now.In(loc), nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Resolve returns the period window containing ref, in ref's location.
func Resolve(p Period, ref time.Time) (Range, error) {
	y, m, d := ref.Date()
	loc := ref.Location()
	var start, next time.Time
	switch p {
	case Daily:
		start = time.Date(y, m, d, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 1)
	case Weekly:
		// Monday-start week.
		offset := (int(ref.Weekday()) + 6) % 7
		start = time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 0, 7)
	case Monthly:
		start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case Yearly:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	default:
		return Range{}, apperr.Validation("unknown period %q", string(p))
	}
	return Range{Start: start, End: next.Add(-time.Millisecond)}, nil
}

// Previous returns the window of the same granularity immediately before current.
func Previous(p Period, current Range) (Range, error) {
	return Resolve(p, current.Start.Add(-time.Millisecond))
}

// StartOfDay returns local midnight of t's day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfSundayWeek returns 00:00 of the most recent Sunday on or before t.
// Timer statistics use Sunday weeks; reporting periods use Monday weeks.
func StartOfSundayWeek(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d-int(t.Weekday()), 0, 0, 0, 0, t.Location())
}
