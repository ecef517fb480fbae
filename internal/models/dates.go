package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day layout used for history points and profile dates.
const DateLayout = "2006-01-02"

// Layouts accepted for session and set dates, most specific first. The
// zone-less millisecond form is what older clients wrote for local time.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseDate parses an ISO date or date-time string. Zone-less values are UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse date %q", s)
}

// DateMillis returns the epoch milliseconds of an ISO date, or 0 if it does not parse.
func DateMillis(s string) int64 {
	t, err := ParseDate(s)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// Day returns the calendar day (UTC) of an ISO date as YYYY-MM-DD.
func Day(s string) (string, bool) {
	t, err := ParseDate(s)
	if err != nil {
		return "", false
	}
	return t.UTC().Format(DateLayout), true
}
