package model

import "time"

// DateLayout is the wire and storage format of reservation dates.
const DateLayout = "2006-01-02"

// DateOf strips the clock from t, keeping the calendar date as observed
// in t's own location.  The result is midnight UTC so dates compare with
// Equal and Before regardless of where they came from.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}
