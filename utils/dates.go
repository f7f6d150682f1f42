package utils

import (
	"fmt"
	"math"
	"time"
)

// DateLayout is the YYYY-MM-DD layout used by every input and output.
const DateLayout = "2006-01-02"

// ParseDate converts YYYY-MM-DD to a UTC midnight time.Time.
func ParseDate(strDate string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", strDate, err)
	}
	return t, nil
}

// MustParseDate is ParseDate for literals; it panics on malformed input.
func MustParseDate(strDate string) time.Time {
	t, err := ParseDate(strDate)
	if err != nil {
		panic(err)
	}
	return t
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Days returns the number of calendar days between two dates.
//
// Dates are normalised to UTC midnight first so a DST shift in a local zone
// cannot turn a whole day into 23 or 25 hours.
func Days(start, end time.Time) float64 {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return math.Round(e.Sub(s).Hours() / 24)
}
