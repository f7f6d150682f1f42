package utils

import (
	"math"
	"time"
)

// DayCount names a day count convention.
type DayCount string

const (
	Act360  DayCount = "ACT/360"
	Act365F DayCount = "ACT/365F"
)

// DaysPerYear is the Actual/360 year basis used by the survival and discount time axis.
const DaysPerYear = 360.0

// YearFraction computes year fraction between two dates using the specified day count convention.
// Supported conventions: ACT/360, ACT/365F. Anything else falls back to ACT/360.
func YearFraction(start, end time.Time, convention DayCount) float64 {
	switch convention {
	case Act365F:
		return Days(start, end) / 365.0
	default:
		return Days(start, end) / DaysPerYear
	}
}

// Act360Fraction is YearFraction(start, end, Act360).
func Act360Fraction(start, end time.Time) float64 {
	return Days(start, end) / DaysPerYear
}

// HorizonDate converts a year fraction on the ACT/360 axis back to a calendar date.
//
// The day offset is t*360 truncated toward zero. A small guard keeps values such as
// 205.99999999999997 (produced by days/360*360) on the intended day.
func HorizonDate(origin time.Time, t float64) time.Time {
	days := int(math.Floor(t*DaysPerYear + 1e-9))
	return origin.AddDate(0, 0, days)
}
