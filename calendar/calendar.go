package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidCycle is returned for a payment cycle that cannot generate dates.
var ErrInvalidCycle = errors.New("invalid payment cycle")

// Anchor is a month/day pair of a recurring payment cycle. The year is irrelevant.
type Anchor struct {
	Month time.Month
	Day   int
}

// PaymentCycle is a quarterly cycle of four anchors in calendar order.
type PaymentCycle [4]Anchor

var (
	// StandardCycle is the Mar/Jun/Sep/Dec 20th cycle of standard CDS contracts.
	StandardCycle = PaymentCycle{
		{Month: time.March, Day: 20},
		{Month: time.June, Day: 20},
		{Month: time.September, Day: 20},
		{Month: time.December, Day: 20},
	}

	// NonStandardCycle is the Jan/Apr/Jul/Oct 15th cycle used for bespoke contracts.
	NonStandardCycle = PaymentCycle{
		{Month: time.January, Day: 15},
		{Month: time.April, Day: 15},
		{Month: time.July, Day: 15},
		{Month: time.October, Day: 15},
	}
)

// Validate checks that months are strictly increasing and every day exists in a non-leap year.
func (c PaymentCycle) Validate() error {
	for i, a := range c {
		if a.Month < time.January || a.Month > time.December {
			return fmt.Errorf("%w: anchor %d has month %d", ErrInvalidCycle, i, a.Month)
		}
		if i > 0 && a.Month <= c[i-1].Month {
			return fmt.Errorf("%w: anchor months must be strictly increasing", ErrInvalidCycle)
		}
		if a.Day < 1 || a.Day > daysInMonth(2015, a.Month) {
			return fmt.Errorf("%w: anchor %d has day %d in %s", ErrInvalidCycle, i, a.Day, a.Month)
		}
	}
	return nil
}

func (c PaymentCycle) anchorDay(m time.Month) (int, bool) {
	for _, a := range c {
		if a.Month == m {
			return a.Day, true
		}
	}
	return 0, false
}

// IsWeekend reports Saturday and Sunday.
func IsWeekend(t time.Time) bool {
	return t.Weekday() == time.Saturday || t.Weekday() == time.Sunday
}

// RollForward moves a weekend date to the following Monday.
func RollForward(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, 2)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

// NextPaymentDate returns the first cycle anchor date strictly after t, rolled forward off weekends.
//
// The search walks month by month from t's month. Inside an anchor month the anchor is taken
// only if its day is still ahead of t; otherwise the search moves on to the next month.
func NextPaymentDate(t time.Time, cycle PaymentCycle) (time.Time, error) {
	if err := cycle.Validate(); err != nil {
		return time.Time{}, err
	}
	year, month := t.Year(), t.Month()
	for i := 0; i <= 12; i++ {
		if day, ok := cycle.anchorDay(month); ok {
			candidate := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
			if candidate.After(t) {
				return RollForward(candidate), nil
			}
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	// unreachable for a validated cycle
	return time.Time{}, fmt.Errorf("%w: no anchor after %s", ErrInvalidCycle, t.Format("2006-01-02"))
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
