package calendar

import (
	"fmt"
	"time"
)

// Period is one coupon accrual period. EndDate is also the payment date.
type Period struct {
	StartDate time.Time
	EndDate   time.Time
}

// Schedule walks the payment cycle from effective to maturity.
//
// Every period ends on the next payment date after its start; the final period is cut at maturity,
// so a maturity that is not itself a cycle date produces a short last stub.
func Schedule(effective, maturity time.Time, cycle PaymentCycle) ([]Period, error) {
	if !maturity.After(effective) {
		return nil, fmt.Errorf("Schedule: maturity (%s) must be after effective (%s)",
			maturity.Format("2006-01-02"), effective.Format("2006-01-02"))
	}

	var periods []Period
	start := effective
	for start.Before(maturity) {
		end, err := NextPaymentDate(start, cycle)
		if err != nil {
			return nil, fmt.Errorf("Schedule: %w", err)
		}
		if end.After(maturity) {
			end = maturity
		}
		periods = append(periods, Period{StartDate: start, EndDate: end})
		start = end
	}
	return periods, nil
}
