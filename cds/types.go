// Package cds values credit default swaps against a hazard curve and a discount curve.
package cds

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/utils"
)

// ErrInvalidContract is returned for contract terms that cannot be valued.
var ErrInvalidContract = errors.New("invalid CDS contract")

// Quote is a market maturity pillar: a weekend-adjusted maturity and its par spread in bp.
type Quote struct {
	Maturity time.Time
	SpreadBP float64
}

// Contract holds the terms of a single-name CDS.
//
// SpreadBP is the running coupon in bp. RecoveryRate is a fraction in [0, 1).
type Contract struct {
	EffectiveDate time.Time
	MaturityDate  time.Time
	SpreadBP      float64
	RecoveryRate  float64
	Cycle         calendar.PaymentCycle
}

// Validate rejects terms that would make either leg degenerate.
func (c Contract) Validate() error {
	if c.EffectiveDate.IsZero() || c.MaturityDate.IsZero() {
		return fmt.Errorf("%w: effective and maturity dates are required", ErrInvalidContract)
	}
	if !c.MaturityDate.After(c.EffectiveDate) {
		return fmt.Errorf("%w: maturity (%s) must be after effective (%s)", ErrInvalidContract,
			utils.FormatDate(c.MaturityDate), utils.FormatDate(c.EffectiveDate))
	}
	if !isFinite(c.RecoveryRate) || c.RecoveryRate < 0 || c.RecoveryRate >= 1 {
		return fmt.Errorf("%w: recovery rate %g outside [0, 1)", ErrInvalidContract, c.RecoveryRate)
	}
	if !isFinite(c.SpreadBP) || c.SpreadBP < 0 {
		return fmt.Errorf("%w: spread %g bp must be non-negative", ErrInvalidContract, c.SpreadBP)
	}
	if err := c.Cycle.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidContract, err)
	}
	return nil
}

// PV holds both legs and the mark-to-market, protection minus premium, in percent of notional.
type PV struct {
	ProtectionLeg float64
	PremiumLeg    float64
	MTM           float64
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
