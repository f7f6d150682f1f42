package cds

import (
	"fmt"
	"math"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/utils"
)

// protectionScale turns the trapezoid sum into percent of notional: 0.5 (trapezoid) * 100.
const protectionScale = 50.0

// SurvivalFunc is the survival term of the leg sums at t years after the effective date.
// Passing a survival probability gives leg values; passing its derivative with respect to
// a hazard rate gives the derivative of the legs.
type SurvivalFunc func(t float64) float64

type couponPeriod struct {
	start, end float64 // years from effective
	accrual    float64
	dfEnd      float64
}

// Engine holds the time grids and discount factors of one contract.
//
// The grids are built once, so value and derivative evaluations share identical discounting
// and day counts.
type Engine struct {
	contract Contract

	// protection grid s_0 = 0 ... s_K = T and Z(s_k)
	gridTimes []float64
	gridDFs   []float64

	coupons []couponPeriod
}

// NewEngine validates the contract and precomputes its protection grid and coupon schedule.
func NewEngine(c Contract, disc discount.Curve) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if disc == nil {
		return nil, fmt.Errorf("%w: discount curve is required", ErrInvalidContract)
	}

	maturity := utils.Act360Fraction(c.EffectiveDate, c.MaturityDate)
	k := protectionSteps(maturity)
	e := &Engine{
		contract:  c,
		gridTimes: make([]float64, k+1),
		gridDFs:   make([]float64, k+1),
	}
	for i := 0; i <= k; i++ {
		s := float64(i) * maturity / float64(k)
		e.gridTimes[i] = s
		e.gridDFs[i] = disc.DF(s)
	}

	periods, err := calendar.Schedule(c.EffectiveDate, c.MaturityDate, c.Cycle)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidContract, err)
	}
	e.coupons = make([]couponPeriod, 0, len(periods))
	for _, p := range periods {
		accrual := utils.Act360Fraction(p.StartDate, p.EndDate)
		if accrual <= 0 {
			return nil, fmt.Errorf("%w: zero-length coupon period ending %s", ErrInvalidContract, utils.FormatDate(p.EndDate))
		}
		end := utils.Act360Fraction(c.EffectiveDate, p.EndDate)
		e.coupons = append(e.coupons, couponPeriod{
			start:   utils.Act360Fraction(c.EffectiveDate, p.StartDate),
			end:     end,
			accrual: accrual,
			dfEnd:   disc.DF(end),
		})
	}
	return e, nil
}

// protectionSteps is ceil(12T) monthly sub-intervals, at least one.
func protectionSteps(maturity float64) int {
	k := int(math.Ceil(12 * maturity))
	if k < 1 {
		return 1
	}
	return k
}

// Legs evaluates both legs with q as the survival term.
//
//	protection = (1-R) * 50 * sum_k (Z(s_k) + Z(s_k+1)) * (q(s_k) - q(s_k+1))
//	premium    = 0.5 * spread/100 * sum_i accrual_i * Z(t_i) * (q(t_i-1) + q(t_i))
func (e *Engine) Legs(q SurvivalFunc) PV {
	qs := make([]float64, len(e.gridTimes))
	for i, s := range e.gridTimes {
		qs[i] = q(s)
	}
	protection := 0.0
	for i := 0; i+1 < len(qs); i++ {
		protection += (e.gridDFs[i] + e.gridDFs[i+1]) * (qs[i] - qs[i+1])
	}
	protection *= (1 - e.contract.RecoveryRate) * protectionScale

	premium := e.annuity(q) * e.contract.SpreadBP / 100

	return PV{
		ProtectionLeg: protection,
		PremiumLeg:    premium,
		MTM:           protection - premium,
	}
}

// annuity is the premium leg per unit of percent spread.
func (e *Engine) annuity(q SurvivalFunc) float64 {
	sum := 0.0
	for _, cp := range e.coupons {
		sum += cp.accrual * cp.dfEnd * (q(cp.start) + q(cp.end))
	}
	return 0.5 * sum
}

// MTM is protection minus premium under q.
func (e *Engine) MTM(q SurvivalFunc) float64 {
	return e.Legs(q).MTM
}

// ParSpread returns the running spread in bp that sets the MTM to zero under q.
func (e *Engine) ParSpread(q SurvivalFunc) (float64, error) {
	annuity := e.annuity(q)
	if annuity <= 0 {
		return 0, fmt.Errorf("ParSpread: non-positive risky annuity %g", annuity)
	}
	pv := e.Legs(q)
	return pv.ProtectionLeg / annuity * 100, nil
}
