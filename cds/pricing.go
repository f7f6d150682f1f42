package cds

import (
	"fmt"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/utils"
)

// PillarValuation is the valuation of one market quote against a partially solved hazard curve.
// The hazard rate of the quote's own interval is the free variable.
type PillarValuation struct {
	engine *Engine
	solved *hazard.Curve
}

// NewPillarValuation binds a quote to the solved history. The contract starts at the curve origin
// and pays the quote's spread on cycle.
func NewPillarValuation(q Quote, solved *hazard.Curve, recovery float64, cycle calendar.PaymentCycle, disc discount.Curve) (*PillarValuation, error) {
	if solved == nil {
		return nil, fmt.Errorf("NewPillarValuation: hazard curve is required")
	}
	engine, err := NewEngine(Contract{
		EffectiveDate: solved.Origin(),
		MaturityDate:  q.Maturity,
		SpreadBP:      q.SpreadBP,
		RecoveryRate:  recovery,
		Cycle:         cycle,
	}, disc)
	if err != nil {
		return nil, fmt.Errorf("NewPillarValuation(%s): %w", utils.FormatDate(q.Maturity), err)
	}
	return &PillarValuation{engine: engine, solved: solved}, nil
}

// MTM returns protection minus premium with candidate on the quote's interval.
func (p *PillarValuation) MTM(candidate float64) float64 {
	return p.engine.MTM(func(t float64) float64 {
		return p.solved.Survival(t, candidate)
	})
}

// DMTM returns dMTM/dcandidate.
func (p *PillarValuation) DMTM(candidate float64) float64 {
	return p.engine.MTM(func(t float64) float64 {
		return p.solved.SurvivalDerivative(t, candidate)
	})
}

// curveSurvival adapts the query layer of a curve to a contract's time axis. Survival is
// conditional on no default before the contract's effective date, so at(0) == 1 for a contract
// starting after the curve origin. The first query error is kept in err.
type curveSurvival struct {
	curve    *hazard.Curve
	contract Contract
	atStart  float64
	err      error
}

func (s *curveSurvival) at(t float64) float64 {
	q, err := s.curve.SurvivalAt(utils.HorizonDate(s.contract.EffectiveDate, t))
	if err != nil && s.err == nil {
		s.err = err
	}
	return q / s.atStart
}

func newCurveSurvival(c Contract, curve *hazard.Curve) (*curveSurvival, error) {
	if curve == nil {
		return nil, fmt.Errorf("%w: hazard curve is required", ErrInvalidContract)
	}
	if c.EffectiveDate.Before(curve.Origin()) {
		return nil, fmt.Errorf("%w: effective %s is before curve origin %s: %w", ErrInvalidContract,
			utils.FormatDate(c.EffectiveDate), utils.FormatDate(curve.Origin()), hazard.ErrBeforeOrigin)
	}
	// Survival is non-increasing in time, so coverage of the maturity covers every grid point.
	if _, err := curve.SurvivalAt(c.MaturityDate); err != nil {
		return nil, fmt.Errorf("maturity %s: %w", utils.FormatDate(c.MaturityDate), err)
	}
	atStart, err := curve.SurvivalAt(c.EffectiveDate)
	if err != nil {
		return nil, fmt.Errorf("effective %s: %w", utils.FormatDate(c.EffectiveDate), err)
	}
	if atStart <= 0 {
		return nil, fmt.Errorf("%w: zero survival to effective %s", ErrInvalidContract, utils.FormatDate(c.EffectiveDate))
	}
	return &curveSurvival{curve: curve, contract: c, atStart: atStart}, nil
}

// Price marks a contract to market against a calibrated hazard curve.
//
// The valuation is as of the contract's effective date: discounting runs from that date and
// survival is conditional on no default before it.
//
// Maturities past the last pillar follow the curve's extrapolation policy; with
// hazard.ExtrapolateNone they fail with hazard.ErrMissingHistory.
func Price(c Contract, curve *hazard.Curve, disc discount.Curve) (PV, error) {
	engine, err := NewEngine(c, disc)
	if err != nil {
		return PV{}, fmt.Errorf("Price: %w", err)
	}
	surv, err := newCurveSurvival(c, curve)
	if err != nil {
		return PV{}, fmt.Errorf("Price: %w", err)
	}
	pv := engine.Legs(surv.at)
	if surv.err != nil {
		return PV{}, fmt.Errorf("Price: %w", surv.err)
	}
	return pv, nil
}

// ParSpread returns the running spread in bp at which the contract prices to zero on curve.
func ParSpread(c Contract, curve *hazard.Curve, disc discount.Curve) (float64, error) {
	engine, err := NewEngine(c, disc)
	if err != nil {
		return 0, fmt.Errorf("ParSpread: %w", err)
	}
	surv, err := newCurveSurvival(c, curve)
	if err != nil {
		return 0, fmt.Errorf("ParSpread: %w", err)
	}
	spread, err := engine.ParSpread(surv.at)
	if err != nil {
		return 0, err
	}
	if surv.err != nil {
		return 0, fmt.Errorf("ParSpread: %w", surv.err)
	}
	return spread, nil
}
