// Package discount provides the deterministic discount curve used by CDS valuation.
package discount

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidParameters is returned by Validate for unusable Nelson-Siegel parameters.
var ErrInvalidParameters = errors.New("invalid Nelson-Siegel parameters")

// Curve maps a time to maturity in years (ACT/360 axis) to a discount factor.
type Curve interface {
	DF(t float64) float64
}

// NelsonSiegel is a fixed Nelson-Siegel zero curve with continuously compounded rates in decimal.
type NelsonSiegel struct {
	// Beta0 is the long-run level.
	Beta0 float64 `json:"beta0" yaml:"beta0"`
	// Beta1 is the slope loading (short end is Beta0 + Beta1).
	Beta1 float64 `json:"beta1" yaml:"beta1"`
	// Beta2 is the curvature loading.
	Beta2 float64 `json:"beta2" yaml:"beta2"`
	// Tau is the decay scale in years.
	Tau float64 `json:"tau" yaml:"tau"`
}

// Validate rejects non-finite loadings and a non-positive decay scale.
func (ns NelsonSiegel) Validate() error {
	for _, v := range []float64{ns.Beta0, ns.Beta1, ns.Beta2, ns.Tau} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidParameters)
		}
	}
	if ns.Tau <= 0 {
		return fmt.Errorf("%w: tau must be positive, got %g", ErrInvalidParameters, ns.Tau)
	}
	return nil
}

// ZeroRate returns the zero rate at t years. t == 0 returns exactly 0.
//
//	r(t) = b0 + b1*(1-e^{-x})/x + b2*((1-e^{-x})/x - e^{-x}),  x = t/tau
func (ns NelsonSiegel) ZeroRate(t float64) float64 {
	if t == 0 {
		return 0
	}
	x := t / ns.Tau
	decay := math.Exp(-x)
	slope := (1 - decay) / x
	return ns.Beta0 + ns.Beta1*slope + ns.Beta2*(slope-decay)
}

// DF returns exp(-r(t)*t).
func (ns NelsonSiegel) DF(t float64) float64 {
	return math.Exp(-ns.ZeroRate(t) * t)
}
