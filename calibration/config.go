package calibration

import (
	"fmt"
	"math"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/marketdata"
	"github.com/meenmo/cdslib/solver"
)

// Config holds the model and solver parameters of a calibration run.
type Config struct {
	// NelsonSiegel parameterizes the discount curve.
	NelsonSiegel discount.NelsonSiegel

	// RecoveryRate is the recovery assumption of every calibrating quote.
	RecoveryRate float64

	// Tolerance is the |MTM| bound for Newton convergence, in percent of notional.
	Tolerance float64

	// InitialGuess seeds Newton for every pillar.
	InitialGuess float64

	// DerivativeFloor is the minimum |dMTM/dλ|. Zero means sqrt(machine epsilon).
	DerivativeFloor float64

	// MaxIterations caps Newton steps per pillar. Zero means no cap.
	MaxIterations int

	// Cycle is the coupon cycle of the calibrating quotes.
	Cycle calendar.PaymentCycle

	// Extrapolation is the query policy of the resulting curve past its last pillar.
	Extrapolation hazard.Extrapolation
}

// DefaultConfig returns the reference parameters.
func DefaultConfig() Config {
	return Config{
		NelsonSiegel:  marketdata.DefaultNelsonSiegel,
		RecoveryRate:  marketdata.DefaultRecoveryRate,
		Tolerance:     1e-10,
		InitialGuess:  0.01,
		Cycle:         calendar.StandardCycle,
		Extrapolation: hazard.ExtrapolateFlat,
	}
}

// Validate rejects parameters that cannot produce a calibration.
func (c Config) Validate() error {
	if err := c.NelsonSiegel.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if math.IsNaN(c.RecoveryRate) || c.RecoveryRate < 0 || c.RecoveryRate >= 1 {
		return fmt.Errorf("%w: recovery rate %g outside [0, 1)", ErrInvalidInput, c.RecoveryRate)
	}
	if !(c.Tolerance > 0) || math.IsInf(c.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance must be positive, got %g", ErrInvalidInput, c.Tolerance)
	}
	if math.IsNaN(c.InitialGuess) || math.IsInf(c.InitialGuess, 0) {
		return fmt.Errorf("%w: initial guess must be finite", ErrInvalidInput)
	}
	if c.DerivativeFloor < 0 || c.MaxIterations < 0 {
		return fmt.Errorf("%w: derivative floor and max iterations must be non-negative", ErrInvalidInput)
	}
	if err := c.Cycle.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if _, err := hazard.ParseExtrapolation(string(c.Extrapolation)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}

func (c Config) solverOptions() solver.Options {
	return solver.Options{
		Tolerance:       c.Tolerance,
		DerivativeFloor: c.DerivativeFloor,
		MaxIterations:   c.MaxIterations,
	}
}
