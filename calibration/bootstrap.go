// Package calibration bootstraps a hazard curve from market CDS quotes, one pillar at a time.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/solver"
	"github.com/meenmo/cdslib/utils"
)

// ErrInvalidInput is returned for inputs rejected before calibration starts.
var ErrInvalidInput = errors.New("invalid calibration input")

// PillarError reports the pillar whose solve failed. Calibration stops there.
type PillarError struct {
	Index    int
	Maturity time.Time
	SpreadBP float64
	Err      error
}

func (e *PillarError) Error() string {
	return fmt.Sprintf("calibration: pillar %d (%s, %.4f bp): %v", e.Index, utils.FormatDate(e.Maturity), e.SpreadBP, e.Err)
}

func (e *PillarError) Unwrap() error {
	return e.Err
}

// PillarResult is the outcome of one solved pillar.
type PillarResult struct {
	Maturity   time.Time
	SpreadBP   float64
	HazardRate float64
	Survival   float64
	Iterations int
	Residual   float64
}

// Result is a calibrated curve with per-pillar diagnostics.
type Result struct {
	Curve   *hazard.Curve
	Pillars []PillarResult
}

// Calibrator runs bootstraps with a fixed configuration.
type Calibrator struct {
	cfg Config
	log *logger.Entry
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithLogger replaces the default component logger.
func WithLogger(entry *logger.Entry) Option {
	return func(c *Calibrator) {
		c.log = entry
	}
}

// New returns a Calibrator for cfg.
func New(cfg Config, opts ...Option) *Calibrator {
	c := &Calibrator{
		cfg: cfg,
		log: logger.GetLogger().WithComponent("calibration"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bootstrap calibrates with a default-logger Calibrator.
func Bootstrap(effective time.Time, quotes []cds.Quote, cfg Config) (*Result, error) {
	return New(cfg).Bootstrap(effective, quotes)
}

// Validate checks the quotes and configuration before any solve.
func Validate(effective time.Time, quotes []cds.Quote, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if effective.IsZero() {
		return fmt.Errorf("%w: effective date is required", ErrInvalidInput)
	}
	if len(quotes) == 0 {
		return fmt.Errorf("%w: no quotes", ErrInvalidInput)
	}
	prev := effective
	for i, q := range quotes {
		if !q.Maturity.After(prev) {
			return fmt.Errorf("%w: pillar %d maturity %s is not after %s", ErrInvalidInput, i,
				utils.FormatDate(q.Maturity), utils.FormatDate(prev))
		}
		if math.IsNaN(q.SpreadBP) || math.IsInf(q.SpreadBP, 0) || q.SpreadBP <= 0 {
			return fmt.Errorf("%w: pillar %d spread %g bp must be positive", ErrInvalidInput, i, q.SpreadBP)
		}
		prev = q.Maturity
	}
	return nil
}

// Bootstrap solves the quotes in ascending maturity order.
//
// Each pillar is solved against the rates of all earlier pillars. If a solve fails the run stops
// with a *PillarError and the returned Result holds the pillars solved so far; the curve is left
// unfrozen in that case. On success the curve is frozen.
func (c *Calibrator) Bootstrap(effective time.Time, quotes []cds.Quote) (*Result, error) {
	if err := Validate(effective, quotes, c.cfg); err != nil {
		return nil, err
	}

	// validated above
	ext, _ := hazard.ParseExtrapolation(string(c.cfg.Extrapolation))

	start := time.Now()
	curve := hazard.NewCurve(effective, hazard.WithExtrapolation(ext))
	res := &Result{Curve: curve, Pillars: make([]PillarResult, 0, len(quotes))}
	opts := c.cfg.solverOptions()

	for i, q := range quotes {
		log := c.log.WithFields(logger.Fields{
			"pillar":    i,
			"maturity":  utils.FormatDate(q.Maturity),
			"spread_bp": q.SpreadBP,
		})

		pv, err := cds.NewPillarValuation(q, curve, c.cfg.RecoveryRate, c.cfg.Cycle, c.cfg.NelsonSiegel)
		if err != nil {
			return res, &PillarError{Index: i, Maturity: q.Maturity, SpreadBP: q.SpreadBP, Err: err}
		}

		sol, err := solver.Newton(pv.MTM, pv.DMTM, c.cfg.InitialGuess, opts)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{"last_iterate": sol.Root}).Error("pillar solve failed")
			return res, &PillarError{Index: i, Maturity: q.Maturity, SpreadBP: q.SpreadBP, Err: err}
		}
		if err := curve.Append(q.Maturity, sol.Root); err != nil {
			return res, &PillarError{Index: i, Maturity: q.Maturity, SpreadBP: q.SpreadBP, Err: err}
		}

		survival := curve.Survival(utils.Act360Fraction(effective, q.Maturity), sol.Root)
		if sol.Root < 0 {
			log.WithFields(logger.Fields{"hazard_rate": sol.Root}).Warn("negative hazard rate")
		}
		log.WithFields(logger.Fields{
			"hazard_rate": sol.Root,
			"survival":    survival,
			"iterations":  sol.Iterations,
		}).Debug("pillar solved")

		res.Pillars = append(res.Pillars, PillarResult{
			Maturity:   q.Maturity,
			SpreadBP:   q.SpreadBP,
			HazardRate: sol.Root,
			Survival:   survival,
			Iterations: sol.Iterations,
			Residual:   sol.Residual,
		})
	}

	curve.Freeze()
	logger.LogDuration(c.log, "bootstrap", time.Since(start), logger.Fields{"pillars": len(quotes)})
	return res, nil
}

// HazardMap returns the calibrated rates keyed by pillar date as YYYY-MM-DD.
func (r *Result) HazardMap() map[string]float64 {
	out := make(map[string]float64, len(r.Pillars))
	for _, p := range r.Pillars {
		out[utils.FormatDate(p.Maturity)] = p.HazardRate
	}
	return out
}
