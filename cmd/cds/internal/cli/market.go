package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/calibration"
	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/config"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/marketdata"
	"github.com/meenmo/cdslib/utils"
)

// MarketInput describes the calibrating market. Optional fields fall back to the model config.
//
// Conventions:
// - spreads are in bp (e.g., 103.07 means 103.07bp)
// - recovery_rate is a fraction (e.g., 0.45)
// - maturities falling on a weekend are rolled forward
type MarketInput struct {
	EffectiveDate string                 `json:"effective_date"`
	RecoveryRate  *float64               `json:"recovery_rate,omitempty"`
	NelsonSiegel  *discount.NelsonSiegel `json:"nelson_siegel,omitempty"`
	Cycle         string                 `json:"cycle,omitempty"`         // standard | nonstandard
	Extrapolation string                 `json:"extrapolation,omitempty"` // flat | none

	// ExampleMarket calibrates the built-in ten-pillar market; Quotes and EffectiveDate are
	// then optional.
	ExampleMarket bool         `json:"example_market,omitempty"`
	Quotes        []QuoteInput `json:"quotes"`
}

type QuoteInput struct {
	Maturity string  `json:"maturity"`
	SpreadBP float64 `json:"spread_bp"`
}

// PillarOutput is one calibrated pillar.
type PillarOutput struct {
	Maturity   string  `json:"maturity"`
	SpreadBP   float64 `json:"spread_bp"`
	HazardRate float64 `json:"hazard_rate"`
	Survival   float64 `json:"survival"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
}

// Market is a calibrated (or cached) hazard curve plus the discount curve it was built with.
type Market struct {
	Curve    *hazard.Curve
	Discount discount.NelsonSiegel
	Pillars  []PillarOutput
	Cached   bool
}

// calibrationConfig merges the input overrides onto the model config.
func (e *Env) calibrationConfig(in MarketInput) (calibration.Config, error) {
	model := e.Config.Model
	if in.RecoveryRate != nil {
		model.RecoveryRate = *in.RecoveryRate
	}
	if in.NelsonSiegel != nil {
		model.Beta0 = in.NelsonSiegel.Beta0
		model.Beta1 = in.NelsonSiegel.Beta1
		model.Beta2 = in.NelsonSiegel.Beta2
		model.Tau = in.NelsonSiegel.Tau
	}
	if strings.TrimSpace(in.Cycle) != "" {
		model.Cycle = in.Cycle
	}
	if strings.TrimSpace(in.Extrapolation) != "" {
		model.Extrapolation = strings.ToLower(strings.TrimSpace(in.Extrapolation))
	}
	return model.Calibration()
}

// quotes resolves the effective date and the calibrating quotes of in.
func quotes(in MarketInput) (time.Time, []cds.Quote, error) {
	if in.ExampleMarket && len(in.Quotes) == 0 {
		effective := marketdata.ExampleEffectiveDate
		if strings.TrimSpace(in.EffectiveDate) != "" {
			d, err := utils.ParseDate(in.EffectiveDate)
			if err != nil {
				return time.Time{}, nil, fmt.Errorf("invalid effective_date: %w", err)
			}
			effective = d
		}
		return effective, marketdata.ExampleQuotes(), nil
	}

	effective, err := utils.ParseDate(in.EffectiveDate)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("invalid effective_date: %w", err)
	}
	if len(in.Quotes) == 0 {
		return time.Time{}, nil, fmt.Errorf("quotes is required")
	}
	out := make([]cds.Quote, 0, len(in.Quotes))
	for i, q := range in.Quotes {
		m, err := utils.ParseDate(q.Maturity)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("invalid maturity for quote %d: %w", i, err)
		}
		out = append(out, cds.Quote{Maturity: calendar.RollForward(m), SpreadBP: q.SpreadBP})
	}
	return effective, out, nil
}

// Calibrate bootstraps the input market. When a cache path is set the curve is written there.
// On a failed pillar the returned Market holds the pillars solved before it.
func (e *Env) Calibrate(in MarketInput) (*Market, error) {
	cfg, err := e.calibrationConfig(in)
	if err != nil {
		return nil, err
	}
	effective, qs, err := quotes(in)
	if err != nil {
		return nil, err
	}

	res, err := calibration.New(cfg, calibration.WithLogger(e.Log)).Bootstrap(effective, qs)
	var m *Market
	if res != nil {
		m = &Market{Curve: res.Curve, Discount: cfg.NelsonSiegel, Pillars: pillarOutputs(res.Pillars)}
	}
	if err != nil {
		return m, err
	}

	if e.CachePath != "" {
		if err := res.Curve.SaveFile(e.CachePath); err != nil {
			return m, fmt.Errorf("failed to write cache: %w", err)
		}
		e.Log.WithFields(logger.Fields{"path": e.CachePath}).Info("hazard curve cached")
	}
	return m, nil
}

// Curve returns the cached curve when the cache file exists, and calibrates otherwise.
// A cache whose origin differs from the input's effective date is stale: the market is
// recalibrated and the cache rewritten.
func (e *Env) Curve(in MarketInput) (*Market, error) {
	if e.CachePath == "" {
		return e.Calibrate(in)
	}

	curve, err := hazard.LoadFile(e.CachePath)
	switch {
	case err == nil:
	case errors.Is(err, fs.ErrNotExist):
		return e.Calibrate(in)
	default:
		return nil, err
	}

	origin, ok, err := requestedOrigin(in)
	if err != nil {
		return nil, err
	}
	if ok && !origin.Equal(curve.Origin()) {
		e.Log.WithFields(logger.Fields{
			"path":           e.CachePath,
			"cache_origin":   utils.FormatDate(curve.Origin()),
			"effective_date": utils.FormatDate(origin),
		}).Warn("cached curve origin differs from effective date, recalibrating")
		return e.Calibrate(in)
	}

	cfg, err := e.calibrationConfig(in)
	if err != nil {
		return nil, err
	}
	fields := logger.Fields{
		"path":   e.CachePath,
		"origin": utils.FormatDate(curve.Origin()),
		"nodes":  curve.Len(),
	}
	if last, ok := curve.LastDate(); ok {
		fields["last_pillar"] = utils.FormatDate(last)
	}
	e.Log.WithFields(fields).Info("hazard curve loaded from cache")
	return &Market{Curve: curve, Discount: cfg.NelsonSiegel, Cached: true}, nil
}

// requestedOrigin is the effective date the input asks for, if it names one.
func requestedOrigin(in MarketInput) (time.Time, bool, error) {
	if strings.TrimSpace(in.EffectiveDate) != "" {
		d, err := utils.ParseDate(in.EffectiveDate)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("invalid effective_date: %w", err)
		}
		return d, true, nil
	}
	if in.ExampleMarket {
		return marketdata.ExampleEffectiveDate, true, nil
	}
	return time.Time{}, false, nil
}

func pillarOutputs(pillars []calibration.PillarResult) []PillarOutput {
	out := make([]PillarOutput, 0, len(pillars))
	for _, p := range pillars {
		out = append(out, PillarOutput{
			Maturity:   utils.FormatDate(p.Maturity),
			SpreadBP:   p.SpreadBP,
			HazardRate: p.HazardRate,
			Survival:   p.Survival,
			Iterations: p.Iterations,
			Residual:   p.Residual,
		})
	}
	return out
}

// ParseCycle resolves a contract cycle, defaulting to the model config.
func (e *Env) ParseCycle(name string) (calendar.PaymentCycle, error) {
	if strings.TrimSpace(name) == "" {
		name = e.Config.Model.Cycle
	}
	return config.ParseCycle(name)
}
