package cds_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/calibration"
	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/marketdata"
	"github.com/meenmo/cdslib/utils"
)

func calibrate(t *testing.T, ext hazard.Extrapolation) *hazard.Curve {
	t.Helper()
	cfg := calibration.DefaultConfig()
	cfg.Extrapolation = ext
	res, err := calibration.New(cfg, calibration.WithLogger(logger.Discard().WithComponent("test"))).
		Bootstrap(marketdata.ExampleEffectiveDate, marketdata.ExampleQuotes())
	if err != nil {
		t.Fatalf("Bootstrap error: %v", err)
	}
	return res.Curve
}

func TestPrice_CalibratingPillarIsAtPar(t *testing.T) {
	t.Parallel()

	curve := calibrate(t, hazard.ExtrapolateFlat)
	for _, i := range []int{0, 4, 9} {
		q := marketdata.ExampleQuotes()[i]
		c := cds.Contract{
			EffectiveDate: marketdata.ExampleEffectiveDate,
			MaturityDate:  q.Maturity,
			SpreadBP:      q.SpreadBP,
			RecoveryRate:  marketdata.DefaultRecoveryRate,
			Cycle:         calendar.StandardCycle,
		}
		pv, err := cds.Price(c, curve, marketdata.DefaultNelsonSiegel)
		if err != nil {
			t.Fatalf("Price error: %v", err)
		}
		if math.Abs(pv.MTM) > 1e-9 {
			t.Fatalf("pillar %d: MTM %.3e at the quoted spread", i, pv.MTM)
		}
		par, err := cds.ParSpread(c, curve, marketdata.DefaultNelsonSiegel)
		if err != nil {
			t.Fatalf("ParSpread error: %v", err)
		}
		if math.Abs(par-q.SpreadBP) > 1e-6 {
			t.Fatalf("pillar %d: par spread %.8f want %.8f", i, par, q.SpreadBP)
		}
	}
}

func TestPrice_NonStandardContract(t *testing.T) {
	t.Parallel()

	curve := calibrate(t, hazard.ExtrapolateFlat)
	c := cds.Contract{
		EffectiveDate: marketdata.ExampleEffectiveDate,
		MaturityDate:  time.Date(2019, 8, 15, 0, 0, 0, 0, time.UTC),
		SpreadBP:      100,
		RecoveryRate:  0.45,
		Cycle:         calendar.NonStandardCycle,
	}
	pv, err := cds.Price(c, curve, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("Price error: %v", err)
	}
	if math.Abs(pv.MTM-1.6567043) > 1e-6 {
		t.Fatalf("MTM mismatch: got %.8f", pv.MTM)
	}
	if pv.MTM <= 0 {
		t.Fatalf("protection buyer paying 100bp below market should be in the money")
	}

	par, err := cds.ParSpread(c, curve, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	// Between the 5Y (133.21) and 7Y (140.29) quotes.
	if par <= 133.21 || par >= 140.29 {
		t.Fatalf("par spread %.6f outside the 5Y-7Y range", par)
	}
	if math.Abs(par-135.0632600) > 1e-5 {
		t.Fatalf("par spread mismatch: got %.8f", par)
	}
}

func TestPrice_ForwardStartConditionsOnEffective(t *testing.T) {
	t.Parallel()

	curve := calibrate(t, hazard.ExtrapolateFlat)
	c := cds.Contract{
		EffectiveDate: utils.MustParseDate("2014-06-16"),
		MaturityDate:  utils.MustParseDate("2019-08-15"),
		SpreadBP:      100,
		RecoveryRate:  0.45,
		Cycle:         calendar.NonStandardCycle,
	}

	atStart, err := curve.SurvivalAt(c.EffectiveDate)
	if err != nil {
		t.Fatalf("SurvivalAt error: %v", err)
	}
	if atStart >= 1 {
		t.Fatalf("expected default risk before the effective date, got Q=%.12f", atStart)
	}

	engine, err := cds.NewEngine(c, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	want := engine.Legs(func(s float64) float64 {
		q, err := curve.SurvivalAt(utils.HorizonDate(c.EffectiveDate, s))
		if err != nil {
			t.Fatalf("SurvivalAt error: %v", err)
		}
		return q / atStart
	})

	got, err := cds.Price(c, curve, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("Price error: %v", err)
	}
	if math.Abs(got.ProtectionLeg-want.ProtectionLeg) > 1e-12 ||
		math.Abs(got.PremiumLeg-want.PremiumLeg) > 1e-12 {
		t.Fatalf("got %+v want %+v", got, want)
	}

	// Conditioning scales both legs alike, so the par spread is that of the unconditional legs.
	par, err := cds.ParSpread(c, curve, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	if math.Abs(par-137.2166105) > 1e-5 {
		t.Fatalf("par spread mismatch: got %.8f", par)
	}
}

func TestPrice_BeyondCalibratedRange(t *testing.T) {
	t.Parallel()

	c := cds.Contract{
		EffectiveDate: marketdata.ExampleEffectiveDate,
		MaturityDate:  utils.MustParseDate("2046-07-15"),
		SpreadBP:      170,
		RecoveryRate:  0.45,
		Cycle:         calendar.NonStandardCycle,
	}

	strict := calibrate(t, hazard.ExtrapolateNone)
	if _, err := cds.Price(c, strict, marketdata.DefaultNelsonSiegel); !errors.Is(err, hazard.ErrMissingHistory) {
		t.Fatalf("expected ErrMissingHistory, got %v", err)
	}
	if _, err := cds.ParSpread(c, strict, marketdata.DefaultNelsonSiegel); !errors.Is(err, hazard.ErrMissingHistory) {
		t.Fatalf("expected ErrMissingHistory, got %v", err)
	}

	flat := calibrate(t, hazard.ExtrapolateFlat)
	pv, err := cds.Price(c, flat, marketdata.DefaultNelsonSiegel)
	if err != nil {
		t.Fatalf("Price with flat extrapolation: %v", err)
	}
	if math.IsNaN(pv.MTM) {
		t.Fatalf("MTM is NaN")
	}
}

func TestPrice_Errors(t *testing.T) {
	t.Parallel()

	curve := calibrate(t, hazard.ExtrapolateFlat)
	early := cds.Contract{
		EffectiveDate: utils.MustParseDate("2013-12-20"),
		MaturityDate:  utils.MustParseDate("2019-03-20"),
		SpreadBP:      100,
		RecoveryRate:  0.45,
		Cycle:         calendar.StandardCycle,
	}
	_, err := cds.Price(early, curve, marketdata.DefaultNelsonSiegel)
	if !errors.Is(err, cds.ErrInvalidContract) || !errors.Is(err, hazard.ErrBeforeOrigin) {
		t.Fatalf("expected ErrInvalidContract wrapping ErrBeforeOrigin, got %v", err)
	}

	ok := early
	ok.EffectiveDate = marketdata.ExampleEffectiveDate
	if _, err := cds.Price(ok, nil, marketdata.DefaultNelsonSiegel); !errors.Is(err, cds.ErrInvalidContract) {
		t.Fatalf("nil curve: expected ErrInvalidContract, got %v", err)
	}

	bad := ok
	bad.RecoveryRate = 1
	if _, err := cds.Price(bad, curve, marketdata.DefaultNelsonSiegel); !errors.Is(err, cds.ErrInvalidContract) {
		t.Fatalf("full recovery: expected ErrInvalidContract, got %v", err)
	}
}
