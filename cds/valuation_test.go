package cds

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/discount"
	"github.com/meenmo/cdslib/hazard"
	"github.com/meenmo/cdslib/utils"
)

type flatDiscount float64

func (r flatDiscount) DF(t float64) float64 {
	return math.Exp(-float64(r) * t)
}

var (
	effective = time.Date(2014, 2, 28, 0, 0, 0, 0, time.UTC)
	nsCurve   = discount.NelsonSiegel{Beta0: 0.04, Beta1: -0.02, Beta2: 0.015, Tau: 2.0}
)

func testContract(maturity time.Time) Contract {
	return Contract{
		EffectiveDate: effective,
		MaturityDate:  maturity,
		SpreadBP:      100,
		RecoveryRate:  0.45,
		Cycle:         calendar.StandardCycle,
	}
}

func TestProtectionSteps(t *testing.T) {
	t.Parallel()

	cases := []struct {
		maturity float64
		want     int
	}{
		{0, 1},
		{1.0 / 360.0, 1},
		{206.0 / 360.0, 7},
		{1, 12},
		{30.5, 366},
	}
	for _, tc := range cases {
		if got := protectionSteps(tc.maturity); got != tc.want {
			t.Fatalf("protectionSteps(%.6f) = %d want %d", tc.maturity, got, tc.want)
		}
	}
}

func TestLegs_ProtectionTelescopes(t *testing.T) {
	t.Parallel()

	// With Z == 1 the protection sum telescopes to (1-R) * 100 * (1 - q(T)).
	c := testContract(time.Date(2019, 3, 20, 0, 0, 0, 0, time.UTC))
	e, err := NewEngine(c, flatDiscount(0))
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	lambda := 0.025
	q := func(t float64) float64 { return math.Exp(-lambda * t) }

	T := utils.Act360Fraction(c.EffectiveDate, c.MaturityDate)
	want := (1 - c.RecoveryRate) * 100 * (1 - q(T))
	pv := e.Legs(q)
	if math.Abs(pv.ProtectionLeg-want) > 1e-12 {
		t.Fatalf("protection mismatch: got %.12f want %.12f", pv.ProtectionLeg, want)
	}
	if math.Abs(pv.MTM-(pv.ProtectionLeg-pv.PremiumLeg)) > 1e-15 {
		t.Fatalf("MTM is not protection minus premium")
	}
}

func TestLegs_PremiumByHand(t *testing.T) {
	t.Parallel()

	c := testContract(time.Date(2015, 3, 20, 0, 0, 0, 0, time.UTC))
	disc := flatDiscount(0.02)
	e, err := NewEngine(c, disc)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}

	// Coupon ends 2014-03-20, 06-20, 09-22, 12-22, 2015-03-20.
	days := []float64{20, 92, 94, 91, 88}
	want := 0.0
	elapsed := 0.0
	for _, d := range days {
		elapsed += d
		want += d / 360 * disc.DF(elapsed/360) * 2
	}
	want *= 0.5 * c.SpreadBP / 100

	pv := e.Legs(func(float64) float64 { return 1 })
	if math.Abs(pv.PremiumLeg-want) > 1e-14 {
		t.Fatalf("premium mismatch: got %.14f want %.14f", pv.PremiumLeg, want)
	}
	if pv.ProtectionLeg != 0 {
		t.Fatalf("protection with no default risk: got %.14f", pv.ProtectionLeg)
	}
}

func TestParSpread_ZeroesMTM(t *testing.T) {
	t.Parallel()

	c := testContract(time.Date(2021, 3, 22, 0, 0, 0, 0, time.UTC))
	e, err := NewEngine(c, nsCurve)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	q := func(t float64) float64 { return math.Exp(-0.03 * t) }

	par, err := e.ParSpread(q)
	if err != nil {
		t.Fatalf("ParSpread error: %v", err)
	}
	c.SpreadBP = par
	atPar, err := NewEngine(c, nsCurve)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	if mtm := atPar.MTM(q); math.Abs(mtm) > 1e-12 {
		t.Fatalf("MTM at par spread %.6f bp: %.3e", par, mtm)
	}
	// Credit triangle: spread ~ (1-R) * lambda.
	if math.Abs(par-0.55*0.03*1e4) > 10 {
		t.Fatalf("par spread %.4f bp far from credit triangle", par)
	}
}

func TestPillarValuation_DerivativeMatchesFiniteDifference(t *testing.T) {
	t.Parallel()

	history := []struct {
		date string
		rate float64
	}{
		{"2014-09-22", 0.0187},
		{"2015-03-20", 0.0210},
		{"2016-03-21", 0.0228},
		{"2017-03-20", 0.0247},
		{"2018-03-20", 0.0267},
	}
	pillars := []struct {
		solved    int
		maturity  string
		spread    float64
		candidate float64
	}{
		{0, "2014-09-22", 103.07, 0.02},
		{2, "2016-03-21", 117.02, 0.025},
		{5, "2019-03-20", 133.21, 0.031},
		{5, "2019-03-20", 133.21, 0.0},
	}

	for _, p := range pillars {
		curve := hazard.NewCurve(effective)
		for _, h := range history[:p.solved] {
			if err := curve.Append(utils.MustParseDate(h.date), h.rate); err != nil {
				t.Fatalf("Append error: %v", err)
			}
		}
		pv, err := NewPillarValuation(Quote{Maturity: utils.MustParseDate(p.maturity), SpreadBP: p.spread},
			curve, 0.45, calendar.StandardCycle, nsCurve)
		if err != nil {
			t.Fatalf("NewPillarValuation error: %v", err)
		}

		const h = 1e-6
		fd := (pv.MTM(p.candidate+h) - pv.MTM(p.candidate-h)) / (2 * h)
		an := pv.DMTM(p.candidate)
		if an <= 0 {
			t.Fatalf("%s: expected positive derivative, got %.10f", p.maturity, an)
		}
		if math.Abs(fd-an) > 1e-6*math.Abs(an) {
			t.Fatalf("%s: analytic %.10f vs finite difference %.10f", p.maturity, an, fd)
		}
	}
}

func TestPillarValuation_ZeroHazardIsAllPremium(t *testing.T) {
	t.Parallel()

	curve := hazard.NewCurve(effective)
	pv, err := NewPillarValuation(Quote{Maturity: time.Date(2015, 3, 20, 0, 0, 0, 0, time.UTC), SpreadBP: 109.04},
		curve, 0.45, calendar.StandardCycle, nsCurve)
	if err != nil {
		t.Fatalf("NewPillarValuation error: %v", err)
	}
	if mtm := pv.MTM(0); mtm >= 0 {
		t.Fatalf("MTM with zero hazard should be negative, got %.10f", mtm)
	}
	prev := pv.MTM(0)
	for _, x := range []float64{0.005, 0.01, 0.02, 0.05, 0.1} {
		cur := pv.MTM(x)
		if cur <= prev {
			t.Fatalf("MTM not increasing in hazard at %.3f", x)
		}
		prev = cur
	}
}

func TestContract_Validate(t *testing.T) {
	t.Parallel()

	maturity := time.Date(2019, 3, 20, 0, 0, 0, 0, time.UTC)
	bad := []Contract{
		{},
		func() Contract { c := testContract(maturity); c.MaturityDate = effective; return c }(),
		func() Contract { c := testContract(maturity); c.RecoveryRate = 1; return c }(),
		func() Contract { c := testContract(maturity); c.RecoveryRate = -0.1; return c }(),
		func() Contract { c := testContract(maturity); c.SpreadBP = math.NaN(); return c }(),
		func() Contract { c := testContract(maturity); c.SpreadBP = -1; return c }(),
		func() Contract { c := testContract(maturity); c.Cycle = calendar.PaymentCycle{}; return c }(),
	}
	for i, c := range bad {
		if err := c.Validate(); !errors.Is(err, ErrInvalidContract) {
			t.Fatalf("case %d: expected ErrInvalidContract, got %v", i, err)
		}
		if _, err := NewEngine(c, nsCurve); !errors.Is(err, ErrInvalidContract) {
			t.Fatalf("case %d: NewEngine expected ErrInvalidContract, got %v", i, err)
		}
	}
	if _, err := NewEngine(testContract(maturity), nil); !errors.Is(err, ErrInvalidContract) {
		t.Fatalf("nil discount curve: expected ErrInvalidContract, got %v", err)
	}
}

func TestCurveSurvival_ForwardStartIsConditional(t *testing.T) {
	t.Parallel()

	const rate = 0.02
	curve := hazard.NewCurve(effective, hazard.WithExtrapolation(hazard.ExtrapolateFlat))
	if err := curve.Append(time.Date(2015, 2, 27, 0, 0, 0, 0, time.UTC), rate); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	curve.Freeze()

	c := testContract(time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC))
	c.EffectiveDate = time.Date(2019, 2, 28, 0, 0, 0, 0, time.UTC)

	surv, err := newCurveSurvival(c, curve)
	if err != nil {
		t.Fatalf("newCurveSurvival error: %v", err)
	}
	if got := surv.at(0); math.Abs(got-1) > 1e-15 {
		t.Fatalf("q(0) = %.15f want 1", got)
	}

	// A flat hazard from the effective date, measured on the contract's own axis.
	conditional := func(s float64) float64 {
		return math.Exp(-rate * utils.Act360Fraction(c.EffectiveDate, utils.HorizonDate(c.EffectiveDate, s)))
	}
	for _, s := range []float64{0.25, 1, 2.5, 5.0 / 360.0 * 365} {
		if got, want := surv.at(s), conditional(s); math.Abs(got-want) > 1e-12 {
			t.Fatalf("q(%.4f) = %.15f want %.15f", s, got, want)
		}
	}

	engine, err := NewEngine(c, nsCurve)
	if err != nil {
		t.Fatalf("NewEngine error: %v", err)
	}
	want := engine.Legs(conditional)
	got, err := Price(c, curve, nsCurve)
	if err != nil {
		t.Fatalf("Price error: %v", err)
	}
	if math.Abs(got.ProtectionLeg-want.ProtectionLeg) > 1e-10 || math.Abs(got.PremiumLeg-want.PremiumLeg) > 1e-10 {
		t.Fatalf("got %+v want %+v", got, want)
	}
}
