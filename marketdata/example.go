// Package marketdata holds the default curve parameters and the reference CDS market.
package marketdata

import (
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/discount"
)

// DefaultNelsonSiegel is the fixed discount curve used when none is supplied.
var DefaultNelsonSiegel = discount.NelsonSiegel{
	Beta0: 0.04,
	Beta1: -0.02,
	Beta2: 0.015,
	Tau:   2.0,
}

// DefaultRecoveryRate is the recovery assumption of the reference market.
const DefaultRecoveryRate = 0.45

// ExampleEffectiveDate is the trade/effective date of the reference market.
var ExampleEffectiveDate = time.Date(2014, 2, 28, 0, 0, 0, 0, time.UTC)

// exampleTenors are the unadjusted maturities (20th of the IMM month) and par spreads in bp.
var exampleTenors = []struct {
	tenor    string
	maturity time.Time
	spreadBP float64
}{
	{"6M", time.Date(2014, 9, 20, 0, 0, 0, 0, time.UTC), 103.07},
	{"1Y", time.Date(2015, 3, 20, 0, 0, 0, 0, time.UTC), 109.04},
	{"2Y", time.Date(2016, 3, 20, 0, 0, 0, 0, time.UTC), 117.02},
	{"3Y", time.Date(2017, 3, 20, 0, 0, 0, 0, time.UTC), 123.01},
	{"4Y", time.Date(2018, 3, 20, 0, 0, 0, 0, time.UTC), 128.51},
	{"5Y", time.Date(2019, 3, 20, 0, 0, 0, 0, time.UTC), 133.21},
	{"7Y", time.Date(2021, 3, 20, 0, 0, 0, 0, time.UTC), 140.29},
	{"10Y", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 147.10},
	{"20Y", time.Date(2034, 3, 20, 0, 0, 0, 0, time.UTC), 157.55},
	{"30Y", time.Date(2044, 3, 20, 0, 0, 0, 0, time.UTC), 164.13},
}

// ExampleQuotes returns the ten-pillar reference market with maturities rolled off weekends.
func ExampleQuotes() []cds.Quote {
	quotes := make([]cds.Quote, 0, len(exampleTenors))
	for _, q := range exampleTenors {
		quotes = append(quotes, cds.Quote{
			Maturity: calendar.RollForward(q.maturity),
			SpreadBP: q.spreadBP,
		})
	}
	return quotes
}

// ExampleTenors returns the tenor labels of ExampleQuotes, in the same order.
func ExampleTenors() []string {
	out := make([]string, 0, len(exampleTenors))
	for _, q := range exampleTenors {
		out = append(out, q.tenor)
	}
	return out
}
