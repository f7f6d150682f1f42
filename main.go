package main

import (
	"fmt"
	"os"
	"time"

	"github.com/meenmo/cdslib/calendar"
	"github.com/meenmo/cdslib/calibration"
	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/marketdata"
	"github.com/meenmo/cdslib/utils"
)

func main() {
	cfg := calibration.DefaultConfig()
	res, err := calibration.Bootstrap(marketdata.ExampleEffectiveDate, marketdata.ExampleQuotes(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	tenors := marketdata.ExampleTenors()
	fmt.Printf("%-5s %-10s %9s %11s %10s\n", "Tenor", "Maturity", "Spread", "Hazard", "Survival")
	for i, p := range res.Pillars {
		fmt.Printf("%-5s %-10s %9.2f %11.7f %10.7f\n",
			tenors[i], utils.FormatDate(p.Maturity), p.SpreadBP, p.HazardRate, p.Survival)
	}

	contract := cds.Contract{
		EffectiveDate: marketdata.ExampleEffectiveDate,
		MaturityDate:  time.Date(2019, 8, 15, 0, 0, 0, 0, time.UTC),
		SpreadBP:      100,
		RecoveryRate:  cfg.RecoveryRate,
		Cycle:         calendar.NonStandardCycle,
	}
	pv, err := cds.Price(contract, res.Curve, cfg.NelsonSiegel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	par, err := cds.ParSpread(contract, res.Curve, cfg.NelsonSiegel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Protection leg: %.4f\n", pv.ProtectionLeg)
	fmt.Printf("Premium leg: %.4f\n", pv.PremiumLeg)
	fmt.Printf("MTM: %.4f\n", pv.MTM)
	fmt.Printf("Par spread: %.2f bp\n", par)
}
