package price

import (
	"fmt"
	"io"
	"strings"

	"github.com/meenmo/cdslib/cds"
	"github.com/meenmo/cdslib/cmd/cds/internal/cli"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/utils"
)

// Summary is the one-line description shown by `cds help`.
const Summary = "Mark CDS contracts to market and solve par spreads"

// ContractInput defines one contract to mark against the calibrated curve.
//
// Conventions:
// - spread_bp is the running coupon in bp
// - effective_date defaults to the curve origin
// - recovery_rate defaults to the market recovery
// - legs and mtm are percent of notional; mtm_amount is in notional units when notional is set
type ContractInput struct {
	ID            string   `json:"id,omitempty"`
	EffectiveDate string   `json:"effective_date,omitempty"`
	MaturityDate  string   `json:"maturity_date"`
	SpreadBP      float64  `json:"spread_bp"`
	RecoveryRate  *float64 `json:"recovery_rate,omitempty"`
	Cycle         string   `json:"cycle,omitempty"` // standard | nonstandard
	Notional      float64  `json:"notional,omitempty"`
}

type Input struct {
	TaskID    string          `json:"task_id,omitempty"`
	Contracts []ContractInput `json:"contracts"`
	cli.MarketInput
}

type ContractOutput struct {
	ID            string  `json:"id,omitempty"`
	EffectiveDate string  `json:"effective_date,omitempty"`
	MaturityDate  string  `json:"maturity_date,omitempty"`
	ProtectionLeg float64 `json:"protection_leg"`
	PremiumLeg    float64 `json:"premium_leg"`
	MTM           float64 `json:"mtm"`
	MTMAmount     float64 `json:"mtm_amount,omitempty"`
	ParSpreadBP   float64 `json:"par_spread_bp"`
	Error         string  `json:"error,omitempty"`
}

type Output struct {
	TaskID    string           `json:"task_id,omitempty"`
	RunID     string           `json:"run_id,omitempty"`
	Cached    bool             `json:"cached,omitempty"`
	Contracts []ContractOutput `json:"contracts,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, flags := cli.NewFlagSet("price", stderr)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if flags.Help {
		usage(stderr)
		return 0
	}
	if cli.NeedsUsage(stdin, flags.Input) {
		usage(stderr)
		return 2
	}

	env, err := cli.Setup("price", flags, stderr)
	if err != nil {
		return cli.WriteError(stdout, fmt.Sprintf("failed to load config: %v", err))
	}
	defer env.Close()

	raw, err := cli.ReadInput(stdin, flags.Input)
	if err != nil {
		return cli.WriteError(stdout, fmt.Sprintf("failed to read input: %v", err))
	}
	inputs, isArray, err := cli.ParseInputs[Input](raw)
	if err != nil {
		return cli.WriteError(stdout, fmt.Sprintf("failed to parse JSON input: %v", err))
	}

	hadError := false
	outputs := make([]Output, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(env, in)
		if err != nil {
			env.Log.WithError(err).WithFields(logger.Fields{"task_id": in.TaskID}).Error("pricing failed")
			hadError = true
			outputs = append(outputs, Output{TaskID: in.TaskID, RunID: env.RunID, Error: err.Error()})
			continue
		}
		for _, c := range out.Contracts {
			if c.Error != "" {
				hadError = true
			}
		}
		outputs = append(outputs, *out)
	}
	cli.WriteOutputs(stdout, outputs, isArray)

	if hadError {
		return 1
	}
	return 0
}

func process(env *cli.Env, in Input) (*Output, error) {
	if len(in.Contracts) == 0 {
		return nil, fmt.Errorf("contracts is required")
	}

	m, err := env.Curve(in.MarketInput)
	if err != nil {
		return nil, err
	}

	recovery := env.Config.Model.RecoveryRate
	if in.RecoveryRate != nil {
		recovery = *in.RecoveryRate
	}

	out := &Output{TaskID: in.TaskID, RunID: env.RunID, Cached: m.Cached}
	for _, ci := range in.Contracts {
		co, err := priceContract(env, m, ci, recovery)
		if err != nil {
			env.Log.WithError(err).WithFields(logger.Fields{"contract": ci.ID}).Warn("contract not priced")
			co = ContractOutput{ID: ci.ID, Error: err.Error()}
		}
		out.Contracts = append(out.Contracts, co)
	}
	return out, nil
}

func priceContract(env *cli.Env, m *cli.Market, in ContractInput, recovery float64) (ContractOutput, error) {
	effective := m.Curve.Origin()
	if strings.TrimSpace(in.EffectiveDate) != "" {
		d, err := utils.ParseDate(in.EffectiveDate)
		if err != nil {
			return ContractOutput{}, fmt.Errorf("invalid effective_date: %w", err)
		}
		effective = d
	}
	maturity, err := utils.ParseDate(in.MaturityDate)
	if err != nil {
		return ContractOutput{}, fmt.Errorf("invalid maturity_date: %w", err)
	}
	if in.RecoveryRate != nil {
		recovery = *in.RecoveryRate
	}
	cycle, err := env.ParseCycle(in.Cycle)
	if err != nil {
		return ContractOutput{}, err
	}

	contract := cds.Contract{
		EffectiveDate: effective,
		MaturityDate:  maturity,
		SpreadBP:      in.SpreadBP,
		RecoveryRate:  recovery,
		Cycle:         cycle,
	}
	pv, err := cds.Price(contract, m.Curve, m.Discount)
	if err != nil {
		return ContractOutput{}, err
	}
	par, err := cds.ParSpread(contract, m.Curve, m.Discount)
	if err != nil {
		return ContractOutput{}, err
	}

	return ContractOutput{
		ID:            in.ID,
		EffectiveDate: utils.FormatDate(effective),
		MaturityDate:  utils.FormatDate(maturity),
		ProtectionLeg: pv.ProtectionLeg,
		PremiumLeg:    pv.PremiumLeg,
		MTM:           pv.MTM,
		MTMAmount:     pv.MTM / 100 * in.Notional,
		ParSpreadBP:   par,
	}, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cds price < input.json")
	fmt.Fprintln(w, "  cds price -input /path/to/input.json [-cache curve.yaml] [-config cds.yaml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Calibrate (or load the cached curve) and mark CDS contracts to market.")
}
