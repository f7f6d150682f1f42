package calibrate

import (
	"fmt"
	"io"

	"github.com/meenmo/cdslib/cmd/cds/internal/cli"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/utils"
)

// Summary is the one-line description shown by `cds help`.
const Summary = "Bootstrap a hazard curve from CDS par spreads"

type Input struct {
	TaskID string `json:"task_id,omitempty"`
	cli.MarketInput
}

type Output struct {
	TaskID        string             `json:"task_id,omitempty"`
	RunID         string             `json:"run_id,omitempty"`
	EffectiveDate string             `json:"effective_date,omitempty"`
	Extrapolation string             `json:"extrapolation,omitempty"`
	Pillars       []cli.PillarOutput `json:"pillars,omitempty"`
	Error         string             `json:"error,omitempty"`
}

func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, flags := cli.NewFlagSet("calibrate", stderr)
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

	env, err := cli.Setup("calibrate", flags, stderr)
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
		out := process(env, in)
		if out.Error != "" {
			hadError = true
		}
		outputs = append(outputs, out)
	}
	cli.WriteOutputs(stdout, outputs, isArray)

	if hadError {
		return 1
	}
	return 0
}

// process always recalibrates; -cache only receives the result.
func process(env *cli.Env, in Input) Output {
	out := Output{TaskID: in.TaskID, RunID: env.RunID}

	m, err := env.Calibrate(in.MarketInput)
	if m != nil {
		out.EffectiveDate = utils.FormatDate(m.Curve.Origin())
		out.Extrapolation = string(m.Curve.Extrapolation())
		out.Pillars = m.Pillars
	}
	if err != nil {
		env.Log.WithError(err).WithFields(logger.Fields{"task_id": in.TaskID}).Error("calibration failed")
		out.Error = err.Error()
	}
	return out
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cds calibrate < input.json")
	fmt.Fprintln(w, "  cds calibrate -input /path/to/input.json [-cache curve.yaml] [-config cds.yaml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Bootstrap a hazard curve from CDS par spreads and output the pillars as JSON.")
}
