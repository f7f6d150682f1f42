package survival

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/meenmo/cdslib/cmd/cds/internal/cli"
	"github.com/meenmo/cdslib/logger"
	"github.com/meenmo/cdslib/utils"
)

// Summary is the one-line description shown by `cds help`.
const Summary = "Survival probabilities and hazard rates on a calibrated curve"

// Input is a market plus the dates to evaluate Q(date) on.
type Input struct {
	TaskID string   `json:"task_id,omitempty"`
	Dates  []string `json:"dates"`
	cli.MarketInput
}

type Point struct {
	Date       string  `json:"date"`
	Survival   float64 `json:"survival"`
	HazardRate float64 `json:"hazard_rate"`
}

type Output struct {
	TaskID   string  `json:"task_id,omitempty"`
	RunID    string  `json:"run_id,omitempty"`
	Cached   bool    `json:"cached,omitempty"`
	Survival []Point `json:"survival,omitempty"`
	Error    string  `json:"error,omitempty"`
}

func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs, flags := cli.NewFlagSet("survival", stderr)
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

	env, err := cli.Setup("survival", flags, stderr)
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

	ctx := context.Background()
	hadError := false
	outputs := make([]Output, 0, len(inputs))
	for _, in := range inputs {
		out, err := process(ctx, env, in)
		if err != nil {
			env.Log.WithError(err).WithFields(logger.Fields{"task_id": in.TaskID}).Error("survival query failed")
			hadError = true
			outputs = append(outputs, Output{TaskID: in.TaskID, RunID: env.RunID, Error: err.Error()})
			continue
		}
		outputs = append(outputs, *out)
	}
	cli.WriteOutputs(stdout, outputs, isArray)

	if hadError {
		return 1
	}
	return 0
}

func process(ctx context.Context, env *cli.Env, in Input) (*Output, error) {
	if len(in.Dates) == 0 {
		return nil, fmt.Errorf("dates is required")
	}
	dates := make([]time.Time, 0, len(in.Dates))
	for _, s := range in.Dates {
		d, err := utils.ParseDate(s)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}

	m, err := env.Curve(in.MarketInput)
	if err != nil {
		return nil, err
	}

	qs, err := m.Curve.SurvivalCurve(ctx, dates)
	if err != nil {
		return nil, err
	}

	points := make([]Point, 0, len(dates))
	for i, d := range dates {
		h, err := m.Curve.HazardAt(d)
		if err != nil {
			return nil, err
		}
		points = append(points, Point{Date: utils.FormatDate(d), Survival: qs[i], HazardRate: h})
	}

	return &Output{TaskID: in.TaskID, RunID: env.RunID, Cached: m.Cached, Survival: points}, nil
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cds survival < input.json")
	fmt.Fprintln(w, "  cds survival -input /path/to/input.json [-cache curve.yaml] [-config cds.yaml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Calibrate (or load the cached curve) and output survival probabilities as JSON.")
}
