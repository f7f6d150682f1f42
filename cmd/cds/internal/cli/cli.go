// Package cli holds the flag, input and market plumbing shared by the cds subcommands.
package cli

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/meenmo/cdslib/config"
	"github.com/meenmo/cdslib/logger"
)

// Flags are the options every subcommand accepts.
type Flags struct {
	Input  string
	Config string
	Cache  string
	Help   bool
}

// NewFlagSet registers the common flags on a fresh flag set.
func NewFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *Flags) {
	f := &Flags{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&f.Input, "input", "", "JSON input path (optional; if set, ignores stdin)")
	fs.StringVar(&f.Config, "config", "", "YAML config path (defaults to $CDS_CONFIG or ./cds.yaml)")
	fs.StringVar(&f.Cache, "cache", "", "YAML hazard curve cache path (overrides cache.path)")
	fs.BoolVar(&f.Help, "h", false, "Show help")
	fs.BoolVar(&f.Help, "help", false, "Show help")
	return fs, f
}

// Env is the per-invocation state built from flags and config.
type Env struct {
	Config    *config.Config
	Log       *logger.Entry
	CachePath string
	RunID     string

	base *logger.Log
}

// Setup loads the config, configures the process logger and tags it with the command and a
// fresh run id. Log output configured as stderr goes to the given writer. Callers Close the Env
// when done.
func Setup(command string, f *Flags, stderr io.Writer) (*Env, error) {
	cfg, err := config.Load(strings.TrimSpace(f.Config))
	if err != nil {
		return nil, err
	}

	log := logger.GetLogger()
	lc := cfg.Logging
	if err := log.Configure(lc.Level, lc.Format, lc.Output, lc.MaxAge); err != nil {
		return nil, err
	}
	if lc.Output == "stderr" {
		log.SetOutput(stderr)
	}

	cachePath := strings.TrimSpace(f.Cache)
	if cachePath == "" {
		cachePath = cfg.Cache.Path
	}

	runID := uuid.NewString()
	return &Env{
		Config:    cfg,
		Log:       log.WithComponent(command).WithFields(logger.Fields{"run_id": runID}),
		CachePath: cachePath,
		RunID:     runID,
		base:      log,
	}, nil
}

// Close releases a log file opened by Setup.
func (e *Env) Close() error {
	return e.base.Close()
}

// NeedsUsage reports whether no input was given: no -input path and stdin is a terminal.
func NeedsUsage(stdin io.Reader, path string) bool {
	if strings.TrimSpace(path) != "" {
		return false
	}
	if f, ok := stdin.(*os.File); ok {
		if stat, err := f.Stat(); err == nil && (stat.Mode()&os.ModeCharDevice) != 0 {
			return true
		}
	}
	return false
}

func ReadInput(stdin io.Reader, path string) ([]byte, error) {
	path = strings.TrimSpace(path)
	if path != "" {
		return os.ReadFile(path)
	}
	return io.ReadAll(stdin)
}

// ParseInputs accepts a single JSON object or an array of them. The bool reports an array.
func ParseInputs[T any](raw []byte) ([]T, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("empty input")
	}
	if trimmed[0] == '[' {
		var inputs []T
		if err := json.Unmarshal(trimmed, &inputs); err != nil {
			return nil, true, err
		}
		if len(inputs) == 0 {
			return nil, true, fmt.Errorf("empty input array")
		}
		return inputs, true, nil
	}
	var input T
	if err := json.Unmarshal(trimmed, &input); err != nil {
		return nil, false, err
	}
	return []T{input}, false, nil
}

// WriteOutputs prints outputs as an array or, for single-object input, as its only element.
func WriteOutputs[T any](w io.Writer, outputs []T, isArray bool) {
	var b []byte
	if isArray {
		b, _ = json.Marshal(outputs)
	} else {
		b, _ = json.Marshal(outputs[0])
	}
	fmt.Fprintln(w, string(b))
}

// WriteError prints {"error": msg} and returns exit status 1.
func WriteError(w io.Writer, msg string) int {
	b, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{msg})
	fmt.Fprintln(w, string(b))
	return 1
}
