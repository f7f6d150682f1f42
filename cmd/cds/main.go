package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/meenmo/cdslib/cmd/cds/internal/calibrate"
	"github.com/meenmo/cdslib/cmd/cds/internal/price"
	"github.com/meenmo/cdslib/cmd/cds/internal/survival"
)

type command struct {
	name    string
	aliases []string
	summary string
	run     func(args []string, stdin io.Reader, stdout, stderr io.Writer) int
}

// commands run in calibration order: a curve is built once, cached, then queried or priced.
var commands = []command{
	{"calibrate", []string{"bootstrap"}, calibrate.Summary, calibrate.Run},
	{"survival", []string{"q"}, survival.Summary, survival.Run},
	{"price", []string{"mtm"}, price.Summary, price.Run},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return 2
	}

	name := strings.ToLower(strings.TrimSpace(args[0]))
	switch name {
	case "-h", "--help", "help":
		usage(stdout)
		return 0
	}
	if cmd, ok := lookup(name); ok {
		return cmd.run(args[1:], stdin, stdout, stderr)
	}

	fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
	usage(stderr)
	return 2
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
		for _, a := range c.aliases {
			if a == name {
				return c, true
			}
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: cds <command> [-input file.json] [-cache curve.yaml] [-config cds.yaml]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		name := c.name
		if len(c.aliases) > 0 {
			name += " (" + strings.Join(c.aliases, ", ") + ")"
		}
		fmt.Fprintf(w, "  %-24s %s\n", name, c.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "A -cache file written by calibrate is reused by survival and price while its origin")
	fmt.Fprintln(w, "matches the input effective_date. Set CDS_* variables to override cds.yaml.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run `cds <command> -h` for command-specific help.")
}
