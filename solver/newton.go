// Package solver implements the Newton-Raphson root finder used by curve calibration.
package solver

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrStalled is returned when the derivative magnitude falls to the floor.
	ErrStalled = errors.New("newton: derivative at or below floor")
	// ErrNonFinite is returned when the function or derivative evaluates to NaN or Inf.
	ErrNonFinite = errors.New("newton: non-finite evaluation")
	// ErrMaxIterations is returned when a positive iteration cap is exhausted.
	ErrMaxIterations = errors.New("newton: iteration cap reached")
)

// DefaultDerivativeFloor is sqrt(machine epsilon) for float64.
var DefaultDerivativeFloor = math.Sqrt(math.Nextafter(1, 2) - 1)

// Options controls termination of Newton.
type Options struct {
	// Tolerance is the bound on |f(x)| for success.
	Tolerance float64
	// DerivativeFloor stops the iteration when |f'(x)| <= DerivativeFloor.
	// Zero means DefaultDerivativeFloor.
	DerivativeFloor float64
	// MaxIterations caps the number of Newton steps. Zero means no cap.
	MaxIterations int
}

// Result is a converged root.
type Result struct {
	Root       float64
	Iterations int
	Residual   float64
}

// Newton finds x with |f(x)| <= opts.Tolerance starting from x0, using the analytic derivative df.
//
// On failure the returned Result carries the last iterate so callers can inspect it or re-seed.
func Newton(f, df func(float64) float64, x0 float64, opts Options) (Result, error) {
	floor := opts.DerivativeFloor
	if floor <= 0 {
		floor = DefaultDerivativeFloor
	}

	x := x0
	for iter := 0; ; iter++ {
		fx := f(x)
		if !isFinite(fx) {
			return Result{Root: x, Iterations: iter, Residual: fx}, fmt.Errorf("%w: f(%g) = %g", ErrNonFinite, x, fx)
		}
		if math.Abs(fx) <= opts.Tolerance {
			return Result{Root: x, Iterations: iter, Residual: fx}, nil
		}
		if opts.MaxIterations > 0 && iter >= opts.MaxIterations {
			return Result{Root: x, Iterations: iter, Residual: fx}, fmt.Errorf("%w: %d iterations, |f| = %g", ErrMaxIterations, iter, math.Abs(fx))
		}

		dfx := df(x)
		if !isFinite(dfx) {
			return Result{Root: x, Iterations: iter, Residual: fx}, fmt.Errorf("%w: f'(%g) = %g", ErrNonFinite, x, dfx)
		}
		if math.Abs(dfx) <= floor {
			return Result{Root: x, Iterations: iter, Residual: fx}, fmt.Errorf("%w: |f'(%g)| = %g at iteration %d", ErrStalled, x, math.Abs(dfx), iter)
		}

		x -= fx / dfx
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
