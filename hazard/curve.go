// Package hazard holds the piecewise-constant default intensity curve built by calibration.
//
// A Curve is anchored at an origin (the effective date of the calibrating contracts) and holds
// one node per solved maturity pillar. The rate of a node applies on the interval that ends at
// the node's date and starts at the previous node's date, or at the origin for the first node.
package hazard

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/meenmo/cdslib/utils"
)

var (
	// ErrMissingHistory is returned when a query needs a rate the curve does not hold.
	ErrMissingHistory = errors.New("missing hazard history")
	// ErrNotIncreasing is returned when a node date does not follow the previous one.
	ErrNotIncreasing = errors.New("hazard node dates must be strictly increasing")
	// ErrFrozen is returned when appending to a frozen curve.
	ErrFrozen = errors.New("hazard curve is frozen")
	// ErrBeforeOrigin is returned for query dates before the curve origin.
	ErrBeforeOrigin = errors.New("date before curve origin")
)

// Extrapolation selects how queries past the last node are answered.
type Extrapolation string

const (
	// ExtrapolateFlat holds the last calibrated rate indefinitely.
	ExtrapolateFlat Extrapolation = "flat"
	// ExtrapolateNone fails with ErrMissingHistory past the last node.
	ExtrapolateNone Extrapolation = "none"
)

// ParseExtrapolation maps a config string to an Extrapolation. Empty means flat.
func ParseExtrapolation(s string) (Extrapolation, error) {
	switch Extrapolation(s) {
	case "", ExtrapolateFlat:
		return ExtrapolateFlat, nil
	case ExtrapolateNone:
		return ExtrapolateNone, nil
	default:
		return "", fmt.Errorf("unknown extrapolation %q", s)
	}
}

// Node is a solved pillar: the hazard rate on the interval ending at Date.
type Node struct {
	Date time.Time
	Rate float64
}

// Curve is an append-only hazard curve. It is safe for concurrent use.
type Curve struct {
	mu            sync.RWMutex
	origin        time.Time
	nodes         []Node
	extrapolation Extrapolation
	frozen        bool
}

// Option configures a Curve.
type Option func(*Curve)

// WithExtrapolation sets the policy for queries past the last node.
func WithExtrapolation(e Extrapolation) Option {
	return func(c *Curve) {
		c.extrapolation = e
	}
}

// NewCurve returns an empty curve anchored at origin.
func NewCurve(origin time.Time, opts ...Option) *Curve {
	c := &Curve{origin: origin, extrapolation: ExtrapolateFlat}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Origin returns the date the hazard integral starts from.
func (c *Curve) Origin() time.Time {
	return c.origin
}

// Extrapolation returns the curve's extrapolation policy.
func (c *Curve) Extrapolation() Extrapolation {
	return c.extrapolation
}

// Append adds the next solved node. Dates must be strictly increasing and after the origin.
func (c *Curve) Append(date time.Time, rate float64) error {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("Append: non-finite rate at %s", utils.FormatDate(date))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrFrozen
	}
	last := c.origin
	if n := len(c.nodes); n > 0 {
		last = c.nodes[n-1].Date
	}
	if !date.After(last) {
		return fmt.Errorf("%w: %s is not after %s", ErrNotIncreasing, utils.FormatDate(date), utils.FormatDate(last))
	}
	c.nodes = append(c.nodes, Node{Date: date, Rate: rate})
	return nil
}

// Freeze makes the curve read-only.
func (c *Curve) Freeze() {
	c.mu.Lock()
	c.frozen = true
	c.mu.Unlock()
}

// Frozen reports whether Freeze has been called.
func (c *Curve) Frozen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frozen
}

// Len returns the number of solved nodes.
func (c *Curve) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.nodes)
}

// Nodes returns a copy of the solved nodes in ascending date order.
func (c *Curve) Nodes() []Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Node, len(c.nodes))
	copy(out, c.nodes)
	return out
}

// Rate returns the solved rate stored under date.
func (c *Curve) Rate(date time.Time) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		if n.Date.Equal(date) {
			return n.Rate, true
		}
	}
	return 0, false
}

// LastDate returns the date of the last node.
func (c *Curve) LastDate() (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.nodes) == 0 {
		return time.Time{}, false
	}
	return c.nodes[len(c.nodes)-1].Date, true
}

// Survival returns exp(-integral of the hazard rate) from the origin to origin+t years.
//
// Solved nodes supply the rate on their own intervals. If the horizon lies past every solved node,
// candidate is used from the last node (or the origin) to the horizon; this is how the rate of the
// pillar being calibrated enters the valuation.
func (c *Curve) Survival(t, candidate float64) float64 {
	integral, _ := c.integrate(utils.HorizonDate(c.origin, t), candidate)
	return math.Exp(-integral)
}

// SurvivalDerivative returns dSurvival/dcandidate = -delta * Survival, where delta is the length of
// the interval carried by candidate. It is zero when the horizon lies inside solved history.
func (c *Curve) SurvivalDerivative(t, candidate float64) float64 {
	integral, delta := c.integrate(utils.HorizonDate(c.origin, t), candidate)
	return -delta * math.Exp(-integral)
}

// integrate returns the hazard integral up to target and the ACT/360 length of the candidate interval.
func (c *Curve) integrate(target time.Time, candidate float64) (float64, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	integral := 0.0
	prev := c.origin
	for _, n := range c.nodes {
		if !n.Date.Before(target) {
			return integral + n.Rate*utils.Act360Fraction(prev, target), 0
		}
		integral += n.Rate * utils.Act360Fraction(prev, n.Date)
		prev = n.Date
	}
	delta := utils.Act360Fraction(prev, target)
	return integral + candidate*delta, delta
}
