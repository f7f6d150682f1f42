package hazard

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meenmo/cdslib/utils"
)

// SurvivalAt returns Q(date) from the solved nodes.
//
// Past the last node the last rate is held flat, unless the curve was built with ExtrapolateNone.
func (c *Curve) SurvivalAt(date time.Time) (float64, error) {
	last, err := c.checkQuery(date)
	if err != nil {
		return 0, err
	}
	integral, _ := c.integrate(date, last)
	return math.Exp(-integral), nil
}

// SurvivalAtTime returns Q at origin+t years on the ACT/360 axis.
func (c *Curve) SurvivalAtTime(t float64) (float64, error) {
	return c.SurvivalAt(utils.HorizonDate(c.origin, t))
}

// HazardAt returns the instantaneous hazard rate in force on date.
func (c *Curve) HazardAt(date time.Time) (float64, error) {
	last, err := c.checkQuery(date)
	if err != nil {
		return 0, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, n := range c.nodes {
		if !n.Date.Before(date) {
			return n.Rate, nil
		}
	}
	return last, nil
}

// checkQuery validates a query date and returns the last solved rate.
func (c *Curve) checkQuery(date time.Time) (float64, error) {
	if date.Before(c.origin) {
		return 0, fmt.Errorf("%w: %s before %s", ErrBeforeOrigin, utils.FormatDate(date), utils.FormatDate(c.origin))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.nodes) == 0 {
		return 0, fmt.Errorf("%w: curve has no solved nodes", ErrMissingHistory)
	}
	last := c.nodes[len(c.nodes)-1]
	if date.After(last.Date) && c.extrapolation == ExtrapolateNone {
		return 0, fmt.Errorf("%w: %s is after last pillar %s", ErrMissingHistory, utils.FormatDate(date), utils.FormatDate(last.Date))
	}
	return last.Rate, nil
}

// SurvivalCurve evaluates SurvivalAt for every date concurrently. Results keep the input order.
func (c *Curve) SurvivalCurve(ctx context.Context, dates []time.Time) ([]float64, error) {
	out := make([]float64, len(dates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, d := range dates {
		i, d := i, d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			q, err := c.SurvivalAt(d)
			if err != nil {
				return fmt.Errorf("SurvivalCurve: %w", err)
			}
			out[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
