// Package metric resolves metric descriptors (names or user functions) into
// compiled distance kernels a search backend can call directly.
package metric

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/23skdu/knngraph/internal/metrics"
)

// DistanceFunc is a pairwise distance between two equal-length vectors.
type DistanceFunc func(x, y []float64) float64

// Compiled is a distance kernel ready for backend use. Named metrics are
// compiled at package init; user functions through Compile.
type Compiled struct {
	name       string
	fn         DistanceFunc
	trueMetric bool
	user       bool

	warmOnce sync.Once
}

// Name is the canonical metric name, or the function name for user metrics.
func (c *Compiled) Name() string { return c.name }

// Func returns the scalar kernel.
func (c *Compiled) Func() DistanceFunc { return c.fn }

// Distance evaluates the kernel.
func (c *Compiled) Distance(x, y []float64) float64 { return c.fn(x, y) }

// IsMetric reports whether the kernel satisfies the triangle inequality, which
// metric trees rely on for pruning. User functions are assumed to.
func (c *Compiled) IsMetric() bool { return c.trueMetric }

// UserDefined reports whether the kernel came from Compile.
func (c *Compiled) UserDefined() bool { return c.user }

// DistancesTo writes the distance from q to every row into dst, growing dst
// when needed, and returns it.
func (c *Compiled) DistancesTo(q []float64, rows [][]float64, dst []float64) []float64 {
	if cap(dst) < len(rows) {
		dst = make([]float64, len(rows))
	}
	dst = dst[:len(rows)]
	fn := c.fn
	for i, r := range rows {
		dst[i] = fn(q, r)
	}
	return dst
}

// WarmUp evaluates a user kernel on real data so a broken function fails
// before any backend work starts. It runs on every call since the outcome
// depends on the rows; only the first call is timed. Named kernels never
// fail.
func (c *Compiled) WarmUp(x, y []float64) error {
	if !c.user {
		return nil
	}
	start := time.Now()
	err := c.probe(x, y)
	c.warmOnce.Do(func() {
		metrics.MetricWarmupDurationSeconds.Observe(time.Since(start).Seconds())
	})
	if err != nil {
		metrics.MetricWarmupErrorsTotal.Inc()
	}
	return err
}

func (c *Compiled) probe(x, y []float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = errors.New(fmt.Sprint(r))
		}
	}()

	for _, d := range []float64{c.fn(x, y), c.fn(x, x)} {
		if math.IsNaN(d) {
			return fmt.Errorf("metric %s: distance is NaN", c.name)
		}
	}
	return nil
}
