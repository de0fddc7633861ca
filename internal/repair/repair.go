// Package repair replaces the sentinel entries approximate backends leave in
// neighbor graphs with placeholder neighbors, so downstream consumers never
// see out-of-range indices or non-finite distances.
//
// Rows holding at least one invalid entry are treated as one ad-hoc cluster:
// each invalid entry points at another member of that cluster chosen
// uniformly at random, at an exponentially distributed distance. The
// placeholder is intentionally crude and claims no accuracy.
package repair

import (
	"math/rand/v2"

	"github.com/rs/zerolog"

	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/metrics"
)

// ExponentialRate is the rate of the placeholder distance distribution.
const ExponentialRate = 1.0

// maxRejections bounds the search for an index not yet present in a row
// before a duplicate is accepted.
const maxRejections = 64

// Options configures a repair pass.
type Options struct {
	// Seed makes the replacement draws reproducible.
	Seed uint64
	// SelfExcluded marks graphs whose row r describes indexed point r, so r
	// itself is never drawn. Build results set it; query results do not
	// (query row r is not indexed point r) but still only draw indices below
	// the indexed size.
	SelfExcluded bool
	Backend      string
	Logger       zerolog.Logger
}

// Stats summarizes a repair pass.
type Stats struct {
	Rows    int
	Entries int
}

// Apply repairs g in place. n is the number of indexed points; every index
// in the repaired graph lies in [0, n).
func Apply(g *core.Graph, n int, opts Options) Stats {
	rows, k := g.Shape()
	if rows == 0 || k == 0 || n <= 0 {
		return Stats{}
	}

	var invalid []int
	for i := 0; i < rows; i++ {
		for j := 0; j < k; j++ {
			if g.IsInvalid(i, j, n) {
				invalid = append(invalid, i)
				break
			}
		}
	}
	if len(invalid) == 0 {
		return Stats{}
	}

	// Cluster members must be usable as neighbor indices.
	cluster := make([]int, 0, len(invalid))
	for _, r := range invalid {
		if r < n {
			cluster = append(cluster, r)
		}
	}

	rng := rand.New(rand.NewPCG(opts.Seed, uint64(n)))
	var stats Stats
	for _, r := range invalid {
		self := -1
		if opts.SelfExcluded {
			self = r
		}
		row := g.Indices[r]
		dist := g.Distances[r]

		for j := range row {
			if !g.IsInvalid(r, j, n) {
				continue
			}
			row[j] = pick(row, j, n, self, cluster, rng)
			dist[j] = rng.ExpFloat64() / ExponentialRate
			for dist[j] <= 0 {
				dist[j] = rng.ExpFloat64() / ExponentialRate
			}
			stats.Entries++
		}
		stats.Rows++
	}

	metrics.RepairedRowsTotal.WithLabelValues(opts.Backend).Add(float64(stats.Rows))
	metrics.RepairedEntriesTotal.WithLabelValues(opts.Backend).Add(float64(stats.Entries))
	opts.Logger.Warn().
		Str("backend", opts.Backend).
		Int("rows", stats.Rows).
		Int("entries", stats.Entries).
		Int("indexed", n).
		Msg("Repaired invalid neighbor entries")
	return stats
}

// pick draws the replacement index for slot j of row. It prefers cluster
// members other than self that the row does not already hold, then any
// cluster member other than self, then any index in [0, n) other than self.
// Each tier is sampled uniformly.
func pick(row []int, j, n, self int, cluster []int, rng *rand.Rand) int {
	present := func(v int) bool {
		for s, x := range row {
			if s != j && x == v {
				return true
			}
		}
		return false
	}
	fresh := func(v int) bool { return v != self && !present(v) }

	if len(cluster) > 1 || (len(cluster) == 1 && cluster[0] != self) {
		for attempt := 0; attempt < maxRejections; attempt++ {
			if v := cluster[rng.IntN(len(cluster))]; fresh(v) {
				return v
			}
		}
		// Rejection kept failing: the eligible members are few, so list them.
		var eligible []int
		for _, c := range cluster {
			if fresh(c) {
				eligible = append(eligible, c)
			}
		}
		if len(eligible) == 0 {
			for _, c := range cluster {
				if c != self {
					eligible = append(eligible, c)
				}
			}
		}
		return eligible[rng.IntN(len(eligible))]
	}

	// Cluster exhausted: fall back to the whole index.
	if n == 1 {
		return 0
	}
	var v int
	for attempt := 0; attempt < maxRejections; attempt++ {
		v = rng.IntN(n)
		if fresh(v) {
			return v
		}
	}
	for v == self {
		v = rng.IntN(n)
	}
	return v
}
