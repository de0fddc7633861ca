// Package nndescent builds approximate k-nearest-neighbor graphs by neighbor
// descent (Dong, Charikar and Li 2011) and searches them greedily for new
// query points.
package nndescent

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/rand/v2"
	"slices"

	"github.com/23skdu/knngraph/internal/concurrency"
)

// Defaults for zero-valued Config fields.
const (
	DefaultDelta         = 0.001
	DefaultRho           = 1.0
	DefaultMaxCandidates = 60
	DefaultEpsilon       = 0.1
	minIterations        = 5
)

var (
	ErrEmptyData      = errors.New("nndescent: empty data")
	ErrBadNeighbors   = errors.New("nndescent: n_neighbors out of range")
	ErrMissingMetric  = errors.New("nndescent: distance function is required")
	ErrRaggedDataRows = errors.New("nndescent: rows have different lengths")
)

// Config controls graph construction and search.
type Config struct {
	// NNeighbors is the size of each point's neighbor list, the point itself
	// included.
	NNeighbors int
	Distance   func(x, y []float64) float64

	// MaxIterations caps refinement rounds; 0 picks max(5, round(log2 n)).
	MaxIterations int
	// Delta stops refinement once a round changes fewer than
	// Delta * n * NNeighbors entries.
	Delta float64
	// Rho is the fraction of each neighbor list sampled per round.
	Rho float64
	// MaxCandidates bounds the per-point candidate lists of a round.
	MaxCandidates int
	// Epsilon widens the search bound during Query.
	Epsilon float64

	Seed  uint64
	NJobs int
}

func (c Config) withDefaults(n int) Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = max(minIterations, int(math.Round(math.Log2(float64(n)))))
	}
	if c.Delta <= 0 {
		c.Delta = DefaultDelta
	}
	if c.Rho <= 0 || c.Rho > 1 {
		c.Rho = DefaultRho
	}
	if c.MaxCandidates <= 0 {
		c.MaxCandidates = DefaultMaxCandidates
	}
	if c.Epsilon < 0 {
		c.Epsilon = DefaultEpsilon
	}
	return c
}

// Index is a built neighbor graph over a fixed dataset.
type Index struct {
	cfg  Config
	data [][]float64

	heaps []neighborHeap
	// adjacency used by Query: forward plus reverse edges, sorted, deduplicated
	search [][]int

	Iterations int
}

// Build constructs the neighbor graph of data. Rows are referenced, not
// copied, and must not change while the Index is in use.
func Build(data [][]float64, cfg Config) (*Index, error) {
	n := len(data)
	if n == 0 {
		return nil, ErrEmptyData
	}
	if cfg.Distance == nil {
		return nil, ErrMissingMetric
	}
	if cfg.NNeighbors < 1 || cfg.NNeighbors > n {
		return nil, fmt.Errorf("%w: %d with %d points", ErrBadNeighbors, cfg.NNeighbors, n)
	}
	dim := len(data[0])
	for _, row := range data {
		if len(row) != dim {
			return nil, ErrRaggedDataRows
		}
	}

	cfg = cfg.withDefaults(n)
	ix := &Index{cfg: cfg, data: data, heaps: make([]neighborHeap, n)}
	for i := range ix.heaps {
		ix.heaps[i] = newNeighborHeap(cfg.NNeighbors)
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0x9e3779b97f4a7c15))
	if err := ix.initRandom(rng); err != nil {
		return nil, err
	}

	k := cfg.NNeighbors
	threshold := cfg.Delta * float64(n) * float64(k)
	for it := 0; it < cfg.MaxIterations; it++ {
		ix.Iterations = it + 1
		updates, err := ix.refine(rng)
		if err != nil {
			return nil, err
		}
		if float64(updates) <= threshold {
			break
		}
	}

	ix.buildSearchGraph()
	return ix, nil
}

// initRandom seeds every list with the point itself and random others.
func (ix *Index) initRandom(rng *rand.Rand) error {
	n := len(ix.data)
	others := min(ix.cfg.NNeighbors-1, n-1)

	picks := make([][]int, n)
	for i := range picks {
		picks[i] = sampleDistinct(rng, n, others, i)
	}

	dists := make([][]float64, n)
	err := concurrency.ParallelFor(n, ix.cfg.NJobs, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			row := make([]float64, len(picks[i]))
			for t, j := range picks[i] {
				row[t] = ix.cfg.Distance(ix.data[i], ix.data[j])
			}
			dists[i] = row
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := range picks {
		ix.heaps[i].push(i, 0, false)
		for t, j := range picks[i] {
			ix.heaps[i].push(j, dists[i][t], true)
			ix.heaps[j].push(i, dists[i][t], true)
		}
	}
	return nil
}

// sampleDistinct draws up to count distinct values from [0, n) other than skip.
func sampleDistinct(rng *rand.Rand, n, count, skip int) []int {
	if count <= 0 {
		return nil
	}
	if count*2 >= n {
		out := make([]int, 0, count)
		for _, v := range rng.Perm(n) {
			if v == skip {
				continue
			}
			out = append(out, v)
			if len(out) == count {
				break
			}
		}
		return out
	}
	out := make([]int, 0, count)
	for len(out) < count {
		v := rng.IntN(n)
		if v == skip || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

type proposal struct {
	p, q int
	d    float64
}

// refine runs one local-join round and returns how many list entries changed.
func (ix *Index) refine(rng *rand.Rand) (int, error) {
	n := len(ix.data)
	maxCand := min(ix.cfg.MaxCandidates, ix.cfg.NNeighbors)

	newCand := make([]neighborHeap, n)
	oldCand := make([]neighborHeap, n)
	for i := range newCand {
		newCand[i] = newNeighborHeap(maxCand)
		oldCand[i] = newNeighborHeap(maxCand)
	}

	// Random priorities turn the bounded heaps into uniform samples.
	for i := range ix.heaps {
		h := &ix.heaps[i]
		for s, j := range h.idx {
			if j < 0 || j == i {
				continue
			}
			if ix.cfg.Rho < 1 && rng.Float64() >= ix.cfg.Rho {
				continue
			}
			prio := rng.Float64()
			if h.isNew[s] {
				newCand[i].push(j, prio, true)
				newCand[j].push(i, prio, true)
			} else {
				oldCand[i].push(j, prio, false)
				oldCand[j].push(i, prio, false)
			}
		}
	}

	for i := range ix.heaps {
		h := &ix.heaps[i]
		for s, j := range h.idx {
			if j >= 0 && h.isNew[s] && newCand[i].contains(j) {
				h.isNew[s] = false
			}
		}
	}

	bound := make([]float64, n)
	for i := range ix.heaps {
		bound[i] = ix.heaps[i].worst()
	}

	proposals := make([][]proposal, n)
	err := concurrency.ParallelFor(n, ix.cfg.NJobs, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			proposals[i] = ix.localJoin(newCand[i].idx, oldCand[i].idx, bound, proposals[i][:0])
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	updates := 0
	for _, ps := range proposals {
		for _, pr := range ps {
			if ix.heaps[pr.p].push(pr.q, pr.d, true) {
				updates++
			}
			if ix.heaps[pr.q].push(pr.p, pr.d, true) {
				updates++
			}
		}
	}
	return updates, nil
}

// localJoin compares new candidates with each other and with old candidates.
// It only reads shared state.
func (ix *Index) localJoin(fresh, stale []int, bound []float64, out []proposal) []proposal {
	dist := ix.cfg.Distance
	for a, p := range fresh {
		if p < 0 {
			continue
		}
		for _, q := range fresh[a+1:] {
			if q < 0 || q == p {
				continue
			}
			d := dist(ix.data[p], ix.data[q])
			if d < bound[p] || d < bound[q] {
				out = append(out, proposal{p: p, q: q, d: d})
			}
		}
		for _, q := range stale {
			if q < 0 || q == p {
				continue
			}
			d := dist(ix.data[p], ix.data[q])
			if d < bound[p] || d < bound[q] {
				out = append(out, proposal{p: p, q: q, d: d})
			}
		}
	}
	return out
}

func (ix *Index) buildSearchGraph() {
	n := len(ix.data)
	adj := make([][]int, n)
	for i := range ix.heaps {
		for _, j := range ix.heaps[i].idx {
			if j < 0 || j == i {
				continue
			}
			adj[i] = append(adj[i], j)
			adj[j] = append(adj[j], i)
		}
	}
	for i := range adj {
		slices.Sort(adj[i])
		adj[i] = slices.Compact(adj[i])
	}
	ix.search = adj
}

// NeighborGraph returns each point's neighbor list ordered by (distance,
// index). Every list normally starts with the point itself; slots the descent
// never filled hold -1 / -1.
func (ix *Index) NeighborGraph() ([][]int, [][]float64) {
	n, k := len(ix.heaps), ix.cfg.NNeighbors
	idx := make([][]int, n)
	dist := make([][]float64, n)
	flatIdx := make([]int, n*k)
	flatDist := make([]float64, n*k)
	for i := range ix.heaps {
		idx[i] = flatIdx[i*k : (i+1)*k : (i+1)*k]
		dist[i] = flatDist[i*k : (i+1)*k : (i+1)*k]
		ix.heaps[i].sortedInto(idx[i], dist[i])
	}
	return idx, dist
}

// streamFor derives an independent RNG stream per query row so results do
// not depend on how rows are split across workers.
func streamFor(seed uint64, row int) *rand.Rand {
	return rand.New(rand.NewPCG(seed, bits.RotateLeft64(uint64(row)+1, 17)^0xd1b54a32d192ed03))
}
