// Package lsh answers nearest-neighbor queries from random-projection hash
// tables. Candidates collected from the buckets a point falls into are
// re-ranked with the exact distance.
package lsh

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/viterin/vek"

	"github.com/23skdu/knngraph/internal/concurrency"
)

// Family selects the hash functions.
type Family int

const (
	// Hyperplane hashes the sign of random projections (angular distance).
	Hyperplane Family = iota
	// Gaussian quantizes 2-stable projections (euclidean distance).
	Gaussian
	// Cauchy quantizes 1-stable projections (manhattan distance).
	Cauchy
)

func (f Family) String() string {
	switch f {
	case Hyperplane:
		return "hyperplane"
	case Gaussian:
		return "gaussian"
	case Cauchy:
		return "cauchy"
	}
	return fmt.Sprintf("family(%d)", int(f))
}

const (
	DefaultTables      = 16
	DefaultProjections = 8
	MaxProjections     = 64
	widthSamplePairs   = 256
)

var (
	ErrEmptyData     = errors.New("lsh: empty data")
	ErrMissingMetric = errors.New("lsh: distance function is required")
	ErrBadParameter  = errors.New("lsh: invalid parameter")
	ErrDimension     = errors.New("lsh: dimension mismatch")
)

// Config controls table construction.
type Config struct {
	Family      Family
	Distance    func(x, y []float64) float64
	Tables      int
	Projections int
	// Width is the bucket width of the quantized families; 0 estimates it
	// from the mean distance of sampled point pairs.
	Width float64
	Seed  uint64
	NJobs int
}

type table struct {
	planes  [][]float64
	offsets []float64
	buckets map[uint64][]int
}

// Index holds the hash tables over a fixed dataset.
type Index struct {
	cfg    Config
	data   [][]float64
	dim    int
	tables []table
}

// Build hashes every row into cfg.Tables tables.
func Build(data [][]float64, cfg Config) (*Index, error) {
	if len(data) == 0 {
		return nil, ErrEmptyData
	}
	if cfg.Distance == nil {
		return nil, ErrMissingMetric
	}
	if cfg.Tables == 0 {
		cfg.Tables = DefaultTables
	}
	if cfg.Projections == 0 {
		cfg.Projections = DefaultProjections
	}
	if cfg.Tables < 1 {
		return nil, fmt.Errorf("%w: tables=%d", ErrBadParameter, cfg.Tables)
	}
	if cfg.Projections < 1 || cfg.Projections > MaxProjections {
		return nil, fmt.Errorf("%w: projections=%d", ErrBadParameter, cfg.Projections)
	}
	if cfg.Width < 0 || math.IsNaN(cfg.Width) {
		return nil, fmt.Errorf("%w: width=%v", ErrBadParameter, cfg.Width)
	}

	dim := len(data[0])
	for _, row := range data {
		if len(row) != dim {
			return nil, ErrDimension
		}
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, 0x5851f42d4c957f2d))
	if cfg.Family != Hyperplane && cfg.Width == 0 {
		cfg.Width = estimateWidth(data, cfg.Distance, rng)
	}

	ix := &Index{cfg: cfg, data: data, dim: dim, tables: make([]table, cfg.Tables)}
	for t := range ix.tables {
		ix.tables[t] = ix.newTable(rng)
	}

	keys := make([][]uint64, len(data))
	err := concurrency.ParallelFor(len(data), cfg.NJobs, func(lo, hi int) error {
		buf := make([]byte, 0, 8*cfg.Projections)
		for i := lo; i < hi; i++ {
			keys[i] = make([]uint64, len(ix.tables))
			for t := range ix.tables {
				keys[i][t] = ix.tables[t].key(data[i], cfg, &buf)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, ks := range keys {
		for t, key := range ks {
			ix.tables[t].buckets[key] = append(ix.tables[t].buckets[key], i)
		}
	}
	return ix, nil
}

// Width reports the bucket width in use.
func (ix *Index) Width() float64 { return ix.cfg.Width }

func (ix *Index) newTable(rng *rand.Rand) table {
	t := table{
		planes:  make([][]float64, ix.cfg.Projections),
		offsets: make([]float64, ix.cfg.Projections),
		buckets: make(map[uint64][]int),
	}
	for p := range t.planes {
		plane := make([]float64, ix.dim)
		for j := range plane {
			if ix.cfg.Family == Cauchy {
				plane[j] = math.Tan(math.Pi * (rng.Float64() - 0.5))
			} else {
				plane[j] = rng.NormFloat64()
			}
		}
		if ix.cfg.Family == Hyperplane {
			if norm := vek.Norm(plane); norm > 0 {
				vek.MulNumber_Inplace(plane, 1/norm)
			}
		} else {
			t.offsets[p] = rng.Float64() * ix.cfg.Width
		}
		t.planes[p] = plane
	}
	return t
}

// key hashes x into a bucket id. Sign families pack bits directly; the
// quantized families hash their integer cells with xxhash.
func (t *table) key(x []float64, cfg Config, buf *[]byte) uint64 {
	if cfg.Family == Hyperplane {
		var sig uint64
		for p, plane := range t.planes {
			if vek.Dot(plane, x) >= 0 {
				sig |= 1 << uint(p)
			}
		}
		return sig
	}
	b := (*buf)[:0]
	for p, plane := range t.planes {
		cell := math.Floor((vek.Dot(plane, x) + t.offsets[p]) / cfg.Width)
		b = binary.LittleEndian.AppendUint64(b, uint64(int64(cell)))
	}
	*buf = b
	return xxhash.Sum64(b)
}

// estimateWidth returns the mean distance between random distinct pairs.
func estimateWidth(data [][]float64, dist func(x, y []float64) float64, rng *rand.Rand) float64 {
	n := len(data)
	if n < 2 {
		return 1
	}
	sum, count := 0.0, 0
	for s := 0; s < widthSamplePairs; s++ {
		i, j := rng.IntN(n), rng.IntN(n)
		if i == j {
			continue
		}
		d := dist(data[i], data[j])
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		sum += d
		count++
	}
	if count == 0 || sum == 0 {
		return 1
	}
	return sum / float64(count)
}

type scored struct {
	idx  int
	dist float64
}

// Query returns up to k nearest indexed rows per query, ordered by (distance,
// index). A query whose buckets hold fewer than k candidates is answered by a
// full scan, so every row is filled when k <= number of indexed rows; extra
// slots hold -1 / -1.
func (ix *Index) Query(queries [][]float64, k int) ([][]int, [][]float64, error) {
	if k < 1 {
		return nil, nil, fmt.Errorf("%w: k=%d", ErrBadParameter, k)
	}
	for _, q := range queries {
		if len(q) != ix.dim {
			return nil, nil, ErrDimension
		}
	}

	n := len(ix.data)
	idx := make([][]int, len(queries))
	dist := make([][]float64, len(queries))
	flatIdx := make([]int, len(queries)*k)
	flatDist := make([]float64, len(queries)*k)

	err := concurrency.ParallelFor(len(queries), ix.cfg.NJobs, func(lo, hi int) error {
		seen := make([]uint32, n)
		var stamp uint32
		buf := make([]byte, 0, 8*ix.cfg.Projections)
		var cands []scored

		for qi := lo; qi < hi; qi++ {
			stamp++
			q := queries[qi]
			cands = cands[:0]
			for t := range ix.tables {
				for _, j := range ix.tables[t].buckets[ix.tables[t].key(q, ix.cfg, &buf)] {
					if seen[j] == stamp {
						continue
					}
					seen[j] = stamp
					cands = append(cands, scored{idx: j})
				}
			}
			if len(cands) < k {
				cands = cands[:0]
				for j := 0; j < n; j++ {
					cands = append(cands, scored{idx: j})
				}
			}
			for c := range cands {
				cands[c].dist = ix.cfg.Distance(q, ix.data[cands[c].idx])
			}
			slices.SortFunc(cands, func(a, b scored) int {
				switch {
				case a.dist < b.dist:
					return -1
				case a.dist > b.dist:
					return 1
				}
				return a.idx - b.idx
			})

			rowIdx := flatIdx[qi*k : (qi+1)*k : (qi+1)*k]
			rowDist := flatDist[qi*k : (qi+1)*k : (qi+1)*k]
			for j := range rowIdx {
				if j < len(cands) {
					rowIdx[j], rowDist[j] = cands[j].idx, cands[j].dist
				} else {
					rowIdx[j], rowDist[j] = -1, -1
				}
			}
			idx[qi], dist[qi] = rowIdx, rowDist
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return idx, dist, nil
}

// BucketStats reports the number of non-empty buckets and the largest bucket
// size across all tables.
func (ix *Index) BucketStats() (buckets, largest int) {
	for _, t := range ix.tables {
		buckets += len(t.buckets)
		for _, members := range t.buckets {
			largest = max(largest, len(members))
		}
	}
	return buckets, largest
}
