package nndescent

import (
	"container/heap"
	"fmt"

	"github.com/23skdu/knngraph/internal/concurrency"
	"github.com/23skdu/knngraph/internal/core"
)

// minSeeds is the smallest number of random entry points per query.
const minSeeds = 10

// Query finds approximate k nearest indexed points for each query row by
// best-first search over the neighbor graph. Rows are ordered by (distance,
// index); slots the search could not fill hold -1 / -1.
func (ix *Index) Query(queries [][]float64, k int) ([][]int, [][]float64, error) {
	n := len(ix.data)
	if k < 1 || k > n {
		return nil, nil, fmt.Errorf("%w: k=%d with %d indexed points", ErrBadNeighbors, k, n)
	}
	dim := len(ix.data[0])
	for _, q := range queries {
		if len(q) != dim {
			return nil, nil, ErrRaggedDataRows
		}
	}

	out := core.NewGraph(len(queries), k)
	err := concurrency.ParallelFor(len(queries), ix.cfg.NJobs, func(lo, hi int) error {
		s := newSearcher(ix, k)
		for qi := lo; qi < hi; qi++ {
			s.run(queries[qi], qi)
			s.result.sortedInto(out.Indices[qi], out.Distances[qi])
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out.Indices, out.Distances, nil
}

// searcher holds per-worker scratch space.
type searcher struct {
	ix      *Index
	k       int
	visited []uint32
	stamp   uint32
	result  neighborHeap
	front   frontier
}

func newSearcher(ix *Index, k int) *searcher {
	return &searcher{
		ix:      ix,
		k:       k,
		visited: make([]uint32, len(ix.data)),
	}
}

func (s *searcher) run(q []float64, row int) {
	ix := s.ix
	n := len(ix.data)
	dist := ix.cfg.Distance
	scale := 1 + ix.cfg.Epsilon

	s.stamp++
	if s.stamp == 0 {
		clear(s.visited)
		s.stamp = 1
	}
	s.result = newNeighborHeap(s.k)
	s.front = s.front[:0]

	rng := streamFor(ix.cfg.Seed, row)
	seeds := min(n, max(s.k, minSeeds))
	for _, j := range sampleDistinct(rng, n, seeds, -1) {
		s.visited[j] = s.stamp
		d := dist(q, ix.data[j])
		s.result.push(j, d, false)
		heap.Push(&s.front, candidate{idx: j, dist: d})
	}

	for s.front.Len() > 0 {
		c := heap.Pop(&s.front).(candidate)
		if c.dist > s.result.worst()*scale {
			break
		}
		for _, nb := range ix.search[c.idx] {
			if s.visited[nb] == s.stamp {
				continue
			}
			s.visited[nb] = s.stamp
			d := dist(q, ix.data[nb])
			if d < s.result.worst()*scale {
				s.result.push(nb, d, false)
				heap.Push(&s.front, candidate{idx: nb, dist: d})
			}
		}
	}
}
