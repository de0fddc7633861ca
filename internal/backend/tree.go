package backend

import (
	"gonum.org/v1/gonum/spatial/vptree"

	"github.com/23skdu/knngraph/internal/concurrency"
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/metric"
)

// TreeParams tunes the exact backend.
type TreeParams struct {
	// Effort is the number of vantage point candidates tried per tree node.
	Effort int
	// BruteForce skips the tree and scans every row.
	BruteForce bool
}

// Tree answers exact queries from a vantage-point tree, or by exhaustive
// scan when the metric breaks the triangle inequality.
type Tree struct {
	settings Settings
	params   TreeParams

	data [][]float64
	tree *vptree.Tree
}

// NewTree returns an unbuilt exact adapter.
func NewTree(s Settings, p TreeParams) *Tree {
	if p.Effort <= 0 {
		p.Effort = 4
	}
	return &Tree{settings: s, params: p}
}

func (t *Tree) Name() string { return core.KindTreeExact.String() }

// UsesTree reports whether searches go through the vantage-point tree.
func (t *Tree) UsesTree() bool {
	return !t.params.BruteForce && t.settings.Metric.Compiled.IsMetric()
}

// point is a row as a vptree.Comparable.
type point struct {
	idx int
	vec []float64
	fn  metric.DistanceFunc
}

func (p point) Distance(c vptree.Comparable) float64 {
	return p.fn(p.vec, c.(point).vec)
}

func (t *Tree) Build(data [][]float64, k int) (*core.Graph, error) {
	t.data = data
	t.tree = nil
	if t.UsesTree() {
		fn := t.settings.Metric.Compiled.Func()
		pts := make([]vptree.Comparable, len(data))
		for i, row := range data {
			pts[i] = point{idx: i, vec: row, fn: fn}
		}
		var tree *vptree.Tree
		err := concurrency.Guard(func() (err error) {
			tree, err = vptree.New(pts, t.params.Effort, nil)
			return err
		})
		if err != nil {
			return nil, err
		}
		t.tree = tree
	}

	g, err := t.search(data, k+1)
	if err != nil {
		return nil, err
	}
	return excludeSelf(g.Indices, g.Distances, k), nil
}

func (t *Tree) Query(data [][]float64, k int) (*core.Graph, error) {
	if t.data == nil {
		return nil, notBuilt(t.Name())
	}
	return t.search(data, k)
}

func (t *Tree) search(queries [][]float64, k int) (*core.Graph, error) {
	out := core.NewGraph(len(queries), k)
	compiled := t.settings.Metric.Compiled
	err := concurrency.ParallelFor(len(queries), t.settings.NJobs, func(lo, hi int) error {
		var (
			dists []float64
			ns    []neighbor
		)
		for qi := lo; qi < hi; qi++ {
			ns = ns[:0]
			if t.tree != nil {
				keep := vptree.NewNKeeper(k)
				t.tree.NearestSet(keep, point{idx: -1, vec: queries[qi], fn: compiled.Func()})
				for _, cd := range keep.Heap {
					if cd.Comparable == nil {
						continue
					}
					ns = append(ns, neighbor{idx: cd.Comparable.(point).idx, dist: cd.Dist})
				}
			} else {
				dists = compiled.DistancesTo(queries[qi], t.data, dists)
				for j, d := range dists {
					ns = append(ns, neighbor{idx: j, dist: d})
				}
			}
			writeSorted(ns, out.Indices[qi], out.Distances[qi])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
