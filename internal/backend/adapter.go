// Package backend adapts each search engine to one build/query contract:
// Build returns the k nearest other points of every indexed point, Query the
// k nearest indexed points of new rows. Both return rows×k graphs; slots an
// approximate engine could not fill hold sentinels for the repair stage.
package backend

import (
	"fmt"
	"slices"

	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/metric"
)

// Adapter is one search strategy behind the index facade.
type Adapter interface {
	Name() string
	Build(data [][]float64, k int) (*core.Graph, error)
	Query(data [][]float64, k int) (*core.Graph, error)
}

// Settings are shared by every adapter.
type Settings struct {
	Metric *metric.Resolved
	Seed   uint64
	NJobs  int
}

// Params bundles the per-backend tuning knobs.
type Params struct {
	Tree      TreeParams
	NNDescent NNDescentParams
	HNSW      HNSWParams
	LSH       LSHParams
}

// Metric capabilities per backend.
var (
	TreeCapability = metric.Capability{
		Backend:   core.KindTreeExact.String(),
		Callables: true,
	}
	NNDescentCapability = metric.Capability{
		Backend:   core.KindGraphApproximate.String(),
		Callables: true,
	}
	HNSWCapability = metric.Capability{
		Backend: core.KindHNSW.String(),
		Names: map[string]string{
			"euclidean": "l2",
			"cosine":    "cosine",
		},
	}
	LSHCapability = metric.Capability{
		Backend: core.KindHashApproximate.String(),
		Names: map[string]string{
			"euclidean": "euclidean",
			"manhattan": "manhattan",
			"cosine":    "cosine",
			"angular":   "angular",
		},
	}
)

// CapabilityOf returns the metric capability of a backend kind.
func CapabilityOf(kind core.Kind) (metric.Capability, error) {
	switch kind {
	case core.KindTreeExact:
		return TreeCapability, nil
	case core.KindGraphApproximate:
		return NNDescentCapability, nil
	case core.KindHNSW:
		return HNSWCapability, nil
	case core.KindHashApproximate:
		return LSHCapability, nil
	}
	return metric.Capability{}, fmt.Errorf("unknown backend kind %q", kind)
}

// New constructs an unbuilt adapter of the given kind.
func New(kind core.Kind, s Settings, p Params) (Adapter, error) {
	switch kind {
	case core.KindTreeExact:
		return NewTree(s, p.Tree), nil
	case core.KindGraphApproximate:
		return NewNNDescent(s, p.NNDescent), nil
	case core.KindHNSW:
		return NewHNSW(s, p.HNSW), nil
	case core.KindHashApproximate:
		return NewLSH(s, p.LSH), nil
	}
	return nil, fmt.Errorf("unknown backend kind %q", kind)
}

// excludeSelf turns raw results over the training rows, fetched with one
// extra neighbor, into a build graph of width k. Row i drops index i and any
// repeated index; whatever is left short of k becomes sentinels.
func excludeSelf(idx [][]int, dist [][]float64, k int) *core.Graph {
	g := core.NewGraph(len(idx), k)
	for i := range idx {
		out := 0
		for j, v := range idx[i] {
			if out == k {
				break
			}
			if v == i || (v >= 0 && slices.Contains(g.Indices[i][:out], v)) {
				continue
			}
			if v < 0 {
				// Keep the sentinel, repair will fill it.
				g.Indices[i][out] = core.SentinelIndex
				g.Distances[i][out] = core.SentinelDistance
				out++
				continue
			}
			g.Indices[i][out] = v
			g.Distances[i][out] = dist[i][j]
			out++
		}
	}
	return g
}

// fromRows copies raw results into a graph of width k, padding short rows
// with sentinels.
func fromRows(idx [][]int, dist [][]float64, k int) *core.Graph {
	g := core.NewGraph(len(idx), k)
	for i := range idx {
		n := min(k, len(idx[i]))
		copy(g.Indices[i][:n], idx[i][:n])
		copy(g.Distances[i][:n], dist[i][:n])
	}
	return g
}

// neighbor is a scored candidate.
type neighbor struct {
	idx  int
	dist float64
}

func compareNeighbors(a, b neighbor) int {
	switch {
	case a.dist < b.dist:
		return -1
	case a.dist > b.dist:
		return 1
	}
	return a.idx - b.idx
}

// writeSorted orders ns by (distance, index) and writes the first len(idx)
// entries; missing entries stay sentinels.
func writeSorted(ns []neighbor, idx []int, dist []float64) {
	slices.SortFunc(ns, compareNeighbors)
	for j := range idx {
		if j >= len(ns) {
			idx[j], dist[j] = core.SentinelIndex, core.SentinelDistance
			continue
		}
		idx[j], dist[j] = ns[j].idx, ns[j].dist
	}
}

func notBuilt(name string) error { return core.NewIndexNotBuiltError(name) }
