package backend

import (
	"github.com/coder/hnsw"

	"github.com/23skdu/knngraph/internal/concurrency"
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/hnswgraph"
)

// HNSWParams tunes the hierarchical navigable small world graph.
type HNSWParams struct {
	// M is the maximum number of neighbors per node on upper layers.
	M int
	// Ml is the level generation factor.
	Ml float64
	// EfConstruction is the candidate list size while inserting.
	EfConstruction int
	// EfSearch is the candidate list size; raised to k+1 when smaller.
	EfSearch int
}

// HNSW answers approximate queries from an hnswgraph.Graph navigated in
// float32 with the coder/hnsw distance kernels.
type HNSW struct {
	settings Settings
	params   HNSWParams

	graph *hnswgraph.Graph
	data  [][]float64
}

// NewHNSW returns an unbuilt HNSW adapter.
func NewHNSW(s Settings, p HNSWParams) *HNSW {
	if p.M <= 0 {
		p.M = hnswgraph.DefaultM
	}
	if p.Ml <= 0 {
		p.Ml = hnswgraph.DefaultMl
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = hnswgraph.DefaultEfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = hnswgraph.DefaultEfSearch
	}
	return &HNSW{settings: s, params: p}
}

func (h *HNSW) Name() string { return core.KindHNSW.String() }

func toFloat32(row []float64) []float32 {
	out := make([]float32, len(row))
	for i, v := range row {
		out[i] = float32(v)
	}
	return out
}

func (h *HNSW) distance() hnsw.DistanceFunc {
	if h.settings.Metric.BackendName == "cosine" {
		return hnsw.CosineDistance
	}
	return hnsw.EuclideanDistance
}

func (h *HNSW) Build(data [][]float64, k int) (*core.Graph, error) {
	h.graph = nil
	vectors := make([][]float32, len(data))
	for i, row := range data {
		vectors[i] = toFloat32(row)
	}
	g, err := hnswgraph.Build(vectors, hnswgraph.Config{
		M:              h.params.M,
		Ml:             h.params.Ml,
		EfConstruction: h.params.EfConstruction,
		Distance:       h.distance(),
		Seed:           h.settings.Seed,
	})
	if err != nil {
		return nil, err
	}

	h.graph = g
	h.data = data
	out, err := h.search(data, k+1)
	if err != nil {
		return nil, err
	}
	return excludeSelf(out.Indices, out.Distances, k), nil
}

func (h *HNSW) Query(data [][]float64, k int) (*core.Graph, error) {
	if h.graph == nil {
		return nil, notBuilt(h.Name())
	}
	return h.search(data, k)
}

// search explores max(EfSearch, k) candidates per query in float32 and
// keeps the k best after re-scoring them with the float64 kernel.
func (h *HNSW) search(queries [][]float64, k int) (*core.Graph, error) {
	ef := max(h.params.EfSearch, k)
	out := core.NewGraph(len(queries), k)
	fn := h.settings.Metric.Compiled.Func()
	err := concurrency.ParallelFor(len(queries), h.settings.NJobs, func(lo, hi int) error {
		s := h.graph.NewSearcher()
		var ns []neighbor
		for qi := lo; qi < hi; qi++ {
			found, err := s.Search(toFloat32(queries[qi]), ef, ef)
			if err != nil {
				return err
			}
			ns = ns[:0]
			for _, c := range found {
				ns = append(ns, neighbor{idx: c.ID, dist: fn(queries[qi], h.data[c.ID])})
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
