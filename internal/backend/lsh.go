package backend

import (
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/lsh"
)

// LSHParams tunes the hash tables.
type LSHParams struct {
	Tables      int
	Projections int
	// Width of the quantized families; 0 estimates it from the data.
	Width float64
}

// LSH answers approximate queries from random-projection hash tables.
type LSH struct {
	settings Settings
	params   LSHParams
	index    *lsh.Index
}

// NewLSH returns an unbuilt hashing adapter.
func NewLSH(s Settings, p LSHParams) *LSH {
	return &LSH{settings: s, params: p}
}

func (a *LSH) Name() string { return core.KindHashApproximate.String() }

func familyFor(name string) lsh.Family {
	switch name {
	case "euclidean":
		return lsh.Gaussian
	case "manhattan":
		return lsh.Cauchy
	}
	return lsh.Hyperplane
}

func (a *LSH) Build(data [][]float64, k int) (*core.Graph, error) {
	a.index = nil
	ix, err := lsh.Build(data, lsh.Config{
		Family:      familyFor(a.settings.Metric.BackendName),
		Distance:    a.settings.Metric.Compiled.Func(),
		Tables:      a.params.Tables,
		Projections: a.params.Projections,
		Width:       a.params.Width,
		Seed:        a.settings.Seed,
		NJobs:       a.settings.NJobs,
	})
	if err != nil {
		return nil, err
	}
	idx, dist, err := ix.Query(data, k+1)
	if err != nil {
		return nil, err
	}
	a.index = ix
	return excludeSelf(idx, dist, k), nil
}

func (a *LSH) Query(data [][]float64, k int) (*core.Graph, error) {
	if a.index == nil {
		return nil, notBuilt(a.Name())
	}
	idx, dist, err := a.index.Query(data, k)
	if err != nil {
		return nil, err
	}
	return fromRows(idx, dist, k), nil
}
