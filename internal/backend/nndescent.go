package backend

import (
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/nndescent"
)

// QueryThreshold is the neighbor-list size at which the NN-descent adapter
// stops growing the graph and searches it instead.
const QueryThreshold = 15

// GraphEngine is the part of a built NN-descent index the adapter uses.
type GraphEngine interface {
	// NeighborGraph returns each indexed point's neighbor list, itself
	// included.
	NeighborGraph() ([][]int, [][]float64)
	Query(data [][]float64, k int) ([][]int, [][]float64, error)
}

// GraphEngineFactory builds a GraphEngine.
type GraphEngineFactory func(data [][]float64, cfg nndescent.Config) (GraphEngine, error)

// DefaultGraphEngine builds an nndescent.Index.
func DefaultGraphEngine(data [][]float64, cfg nndescent.Config) (GraphEngine, error) {
	ix, err := nndescent.Build(data, cfg)
	if err != nil {
		return nil, err
	}
	return ix, nil
}

// NNDescentParams tunes graph construction and search.
type NNDescentParams struct {
	MaxIterations int
	Delta         float64
	Rho           float64
	MaxCandidates int
	SearchEpsilon float64
	// Factory overrides the engine; nil uses DefaultGraphEngine.
	Factory GraphEngineFactory
}

// NNDescent answers approximate queries from a neighbor-descent graph.
type NNDescent struct {
	settings Settings
	params   NNDescentParams
	engine   GraphEngine
}

// NewNNDescent returns an unbuilt graph adapter.
func NewNNDescent(s Settings, p NNDescentParams) *NNDescent {
	if p.Factory == nil {
		p.Factory = DefaultGraphEngine
	}
	return &NNDescent{settings: s, params: p}
}

func (a *NNDescent) Name() string { return core.KindGraphApproximate.String() }

func (a *NNDescent) config(nNeighbors int) nndescent.Config {
	return nndescent.Config{
		NNeighbors:    nNeighbors,
		Distance:      a.settings.Metric.Compiled.Func(),
		MaxIterations: a.params.MaxIterations,
		Delta:         a.params.Delta,
		Rho:           a.params.Rho,
		MaxCandidates: a.params.MaxCandidates,
		Epsilon:       a.params.SearchEpsilon,
		Seed:          a.settings.Seed,
		NJobs:         a.settings.NJobs,
	}
}

// Build grows the graph with one extra neighbor per point, since every
// point is its own nearest neighbor, and drops the point from its row. For
// k at or above QueryThreshold the graph is capped and the rows come from a
// search of the training data.
func (a *NNDescent) Build(data [][]float64, k int) (*core.Graph, error) {
	a.engine = nil
	nNeighbors := k + 1
	if k >= QueryThreshold {
		nNeighbors = QueryThreshold
	}

	engine, err := a.params.Factory(data, a.config(nNeighbors))
	if err != nil {
		return nil, err
	}

	var (
		idx  [][]int
		dist [][]float64
	)
	if k < QueryThreshold {
		idx, dist = engine.NeighborGraph()
	} else {
		idx, dist, err = engine.Query(data, k+1)
		if err != nil {
			return nil, err
		}
	}
	a.engine = engine
	return excludeSelf(idx, dist, k), nil
}

func (a *NNDescent) Query(data [][]float64, k int) (*core.Graph, error) {
	if a.engine == nil {
		return nil, notBuilt(a.Name())
	}
	idx, dist, err := a.engine.Query(data, k)
	if err != nil {
		return nil, err
	}
	return fromRows(idx, dist, k), nil
}
