package knn

import (
	"github.com/rs/zerolog"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/23skdu/knngraph/internal/backend"
	"github.com/23skdu/knngraph/internal/config"
	"github.com/23skdu/knngraph/internal/logging"
)

// TreeParams tunes the exact backend.
type TreeParams struct {
	// Effort is the number of vantage point candidates tried per tree node.
	Effort int
	// BruteForce scans every row instead of searching the tree.
	BruteForce bool
}

// NNDescentParams tunes neighbor-descent graph construction and search.
type NNDescentParams struct {
	// MaxIterations caps refinement rounds; 0 derives it from the sample count.
	MaxIterations int
	Delta         float64
	Rho           float64
	MaxCandidates int
	// SearchEpsilon widens the search bound when querying the graph.
	SearchEpsilon float64
}

// HNSWParams tunes the hierarchical navigable small world graph.
type HNSWParams struct {
	M              int
	Ml             float64
	EfConstruction int
	EfSearch       int
}

// LSHParams tunes the hash tables.
type LSHParams struct {
	Tables      int
	Projections int
	// Width is the bucket width for euclidean and manhattan; 0 estimates it.
	Width float64
}

// Option configures an Index at construction.
type Option func(*options)

type options struct {
	cfg       config.Config
	seed      *int64
	nJobs     *int
	logger    *zerolog.Logger
	tracer    oteltrace.TracerProvider
	tree      *TreeParams
	nndescent *NNDescentParams
	hnsw      *HNSWParams
	lsh       *LSHParams
	factory   backend.GraphEngineFactory
}

func defaultOptions() options {
	return options{cfg: config.DefaultConfig()}
}

// WithConfig replaces the defaults every other setting falls back to.
func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithRandomState seeds every random choice the index makes. Without it a
// seed is drawn once per index.
func WithRandomState(seed int64) Option {
	return func(o *options) { o.seed = &seed }
}

// WithNJobs sets the worker count for backend computations; -1 uses every
// CPU.
func WithNJobs(n int) Option {
	return func(o *options) { o.nJobs = &n }
}

// WithLogger sets the logger. Without it the index logs to stderr at the
// configured KNN_LOG_LEVEL in KNN_LOG_FORMAT.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithTracerProvider sets where Build and Query spans go. The default is
// the global OpenTelemetry provider.
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

func WithTreeParams(p TreeParams) Option {
	return func(o *options) { o.tree = &p }
}

func WithNNDescentParams(p NNDescentParams) Option {
	return func(o *options) { o.nndescent = &p }
}

func WithHNSWParams(p HNSWParams) Option {
	return func(o *options) { o.hnsw = &p }
}

func WithLSHParams(p LSHParams) Option {
	return func(o *options) { o.lsh = &p }
}

// withGraphEngineFactory swaps the NN-descent engine.
func withGraphEngineFactory(f backend.GraphEngineFactory) Option {
	return func(o *options) { o.factory = f }
}

// newLogger returns the explicit logger or builds one from the config.
func (o *options) newLogger() (zerolog.Logger, error) {
	if o.logger != nil {
		return *o.logger, nil
	}
	lc := logging.DefaultConfig()
	lc.Format = o.cfg.LogFormat
	lc.Level = o.cfg.LogLevel
	lc.Component = "knn"
	return logging.NewLogger(lc)
}

// params merges explicit backend parameters over the configured defaults.
func (o *options) params() backend.Params {
	c := o.cfg
	p := backend.Params{
		Tree: backend.TreeParams{Effort: c.TreeEffort, BruteForce: c.TreeBruteForce},
		NNDescent: backend.NNDescentParams{
			MaxIterations: c.NNDescentMaxIterations,
			Delta:         c.NNDescentDelta,
			Rho:           c.NNDescentRho,
			MaxCandidates: c.NNDescentMaxCandidates,
			SearchEpsilon: c.NNDescentSearchEpsilon,
		},
		HNSW: backend.HNSWParams{
			M:              c.HNSWM,
			Ml:             c.HNSWMl,
			EfConstruction: c.HNSWEfConstruction,
			EfSearch:       c.HNSWEfSearch,
		},
		LSH: backend.LSHParams{Tables: c.LSHTables, Projections: c.LSHProjections, Width: c.LSHWidth},
	}
	if o.tree != nil {
		p.Tree = backend.TreeParams(*o.tree)
	}
	if o.nndescent != nil {
		p.NNDescent = backend.NNDescentParams{
			MaxIterations: o.nndescent.MaxIterations,
			Delta:         o.nndescent.Delta,
			Rho:           o.nndescent.Rho,
			MaxCandidates: o.nndescent.MaxCandidates,
			SearchEpsilon: o.nndescent.SearchEpsilon,
		}
	}
	if o.hnsw != nil {
		p.HNSW = backend.HNSWParams(*o.hnsw)
	}
	if o.lsh != nil {
		p.LSH = backend.LSHParams(*o.lsh)
	}
	p.NNDescent.Factory = o.factory
	return p
}
