// Package knn computes k-nearest-neighbor graphs over a dataset through one
// interface backed by interchangeable search strategies: an exact
// vantage-point tree, NN-descent and HNSW graphs, and locality-sensitive
// hashing.
//
// An index is built once over an N×D matrix and returns, for every sample,
// its k nearest other samples. It can then be queried with new rows.
// Approximate strategies occasionally fail to fill a neighbor slot; such
// slots are replaced with placeholder neighbors before results are returned,
// so callers never see negative indices or non-finite distances.
//
//	idx, err := knn.NewTreeExact("euclidean", knn.WithRandomState(1))
//	if err != nil {
//		return err
//	}
//	g, err := idx.Build(data, 15)
package knn

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/knngraph/internal/backend"
	"github.com/23skdu/knngraph/internal/config"
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/dataset"
	"github.com/23skdu/knngraph/internal/metric"
	"github.com/23skdu/knngraph/internal/metrics"
	"github.com/23skdu/knngraph/internal/repair"
	"github.com/23skdu/knngraph/internal/tracing"
)

// KNNIndex is implemented by every index variant.
type KNNIndex interface {
	// Build indexes data and returns the k nearest other samples of each
	// sample. Requires at least two samples and 1 <= k <= N-1.
	Build(data mat.Matrix, k int) (*Graph, error)
	// Query returns the k nearest indexed samples of each row of data.
	// Requires a prior Build, the built feature count and 1 <= k <= N.
	Query(data mat.Matrix, k int) (*Graph, error)
	Kind() Kind
}

// Index is a KNNIndex bound to one backend. It is not safe for concurrent
// use.
type Index struct {
	kind   Kind
	metric *metric.Resolved
	params backend.Params
	seed   uint64
	nJobs  int
	logger zerolog.Logger
	tracer *tracing.Tracer

	adapter backend.Adapter
	samples int
	dims    int
}

var _ KNNIndex = (*Index)(nil)

// New constructs an index of the given kind. The metric is a name such as
// "euclidean", a func(x, y []float64) float64, or a *CompiledMetric; it is
// resolved here, so unsupported metrics fail immediately.
func New(kind Kind, metricDesc any, opts ...Option) (*Index, error) {
	capability, err := backend.CapabilityOf(kind)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := config.Validate(&o.cfg); err != nil {
		return nil, err
	}

	resolved, err := metric.Resolve(metricDesc, capability)
	if err != nil {
		return nil, err
	}
	logger, err := o.newLogger()
	if err != nil {
		return nil, err
	}

	ix := &Index{
		kind:   kind,
		metric: resolved,
		params: o.params(),
		nJobs:  o.cfg.NJobs,
		logger: logger.With().Str("backend", kind.String()).Str("metric", resolved.Descriptor).Logger(),
		tracer: tracing.New(o.tracer, kind.String(), resolved.Descriptor),
	}
	if o.nJobs != nil {
		ix.nJobs = *o.nJobs
	}

	switch seed, ok := o.cfg.Seed(); {
	case o.seed != nil:
		ix.seed = uint64(*o.seed)
	case ok:
		ix.seed = seed
	default:
		ix.seed = rand.Uint64()
	}

	ix.logger.Debug().
		Uint64("seed", ix.seed).
		Int("n_jobs", ix.nJobs).
		Str("backend_metric", resolved.BackendName).
		Msg("Created KNN index")
	return ix, nil
}

// NewTreeExact returns an exact index.
func NewTreeExact(metricDesc any, opts ...Option) (*Index, error) {
	return New(KindTreeExact, metricDesc, opts...)
}

// NewGraphApproximate returns an NN-descent index.
func NewGraphApproximate(metricDesc any, opts ...Option) (*Index, error) {
	return New(KindGraphApproximate, metricDesc, opts...)
}

// NewHNSW returns an HNSW index. Only euclidean and cosine are supported.
func NewHNSW(metricDesc any, opts ...Option) (*Index, error) {
	return New(KindHNSW, metricDesc, opts...)
}

// NewHashApproximate returns a locality-sensitive hashing index. Only
// euclidean, manhattan, cosine and angular are supported.
func NewHashApproximate(metricDesc any, opts ...Option) (*Index, error) {
	return New(KindHashApproximate, metricDesc, opts...)
}

func (ix *Index) Kind() Kind { return ix.kind }

// Seed returns the seed in use, drawn at construction when none was given.
func (ix *Index) Seed() uint64 { return ix.seed }

// Metric returns the metric name as the backend knows it.
func (ix *Index) Metric() string { return ix.metric.BackendName }

// Built reports whether Build has succeeded.
func (ix *Index) Built() bool { return ix.adapter != nil }

func (ix *Index) Build(data mat.Matrix, k int) (g *Graph, err error) {
	_, span := ix.tracer.Start(context.Background(), "build", attribute.Int("knn.k", k))
	defer func() { span.End(err) }()

	name := ix.kind.String()
	rows, err := dataset.Rows(data)
	if err != nil {
		return nil, err
	}
	n := len(rows)
	span.SetAttributes(attribute.Int("knn.n_samples", n))
	if n < 2 {
		return nil, core.NewInvalidShapeError(name, "build", "n_samples", n, 2, "at least two samples are required")
	}
	if k < 1 || k > n-1 {
		return nil, core.NewInvalidShapeError(name, "build", "k", k, n-1, "k must be between 1 and n_samples-1")
	}
	if err := ix.metric.Compiled.WarmUp(rows[0], rows[1]); err != nil {
		metrics.IndexOperationsTotal.WithLabelValues(name, "build", "error").Inc()
		return nil, err
	}

	adapter, err := backend.New(ix.kind, ix.settings(), ix.params)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	g, err = adapter.Build(rows, k)
	elapsed := time.Since(start)
	if err != nil {
		metrics.IndexOperationsTotal.WithLabelValues(name, "build", "error").Inc()
		ix.logger.Error().Err(err).Int("k", k).Int("n_samples", n).Msg("Build failed")
		return nil, err
	}
	metrics.IndexBuildDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	metrics.IndexOperationsTotal.WithLabelValues(name, "build", "ok").Inc()

	stats := repair.Apply(g, n, repair.Options{
		Seed:         ix.seed,
		SelfExcluded: true,
		Backend:      name,
		Logger:       ix.logger,
	})
	span.SetAttributes(attribute.Int("knn.repaired_rows", stats.Rows))

	_, ix.dims = data.Dims()
	ix.adapter = adapter
	ix.samples = n
	metrics.IndexedSamples.WithLabelValues(name).Set(float64(n))

	ix.logger.Debug().
		Int("k", k).
		Int("n_samples", n).
		Int("n_features", ix.dims).
		Bool("sparse", dataset.IsSparse(data)).
		Dur("duration", elapsed).
		Msg("Built KNN index")
	return g, nil
}

func (ix *Index) Query(data mat.Matrix, k int) (g *Graph, err error) {
	_, span := ix.tracer.Start(context.Background(), "query", attribute.Int("knn.k", k))
	defer func() { span.End(err) }()

	name := ix.kind.String()
	if ix.adapter == nil {
		return nil, core.NewIndexNotBuiltError(name)
	}
	if data == nil {
		return nil, core.NewInvalidShapeError(name, "query", "n_features", 0, ix.dims, "no data")
	}
	if _, c := data.Dims(); c != ix.dims {
		return nil, core.NewInvalidShapeError(name, "query", "n_features", c, ix.dims, "feature count differs from the built index")
	}
	if k < 1 || k > ix.samples {
		return nil, core.NewInvalidShapeError(name, "query", "k", k, ix.samples, "k must be between 1 and the number of indexed samples")
	}
	rows, err := dataset.Rows(data)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("knn.n_queries", len(rows)))

	start := time.Now()
	g, err = ix.adapter.Query(rows, k)
	elapsed := time.Since(start)
	if err != nil {
		metrics.IndexOperationsTotal.WithLabelValues(name, "query", "error").Inc()
		ix.logger.Error().Err(err).Int("k", k).Int("n_queries", len(rows)).Msg("Query failed")
		return nil, err
	}
	metrics.IndexQueryDurationSeconds.WithLabelValues(name).Observe(elapsed.Seconds())
	metrics.IndexOperationsTotal.WithLabelValues(name, "query", "ok").Inc()

	stats := repair.Apply(g, ix.samples, repair.Options{
		Seed:    ix.seed,
		Backend: name,
		Logger:  ix.logger,
	})
	span.SetAttributes(attribute.Int("knn.repaired_rows", stats.Rows))

	ix.logger.Debug().
		Int("k", k).
		Int("n_queries", len(rows)).
		Dur("duration", elapsed).
		Msg("Queried KNN index")
	return g, nil
}

func (ix *Index) settings() backend.Settings {
	return backend.Settings{Metric: ix.metric, Seed: ix.seed, NJobs: ix.nJobs}
}
