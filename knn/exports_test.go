package knn

import (
	"bytes"
	"math/rand/v2"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/23skdu/knngraph/internal/backend"
	"github.com/23skdu/knngraph/internal/logging"
	"github.com/23skdu/knngraph/internal/metrics"
	"github.com/23skdu/knngraph/internal/nndescent"
)

func TestBuild_FromArrowColumn(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	b := array.NewFixedSizeListBuilder(mem, 8, arrow.PrimitiveTypes.Float32)
	defer b.Release()
	vb := b.ValueBuilder().(*array.Float32Builder)
	for i := 0; i < 64; i++ {
		b.Append(true)
		for j := 0; j < 8; j++ {
			vb.Append(float32(rng.NormFloat64()))
		}
	}
	col := b.NewListArray()
	defer col.Release()

	data, err := FromArrow(col)
	require.NoError(t, err)

	ix, err := NewHNSW("cosine", WithRandomState(2))
	require.NoError(t, err)
	g, err := ix.Build(data, 5)
	require.NoError(t, err)
	assertValidGraph(t, g, 64, 5, 64, true)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("KNN_RANDOM_STATE", "123")
	t.Setenv("KNN_N_JOBS", "3")
	t.Setenv("KNN_LSH_TABLES", "4")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, int64(123), cfg.RandomState)

	ix, err := NewHashApproximate("euclidean", WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, uint64(123), ix.Seed())
	assert.Equal(t, 3, ix.nJobs)
	assert.Equal(t, 4, ix.params.LSH.Tables)
}

func TestExplicitParamsOverrideConfig(t *testing.T) {
	ix, err := NewGraphApproximate("euclidean",
		WithNNDescentParams(NNDescentParams{MaxIterations: 3, Delta: 0.01, Rho: 0.5, MaxCandidates: 10}),
		WithTreeParams(TreeParams{BruteForce: true}),
		WithHNSWParams(HNSWParams{M: 4, Ml: 0.5, EfSearch: 8}),
		WithLSHParams(LSHParams{Tables: 2, Projections: 3}),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, ix.params.NNDescent.MaxIterations)
	assert.Equal(t, 0.5, ix.params.NNDescent.Rho)
	assert.True(t, ix.params.Tree.BruteForce)
	assert.Equal(t, 4, ix.params.HNSW.M)
	assert.Equal(t, 3, ix.params.LSH.Projections)
}

func TestRepairIsLoggedAndCounted(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.NewLogger(logging.Config{Format: "json", Level: "warn", Output: &buf})
	require.NoError(t, err)

	factory := func(data [][]float64, cfg nndescent.Config) (backend.GraphEngine, error) {
		return sentinelEngine{n: len(data), nNeighbors: cfg.NNeighbors, broken: 4}, nil
	}
	before := testutil.ToFloat64(metrics.RepairedRowsTotal.WithLabelValues(KindGraphApproximate.String()))

	ix, err := NewGraphApproximate("euclidean",
		WithRandomState(1), WithLogger(logger), withGraphEngineFactory(factory))
	require.NoError(t, err)
	_, err = ix.Build(normalMatrix(30, 3, 1), 5)
	require.NoError(t, err)

	after := testutil.ToFloat64(metrics.RepairedRowsTotal.WithLabelValues(KindGraphApproximate.String()))
	assert.Equal(t, 4.0, after-before)
	assert.Contains(t, buf.String(), `"backend":"nndescent"`)
	assert.Contains(t, buf.String(), "Repaired invalid neighbor entries")
}

func TestOperationsCounted(t *testing.T) {
	ok := func() float64 {
		return testutil.ToFloat64(metrics.IndexOperationsTotal.WithLabelValues("tree-exact", "query", "ok"))
	}
	before := ok()

	ix, err := NewTreeExact("chebyshev", WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	_, err = ix.Build(normalMatrix(20, 3, 1), 4)
	require.NoError(t, err)
	_, err = ix.Query(normalMatrix(5, 3, 2), 4)
	require.NoError(t, err)

	assert.Equal(t, 1.0, ok()-before)
}

func TestBuildAndQueryTraced(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	ix, err := NewTreeExact("euclidean", WithTracerProvider(tp), WithRandomState(1))
	require.NoError(t, err)
	_, err = ix.Build(normalMatrix(25, 3, 1), 4)
	require.NoError(t, err)
	_, err = ix.Query(normalMatrix(5, 4, 2), 4)
	require.Error(t, err)

	ended := sr.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "knn.build", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	assert.Contains(t, ended[0].Attributes(), attribute.Int("knn.n_samples", 25))
	assert.Contains(t, ended[0].Attributes(), attribute.String("knn.backend", "tree-exact"))
	assert.Equal(t, "knn.query", ended[1].Name())
	assert.Equal(t, codes.Error, ended[1].Status().Code)
}

func TestLoggerFromConfig(t *testing.T) {
	t.Setenv("KNN_LOG_LEVEL", "warn")
	t.Setenv("KNN_LOG_FORMAT", "console")
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	ix, err := NewTreeExact("euclidean", WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, zerolog.WarnLevel, ix.logger.GetLevel())

	cfg.LogLevel = "disabled"
	ix, err = NewTreeExact("euclidean", WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, zerolog.Disabled, ix.logger.GetLevel())

	explicit := zerolog.Nop().Level(zerolog.ErrorLevel)
	ix, err = NewTreeExact("euclidean", WithConfig(cfg), WithLogger(explicit))
	require.NoError(t, err)
	assert.Equal(t, zerolog.ErrorLevel, ix.logger.GetLevel())
}
