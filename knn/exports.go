package knn

import (
	"github.com/apache/arrow-go/v18/arrow/array"
	"gonum.org/v1/gonum/mat"

	"github.com/23skdu/knngraph/internal/backend"
	"github.com/23skdu/knngraph/internal/config"
	"github.com/23skdu/knngraph/internal/core"
	"github.com/23skdu/knngraph/internal/dataset"
	"github.com/23skdu/knngraph/internal/metric"
	"github.com/23skdu/knngraph/internal/repair"
)

// Graph is a neighbor graph; see core.Graph.
type Graph = core.Graph

// Kind names an index strategy.
type Kind = core.Kind

const (
	KindTreeExact        = core.KindTreeExact
	KindGraphApproximate = core.KindGraphApproximate
	KindHNSW             = core.KindHNSW
	KindHashApproximate  = core.KindHashApproximate
)

// Kinds lists every strategy.
var Kinds = core.Kinds

// Error types and their errors.Is sentinels.
type (
	UnsupportedMetricError = core.UnsupportedMetricError
	IndexNotBuiltError     = core.IndexNotBuiltError
	InvalidShapeError      = core.InvalidShapeError
)

var (
	ErrUnsupportedMetric = core.ErrUnsupportedMetric
	ErrIndexNotBuilt     = core.ErrIndexNotBuilt
	ErrInvalidShape      = core.ErrInvalidShape
)

// QueryThreshold is the k at which the NN-descent index stops growing its
// graph and answers Build by searching it.
const QueryThreshold = backend.QueryThreshold

// ExponentialRate is the rate of the placeholder distances given to
// neighbors an approximate backend failed to find.
const ExponentialRate = repair.ExponentialRate

// DistanceFunc is a user-supplied pairwise distance.
type DistanceFunc = metric.DistanceFunc

// CompiledMetric is a distance kernel ready for backend use.
type CompiledMetric = metric.Compiled

// Compile prepares a user distance function. Compiling the same function
// value twice returns the same *CompiledMetric.
func Compile(fn DistanceFunc) (*CompiledMetric, error) { return metric.Compile(fn) }

// Metrics lists the metric names understood by the exact and NN-descent
// indexes.
func Metrics() []string { return metric.Names() }

// CSR is a compressed sparse row matrix accepted by Build and Query.
type CSR = dataset.CSR

// NewCSR wraps CSR arrays after validating them.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) (*CSR, error) {
	return dataset.NewCSR(rows, cols, indptr, indices, data)
}

// CSRFromDense compresses any matrix into CSR form.
func CSRFromDense(m mat.Matrix) *CSR { return dataset.CSRFromDense(m) }

// FromArrow copies an Arrow FixedSizeList<float32|float64> column into a
// dense matrix, one row per list entry.
func FromArrow(col *array.FixedSizeList) (*mat.Dense, error) { return dataset.FromArrow(col) }

// Config holds defaults for every index; see LoadConfig.
type Config = config.Config

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config { return config.DefaultConfig() }

// LoadConfig reads an optional dotenv file and the KNN_* environment.
func LoadConfig(envFile string) (Config, error) { return config.Load(envFile) }
