package metric

import (
	"errors"
	"math"
	"testing"

	"github.com/23skdu/knngraph/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func manhattanLoop(x, y []float64) float64 {
	result := 0.0
	for i := range x {
		result += math.Abs(x[i] - y[i])
	}
	return result
}

func TestKernels(t *testing.T) {
	x := []float64{1, 2, 3}
	y := []float64{4, 6, 3}

	assert.InDelta(t, 5.0, Euclidean(x, y), 1e-12)
	assert.InDelta(t, 25.0, SquaredEuclidean(x, y), 1e-12)
	assert.InDelta(t, 7.0, Manhattan(x, y), 1e-12)
	assert.InDelta(t, 4.0, Chebyshev(x, y), 1e-12)
	assert.InDelta(t, 2.0/3.0, Hamming(x, y), 1e-12)
	assert.InDelta(t, 3.0/5.0+4.0/8.0, Canberra(x, y), 1e-12)
	assert.InDelta(t, 7.0/19.0, BrayCurtis(x, y), 1e-12)

	assert.InDelta(t, 0.0, Cosine(x, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, 1.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, math.Sqrt2, Angular([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, 2.0, Correlation([]float64{1, 2, 3}, []float64{3, 2, 1}), 1e-12)
}

func TestKernels_ZeroVectors(t *testing.T) {
	zero := []float64{0, 0}
	assert.Equal(t, 0.0, Cosine(zero, zero))
	assert.Equal(t, 1.0, Cosine(zero, []float64{1, 1}))
	assert.Equal(t, 0.0, Correlation([]float64{2, 2}, []float64{5, 5}))
	assert.Equal(t, 0.0, BrayCurtis(zero, zero))
	assert.Equal(t, 0.0, Hamming(nil, nil))
}

func TestLookup_Aliases(t *testing.T) {
	for alias, want := range map[string]string{
		"L2": "euclidean", "cityblock": "manhattan", " l1 ": "manhattan", "linf": "chebyshev",
	} {
		c, ok := Lookup(alias)
		require.True(t, ok, alias)
		assert.Equal(t, want, c.Name())
		assert.False(t, c.UserDefined())
	}
	_, ok := Lookup("mahalanobis")
	assert.False(t, ok)
	assert.Contains(t, Names(), "cosine")
}

func TestLookup_MetricFlags(t *testing.T) {
	for name, want := range map[string]bool{
		"euclidean": true, "manhattan": true, "angular": true,
		"cosine": false, "sqeuclidean": false, "correlation": false,
	} {
		c, _ := Lookup(name)
		assert.Equal(t, want, c.IsMetric(), name)
	}
}

func TestCompile_CachesByIdentity(t *testing.T) {
	a, err := Compile(manhattanLoop)
	require.NoError(t, err)
	b, err := Compile(manhattanLoop)
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.True(t, a.UserDefined())
	assert.Contains(t, a.Name(), "manhattanLoop")
}

func TestCompile_DistinctClosuresDoNotCollide(t *testing.T) {
	scaled := func(s float64) DistanceFunc {
		return func(x, y []float64) float64 { return s * Manhattan(x, y) }
	}
	one, err := Compile(scaled(1))
	require.NoError(t, err)
	two, err := Compile(scaled(2))
	require.NoError(t, err)

	assert.NotSame(t, one, two)
	x, y := []float64{0}, []float64{1}
	assert.Equal(t, 1.0, one.Distance(x, y))
	assert.Equal(t, 2.0, two.Distance(x, y))
}

func TestCompile_Nil(t *testing.T) {
	_, err := Compile(nil)
	assert.Error(t, err)
}

func TestCompiled_DistancesTo(t *testing.T) {
	c, _ := Lookup("manhattan")
	rows := [][]float64{{0, 0}, {1, 1}, {2, 0}}
	got := c.DistancesTo([]float64{0, 0}, rows, nil)
	assert.Equal(t, []float64{0, 2, 2}, got)

	buf := make([]float64, 0, 8)
	got = c.DistancesTo([]float64{1, 1}, rows, buf)
	assert.Equal(t, []float64{2, 0, 2}, got)
}

func TestWarmUp_PropagatesPanicError(t *testing.T) {
	boom := errors.New("kernel exploded")
	c, err := Compile(func(x, y []float64) float64 { panic(boom) })
	require.NoError(t, err)

	err = c.WarmUp([]float64{1}, []float64{2})
	assert.Same(t, boom, err)
}

func TestWarmUp_EvaluatedPerCall(t *testing.T) {
	fifth := func(x, y []float64) float64 { return x[4] - y[4] }
	c, err := Compile(fifth)
	require.NoError(t, err)

	require.Error(t, c.WarmUp([]float64{1, 2}, []float64{3, 4}))
	again, err := Compile(fifth)
	require.NoError(t, err)
	assert.NoError(t, again.WarmUp(make([]float64, 8), make([]float64, 8)))
}

func TestWarmUp_PanicValue(t *testing.T) {
	c, _ := Compile(func(x, y []float64) float64 { return x[5] - y[5] })
	err := c.WarmUp([]float64{1}, []float64{2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index out of range")
}

func TestWarmUp_RejectsNaN(t *testing.T) {
	c, _ := Compile(func(x, y []float64) float64 { return math.NaN() })
	assert.Error(t, c.WarmUp([]float64{1}, []float64{2}))
}

func TestWarmUp_AllowsNegative(t *testing.T) {
	c, _ := Compile(func(x, y []float64) float64 { return -1 })
	assert.NoError(t, c.WarmUp([]float64{1}, []float64{2}))
}

func TestWarmUp_NamedIsNoop(t *testing.T) {
	c, _ := Lookup("euclidean")
	assert.NoError(t, c.WarmUp(nil, nil))
}

func TestResolve_Names(t *testing.T) {
	capability := Capability{Backend: "hnsw", Names: map[string]string{"euclidean": "l2", "cosine": "cosine"}}

	r, err := Resolve("euclidean", capability)
	require.NoError(t, err)
	assert.Equal(t, "l2", r.BackendName)
	assert.Equal(t, "euclidean", r.Compiled.Name())

	r, err = Resolve("L2", capability)
	require.NoError(t, err)
	assert.Equal(t, "l2", r.BackendName)

	_, err = Resolve("manhattan", capability)
	assert.ErrorIs(t, err, core.ErrUnsupportedMetric)

	_, err = Resolve("nope", Capability{Backend: "tree-exact", Callables: true})
	var ume *core.UnsupportedMetricError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, "nope", ume.Metric)
	assert.Equal(t, "tree-exact", ume.Backend)
}

func TestResolve_Callables(t *testing.T) {
	open := Capability{Backend: "tree-exact", Callables: true}
	closed := Capability{Backend: "lsh", Names: map[string]string{"euclidean": "euclidean"}}

	r, err := Resolve(manhattanLoop, open)
	require.NoError(t, err)
	assert.True(t, r.Compiled.UserDefined())

	compiled, _ := Compile(manhattanLoop)
	r2, err := Resolve(compiled, open)
	require.NoError(t, err)
	assert.Same(t, r.Compiled, r2.Compiled, "already compiled metrics pass through")

	r3, err := Resolve(DistanceFunc(manhattanLoop), open)
	require.NoError(t, err)
	assert.Same(t, r.Compiled, r3.Compiled)

	_, err = Resolve(manhattanLoop, closed)
	assert.ErrorIs(t, err, core.ErrUnsupportedMetric)
	_, err = Resolve(compiled, closed)
	assert.ErrorIs(t, err, core.ErrUnsupportedMetric)
}

func TestResolve_CompiledNamedPassesThroughNameCheck(t *testing.T) {
	c, _ := Lookup("cosine")
	r, err := Resolve(c, Capability{Backend: "lsh", Names: map[string]string{"cosine": "angular"}})
	require.NoError(t, err)
	assert.Equal(t, "angular", r.BackendName)
}

func TestResolve_BadDescriptors(t *testing.T) {
	capability := Capability{Backend: "tree-exact", Callables: true}
	for _, d := range []any{nil, 42, (*Compiled)(nil), DistanceFunc(nil)} {
		_, err := Resolve(d, capability)
		assert.ErrorIs(t, err, core.ErrUnsupportedMetric, "%T", d)
	}
}
