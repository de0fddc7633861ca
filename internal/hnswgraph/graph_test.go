package hnswgraph

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/coder/hnsw"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomVectors(n, d int, seed uint64) [][]float32 {
	rng := rand.New(rand.NewPCG(seed, 9))
	out := make([][]float32, n)
	for i := range out {
		out[i] = make([]float32, d)
		for j := range out[i] {
			out[i][j] = float32(rng.NormFloat64())
		}
	}
	return out
}

func exactNearest(vectors [][]float32, q []float32, k int) []int {
	cs := make([]Candidate, len(vectors))
	for i, v := range vectors {
		cs[i] = Candidate{ID: i, Dist: hnsw.EuclideanDistance(q, v)}
	}
	sortCandidates(cs)
	ids := make([]int, k)
	for i := range ids {
		ids[i] = cs[i].ID
	}
	return ids
}

func TestBuild_Validation(t *testing.T) {
	_, err := Build(nil, Config{})
	assert.ErrorIs(t, err, ErrEmptyData)

	_, err = Build([][]float32{{1, 2}, {1}}, Config{})
	assert.ErrorIs(t, err, ErrRaggedVectors)

	_, err = Build(randomVectors(4, 2, 1), Config{M: 1})
	assert.ErrorIs(t, err, ErrBadParameter)

	_, err = Build(randomVectors(4, 2, 1), Config{Ml: 1})
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestSearch_Recall(t *testing.T) {
	vectors := randomVectors(400, 16, 1)
	g, err := Build(vectors, Config{Seed: 3})
	require.NoError(t, err)
	assert.Equal(t, 400, g.Len())

	s := g.NewSearcher()
	hits, total := 0, 0
	for _, q := range randomVectors(50, 16, 2) {
		got, err := s.Search(q, 10, DefaultEfSearch)
		require.NoError(t, err)
		require.Len(t, got, 10)
		assert.True(t, slices.IsSortedFunc(got, func(a, b Candidate) int {
			if less(a, b) {
				return -1
			}
			return 1
		}))
		want := exactNearest(vectors, q, 10)
		for _, c := range got {
			if slices.Contains(want, c.ID) {
				hits++
			}
		}
		total += 10
	}
	assert.Greater(t, float64(hits)/float64(total), 0.95)
}

func TestSearch_FindsIndexedVector(t *testing.T) {
	vectors := randomVectors(200, 8, 4)
	g, err := Build(vectors, Config{Seed: 1})
	require.NoError(t, err)

	s := g.NewSearcher()
	for i, v := range vectors {
		got, err := s.Search(v, 1, 32)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, i, got[0].ID)
		assert.Zero(t, got[0].Dist)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	vectors := randomVectors(300, 12, 5)
	a, err := Build(vectors, Config{Seed: 42, M: 8})
	require.NoError(t, err)
	b, err := Build(vectors, Config{Seed: 42, M: 8})
	require.NoError(t, err)

	assert.Equal(t, a.entry, b.entry)
	assert.Equal(t, a.top, b.top)
	assert.Equal(t, a.links, b.links)

	q := randomVectors(1, 12, 6)[0]
	ra, err := a.NewSearcher().Search(q, 20, 40)
	require.NoError(t, err)
	rb, err := b.NewSearcher().Search(q, 20, 40)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
}

func TestBuild_LinkBudgets(t *testing.T) {
	vectors := randomVectors(300, 6, 7)
	g, err := Build(vectors, Config{Seed: 1, M: 4, Ml: 0.5})
	require.NoError(t, err)
	assert.Greater(t, g.Levels(), 1)

	for id := range vectors {
		for layer := range g.links[id] {
			ns := g.Neighbors(id, layer)
			assert.LessOrEqual(t, len(ns), g.maxLinks(layer))
			assert.NotContains(t, ns, id)
			for _, n := range ns {
				assert.Greater(t, len(g.links[n]), layer, "neighbor %d missing layer %d", n, layer)
			}
		}
	}
	assert.Nil(t, g.Neighbors(0, g.Levels()+1))
}

func TestSearch_KAboveSize(t *testing.T) {
	vectors := randomVectors(5, 3, 8)
	g, err := Build(vectors, Config{})
	require.NoError(t, err)

	got, err := g.NewSearcher().Search(vectors[2], 10, 4)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 2, got[0].ID)
}

func TestSearch_Errors(t *testing.T) {
	g, err := Build(randomVectors(5, 3, 8), Config{})
	require.NoError(t, err)
	s := g.NewSearcher()

	_, err = s.Search([]float32{1, 2}, 1, 4)
	assert.ErrorIs(t, err, ErrDimension)
	_, err = s.Search([]float32{1, 2, 3}, 0, 4)
	assert.ErrorIs(t, err, ErrBadParameter)
}

func TestCosine_ZeroVectorDoesNotBreakSearch(t *testing.T) {
	vectors := randomVectors(50, 4, 9)
	vectors[7] = make([]float32, 4)
	g, err := Build(vectors, Config{Distance: hnsw.CosineDistance})
	require.NoError(t, err)

	got, err := g.NewSearcher().Search(vectors[3], 5, 16)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, 3, got[0].ID)
}
