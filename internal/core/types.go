package core

import "math"

// Sentinel values an approximate backend leaves in slots it could not fill.
const (
	SentinelIndex    = -1
	SentinelDistance = -1.0
)

// Graph is a neighbor graph: row i holds the k neighbors of query row i.
// Indices and Distances are co-indexed and always have the same shape.
type Graph struct {
	Indices   [][]int
	Distances [][]float64
}

// NewGraph allocates a rows x k graph backed by two contiguous buffers.
// Every slot starts out as a sentinel.
func NewGraph(rows, k int) *Graph {
	idx := make([]int, rows*k)
	dist := make([]float64, rows*k)
	for i := range idx {
		idx[i] = SentinelIndex
		dist[i] = SentinelDistance
	}

	g := &Graph{
		Indices:   make([][]int, rows),
		Distances: make([][]float64, rows),
	}
	for i := 0; i < rows; i++ {
		g.Indices[i] = idx[i*k : (i+1)*k : (i+1)*k]
		g.Distances[i] = dist[i*k : (i+1)*k : (i+1)*k]
	}
	return g
}

// Shape returns (rows, k). An empty graph reports k = 0.
func (g *Graph) Shape() (rows, k int) {
	rows = len(g.Indices)
	if rows == 0 {
		return 0, 0
	}
	return rows, len(g.Indices[0])
}

// IsInvalid reports whether the entry at (i, j) cannot be a real neighbor of
// an index holding n samples.
func (g *Graph) IsInvalid(i, j, n int) bool {
	idx := g.Indices[i][j]
	if idx < 0 || idx >= n {
		return true
	}
	d := g.Distances[i][j]
	return math.IsNaN(d) || math.IsInf(d, 0)
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	rows, k := g.Shape()
	out := NewGraph(rows, k)
	for i := 0; i < rows; i++ {
		copy(out.Indices[i], g.Indices[i])
		copy(out.Distances[i], g.Distances[i])
	}
	return out
}
