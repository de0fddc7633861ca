package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// CSR is a compressed sparse row matrix. It satisfies mat.Matrix so it can be
// passed anywhere a dense gonum matrix is accepted.
type CSR struct {
	rows, cols int
	indptr     []int
	indices    []int
	data       []float64
}

var (
	_ mat.Matrix         = (*CSR)(nil)
	_ mat.RowNonZeroDoer = (*CSR)(nil)
)

// NewCSR validates and wraps the three CSR arrays. The slices are retained.
func NewCSR(rows, cols int, indptr, indices []int, data []float64) (*CSR, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("dataset: negative dimensions %dx%d", rows, cols)
	}
	if len(indptr) != rows+1 {
		return nil, fmt.Errorf("dataset: indptr has length %d, want %d", len(indptr), rows+1)
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("dataset: %d indices but %d values", len(indices), len(data))
	}
	if indptr[0] != 0 || indptr[rows] != len(data) {
		return nil, fmt.Errorf("dataset: indptr must span [0, %d]", len(data))
	}
	for i := 0; i < rows; i++ {
		if indptr[i+1] < indptr[i] {
			return nil, fmt.Errorf("dataset: indptr decreases at row %d", i)
		}
		for p := indptr[i]; p < indptr[i+1]; p++ {
			if indices[p] < 0 || indices[p] >= cols {
				return nil, fmt.Errorf("dataset: column %d out of range in row %d", indices[p], i)
			}
		}
	}
	return &CSR{rows: rows, cols: cols, indptr: indptr, indices: indices, data: data}, nil
}

// CSRFromDense copies the non-zero entries of m.
func CSRFromDense(m mat.Matrix) *CSR {
	r, c := m.Dims()
	s := &CSR{rows: r, cols: c, indptr: make([]int, r+1)}
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if v := m.At(i, j); v != 0 {
				s.indices = append(s.indices, j)
				s.data = append(s.data, v)
			}
		}
		s.indptr[i+1] = len(s.data)
	}
	return s
}

// Dims returns the matrix dimensions.
func (s *CSR) Dims() (r, c int) { return s.rows, s.cols }

// At returns the value at (i, j).
func (s *CSR) At(i, j int) float64 {
	if i < 0 || i >= s.rows || j < 0 || j >= s.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	for p := s.indptr[i]; p < s.indptr[i+1]; p++ {
		if s.indices[p] == j {
			return s.data[p]
		}
	}
	return 0
}

// T returns the implicit transpose.
func (s *CSR) T() mat.Matrix { return mat.Transpose{Matrix: s} }

// NNZ returns the number of stored entries.
func (s *CSR) NNZ() int { return len(s.data) }

// DoRowNonZero calls fn for each stored entry of row i.
func (s *CSR) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	for p := s.indptr[i]; p < s.indptr[i+1]; p++ {
		fn(i, s.indices[p], s.data[p])
	}
}

func (s *CSR) denseRow(i int, dst []float64) []float64 {
	for p := s.indptr[i]; p < s.indptr[i+1]; p++ {
		dst[s.indices[p]] += s.data[p]
	}
	return dst
}
