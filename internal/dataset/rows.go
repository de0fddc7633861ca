// Package dataset turns the matrices accepted by the KNN index into the
// row-slice view the search backends operate on.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Rows returns one []float64 per sample. Dense rows alias the matrix backing
// store and must be treated as read-only; sparse rows are densified copies.
func Rows(m mat.Matrix) ([][]float64, error) {
	if m == nil {
		return nil, fmt.Errorf("dataset: nil matrix")
	}
	r, c := m.Dims()

	out := make([][]float64, r)
	switch v := m.(type) {
	case *mat.Dense:
		for i := 0; i < r; i++ {
			out[i] = v.RawRowView(i)
		}
	case *CSR:
		buf := make([]float64, r*c)
		for i := 0; i < r; i++ {
			out[i] = v.denseRow(i, buf[i*c:(i+1)*c:(i+1)*c])
		}
	case mat.RowNonZeroDoer:
		buf := make([]float64, r*c)
		for i := 0; i < r; i++ {
			row := buf[i*c : (i+1)*c : (i+1)*c]
			v.DoRowNonZero(i, func(_, j int, x float64) { row[j] = x })
			out[i] = row
		}
	default:
		buf := make([]float64, r*c)
		for i := 0; i < r; i++ {
			row := buf[i*c : (i+1)*c : (i+1)*c]
			for j := 0; j < c; j++ {
				row[j] = m.At(i, j)
			}
			out[i] = row
		}
	}
	return out, nil
}

// IsSparse reports whether m is stored sparsely.
func IsSparse(m mat.Matrix) bool {
	switch m.(type) {
	case *CSR:
		return true
	case *mat.Dense, *mat.VecDense, *mat.SymDense:
		return false
	}
	_, ok := m.(mat.RowNonZeroDoer)
	return ok
}
