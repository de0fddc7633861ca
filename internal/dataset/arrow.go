package dataset

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"gonum.org/v1/gonum/mat"
)

// FromArrow copies a FixedSizeList<float32|float64> vector column into a
// dense matrix, one row per list element. Null rows are rejected.
func FromArrow(col *array.FixedSizeList) (*mat.Dense, error) {
	if col == nil || col.Len() == 0 {
		return nil, fmt.Errorf("dataset: empty arrow column")
	}
	if col.NullN() > 0 {
		return nil, fmt.Errorf("dataset: arrow column has %d null vectors", col.NullN())
	}

	dims := int(col.DataType().(*arrow.FixedSizeListType).Len())
	rows := col.Len()
	out := make([]float64, rows*dims)
	// the child array may be larger than rows*dims when col is a slice
	start := col.Data().Offset() * dims

	switch values := col.ListValues().(type) {
	case *array.Float32:
		raw := values.Float32Values()
		for i := range out {
			out[i] = float64(raw[start+i])
		}
	case *array.Float64:
		copy(out, values.Float64Values()[start:start+len(out)])
	default:
		return nil, fmt.Errorf("dataset: unsupported arrow vector element type %s", values.DataType())
	}
	return mat.NewDense(rows, dims, out), nil
}
