// Package matrix implements the column-major sparse design matrix the
// gradient and dual-update kernels walk. Loading from disk is out of
// scope (spec §1); this package only exposes construction from
// already-decoded slices.
package matrix

import "fmt"

// Matrix is a column-major sparse matrix: column k's nonzeros live at
// Indices[Offsets[k]:Offsets[k+1]] (row ids) and, unless Binary is set,
// Values[Offsets[k]:Offsets[k+1]] (the corresponding values).
type Matrix struct {
	Rows    int
	Cols    int
	Binary  bool
	Offsets []int
	Indices []int
	Values  []float64
}

// New validates and wraps already-decoded CSC-style slices.
func New(rows, cols int, offsets, indices []int, values []float64, binary bool) (*Matrix, error) {
	if len(offsets) != cols+1 {
		return nil, fmt.Errorf("matrix: offsets length %d, want cols+1=%d", len(offsets), cols+1)
	}
	if !binary && len(values) != len(indices) {
		return nil, fmt.Errorf("matrix: values length %d, want indices length %d", len(values), len(indices))
	}
	return &Matrix{
		Rows:    rows,
		Cols:    cols,
		Binary:  binary,
		Offsets: offsets,
		Indices: indices,
		Values:  values,
	}, nil
}

// Column returns the row ids and values (nil if Binary) of column k.
func (m *Matrix) Column(k int) (rows []int, vals []float64) {
	a, b := m.Offsets[k], m.Offsets[k+1]
	rows = m.Indices[a:b]
	if !m.Binary {
		vals = m.Values[a:b]
	}
	return rows, vals
}

// ColumnRange is a [A,B) view of a matrix's columns, the unit the
// gradient and dual-update kernels iterate over.
type ColumnRange struct {
	Mat  *Matrix
	A, B int
}

// ColBlock returns the [a,b) column-range view used by UPDATE_MODEL
// handlers (spec §4.2 step 3, §6.4).
func (m *Matrix) ColBlock(a, b int) ColumnRange {
	return ColumnRange{Mat: m, A: a, B: b}
}

// Len reports the number of columns in the range.
func (c ColumnRange) Len() int { return c.B - c.A }

// Column returns the row ids and values of the j-th column in the
// range (local index, 0 <= j < Len()).
func (c ColumnRange) Column(j int) (rows []int, vals []float64) {
	return c.Mat.Column(c.A + j)
}
