package sparse

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrPattern reports a value written outside a fixed sparsity pattern.
var ErrPattern = errors.New("sparse: entry outside pattern")

// CSC is a compressed sparse column matrix. Row indices are sorted within
// each column. CSC satisfies mat.Matrix.
type CSC struct {
	rows, cols int
	ColPtr     []int
	RowIdx     []int
	Val        []float64
}

// NewCSC builds a matrix from raw arrays. Rows within a column are sorted
// in place.
func NewCSC(rows, cols int, colPtr, rowIdx []int, val []float64) (*CSC, error) {
	if len(colPtr) != cols+1 {
		return nil, fmt.Errorf("sparse: colptr length %d, want %d", len(colPtr), cols+1)
	}
	nnz := colPtr[cols]
	if len(rowIdx) != nnz || len(val) != nnz {
		return nil, fmt.Errorf("sparse: %d row indices and %d values for nnz %d", len(rowIdx), len(val), nnz)
	}
	c := &CSC{rows: rows, cols: cols, ColPtr: colPtr, RowIdx: rowIdx, Val: val}
	for j := 0; j < cols; j++ {
		lo, hi := colPtr[j], colPtr[j+1]
		if lo > hi {
			return nil, fmt.Errorf("sparse: decreasing colptr at column %d", j)
		}
		sort.Sort(colSorter{c.RowIdx[lo:hi], c.Val[lo:hi]})
		for k := lo; k < hi; k++ {
			if c.RowIdx[k] < 0 || c.RowIdx[k] >= rows {
				return nil, fmt.Errorf("sparse: row %d out of range in column %d", c.RowIdx[k], j)
			}
		}
	}
	return c, nil
}

type colSorter struct {
	idx []int
	val []float64
}

func (s colSorter) Len() int           { return len(s.idx) }
func (s colSorter) Less(i, j int) bool { return s.idx[i] < s.idx[j] }
func (s colSorter) Swap(i, j int) {
	s.idx[i], s.idx[j] = s.idx[j], s.idx[i]
	s.val[i], s.val[j] = s.val[j], s.val[i]
}

// Identity returns the n×n identity.
func Identity(n int) *CSC {
	d := make([]float64, n)
	for i := range d {
		d[i] = 1
	}
	return Diag(d)
}

// Diag returns a diagonal matrix, keeping explicit zeros.
func Diag(d []float64) *CSC {
	n := len(d)
	c := &CSC{rows: n, cols: n, ColPtr: make([]int, n+1), RowIdx: make([]int, n), Val: make([]float64, n)}
	for i := 0; i < n; i++ {
		c.ColPtr[i+1] = i + 1
		c.RowIdx[i] = i
		c.Val[i] = d[i]
	}
	return c
}

// Full returns a rows×cols matrix with every entry stored as zero.
func Full(rows, cols int) *CSC {
	c := &CSC{rows: rows, cols: cols, ColPtr: make([]int, cols+1), RowIdx: make([]int, rows*cols), Val: make([]float64, rows*cols)}
	for j := 0; j < cols; j++ {
		c.ColPtr[j+1] = (j + 1) * rows
		for i := 0; i < rows; i++ {
			c.RowIdx[j*rows+i] = i
		}
	}
	return c
}

func (c *CSC) Dims() (r, cols int) { return c.rows, c.cols }

func (c *CSC) At(i, j int) float64 {
	if i < 0 || i >= c.rows || j < 0 || j >= c.cols {
		panic(mat.ErrIndexOutOfRange)
	}
	if k, ok := c.find(i, j); ok {
		return c.Val[k]
	}
	return 0
}

func (c *CSC) T() mat.Matrix { return mat.Transpose{Matrix: c} }

func (c *CSC) NNZ() int { return c.ColPtr[c.cols] }

func (c *CSC) find(i, j int) (int, bool) {
	lo, hi := c.ColPtr[j], c.ColPtr[j+1]
	k := lo + sort.SearchInts(c.RowIdx[lo:hi], i)
	if k < hi && c.RowIdx[k] == i {
		return k, true
	}
	return k, false
}

// AddAt adds v to the stored entry (i, j).
func (c *CSC) AddAt(i, j int, v float64) error {
	k, ok := c.find(i, j)
	if !ok {
		return fmt.Errorf("%w: (%d, %d)", ErrPattern, i, j)
	}
	c.Val[k] += v
	return nil
}

// Zero clears the values and keeps the structure.
func (c *CSC) Zero() {
	for k := range c.Val {
		c.Val[k] = 0
	}
}

// Clone copies structure and values.
func (c *CSC) Clone() *CSC {
	return &CSC{
		rows:   c.rows,
		cols:   c.cols,
		ColPtr: append([]int(nil), c.ColPtr...),
		RowIdx: append([]int(nil), c.RowIdx...),
		Val:    append([]float64(nil), c.Val...),
	}
}

// MulVec sets dst = c·x.
func (c *CSC) MulVec(dst, x []float64) {
	for i := range dst[:c.rows] {
		dst[i] = 0
	}
	for j := 0; j < c.cols; j++ {
		xj := x[j]
		if xj == 0 {
			continue
		}
		for k := c.ColPtr[j]; k < c.ColPtr[j+1]; k++ {
			dst[c.RowIdx[k]] += c.Val[k] * xj
		}
	}
}

// RowIsZero reports whether row i has no non-zero value.
func (c *CSC) RowIsZero(i int) bool {
	for k, r := range c.RowIdx {
		if r == i && c.Val[k] != 0 {
			return false
		}
	}
	return true
}

// Dense converts to a gonum dense matrix.
func (c *CSC) Dense() *mat.Dense {
	d := mat.NewDense(c.rows, c.cols, nil)
	for j := 0; j < c.cols; j++ {
		for k := c.ColPtr[j]; k < c.ColPtr[j+1]; k++ {
			d.Set(c.RowIdx[k], j, c.Val[k])
		}
	}
	return d
}

// DenseBlock writes the n×n diagonal block starting at off into dst.
func (c *CSC) DenseBlock(dst *mat.Dense, off, n int) {
	dst.Zero()
	for j := off; j < off+n; j++ {
		for k := c.ColPtr[j]; k < c.ColPtr[j+1]; k++ {
			i := c.RowIdx[k]
			if i >= off && i < off+n {
				dst.Set(i-off, j-off, c.Val[k])
			}
		}
	}
}

// Pattern returns the structure of c.
func (c *CSC) Pattern() Pattern {
	lower, upper := 0, 0
	for j := 0; j < c.cols; j++ {
		for k := c.ColPtr[j]; k < c.ColPtr[j+1]; k++ {
			d := c.RowIdx[k] - j
			if d > lower {
				lower = d
			}
			if -d > upper {
				upper = -d
			}
		}
	}
	return Pattern{
		Rows:   c.rows,
		Cols:   c.cols,
		ColPtr: append([]int(nil), c.ColPtr...),
		RowIdx: append([]int(nil), c.RowIdx...),
		Lower:  lower,
		Upper:  upper,
	}
}

// Pattern is a fixed sparsity structure with its half bandwidths.
type Pattern struct {
	Rows, Cols int
	ColPtr     []int
	RowIdx     []int
	Lower      int
	Upper      int
}

func (p Pattern) NNZ() int { return p.ColPtr[p.Cols] }

// Matrix allocates a zero-valued matrix with this structure.
func (p Pattern) Matrix() *CSC {
	return &CSC{
		rows:   p.Rows,
		cols:   p.Cols,
		ColPtr: append([]int(nil), p.ColPtr...),
		RowIdx: append([]int(nil), p.RowIdx...),
		Val:    make([]float64, p.NNZ()),
	}
}

// Union returns the structure holding every entry of a and b.
func Union(a, b *CSC) *CSC {
	ar, ac := a.Dims()
	t := NewTriplets(ar, ac)
	for _, m := range []*CSC{a, b} {
		for j := 0; j < m.cols; j++ {
			for k := m.ColPtr[j]; k < m.ColPtr[j+1]; k++ {
				t.Add(m.RowIdx[k], j, 0)
			}
		}
	}
	return t.CSC()
}

// BlockDiag repeats c k times along the diagonal.
func BlockDiag(c *CSC, k int) *CSC {
	nnz := c.NNZ()
	out := &CSC{
		rows:   c.rows * k,
		cols:   c.cols * k,
		ColPtr: make([]int, c.cols*k+1),
		RowIdx: make([]int, 0, nnz*k),
		Val:    make([]float64, 0, nnz*k),
	}
	for b := 0; b < k; b++ {
		for j := 0; j < c.cols; j++ {
			for p := c.ColPtr[j]; p < c.ColPtr[j+1]; p++ {
				out.RowIdx = append(out.RowIdx, c.RowIdx[p]+b*c.rows)
				out.Val = append(out.Val, c.Val[p])
			}
			out.ColPtr[b*c.cols+j+1] = len(out.RowIdx)
		}
	}
	return out
}
