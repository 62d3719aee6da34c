package integrators

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

var errSingular = errors.New("integrators: singular iteration matrix")

// blockLU factorises the diagonal blocks of a block-diagonal matrix
// independently. Batched scenarios never couple, so each block is solved
// on its own.
type blockLU struct {
	blocks, size int
	a            []*mat.Dense
	lu           []mat.LU
	rhs          []*mat.VecDense
	x            []*mat.VecDense
}

func newBlockLU(blocks, size int) *blockLU {
	b := &blockLU{
		blocks: blocks,
		size:   size,
		a:      make([]*mat.Dense, blocks),
		lu:     make([]mat.LU, blocks),
		rhs:    make([]*mat.VecDense, blocks),
		x:      make([]*mat.VecDense, blocks),
	}
	for i := 0; i < blocks; i++ {
		b.a[i] = mat.NewDense(size, size, nil)
		b.rhs[i] = mat.NewVecDense(size, nil)
		b.x[i] = mat.NewVecDense(size, nil)
	}
	return b
}

func (b *blockLU) factor(m *sparse.CSC) error {
	return b.factorFunc(func(blk int, d *mat.Dense) {
		m.DenseBlock(d, blk*b.size, b.size)
	})
}

// factorFunc factorises blocks filled by fill.
func (b *blockLU) factorFunc(fill func(blk int, d *mat.Dense)) error {
	return dynamo.ParallelEach(b.blocks, func(blk int) error {
		fill(blk, b.a[blk])
		b.lu[blk].Factorize(b.a[blk])
		if c := b.lu[blk].Cond(); math.IsInf(c, 1) || math.IsNaN(c) {
			return fmt.Errorf("%w: block %d", errSingular, blk)
		}
		return nil
	})
}

// solve overwrites x with the solution of A·z = x.
func (b *blockLU) solve(x []float64) error {
	return dynamo.ParallelEach(b.blocks, func(blk int) error {
		off := blk * b.size
		copy(b.rhs[blk].RawVector().Data, x[off:off+b.size])
		if err := b.lu[blk].SolveVecTo(b.x[blk], false, b.rhs[blk]); err != nil {
			var cond mat.Condition
			if !errors.As(err, &cond) {
				return err
			}
		}
		out := b.x[blk].RawVector().Data
		for i, v := range out {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: block %d", errSingular, blk)
			}
			x[off+i] = v
		}
		return nil
	})
}
