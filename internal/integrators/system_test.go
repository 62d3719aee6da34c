package integrators

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/sparse"
)

// denseSystem is a single-block or block-diagonal test system with a dense
// Jacobian per block.
type denseSystem struct {
	size   int
	blocks int
	ids    []float64
	mass   *sparse.CSC
	rhs    func(t float64, y, dst []float64)
	jac    func(t float64, y []float64) *mat.Dense
	nroots int
	roots  func(t float64, y, dst []float64)
	np     int
	fp     func(t float64, y []float64) *mat.Dense
}

func (s *denseSystem) Size() int                         { return s.size }
func (s *denseSystem) Blocks() int                       { return s.blocks }
func (s *denseSystem) IDs() []float64                    { return s.ids }
func (s *denseSystem) Mass() *sparse.CSC                 { return s.mass }
func (s *denseSystem) RHS(t float64, y, dst []float64)   { s.rhs(t, y, dst) }
func (s *denseSystem) NumRoots() int                     { return s.nroots }
func (s *denseSystem) Roots(t float64, y, dst []float64) { s.roots(t, y, dst) }
func (s *denseSystem) NumParams() int                    { return s.np }

func (s *denseSystem) ParamJacobian(t float64, y []float64) *mat.Dense { return s.fp(t, y) }

func (s *denseSystem) blockSize() int { return s.size / s.blocks }

func (s *denseSystem) JacobianPattern() *sparse.CSC {
	bs := s.blockSize()
	tr := sparse.NewTriplets(s.size, s.size)
	for b := 0; b < s.blocks; b++ {
		for i := 0; i < bs; i++ {
			for j := 0; j < bs; j++ {
				tr.Add(b*bs+i, b*bs+j, 0)
			}
		}
	}
	return tr.CSC()
}

func (s *denseSystem) Jacobian(t float64, y []float64, cj float64, dst *sparse.CSC) error {
	dst.Zero()
	j := s.jac(t, y)
	bs := s.blockSize()
	for b := 0; b < s.blocks; b++ {
		for r := 0; r < bs; r++ {
			for c := 0; c < bs; c++ {
				i, k := b*bs+r, b*bs+c
				if err := dst.AddAt(i, k, j.At(i, k)-cj*s.mass.At(i, k)); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func noRoots(float64, []float64, []float64) {}

func decaySystem(k float64) *denseSystem {
	return &denseSystem{
		size:   1,
		blocks: 1,
		ids:    []float64{1},
		mass:   sparse.Identity(1),
		rhs:    func(t float64, y, dst []float64) { dst[0] = -k * y[0] },
		jac:    func(t float64, y []float64) *mat.Dense { return mat.NewDense(1, 1, []float64{-k}) },
		roots:  noRoots,
		np:     1,
		fp:     func(t float64, y []float64) *mat.Dense { return mat.NewDense(1, 1, []float64{-y[0]}) },
	}
}

func linspace(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = a + (b-a)*float64(i)/float64(n-1)
	}
	return out
}

type capture struct {
	t  []float64
	y  [][]float64
	yp [][]float64
	s  [][][]float64
}

func (c *capture) OnOutput(t float64, y, yp []float64, s [][]float64) {
	c.t = append(c.t, t)
	c.y = append(c.y, append([]float64(nil), y...))
	c.yp = append(c.yp, append([]float64(nil), yp...))
	sc := make([][]float64, len(s))
	for i := range s {
		sc[i] = append([]float64(nil), s[i]...)
	}
	c.s = append(c.s, sc)
}
