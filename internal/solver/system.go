package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// system binds a setup to the inputs of one batch.
type system struct {
	setup  *Setup
	inputs []dynamo.Inputs
	n      int
	np     int
}

func newSystem(s *Setup, inputs []dynamo.Inputs, np int) *system {
	return &system{setup: s, inputs: inputs, n: s.Model.Size(), np: np}
}

func (s *system) block(y []float64, b int) dynamo.State {
	return dynamo.State(y[b*s.n : (b+1)*s.n])
}

func (s *system) Size() int         { return s.setup.Size() }
func (s *system) Blocks() int       { return s.setup.BatchSize }
func (s *system) IDs() []float64    { return s.setup.IDs }
func (s *system) Mass() *sparse.CSC { return s.setup.Mass }
func (s *system) NumRoots() int     { return s.setup.NumEvents * s.setup.BatchSize }
func (s *system) NumParams() int    { return s.np }

func (s *system) JacobianPattern() *sparse.CSC { return s.setup.Pattern.Matrix() }

func (s *system) RHS(t float64, y, dst []float64) {
	for b, p := range s.inputs {
		s.setup.Kernel.RHS(t, s.block(y, b), p, dst[b*s.n:(b+1)*s.n])
	}
}

// Jacobian assembles ∂f/∂y − cj·M block by block. Blocks touch disjoint
// columns of dst and are filled concurrently.
func (s *system) Jacobian(t float64, y []float64, cj float64, dst *sparse.CSC) error {
	dst.Zero()
	m := s.setup.blockMass
	return dynamo.ParallelEach(len(s.inputs), func(b int) error {
		off := b * s.n
		if err := s.setup.Kernel.Jacobian(dst, off, t, s.block(y, b), s.inputs[b]); err != nil {
			return err
		}
		if cj == 0 {
			return nil
		}
		for c := 0; c < s.n; c++ {
			for q := m.ColPtr[c]; q < m.ColPtr[c+1]; q++ {
				if err := dst.AddAt(off+m.RowIdx[q], off+c, -cj*m.Val[q]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *system) Roots(t float64, y, dst []float64) {
	ne := s.setup.NumEvents
	for b, p := range s.inputs {
		s.setup.Kernel.Roots(t, s.block(y, b), p, dst[b*ne:(b+1)*ne])
	}
}

func (s *system) ParamJacobian(t float64, y []float64) *mat.Dense {
	out := mat.NewDense(s.Size(), s.np, nil)
	for b, p := range s.inputs {
		fp := s.setup.Kernel.ParamJacobian(t, s.block(y, b), p, s.setup.Params)
		if fp == nil {
			continue
		}
		out.Slice(b*s.n, (b+1)*s.n, 0, s.np).(*mat.Dense).Copy(fp)
	}
	return out
}

// initialState stacks the initial states and sensitivities of the batch.
func (s *system) initialState() (y0 []float64, s0 [][]float64, err error) {
	s0 = make([][]float64, s.np)
	for j := range s0 {
		s0[j] = make([]float64, s.Size())
	}
	is, hasIS := s.setup.Model.(dynamo.InitialSensitivity)
	for b, p := range s.inputs {
		y := s.setup.Model.InitialState(p)
		if len(y) != s.n {
			return nil, nil, errInitialState(len(y), s.n)
		}
		y0 = append(y0, y...)
		if s.np == 0 || !hasIS {
			continue
		}
		ds := is.InitialSensitivity(p, s.setup.Params)
		for j := 0; j < s.np; j++ {
			for i := 0; i < s.n; i++ {
				s0[j][b*s.n+i] = ds.At(i, j)
			}
		}
	}
	return y0, s0, nil
}
