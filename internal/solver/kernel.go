package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// Kernel evaluates the model functions of one scenario. Exactly one
// variant is picked per setup.
type Kernel interface {
	Name() string
	RHS(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)
	// Jacobian adds ∂f/∂y into the diagonal block of dst starting at off.
	Jacobian(dst *sparse.CSC, off int, t float64, y dynamo.State, p dynamo.Inputs) error
	Roots(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)
	// ParamJacobian returns ∂f/∂p, or nil without parameter support.
	ParamJacobian(t float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense
	// Structure returns ∂f/∂y at a point; only its nonzero layout is used.
	Structure(t float64, y dynamo.State, p dynamo.Inputs) *sparse.CSC
}

type base struct {
	model  dynamo.Model
	events dynamo.EventSource
	params dynamo.ParamJacobian
}

func (b base) RHS(t float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	b.model.RHS(t, y, p, dst)
}

func (b base) Roots(t float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	if b.events != nil {
		b.events.Events(t, y, p, dst)
	}
}

func (b base) ParamJacobian(t float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	if b.params == nil {
		return nil
	}
	return b.params.ParamJacobian(t, y, p, names)
}

type sparseKernel struct {
	base
	jac dynamo.SparseJacobian
}

func (sparseKernel) Name() string { return "sparse" }

func (k sparseKernel) Structure(t float64, y dynamo.State, p dynamo.Inputs) *sparse.CSC {
	return k.jac.SparseJacobian(t, y, p)
}

func (k sparseKernel) Jacobian(dst *sparse.CSC, off int, t float64, y dynamo.State, p dynamo.Inputs) error {
	j := k.jac.SparseJacobian(t, y, p)
	_, cols := j.Dims()
	for c := 0; c < cols; c++ {
		for q := j.ColPtr[c]; q < j.ColPtr[c+1]; q++ {
			if err := dst.AddAt(off+j.RowIdx[q], off+c, j.Val[q]); err != nil {
				return err
			}
		}
	}
	return nil
}

type denseKernel struct {
	base
	jac dynamo.Jacobian
}

func (denseKernel) Name() string { return "dense" }

// Structure stores every entry: a dense Jacobian carries no layout
// independent of the point it is evaluated at.
func (k denseKernel) Structure(float64, dynamo.State, dynamo.Inputs) *sparse.CSC {
	n := k.model.Size()
	return sparse.Full(n, n)
}

func (k denseKernel) Jacobian(dst *sparse.CSC, off int, t float64, y dynamo.State, p dynamo.Inputs) error {
	j := k.jac.Jacobian(t, y, p)
	r, c := j.Dims()
	for col := 0; col < c; col++ {
		for row := 0; row < r; row++ {
			v := j.At(row, col)
			if v == 0 {
				continue
			}
			if err := dst.AddAt(off+row, off+col, v); err != nil {
				return err
			}
		}
	}
	return nil
}

// newKernel picks the sparse kernel when the model assembles a sparse
// Jacobian, unless a dense Jacobian was asked for and is available.
func newKernel(m dynamo.Model, jacobian string) (Kernel, error) {
	b := base{model: m}
	b.events, _ = m.(dynamo.EventSource)
	b.params, _ = m.(dynamo.ParamJacobian)

	sj, hasSparse := m.(dynamo.SparseJacobian)
	dj, hasDense := m.(dynamo.Jacobian)
	switch {
	case hasDense && (jacobian == "dense" || jacobian == "none" || !hasSparse):
		return denseKernel{base: b, jac: dj}, nil
	case hasSparse:
		return sparseKernel{base: b, jac: sj}, nil
	}
	return nil, fmt.Errorf("%w: solver requires Jacobian (model %s has none)", dynamo.ErrConfiguration, m.Name())
}
