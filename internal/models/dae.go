package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// DecayDAE couples a decaying state to an algebraic one:
//
//	y′ = −k·y
//	0  = z − 2·y
//
// The initial z is deliberately inconsistent.
type DecayDAE struct {
	K float64
}

func NewDecayDAE() *DecayDAE { return &DecayDAE{K: 0.5} }

func (d *DecayDAE) Name() string                          { return "decay-dae" }
func (d *DecayDAE) Size() int                             { return 2 }
func (d *DecayDAE) DifferentialIDs() []float64            { return []float64{1, 0} }
func (d *DecayDAE) MassMatrix() *sparse.CSC               { return sparse.Diag([]float64{1, 0}) }
func (d *DecayDAE) Representation() dynamo.Representation { return dynamo.RepresentationNative }

func (d *DecayDAE) InitialState(dynamo.Inputs) dynamo.State {
	return dynamo.State{1, 0}
}

func (d *DecayDAE) RHS(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	dst[0] = -p.Scalar("k", d.K) * y[0]
	dst[1] = y[1] - 2*y[0]
}

func (d *DecayDAE) Jacobian(_ float64, _ dynamo.State, p dynamo.Inputs) *mat.Dense {
	return mat.NewDense(2, 2, []float64{
		-p.Scalar("k", d.K), 0,
		-2, 1,
	})
}

func (d *DecayDAE) ParamJacobian(_ float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(2, p, names, map[string]func(*mat.Dense){
		"k": func(c *mat.Dense) { c.Set(0, 0, -y[0]) },
	})
}

func (d *DecayDAE) Variables() map[string]dynamo.Variable {
	return map[string]dynamo.Variable{
		"y": Select("y", dynamo.Domain{}, 2, 0),
		"z": Select("z", dynamo.Domain{}, 2, 1),
	}
}
