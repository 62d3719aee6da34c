package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// Decay is y′ = −k·y with y(0) = y0.
type Decay struct {
	K  float64
	Y0 float64
}

func NewDecay() *Decay {
	return &Decay{K: 1, Y0: 1}
}

func (d *Decay) Name() string               { return "decay" }
func (d *Decay) Size() int                  { return 1 }
func (d *Decay) DifferentialIDs() []float64 { return []float64{1} }
func (d *Decay) MassMatrix() *sparse.CSC    { return sparse.Identity(1) }

func (d *Decay) InitialState(p dynamo.Inputs) dynamo.State {
	return dynamo.State{p.Scalar("y0", d.Y0)}
}

func (d *Decay) RHS(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	dst[0] = -p.Scalar("k", d.K) * y[0]
}

func (d *Decay) Jacobian(_ float64, _ dynamo.State, p dynamo.Inputs) *mat.Dense {
	return mat.NewDense(1, 1, []float64{-p.Scalar("k", d.K)})
}

func (d *Decay) ParamJacobian(_ float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(1, p, names, map[string]func(*mat.Dense){
		"k": func(c *mat.Dense) { c.Set(0, 0, -y[0]) },
	})
}

func (d *Decay) InitialSensitivity(p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(1, p, names, map[string]func(*mat.Dense){
		"y0": func(c *mat.Dense) { c.Set(0, 0, 1) },
	})
}

func (d *Decay) Variables() map[string]dynamo.Variable {
	return map[string]dynamo.Variable{
		"y": Select("y", dynamo.Domain{}, 1, 0),
		"y squared": NewExpr("y squared", 1, dynamo.Domain{}, func(_ float64, y dynamo.State, _ dynamo.Inputs, dst []float64) {
			dst[0] = y[0] * y[0]
		}),
	}
}
