package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// FallingBall drops from height h0 under gravity g and stops at the
// ground.
type FallingBall struct {
	Gravity float64
	Height  float64
}

func NewFallingBall() *FallingBall {
	return &FallingBall{Gravity: 9.81, Height: 10}
}

func (b *FallingBall) Name() string               { return "falling-ball" }
func (b *FallingBall) Size() int                  { return 2 }
func (b *FallingBall) DifferentialIDs() []float64 { return []float64{1, 1} }
func (b *FallingBall) MassMatrix() *sparse.CSC    { return sparse.Identity(2) }
func (b *FallingBall) NumEvents() int             { return 1 }

func (b *FallingBall) InitialState(p dynamo.Inputs) dynamo.State {
	return dynamo.State{p.Scalar("h0", b.Height), 0}
}

func (b *FallingBall) RHS(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	dst[0] = y[1]
	dst[1] = -p.Scalar("g", b.Gravity)
}

func (b *FallingBall) Jacobian(float64, dynamo.State, dynamo.Inputs) *mat.Dense {
	return mat.NewDense(2, 2, []float64{0, 1, 0, 0})
}

func (b *FallingBall) ParamJacobian(_ float64, _ dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(2, p, names, map[string]func(*mat.Dense){
		"g": func(c *mat.Dense) { c.Set(1, 0, -1) },
	})
}

func (b *FallingBall) InitialSensitivity(p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(2, p, names, map[string]func(*mat.Dense){
		"h0": func(c *mat.Dense) { c.Set(0, 0, 1) },
	})
}

func (b *FallingBall) Events(_ float64, y dynamo.State, _ dynamo.Inputs, dst []float64) {
	dst[0] = y[0]
}

func (b *FallingBall) Variables() map[string]dynamo.Variable {
	return map[string]dynamo.Variable{
		"height":   Select("height", dynamo.Domain{}, 2, 0),
		"velocity": Select("velocity", dynamo.Domain{}, 2, 1),
		"energy": NewExpr("energy", 1, dynamo.Domain{}, func(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
			dst[0] = p.Scalar("g", b.Gravity)*y[0] + 0.5*y[1]*y[1]
		}),
	}
}
