package dynamo

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/sparse"
)

// Model is a discretized system M·y′ = f(t, y, p).
//
// Implementations must be safe for concurrent use: the solver evaluates
// scenarios of a batch in parallel and writes results only into dst.
type Model interface {
	Name() string
	// Size is the state length n of one scenario.
	Size() int
	// DifferentialIDs tags each state 1 (differential) or 0 (algebraic).
	DifferentialIDs() []float64
	MassMatrix() *sparse.CSC
	InitialState(p Inputs) State
	// RHS writes f(t, y, p) into dst, differential rows first.
	RHS(t float64, y State, p Inputs, dst []float64)
	Variables() map[string]Variable
}

// Jacobian is implemented by models that provide ∂f/∂y as a dense matrix.
type Jacobian interface {
	Jacobian(t float64, y State, p Inputs) *mat.Dense
}

// SparseJacobian is implemented by models that assemble ∂f/∂y in compressed
// sparse column form. The structure of the returned matrix must not depend
// on t, y or p.
type SparseJacobian interface {
	SparseJacobian(t float64, y State, p Inputs) *sparse.CSC
}

// ParamJacobian returns ∂f/∂p for the named inputs, columns in name order.
type ParamJacobian interface {
	ParamJacobian(t float64, y State, p Inputs, names []string) *mat.Dense
}

// EventSource exposes termination events. A sign change of any component
// stops the integration.
type EventSource interface {
	NumEvents() int
	Events(t float64, y State, p Inputs, dst []float64)
}

// InitialSensitivity returns ∂y0/∂p for the named inputs. Models without it
// start from zero sensitivities.
type InitialSensitivity interface {
	InitialSensitivity(p Inputs, names []string) *mat.Dense
}

type Representer interface {
	Representation() Representation
}

// AbsoluteTolerance lets a model override the solver atol. The value is a
// float64 or a per-state []float64.
type AbsoluteTolerance interface {
	Atol() any
}

// Variable is an output expression evaluated on the state.
type Variable interface {
	Name() string
	Size() int
	Domain() Domain
	Evaluate(t float64, y State, p Inputs, dst []float64)
}

// Differentiable variables provide exact Jacobians for sensitivity
// propagation; others are differenced numerically.
type Differentiable interface {
	JacobianY(t float64, y State, p Inputs) *mat.Dense
	JacobianP(t float64, y State, p Inputs, names []string) *mat.Dense
}
