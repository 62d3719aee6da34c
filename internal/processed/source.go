package processed

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Segment is one sub-solve of a solution.
type Segment struct {
	T      []float64
	Y      [][]float64 // state at each T; nil when only outputs were kept
	YP     [][]float64 // time derivatives at each T, optional
	Inputs dynamo.Inputs
	Model  dynamo.Model
	// Sens is ∂y/∂p flattened to (len(T)·n, params), state fastest.
	Sens     *mat.Dense
	Computed map[string]*Computed
}

// Computed holds an output variable evaluated during integration.
type Computed struct {
	Entries [][]float64 // one row of the variable per time
	Sens    *mat.Dense  // (len(T)·size, params)
}

// Source is a solution the engine can read from.
type Source interface {
	Segments() []Segment
	// SensitivityParams lists the inputs sensitivities were computed for,
	// in declared order.
	SensitivityParams() []string
}
