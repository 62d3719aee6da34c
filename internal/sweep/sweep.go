// Package sweep builds input scenarios over a parameter grid and picks the
// best one by solving them in batches.
package sweep

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/solution"
	"github.com/san-kum/daesim/internal/solver"
)

// Grid is a list of named value ranges. The last axis varies fastest.
type Grid struct {
	names  []string
	ranges [][]float64
}

func NewGrid() *Grid { return &Grid{} }

func (g *Grid) Add(name string, values ...float64) *Grid {
	g.names = append(g.names, name)
	g.ranges = append(g.ranges, values)
	return g
}

// Len is the number of grid points.
func (g *Grid) Len() int {
	if len(g.names) == 0 {
		return 0
	}
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// Inputs returns one input record per grid point, each a copy of base with
// the grid values set.
func (g *Grid) Inputs(base dynamo.Inputs) []dynamo.Inputs {
	var out []dynamo.Inputs
	if g.Len() == 0 {
		return out
	}
	g.expand(0, base.Clone(), &out)
	return out
}

func (g *Grid) expand(depth int, current dynamo.Inputs, out *[]dynamo.Inputs) {
	if depth == len(g.names) {
		*out = append(*out, current)
		return
	}
	for _, val := range g.ranges[depth] {
		g.expand(depth+1, current.With(g.names[depth], val), out)
	}
}

// Objective scores a solution; lower is better.
type Objective func(sol *solution.Solution) (float64, error)

type Result struct {
	Best   dynamo.Inputs
	Value  float64
	Values []float64 // per grid point, in Inputs order
}

// Search solves every grid point and returns the one with the lowest
// objective. The grid size must fill the solver's batches.
func Search(ctx context.Context, s *solver.Solver, t []float64, g *Grid, base dynamo.Inputs, obj Objective) (Result, error) {
	inputs := g.Inputs(base)
	if len(inputs) == 0 {
		return Result{}, fmt.Errorf("%w: empty grid", dynamo.ErrConfiguration)
	}
	sols, err := s.Solve(ctx, t, inputs...)
	if err != nil {
		return Result{}, err
	}

	res := Result{Value: math.Inf(1), Values: make([]float64, len(sols))}
	for i, sol := range sols {
		v, err := obj(sol)
		if err != nil {
			return Result{}, fmt.Errorf("grid point %d: %w", i, err)
		}
		res.Values[i] = v
		if v < res.Value {
			res.Value = v
			res.Best = inputs[i]
		}
	}
	return res, nil
}

// Final returns an objective reading a scalar variable at the last time,
// compared against target.
func Final(name string, target float64) Objective {
	return func(sol *solution.Solution) (float64, error) {
		v, err := sol.Variable(name)
		if err != nil {
			return 0, err
		}
		e, err := v.Entries()
		if err != nil {
			return 0, err
		}
		return math.Abs(e[len(e)-1][0] - target), nil
	}
}
