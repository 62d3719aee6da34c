package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Expr is an output variable given by a function of the state.
type Expr struct {
	name   string
	size   int
	domain dynamo.Domain
	eval   func(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)
}

func NewExpr(name string, size int, domain dynamo.Domain, eval func(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)) *Expr {
	return &Expr{name: name, size: size, domain: domain, eval: eval}
}

func (e *Expr) Name() string          { return e.name }
func (e *Expr) Size() int             { return e.size }
func (e *Expr) Domain() dynamo.Domain { return e.domain }

func (e *Expr) Evaluate(t float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	e.eval(t, y, p, dst)
}

// Linear is the variable A·y. It carries its exact Jacobians.
type Linear struct {
	name   string
	domain dynamo.Domain
	a      *mat.Dense
}

func NewLinear(name string, domain dynamo.Domain, a *mat.Dense) *Linear {
	return &Linear{name: name, domain: domain, a: a}
}

// Select picks states by index.
func Select(name string, domain dynamo.Domain, n int, idx ...int) *Linear {
	a := mat.NewDense(len(idx), n, nil)
	for i, j := range idx {
		a.Set(i, j, 1)
	}
	return NewLinear(name, domain, a)
}

func (l *Linear) Name() string          { return l.name }
func (l *Linear) Domain() dynamo.Domain { return l.domain }

func (l *Linear) Size() int {
	r, _ := l.a.Dims()
	return r
}

func (l *Linear) Evaluate(_ float64, y dynamo.State, _ dynamo.Inputs, dst []float64) {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(l.a, mat.NewVecDense(len(y), y))
}

func (l *Linear) JacobianY(float64, dynamo.State, dynamo.Inputs) *mat.Dense {
	return mat.DenseCopyOf(l.a)
}

func (l *Linear) JacobianP(_ float64, _ dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	np, err := p.Size(names)
	if err != nil || np == 0 {
		return nil
	}
	return mat.NewDense(l.Size(), np, nil)
}

// paramJacobian lays out ∂f/∂p in name order. Each writer fills the
// columns of one input; inputs without a writer stay zero.
func paramJacobian(n int, p dynamo.Inputs, names []string, writers map[string]func(cols *mat.Dense)) *mat.Dense {
	widths := make([]int, len(names))
	total := 0
	for i, name := range names {
		widths[i] = 1
		if v, ok := p.Lookup(name); ok {
			widths[i] = len(v)
		}
		total += widths[i]
	}
	out := mat.NewDense(n, total, nil)
	col := 0
	for i, name := range names {
		if w, ok := writers[name]; ok {
			w(out.Slice(0, n, col, col+widths[i]).(*mat.Dense))
		}
		col += widths[i]
	}
	return out
}
