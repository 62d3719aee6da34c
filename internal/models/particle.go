package models

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// Particle2D holds one particle per electrode cell. Every particle shell
// decays at a rate growing with the cell position:
//
//	∂c/∂t = −k·(1 + x)·c
//
// States are ordered with x varying fastest.
type Particle2D struct {
	Rate float64
	x, r *dynamo.Mesh
}

func NewParticle2D(nx, nr int) *Particle2D {
	return &Particle2D{
		Rate: 1,
		x:    dynamo.UniformMesh(0, 1, nx),
		r:    dynamo.UniformMesh(0, 1, nr),
	}
}

func (m *Particle2D) Name() string { return "particle" }
func (m *Particle2D) Size() int    { return len(m.x.Nodes) * len(m.r.Nodes) }

func (m *Particle2D) DifferentialIDs() []float64 {
	ids := make([]float64, m.Size())
	for i := range ids {
		ids[i] = 1
	}
	return ids
}

func (m *Particle2D) MassMatrix() *sparse.CSC { return sparse.Identity(m.Size()) }

func (m *Particle2D) InitialState(dynamo.Inputs) dynamo.State {
	nx := len(m.x.Nodes)
	y := make(dynamo.State, m.Size())
	for j, r := range m.r.Nodes {
		for i := range m.x.Nodes {
			y[j*nx+i] = 1 + r
		}
	}
	return y
}

func (m *Particle2D) rates(p dynamo.Inputs) []float64 {
	k := p.Scalar("k", m.Rate)
	nx := len(m.x.Nodes)
	out := make([]float64, m.Size())
	for q := range out {
		out[q] = k * (1 + m.x.Nodes[q%nx])
	}
	return out
}

func (m *Particle2D) RHS(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	for q, rate := range m.rates(p) {
		dst[q] = -rate * y[q]
	}
}

func (m *Particle2D) SparseJacobian(_ float64, _ dynamo.State, p dynamo.Inputs) *sparse.CSC {
	rates := m.rates(p)
	for q := range rates {
		rates[q] = -rates[q]
	}
	return sparse.Diag(rates)
}

func (m *Particle2D) ParamJacobian(_ float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	nx := len(m.x.Nodes)
	return paramJacobian(m.Size(), p, names, map[string]func(*mat.Dense){
		"k": func(c *mat.Dense) {
			for q := range y {
				c.Set(q, 0, -(1+m.x.Nodes[q%nx])*y[q])
			}
		},
	})
}

func (m *Particle2D) Variables() map[string]dynamo.Variable {
	n, nx := m.Size(), len(m.x.Nodes)
	all := make([]int, n)
	for q := range all {
		all[q] = q
	}
	surface := make([]int, nx)
	for i := range surface {
		surface[i] = n - nx + i
	}
	mean := mat.NewDense(1, n, nil)
	for q := 0; q < n; q++ {
		mean.Set(0, q, 1/float64(n))
	}

	dom2 := dynamo.Domain{
		Primary: m.x, Secondary: m.r,
		PrimaryNames: []string{"x_n"}, SecondaryNames: []string{"r_n"},
	}
	dom1 := dynamo.Domain{Primary: m.x, PrimaryNames: []string{"x_n"}}
	return map[string]dynamo.Variable{
		"particle concentration":         Select("particle concentration", dom2, n, all...),
		"surface concentration":          Select("surface concentration", dom1, n, surface...),
		"average particle concentration": NewLinear("average particle concentration", dynamo.Domain{}, mean),
	}
}
