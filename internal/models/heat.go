package models

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

// Heat1D is finite volume diffusion c_t = D·c_xx on [0, 1] with insulated
// ends, starting from 1 + cos(πx).
type Heat1D struct {
	Diffusivity float64
	mesh        *dynamo.Mesh
}

func NewHeat1D(cells int) *Heat1D {
	return &Heat1D{Diffusivity: 0.1, mesh: dynamo.UniformMesh(0, 1, cells)}
}

func (h *Heat1D) Name() string       { return "heat" }
func (h *Heat1D) Size() int          { return len(h.mesh.Nodes) }
func (h *Heat1D) Mesh() *dynamo.Mesh { return h.mesh }

func (h *Heat1D) DifferentialIDs() []float64 {
	ids := make([]float64, h.Size())
	for i := range ids {
		ids[i] = 1
	}
	return ids
}

func (h *Heat1D) MassMatrix() *sparse.CSC { return sparse.Identity(h.Size()) }

func (h *Heat1D) InitialState(dynamo.Inputs) dynamo.State {
	y := make(dynamo.State, h.Size())
	for i, x := range h.mesh.Nodes {
		y[i] = 1 + math.Cos(math.Pi*x)
	}
	return y
}

func (h *Heat1D) dx() float64 { return h.mesh.Edges[1] - h.mesh.Edges[0] }

// laplacian writes the discrete second difference with zero-flux ends.
func (h *Heat1D) laplacian(y dynamo.State, dst []float64) {
	n := h.Size()
	s := 1 / (h.dx() * h.dx())
	for i := 0; i < n; i++ {
		left, right := y[i], y[i]
		if i > 0 {
			left = y[i-1]
		}
		if i < n-1 {
			right = y[i+1]
		}
		dst[i] = s * (left - 2*y[i] + right)
	}
}

func (h *Heat1D) RHS(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	h.laplacian(y, dst)
	d := p.Scalar("D", h.Diffusivity)
	for i := range dst {
		dst[i] *= d
	}
}

func (h *Heat1D) SparseJacobian(_ float64, _ dynamo.State, p dynamo.Inputs) *sparse.CSC {
	n := h.Size()
	s := p.Scalar("D", h.Diffusivity) / (h.dx() * h.dx())
	t := sparse.NewTriplets(n, n)
	for i := 0; i < n; i++ {
		diag := -2 * s
		if i > 0 {
			t.Add(i, i-1, s)
		} else {
			diag += s
		}
		if i < n-1 {
			t.Add(i, i+1, s)
		} else {
			diag += s
		}
		t.Add(i, i, diag)
	}
	return t.CSC()
}

func (h *Heat1D) ParamJacobian(_ float64, y dynamo.State, p dynamo.Inputs, names []string) *mat.Dense {
	return paramJacobian(h.Size(), p, names, map[string]func(*mat.Dense){
		"D": func(c *mat.Dense) {
			lap := make([]float64, h.Size())
			h.laplacian(y, lap)
			c.SetCol(0, lap)
		},
	})
}

func (h *Heat1D) Variables() map[string]dynamo.Variable {
	n := h.Size()
	dom := dynamo.Domain{Primary: h.mesh, PrimaryNames: []string{"x_n", "x_s", "x_p"}}

	mean := mat.NewDense(1, n, nil)
	for i := 0; i < n; i++ {
		mean.Set(0, i, 1/float64(n))
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	return map[string]dynamo.Variable{
		"temperature":         Select("temperature", dom, n, idx...),
		"average temperature": NewLinear("average temperature", dynamo.Domain{}, mean),
		"heat flux": NewExpr("heat flux", n+1, dom, func(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
			d := p.Scalar("D", h.Diffusivity)
			dst[0], dst[n] = 0, 0
			for i := 1; i < n; i++ {
				dst[i] = -d * (y[i] - y[i-1]) / h.dx()
			}
		}),
	}
}
