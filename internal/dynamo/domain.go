package dynamo

// Mesh is a one-dimensional finite volume submesh.
type Mesh struct {
	Nodes []float64
	Edges []float64
}

// UniformMesh returns n cells on [a, b].
func UniformMesh(a, b float64, n int) *Mesh {
	m := &Mesh{Nodes: make([]float64, n), Edges: make([]float64, n+1)}
	dx := (b - a) / float64(n)
	for i := 0; i <= n; i++ {
		m.Edges[i] = a + float64(i)*dx
	}
	for i := 0; i < n; i++ {
		m.Nodes[i] = 0.5 * (m.Edges[i] + m.Edges[i+1])
	}
	return m
}

// FEMesh is a two-dimensional current collector mesh.
type FEMesh struct {
	Y []float64
	Z []float64
}

// Domain describes where a variable lives. A nil Primary means a scalar.
type Domain struct {
	Primary        *Mesh
	Secondary      *Mesh
	FEM            *FEMesh
	PrimaryNames   []string
	SecondaryNames []string
}
