package processed

// Array is an evaluated variable. Data is row-major over Shape with time as
// the last dimension.
type Array struct {
	Dims  []string
	Shape []int
	Data  []float64
}

func (a *Array) At(idx ...int) float64 {
	if len(idx) != len(a.Shape) {
		panic("processed: index rank mismatch")
	}
	off := 0
	for i, n := range a.Shape {
		if idx[i] < 0 || idx[i] >= n {
			panic("processed: index out of range")
		}
		off = off*n + idx[i]
	}
	return a.Data[off]
}

// Squeeze drops dimensions of length one.
func (a *Array) Squeeze() *Array {
	out := &Array{Data: a.Data}
	for i, n := range a.Shape {
		if n == 1 {
			continue
		}
		out.Dims = append(out.Dims, a.Dims[i])
		out.Shape = append(out.Shape, n)
	}
	return out
}
