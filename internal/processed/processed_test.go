package processed

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/compute"
	"github.com/san-kum/daesim/internal/diag"
	"github.com/san-kum/daesim/internal/dynamo"
)

type fnVar struct {
	name string
	size int
	dom  dynamo.Domain
	f    func(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)
}

func (v fnVar) Name() string          { return v.name }
func (v fnVar) Size() int             { return v.size }
func (v fnVar) Domain() dynamo.Domain { return v.dom }
func (v fnVar) Evaluate(t float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
	v.f(t, y, p, dst)
}

type memSource struct {
	segs   []Segment
	params []string
}

func (s memSource) Segments() []Segment         { return s.segs }
func (s memSource) SensitivityParams() []string { return s.params }

func stateVar(name string, n int, dom dynamo.Domain) fnVar {
	return fnVar{name: name, size: n, dom: dom, f: func(_ float64, y dynamo.State, _ dynamo.Inputs, dst []float64) {
		copy(dst, y[:n])
	}}
}

// segment samples y(t) and y'(t) at ts.
func segment(ts []float64, y, yp func(t float64) []float64) Segment {
	seg := Segment{T: ts}
	for _, t := range ts {
		seg.Y = append(seg.Y, y(t))
		if yp != nil {
			seg.YP = append(seg.YP, yp(t))
		}
	}
	return seg
}

func grid(a, b float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = a + (b-a)*float64(i)/float64(n-1)
	}
	return out
}

func scalar(t *testing.T, src Source, opts ...Option) *Variable {
	t.Helper()
	vars := make([]dynamo.Variable, len(src.Segments()))
	for i := range vars {
		vars[i] = stateVar("y", 1, dynamo.Domain{})
	}
	v, err := New(src, vars, opts...)
	require.NoError(t, err)
	return v
}

func TestQueryOrderIsPreserved(t *testing.T) {
	seg := segment(grid(0, 10, 11), func(t float64) []float64 { return []float64{2 * t} }, nil)
	v := scalar(t, memSource{segs: []Segment{seg}})

	out, err := v.Eval(Query{T: []float64{5, 1, 3}})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, out.Shape)
	assert.InDeltaSlice(t, []float64{10, 2, 6}, out.Data, 1e-12)

	for i, tq := range []float64{5, 1, 3} {
		single, err := v.Eval(Query{T: []float64{tq}})
		require.NoError(t, err)
		assert.Equal(t, out.Data[i], single.Data[0])
	}
}

func TestTimeRange(t *testing.T) {
	seg := segment(grid(1, 2, 5), func(t float64) []float64 { return []float64{t} }, nil)
	v := scalar(t, memSource{segs: []Segment{seg}})

	_, err := v.Eval(Query{T: []float64{1.5, 0.5}})
	assert.True(t, errors.Is(err, dynamo.ErrRange))

	out, err := v.Eval(Query{T: []float64{1.5, 3}})
	require.NoError(t, err)
	assert.InDelta(t, 1.5, out.Data[0], 1e-12)
	assert.True(t, math.IsNaN(out.Data[1]))

	raw, err := v.Eval(Query{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1.25, 1.5, 1.75, 2}, raw.Data)
}

func TestBoundaryExtrapolation(t *testing.T) {
	mesh := &dynamo.Mesh{
		Nodes: []float64{0.1, 0.3, 0.5, 0.7, 0.9},
		Edges: []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
	}
	seg := segment([]float64{0, 1}, func(float64) []float64 {
		out := make([]float64, len(mesh.Nodes))
		for i, x := range mesh.Nodes {
			out[i] = x * x
		}
		return out
	}, nil)
	c := stateVar("c", 5, dynamo.Domain{Primary: mesh, PrimaryNames: []string{"x_n", "x_s", "x_p"}})

	v, err := New(memSource{segs: []Segment{seg}}, []dynamo.Variable{c})
	require.NoError(t, err)
	assert.Equal(t, 1, v.Dims())

	out, err := v.Eval(Query{Space: map[string][]float64{"x": {0, 0.5, 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "t"}, out.Dims)
	assert.Equal(t, []int{3, 2}, out.Shape)
	assert.InDelta(t, -0.03, out.At(0, 0), 1e-12)
	assert.InDelta(t, 0.25, out.At(1, 0), 1e-12)
	assert.InDelta(t, 0.97, out.At(2, 1), 1e-12)

	raw, err := v.Eval(Query{})
	require.NoError(t, err)
	assert.Equal(t, []int{5, 2}, raw.Shape, "mesh points without ghost points")
	assert.InDelta(t, 0.81, raw.At(4, 0), 1e-12)

	_, err = v.Eval(Query{Space: map[string][]float64{"r": {0}}})
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestTwoDimensionalInterpolation(t *testing.T) {
	x := dynamo.UniformMesh(0, 1, 4)
	r := dynamo.UniformMesh(0, 2, 3)
	n := len(x.Nodes) * len(r.Nodes)
	field := func(float64) []float64 {
		out := make([]float64, n)
		for j, rr := range r.Nodes {
			for i, xx := range x.Nodes {
				out[j*len(x.Nodes)+i] = xx + 10*rr
			}
		}
		return out
	}
	seg := segment([]float64{0, 1}, field, nil)
	c := stateVar("c_s", n, dynamo.Domain{
		Primary: x, Secondary: r,
		PrimaryNames: []string{"x_n"}, SecondaryNames: []string{"r_n"},
	})
	v, err := New(memSource{segs: []Segment{seg}}, []dynamo.Variable{c})
	require.NoError(t, err)
	assert.Equal(t, 2, v.Dims())

	out, err := v.Eval(Query{T: []float64{0.5}, Space: map[string][]float64{"x": {0, 0.5, 1}, "r": {0, 2}}})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 2, 1}, out.Shape)
	for i, xx := range []float64{0, 0.5, 1} {
		for j, rr := range []float64{0, 2} {
			assert.InDelta(t, xx+10*rr, out.At(i, j, 0), 1e-12)
		}
	}

	partial, err := v.Eval(Query{Space: map[string][]float64{"r": {1}}})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 1, 2}, partial.Shape)
	assert.InDelta(t, x.Nodes[2]+10, partial.Squeeze().At(2, 1), 1e-12)
}

func TestFEMVariable(t *testing.T) {
	fem := &dynamo.FEMesh{Y: []float64{0, 1}, Z: []float64{0, 1, 2}}
	seg := segment([]float64{0, 1}, func(float64) []float64 { return []float64{0, 1, 10, 11, 20, 21} }, nil)
	v, err := New(memSource{segs: []Segment{seg}}, []dynamo.Variable{stateVar("phi", 6, dynamo.Domain{FEM: fem})})
	require.NoError(t, err)

	out, err := v.Eval(Query{Space: map[string][]float64{"y": {0.5}, "z": {1.5}}})
	require.NoError(t, err)
	assert.InDelta(t, 15.5, out.At(0, 0, 0), 1e-12)

	out, err = v.Eval(Query{Space: map[string][]float64{"z": {2.5}}})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(out.At(0, 0, 0)), "no extrapolation on finite element axes")
}

func TestClassification(t *testing.T) {
	x := dynamo.UniformMesh(0, 1, 4)
	r := dynamo.UniformMesh(0, 1, 2)
	tests := []struct {
		name string
		size int
		dom  dynamo.Domain
		dims int
		err  error
	}{
		{"scalar", 1, dynamo.Domain{}, 0, nil},
		{"nodes", 4, dynamo.Domain{Primary: x}, 1, nil},
		{"edges", 5, dynamo.Domain{Primary: x}, 1, nil},
		{"nodes by secondary", 8, dynamo.Domain{Primary: x, Secondary: r}, 2, nil},
		{"edges by secondary", 10, dynamo.Domain{Primary: x, Secondary: r}, 2, nil},
		{"three dimensional", 24, dynamo.Domain{Primary: x, Secondary: r}, 0, dynamo.ErrNotImplemented},
		{"no mesh", 3, dynamo.Domain{}, 0, dynamo.ErrNotImplemented},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := classify(stateVar("v", tt.size, tt.dom))
			if tt.err != nil {
				assert.True(t, errors.Is(err, tt.err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.dims, l.dims())
		})
	}
}

func TestAxisName(t *testing.T) {
	tests := []struct {
		names []string
		want  string
		err   bool
	}{
		{[]string{"x_n", "x_s", "x_p"}, "x", false},
		{[]string{"r_n", "r_p"}, "r", false},
		{[]string{"R_n", "tabs"}, "R", false},
		{[]string{"z"}, "z", false},
		{nil, "primary", false},
		{[]string{"y", "z"}, "", true},
	}
	for _, tt := range tests {
		got, err := axisName(tt.names, "primary")
		if tt.err {
			assert.True(t, errors.Is(err, dynamo.ErrNotImplemented), "%v", tt.names)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%v", tt.names)
	}
}

func TestHermiteUsesDerivatives(t *testing.T) {
	ts := grid(0, 3, 7)
	y := func(t float64) []float64 { return []float64{math.Sin(t)} }
	yp := func(t float64) []float64 { return []float64{math.Cos(t)} }

	hermite := scalar(t, memSource{segs: []Segment{segment(ts, y, yp)}})
	linear := scalar(t, memSource{segs: []Segment{segment(ts, y, nil)}})

	tq := grid(0.1, 2.9, 15)
	h, err := hermite.Eval(Query{T: tq})
	require.NoError(t, err)
	l, err := linear.Eval(Query{T: tq})
	require.NoError(t, err)

	var errH, errL float64
	for i, tt := range tq {
		errH = math.Max(errH, math.Abs(h.Data[i]-math.Sin(tt)))
		errL = math.Max(errL, math.Abs(l.Data[i]-math.Sin(tt)))
	}
	assert.Less(t, errH, 5e-3)
	assert.Less(t, errH, errL/4)
}

func TestEvaluationPathsAgree(t *testing.T) {
	mesh := dynamo.UniformMesh(0, 1, 6)
	ts := grid(0, 2, 40)
	y := func(t float64) []float64 {
		out := make([]float64, 6)
		for i, x := range mesh.Nodes {
			out[i] = math.Exp(-t) * math.Cos(x+t)
		}
		return out
	}
	yp := func(t float64) []float64 {
		out := make([]float64, 6)
		for i, x := range mesh.Nodes {
			out[i] = -math.Exp(-t) * (math.Cos(x+t) + math.Sin(x+t))
		}
		return out
	}
	src := memSource{segs: []Segment{segment(ts, y, yp)}}
	c := stateVar("c", 6, dynamo.Domain{Primary: mesh, PrimaryNames: []string{"x"}})

	fallbackRec, batchedRec := &diag.Memory{}, &diag.Memory{}
	fallback, err := New(src, []dynamo.Variable{c}, WithBackend(compute.Disabled{}), WithRecorder(fallbackRec))
	require.NoError(t, err)
	batched, err := New(src, []dynamo.Variable{c}, WithBackend(compute.NewCPUBackend()), WithRecorder(batchedRec))
	require.NoError(t, err)

	for _, q := range []Query{
		{},
		{T: grid(0.01, 1.99, 33)},
		{T: []float64{1.3, 0.2, 0.7}, Space: map[string][]float64{"x": {0, 0.33, 1}}},
	} {
		a, err := fallback.Eval(q)
		require.NoError(t, err)
		b, err := batched.Eval(q)
		require.NoError(t, err)
		assert.Equal(t, a.Shape, b.Shape)
		assert.Equal(t, a.Data, b.Data)
	}
	assert.NotEmpty(t, fallbackRec.Find(diag.EventFallback))
	assert.NotEmpty(t, batchedRec.Find(diag.EventObserve))
}

func TestSegmentJoins(t *testing.T) {
	first := segment([]float64{0, 1}, func(t float64) []float64 { return []float64{t} }, nil)
	second := segment([]float64{1, 2}, func(t float64) []float64 { return []float64{10 + t} }, nil)
	v := scalar(t, memSource{segs: []Segment{first, second}})

	entries, err := v.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 4)

	out, err := v.Eval(Query{T: []float64{0.5, 1, 1.5}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{5.5, 11, 11.5}, out.Data, 1e-12)
}

func TestTimeIntegral(t *testing.T) {
	ts := grid(0, 2, 9)
	seg := segment(ts, func(t float64) []float64 { return []float64{2 * t} }, nil)
	v := scalar(t, memSource{segs: []Segment{seg}}, WithTimeIntegral(1))

	entries, err := v.Entries()
	require.NoError(t, err)
	for i, tt := range ts {
		assert.InDelta(t, 1+tt*tt, entries[i][0], 1e-12)
	}

	mesh := dynamo.UniformMesh(0, 1, 3)
	_, err = New(memSource{segs: []Segment{seg}},
		[]dynamo.Variable{stateVar("c", 3, dynamo.Domain{Primary: mesh})}, WithTimeIntegral(0))
	assert.True(t, errors.Is(err, dynamo.ErrNotImplemented))
}

func TestSensitivitiesChainRule(t *testing.T) {
	// y(t) = [k t, k² t] with a two-element input k.
	ts := []float64{0, 1, 2}
	seg := segment(ts, func(t float64) []float64 { return []float64{2 * t, 4 * t} }, nil)
	seg.Inputs = dynamo.Inputs{dynamo.Scalar("k", 2), {Name: "w", Value: []float64{1, 3}}}
	seg.Sens = mat.NewDense(len(ts)*2, 3, nil)
	for i, tt := range ts {
		seg.Sens.SetRow(i*2, []float64{tt, 0, 0})
		seg.Sens.SetRow(i*2+1, []float64{4 * tt, 0, 0})
	}

	v := fnVar{name: "q", size: 1, f: func(_ float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
		w, _ := p.Lookup("w")
		dst[0] = w[0]*y[0] + w[1]*y[1]
	}}
	pv, err := New(memSource{segs: []Segment{seg}, params: []string{"k", "w"}}, []dynamo.Variable{v})
	require.NoError(t, err)

	sens, err := pv.Sensitivities()
	require.NoError(t, err)
	require.Contains(t, sens, "all")
	rows, cols := sens["all"].Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 3, cols)
	for i, tt := range ts {
		// dq/dk = w0·t + w1·4t, dq/dw = y
		assert.InDelta(t, tt+12*tt, sens["k"].At(i, 0), 1e-6)
		assert.InDelta(t, 2*tt, sens["w"].At(i, 0), 1e-6)
		assert.InDelta(t, 4*tt, sens["w"].At(i, 1), 1e-6)
	}

	none, err := New(memSource{segs: []Segment{segment(ts, func(t float64) []float64 { return []float64{t, t} }, nil)}}, []dynamo.Variable{v})
	require.NoError(t, err)
	empty, err := none.Sensitivities()
	require.NoError(t, err)
	assert.Empty(t, empty)

	missing := seg
	missing.Sens = nil
	pv, err = New(memSource{segs: []Segment{missing}, params: []string{"k"}}, []dynamo.Variable{v})
	require.NoError(t, err)
	_, err = pv.Sensitivities()
	assert.True(t, errors.Is(err, dynamo.ErrNoSensitivities))
}

func TestArraySqueeze(t *testing.T) {
	a := &Array{Dims: []string{"x", "r", "t"}, Shape: []int{2, 1, 3}, Data: []float64{0, 1, 2, 3, 4, 5}}
	assert.Equal(t, 4.0, a.At(1, 0, 1))
	s := a.Squeeze()
	assert.Equal(t, []string{"x", "t"}, s.Dims)
	assert.Equal(t, 4.0, s.At(1, 1))
}

func TestAccessorsReturnCopies(t *testing.T) {
	ts := []float64{0, 1, 2}
	seg := segment(ts, func(t float64) []float64 { return []float64{3 * t} }, nil)
	seg.Inputs = dynamo.Inputs{dynamo.Scalar("k", 1)}
	seg.Sens = mat.NewDense(len(ts), 1, []float64{0, 1, 2})
	v := scalar(t, memSource{segs: []Segment{seg}, params: []string{"k"}})

	entries, err := v.Entries()
	require.NoError(t, err)
	entries[2][0] = -7

	out, err := v.Eval(Query{T: []float64{2}})
	require.NoError(t, err)
	assert.InDelta(t, 6.0, out.Data[0], 1e-12)
	again, err := v.Entries()
	require.NoError(t, err)
	assert.Equal(t, 6.0, again[2][0])

	sens, err := v.Sensitivities()
	require.NoError(t, err)
	sens["k"].Set(1, 0, 99)
	sens, err = v.Sensitivities()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sens["k"].At(1, 0), 1e-6)
}
