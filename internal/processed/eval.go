package processed

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"

	"github.com/san-kum/daesim/internal/compute"
	"github.com/san-kum/daesim/internal/dynamo"
)

// Query selects evaluation points. A nil T means the solution times. Space
// maps axis names to points; axes left out keep their mesh points.
type Query struct {
	T     []float64
	Space map[string][]float64
}

// Eval evaluates the variable at the query points. Times after the final
// solution time give NaN; times before the first one are an error.
func (v *Variable) Eval(q Query) (*Array, error) {
	for name := range q.Space {
		if !v.hasAxis(name) {
			return nil, fmt.Errorf("%w: variable %s has no axis %q", dynamo.ErrConfiguration, v.Name(), name)
		}
	}

	var rows [][]float64
	var times []float64
	if v.isRaw(q.T) {
		entries, err := v.rawEntries()
		if err != nil {
			return nil, err
		}
		rows, times = entries, v.t
	} else {
		if len(q.T) == 0 {
			return nil, fmt.Errorf("%w: empty query times", dynamo.ErrConfiguration)
		}
		var err error
		rows, err = v.interpTimes(q.T)
		if err != nil {
			return nil, err
		}
		times = q.T
	}
	return v.spatial(rows, len(times), q.Space), nil
}

func (v *Variable) hasAxis(name string) bool {
	for _, a := range v.layout.axes {
		if a.name == name {
			return true
		}
	}
	return false
}

func (v *Variable) isRaw(t []float64) bool {
	if t == nil {
		return true
	}
	if len(t) != len(v.t) {
		return false
	}
	for i := range t {
		if t[i] != v.t[i] {
			return false
		}
	}
	return true
}

// interpTimes returns one row per query time, in the caller's order.
func (v *Variable) interpTimes(tq []float64) ([][]float64, error) {
	perm := make([]int, len(tq))
	for i := range perm {
		perm[i] = i
	}
	sorted := sort.SliceIsSorted(tq, func(a, b int) bool { return tq[a] < tq[b] })
	if !sorted {
		sort.SliceStable(perm, func(a, b int) bool { return tq[perm[a]] < tq[perm[b]] })
	}
	ts := make([]float64, len(tq))
	for i, p := range perm {
		ts[i] = tq[p]
	}
	if ts[0] < v.t[0] {
		return nil, fmt.Errorf("%w: time %g is before the first solution time %g", dynamo.ErrRange, ts[0], v.t[0])
	}

	var rows [][]float64
	var err error
	if v.hermiteAvailable() {
		rows, err = v.hermiteRows(ts)
	} else {
		rows, err = v.linearRows(ts)
	}
	if err != nil {
		return nil, err
	}

	if sorted {
		return rows, nil
	}
	out := make([][]float64, len(rows))
	for i, p := range perm {
		out[p] = rows[i]
	}
	return out, nil
}

func (v *Variable) linearRows(ts []float64) ([][]float64, error) {
	lf, err := v.linearInterp()
	if err != nil {
		return nil, err
	}
	end := v.t[len(v.t)-1]
	rows := make([][]float64, len(ts))
	for i, t := range ts {
		rows[i] = make([]float64, v.layout.size)
		if t > end || math.IsNaN(t) {
			fillNaN(rows[i])
			continue
		}
		lf.at(t, rows[i])
	}
	return rows, nil
}

// hermiteRows interpolates the state with its stored derivative and
// evaluates the expression on the interpolated state. Times falling between
// two segments use the linear interpolant of the entries.
func (v *Variable) hermiteRows(ts []float64) ([][]float64, error) {
	segs := v.src.Segments()
	fits := v.hermiteFits()
	end := v.t[len(v.t)-1]

	jobs := make([]compute.Job, len(ts))
	var gaps []int
	for i, t := range ts {
		jobs[i] = compute.Job{T: t}
		if t > end || math.IsNaN(t) {
			continue
		}
		s := segmentAt(segs, t)
		seg := segs[s]
		if t > seg.T[len(seg.T)-1] {
			gaps = append(gaps, i)
			continue
		}
		jobs[i].Y = fits[s].at(t)
		jobs[i].Inputs = seg.Inputs
		jobs[i].Eval = v.vars[s].Evaluate
	}
	rows := v.observe(jobs)

	if len(gaps) > 0 {
		lf, err := v.linearInterp()
		if err != nil {
			return nil, err
		}
		for _, i := range gaps {
			lf.at(ts[i], rows[i])
		}
	}
	return rows, nil
}

// segmentAt returns the last segment starting at or before t.
func segmentAt(segs []Segment, t float64) int {
	for s := len(segs) - 1; s > 0; s-- {
		if segs[s].T[0] <= t {
			return s
		}
	}
	return 0
}

func (v *Variable) spatial(rows [][]float64, nt int, space map[string][]float64) *Array {
	l := v.layout
	switch l.dims() {
	case 0:
		data := make([]float64, nt)
		for i, r := range rows {
			data[i] = r[0]
		}
		return &Array{Dims: []string{"t"}, Shape: []int{nt}, Data: data}

	case 1:
		ax := l.axes[0]
		q, interpolate := space[ax.name]
		n := len(ax.pts)
		if interpolate {
			n = len(q)
		}
		data := make([]float64, n*nt)
		for ti, r := range rows {
			line := r
			if interpolate {
				line = resample(ax, r, q)
			}
			for i, val := range line {
				data[i*nt+ti] = val
			}
		}
		return &Array{Dims: []string{ax.name, "t"}, Shape: []int{n, nt}, Data: data}
	}

	a0, a1 := l.axes[0], l.axes[1]
	q0, in0 := space[a0.name]
	q1, in1 := space[a1.name]
	n0, n1 := len(a0.pts), len(a1.pts)
	if in0 {
		n0 = len(q0)
	}
	if in1 {
		n1 = len(q1)
	}

	data := make([]float64, n0*n1*nt)
	col := make([]float64, len(a0.pts))
	grid := make([][]float64, len(a1.pts))
	for ti, r := range rows {
		// first axis, per secondary point
		for j := range a1.pts {
			for i := range a0.pts {
				col[i] = r[j*len(a0.pts)+i]
			}
			if in0 {
				grid[j] = resample(a0, col, q0)
			} else {
				grid[j] = append(grid[j][:0], col...)
			}
		}
		line := make([]float64, len(a1.pts))
		for i := 0; i < n0; i++ {
			for j := range a1.pts {
				line[j] = grid[j][i]
			}
			out := line
			if in1 {
				out = resample(a1, line, q1)
			}
			for j, val := range out {
				data[(i*n1+j)*nt+ti] = val
			}
		}
	}
	return &Array{
		Dims:  []string{a0.name, a1.name, "t"},
		Shape: []int{n0, n1, nt},
		Data:  data,
	}
}

// resample linearly interpolates vals given at the axis points onto q.
// Finite volume axes get one extrapolated point beyond each boundary.
// Points outside the extended range give NaN.
func resample(ax axis, vals, q []float64) []float64 {
	xs, ys := ax.pts, vals
	if ax.ghost && len(xs) > 1 {
		n := len(xs)
		xs = make([]float64, 0, n+2)
		xs = append(xs, 2*ax.pts[0]-ax.pts[1])
		xs = append(xs, ax.pts...)
		xs = append(xs, 2*ax.pts[n-1]-ax.pts[n-2])
		ys = make([]float64, 0, n+2)
		ys = append(ys, 2*vals[0]-vals[1])
		ys = append(ys, vals...)
		ys = append(ys, 2*vals[n-1]-vals[n-2])
	}

	out := make([]float64, len(q))
	if len(xs) < 2 {
		for i, x := range q {
			out[i] = math.NaN()
			if x == xs[0] {
				out[i] = ys[0]
			}
		}
		return out
	}

	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		fillNaN(out)
		return out
	}
	lo, hi := xs[0], xs[len(xs)-1]
	for i, x := range q {
		if x < lo || x > hi || math.IsNaN(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = pl.Predict(x)
	}
	return out
}

func fillNaN(x []float64) {
	for i := range x {
		x[i] = math.NaN()
	}
}
