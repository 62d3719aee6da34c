package processed

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/compute"
	"github.com/san-kum/daesim/internal/diag"
	"github.com/san-kum/daesim/internal/dynamo"
)

type Option func(*Variable)

// WithBackend sets the evaluation backend. The default is compute.Default().
func WithBackend(b compute.Backend) Option {
	return func(v *Variable) { v.backend = b }
}

func WithRecorder(rec diag.Recorder) Option {
	return func(v *Variable) { v.rec = diag.OrNop(rec) }
}

// WithTimeIntegral turns a scalar variable into its running time integral
// starting from ic.
func WithTimeIntegral(ic float64) Option {
	return func(v *Variable) {
		v.integral = true
		v.ic = ic
	}
}

// Variable is a read-only, lazily evaluated view of an output expression
// over a solution. It is safe for concurrent use.
type Variable struct {
	src      Source
	vars     []dynamo.Variable
	layout   layout
	backend  compute.Backend
	rec      diag.Recorder
	integral bool
	ic       float64

	t []float64

	entriesOnce sync.Once
	entries     [][]float64
	entriesErr  error

	linearOnce sync.Once
	linear     *linearFit

	hermiteOnce sync.Once
	hermite     []*stateFit

	sensOnce sync.Once
	sens     map[string]*mat.Dense
	sensErr  error
}

// New builds a processed variable from one expression per segment of src.
func New(src Source, vars []dynamo.Variable, opts ...Option) (*Variable, error) {
	segs := src.Segments()
	if len(segs) == 0 {
		return nil, fmt.Errorf("%w: empty solution", dynamo.ErrConfiguration)
	}
	if len(vars) != len(segs) {
		return nil, fmt.Errorf("%w: %d variables for %d segments", dynamo.ErrConfiguration, len(vars), len(segs))
	}
	for _, v := range vars[1:] {
		if v.Size() != vars[0].Size() {
			return nil, fmt.Errorf("%w: variable %s changes size across segments", dynamo.ErrConfiguration, v.Name())
		}
	}

	l, err := classify(vars[0])
	if err != nil {
		return nil, err
	}

	pv := &Variable{
		src:    src,
		vars:   vars,
		layout: l,
		rec:    diag.Nop,
	}
	for _, opt := range opts {
		opt(pv)
	}
	if pv.backend == nil {
		pv.backend = compute.Default()
	}
	if pv.integral && l.dims() != 0 {
		return nil, fmt.Errorf("%w: time integral of %dD variable %s", dynamo.ErrNotImplemented, l.dims(), pv.Name())
	}

	for _, seg := range segs {
		if seg.Y == nil && seg.Computed[pv.Name()] == nil {
			return nil, fmt.Errorf("%w: variable %s was not computed and no states were kept",
				dynamo.ErrNotFound, pv.Name())
		}
		pv.t = append(pv.t, seg.T...)
	}
	return pv, nil
}

func (v *Variable) Name() string { return v.vars[0].Name() }

// Dims is the number of spatial dimensions, 0 to 2.
func (v *Variable) Dims() int { return v.layout.dims() }

// T returns the solution times the raw entries are given at.
func (v *Variable) T() []float64 { return append([]float64(nil), v.t...) }

// Axes returns the spatial points of each axis by name.
func (v *Variable) Axes() map[string][]float64 {
	out := make(map[string][]float64, len(v.layout.axes))
	for _, a := range v.layout.axes {
		out[a.name] = append([]float64(nil), a.pts...)
	}
	return out
}

// Entries returns a copy of the variable at every solution time, one
// flattened row per time.
func (v *Variable) Entries() ([][]float64, error) {
	entries, err := v.rawEntries()
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(entries))
	for i, row := range entries {
		out[i] = append([]float64(nil), row...)
	}
	return out, nil
}

// rawEntries is the memoised form of Entries. Callers must not modify it.
func (v *Variable) rawEntries() ([][]float64, error) {
	v.entriesOnce.Do(func() {
		v.entries, v.entriesErr = v.observeRaw()
	})
	return v.entries, v.entriesErr
}

func (v *Variable) observeRaw() ([][]float64, error) {
	name := v.Name()
	var jobs []compute.Job
	var rows [][]float64
	var pending []int

	for i, seg := range v.src.Segments() {
		if c := seg.Computed[name]; c != nil {
			for _, r := range c.Entries {
				rows = append(rows, append([]float64(nil), r...))
			}
			continue
		}
		for k, t := range seg.T {
			jobs = append(jobs, compute.Job{T: t, Y: seg.Y[k], Inputs: seg.Inputs, Eval: v.vars[i].Evaluate})
			pending = append(pending, len(rows))
			rows = append(rows, nil)
		}
	}
	for k, r := range v.observe(jobs) {
		rows[pending[k]] = r
	}

	if v.integral {
		cumulativeTrapezoid(v.t, rows, v.ic)
	}
	return rows, nil
}

// observe runs jobs on the backend when it is usable, index by index
// otherwise.
func (v *Variable) observe(jobs []compute.Job) [][]float64 {
	if len(jobs) == 0 {
		return nil
	}
	if v.backend.Available() && len(jobs) > 1 {
		v.rec.Record(diag.EventObserve, "variable", v.Name(), "path", "batched", "backend", v.backend.Name(), "points", len(jobs))
		return v.backend.Observe(jobs, v.layout.size)
	}
	v.rec.Record(diag.EventFallback, "variable", v.Name(), "points", len(jobs))
	return compute.ObserveSerial(jobs, v.layout.size)
}

func cumulativeTrapezoid(t []float64, rows [][]float64, ic float64) {
	prev := rows[0][0]
	rows[0][0] = ic
	for i := 1; i < len(rows); i++ {
		cur := rows[i][0]
		rows[i][0] = rows[i-1][0] + 0.5*(t[i]-t[i-1])*(cur+prev)
		prev = cur
	}
}

// linearFit interpolates raw entries in time. Times repeated at segment
// joins keep the later segment.
type linearFit struct {
	t    []float64
	rows [][]float64
	fits []interp.PiecewiseLinear
}

func (v *Variable) linearInterp() (*linearFit, error) {
	entries, err := v.rawEntries()
	if err != nil {
		return nil, err
	}
	v.linearOnce.Do(func() {
		lf := &linearFit{}
		for i, t := range v.t {
			if n := len(lf.t); n > 0 && lf.t[n-1] == t {
				lf.rows[n-1] = entries[i]
				continue
			}
			lf.t = append(lf.t, t)
			lf.rows = append(lf.rows, entries[i])
		}
		if len(lf.t) > 1 {
			lf.fits = make([]interp.PiecewiseLinear, v.layout.size)
			ys := make([]float64, len(lf.t))
			for c := range lf.fits {
				for k, r := range lf.rows {
					ys[k] = r[c]
				}
				// Times are strictly increasing here.
				_ = lf.fits[c].Fit(lf.t, ys)
			}
		}
		v.linear = lf
	})
	return v.linear, nil
}

func (lf *linearFit) at(t float64, dst []float64) {
	if lf.fits == nil {
		copy(dst, lf.rows[0])
		return
	}
	for c := range lf.fits {
		dst[c] = lf.fits[c].Predict(t)
	}
}

// stateFit is the cubic Hermite dense output of one segment's states.
type stateFit struct {
	t    []float64
	y    [][]float64
	fits []interp.PiecewiseCubic
}

func (v *Variable) hermiteAvailable() bool {
	if v.integral {
		return false
	}
	for _, seg := range v.src.Segments() {
		if seg.Y == nil || seg.YP == nil {
			return false
		}
	}
	return true
}

func (v *Variable) hermiteFits() []*stateFit {
	v.hermiteOnce.Do(func() {
		for _, seg := range v.src.Segments() {
			sf := &stateFit{}
			var yp [][]float64
			for k, t := range seg.T {
				if n := len(sf.t); n > 0 && sf.t[n-1] == t {
					sf.y[n-1], yp[n-1] = seg.Y[k], seg.YP[k]
					continue
				}
				sf.t = append(sf.t, t)
				sf.y = append(sf.y, seg.Y[k])
				yp = append(yp, seg.YP[k])
			}
			if len(sf.t) > 1 {
				n := len(sf.y[0])
				sf.fits = make([]interp.PiecewiseCubic, n)
				ys := make([]float64, len(sf.t))
				dys := make([]float64, len(sf.t))
				for j := 0; j < n; j++ {
					for k := range sf.t {
						ys[k] = sf.y[k][j]
						dys[k] = yp[k][j]
					}
					sf.fits[j].FitWithDerivatives(sf.t, ys, dys)
				}
			}
			v.hermite = append(v.hermite, sf)
		}
	})
	return v.hermite
}

func (sf *stateFit) at(t float64) dynamo.State {
	if sf.fits == nil {
		return dynamo.State(sf.y[0]).Clone()
	}
	y := make(dynamo.State, len(sf.fits))
	for j := range sf.fits {
		y[j] = sf.fits[j].Predict(t)
	}
	return y
}
