package solver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/processed"
)

// trajectory keeps full stacked states at every output time.
type trajectory struct {
	keepYP bool
	t      []float64
	y, yp  [][]float64
	s      [][][]float64
}

func (r *trajectory) OnOutput(t float64, y, yp []float64, s [][]float64) {
	r.t = append(r.t, t)
	r.y = append(r.y, append([]float64(nil), y...))
	if r.keepYP {
		r.yp = append(r.yp, append([]float64(nil), yp...))
	}
	if r.s == nil {
		r.s = make([][][]float64, len(s))
	}
	for p := range s {
		r.s[p] = append(r.s[p], append([]float64(nil), s[p]...))
	}
}

// outputs evaluates only the restricted variables while integrating, with
// their sensitivities when parameters are tracked. Per-time sensitivity
// blocks are stacked once by finish.
type outputs struct {
	sys      *system
	vars     []dynamo.Variable
	t        []float64
	computed []map[string]*processed.Computed
	sens     []map[string][]*mat.Dense
	err      error
}

func newOutputs(sys *system, vars []dynamo.Variable) *outputs {
	o := &outputs{
		sys:      sys,
		vars:     vars,
		computed: make([]map[string]*processed.Computed, len(sys.inputs)),
		sens:     make([]map[string][]*mat.Dense, len(sys.inputs)),
	}
	for b := range o.computed {
		o.computed[b] = make(map[string]*processed.Computed, len(vars))
		o.sens[b] = make(map[string][]*mat.Dense, len(vars))
		for _, v := range vars {
			o.computed[b][v.Name()] = &processed.Computed{}
		}
	}
	return o
}

func (o *outputs) OnOutput(t float64, y, _ []float64, s [][]float64) {
	if o.err != nil {
		return
	}
	o.t = append(o.t, t)
	n, np := o.sys.n, o.sys.np
	for b, p := range o.sys.inputs {
		yb := o.sys.block(y, b)
		var sb *mat.Dense
		if np > 0 {
			sb = mat.NewDense(n, np, nil)
			for j := 0; j < np; j++ {
				for i := 0; i < n; i++ {
					sb.Set(i, j, s[j][b*n+i])
				}
			}
		}
		for _, v := range o.vars {
			name := v.Name()
			c := o.computed[b][name]
			row := make([]float64, v.Size())
			v.Evaluate(t, yb, p, row)
			c.Entries = append(c.Entries, row)
			if sb == nil {
				continue
			}
			jy, jp, err := processed.Jacobians(v, t, yb, p, o.sys.setup.Params)
			if err != nil {
				o.err = fmt.Errorf("output %s: %w", name, err)
				return
			}
			ds := mat.NewDense(v.Size(), np, nil)
			ds.Mul(jy, sb)
			if jp != nil {
				ds.Add(ds, jp)
			}
			o.sens[b][name] = append(o.sens[b][name], ds)
		}
	}
}

// finish stacks the collected sensitivity blocks, time-major, and returns
// the computed variables per scenario.
func (o *outputs) finish() []map[string]*processed.Computed {
	np := o.sys.np
	if np == 0 {
		return o.computed
	}
	for b, byName := range o.sens {
		for name, blocks := range byName {
			rows := 0
			for _, blk := range blocks {
				r, _ := blk.Dims()
				rows += r
			}
			if rows == 0 {
				continue
			}
			out := mat.NewDense(rows, np, nil)
			off := 0
			for _, blk := range blocks {
				r, _ := blk.Dims()
				out.Slice(off, off+r, 0, np).(*mat.Dense).Copy(blk)
				off += r
			}
			o.computed[b][name].Sens = out
		}
	}
	return o.computed
}
