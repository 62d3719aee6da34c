package processed

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Sensitivities returns ∂v/∂p per input name and under "all", each with
// one row per (time, entry) pair, entry fastest. A solution without
// sensitivity inputs gives an empty map.
func (v *Variable) Sensitivities() (map[string]*mat.Dense, error) {
	v.sensOnce.Do(func() {
		v.sens, v.sensErr = v.computeSensitivities()
	})
	if v.sensErr != nil {
		return nil, v.sensErr
	}
	out := make(map[string]*mat.Dense, len(v.sens))
	for name, m := range v.sens {
		out[name] = mat.DenseCopyOf(m)
	}
	return out, nil
}

func (v *Variable) computeSensitivities() (map[string]*mat.Dense, error) {
	params := v.src.SensitivityParams()
	if len(params) == 0 {
		return map[string]*mat.Dense{}, nil
	}
	name := v.Name()
	m := v.layout.size

	var all *mat.Dense
	for i, seg := range v.src.Segments() {
		var block *mat.Dense
		if c := seg.Computed[name]; c != nil && c.Sens != nil {
			block = c.Sens
		} else {
			if seg.Sens == nil || seg.Y == nil {
				return nil, fmt.Errorf("%w: variable %s", dynamo.ErrNoSensitivities, name)
			}
			var err error
			block, err = chainRule(v.vars[i], seg, params, m)
			if err != nil {
				return nil, err
			}
		}
		if all == nil {
			all = mat.DenseCopyOf(block)
			continue
		}
		var stacked mat.Dense
		stacked.Stack(all, block)
		all = &stacked
	}

	if v.integral {
		integrateRows(v.t, all)
	}
	return SplitParams(all, v.src.Segments()[0].Inputs, params)
}

// chainRule evaluates ∂v/∂y·S + ∂v/∂p at every time of seg.
func chainRule(va dynamo.Variable, seg Segment, params []string, m int) (*mat.Dense, error) {
	n := len(seg.Y[0])
	_, np := seg.Sens.Dims()
	out := mat.NewDense(len(seg.T)*m, np, nil)
	for k, t := range seg.T {
		jy, jp, err := Jacobians(va, t, seg.Y[k], seg.Inputs, params)
		if err != nil {
			return nil, err
		}
		dst := out.Slice(k*m, (k+1)*m, 0, np).(*mat.Dense)
		dst.Mul(jy, seg.Sens.Slice(k*n, (k+1)*n, 0, np))
		if jp != nil {
			dst.Add(dst, jp)
		}
	}
	return out, nil
}

// integrateRows replaces each row of a scalar sensitivity by its running
// trapezoid integral in time.
func integrateRows(t []float64, s *mat.Dense) {
	_, np := s.Dims()
	for j := 0; j < np; j++ {
		prev := s.At(0, j)
		s.Set(0, j, 0)
		for i := 1; i < len(t); i++ {
			cur := s.At(i, j)
			s.Set(i, j, s.At(i-1, j)+0.5*(t[i]-t[i-1])*(cur+prev))
			prev = cur
		}
	}
}

// SplitParams slices the columns of an "all" sensitivity matrix per input
// name, in declared order.
func SplitParams(all *mat.Dense, in dynamo.Inputs, names []string) (map[string]*mat.Dense, error) {
	out := map[string]*mat.Dense{"all": all}
	rows, _ := all.Dims()
	col := 0
	for _, name := range names {
		val, ok := in.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: input %q not provided", dynamo.ErrConfiguration, name)
		}
		out[name] = mat.DenseCopyOf(all.Slice(0, rows, col, col+len(val)))
		col += len(val)
	}
	return out, nil
}
