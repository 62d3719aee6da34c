package processed

import (
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Jacobians returns ∂v/∂y and ∂v/∂p for the named inputs. Variables that
// are not dynamo.Differentiable are differenced centrally. jp is nil when
// names is empty.
func Jacobians(v dynamo.Variable, t float64, y dynamo.State, p dynamo.Inputs, names []string) (jy, jp *mat.Dense, err error) {
	flat, err := p.Flatten(names)
	if err != nil {
		return nil, nil, err
	}
	if d, ok := v.(dynamo.Differentiable); ok {
		jy = d.JacobianY(t, y, p)
		if len(flat) > 0 {
			jp = d.JacobianP(t, y, p, names)
		}
		return jy, jp, nil
	}

	m := v.Size()
	settings := &fd.JacobianSettings{Formula: fd.Central}
	jy = mat.NewDense(m, len(y), nil)
	fd.Jacobian(jy, func(out, x []float64) {
		v.Evaluate(t, x, p, out)
	}, y, settings)

	if len(flat) > 0 {
		jp = mat.NewDense(m, len(flat), nil)
		fd.Jacobian(jp, func(out, x []float64) {
			v.Evaluate(t, y, p.Replace(names, x), out)
		}, flat, settings)
	}
	return jy, jp, nil
}
