package solver

import (
	"fmt"

	"github.com/san-kum/daesim/internal/dynamo"
)

// CheckAtol broadcasts a scalar tolerance to n states or checks a
// per-state vector.
func CheckAtol(atol any, n int) ([]float64, error) {
	fill := func(v float64) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = v
		}
		return out
	}

	switch a := atol.(type) {
	case float64:
		return fill(a), nil
	case float32:
		return fill(float64(a)), nil
	case int:
		return fill(float64(a)), nil
	case []float64:
		if len(a) != n {
			return nil, fmt.Errorf("%w: got %d values for %d states", dynamo.ErrToleranceType, len(a), n)
		}
		return append([]float64(nil), a...), nil
	case []any:
		// yaml sequences decode to []any.
		if len(a) != n {
			return nil, fmt.Errorf("%w: got %d values for %d states", dynamo.ErrToleranceType, len(a), n)
		}
		out := make([]float64, n)
		for i, v := range a {
			switch x := v.(type) {
			case float64:
				out[i] = x
			case int:
				out[i] = float64(x)
			default:
				return nil, fmt.Errorf("%w: element %d is %T", dynamo.ErrToleranceType, i, v)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: got %T", dynamo.ErrToleranceType, atol)
}
