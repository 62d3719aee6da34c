package solution

import (
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/processed"
)

// Batch is the stacked output of one lockstep solve of len(Inputs)
// scenarios.
type Batch struct {
	Model  dynamo.Model
	Inputs []dynamo.Inputs
	Params []string
	T      []float64
	Y      [][]float64   // stacked states per time; nil with restricted outputs
	YP     [][]float64   // stacked derivatives per time, optional
	S      [][][]float64 // [param][time] stacked sensitivities
	// Computed holds restricted outputs per scenario.
	Computed    []map[string]*processed.Computed
	Termination Termination
}

// Split separates the scenarios of a batch into solutions.
func Split(b *Batch, runID string, integrationTime time.Duration) []*Solution {
	k := len(b.Inputs)
	n := b.Model.Size()
	nt := len(b.T)
	np := len(b.S)
	out := make([]*Solution, k)
	for i := 0; i < k; i++ {
		seg := processed.Segment{
			T:      append([]float64(nil), b.T...),
			Inputs: b.Inputs[i],
			Model:  b.Model,
		}
		if b.Y != nil {
			seg.Y = slice(b.Y, i*n, n)
		}
		if b.YP != nil {
			seg.YP = slice(b.YP, i*n, n)
		}
		if np > 0 && b.Y != nil {
			seg.Sens = mat.NewDense(nt*n, np, nil)
			for p := 0; p < np; p++ {
				for ti := 0; ti < nt; ti++ {
					for j := 0; j < n; j++ {
						seg.Sens.Set(ti*n+j, p, b.S[p][ti][i*n+j])
					}
				}
			}
		}
		if b.Computed != nil {
			seg.Computed = b.Computed[i]
		}
		out[i] = New(runID, seg, b.Params, b.Termination, integrationTime)
	}
	return out
}

func slice(rows [][]float64, off, n int) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r[off:off+n]...)
	}
	return out
}
