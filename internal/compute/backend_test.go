package compute

import (
	"math"
	"testing"

	"github.com/san-kum/daesim/internal/dynamo"
)

func squareJobs(n int) []Job {
	eval := func(t float64, y dynamo.State, p dynamo.Inputs, dst []float64) {
		k := p.Scalar("k", 1)
		dst[0] = k * y[0] * y[0]
		dst[1] = t
	}
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			T:      float64(i),
			Y:      dynamo.State{float64(i) * 0.5},
			Inputs: dynamo.Inputs{dynamo.Scalar("k", 2)},
			Eval:   eval,
		}
	}
	return jobs
}

func TestCPUMatchesSerial(t *testing.T) {
	for _, n := range []int{3, 100} {
		jobs := squareJobs(n)
		want := ObserveSerial(jobs, 2)
		got := NewCPUBackend().Observe(jobs, 2)

		if len(got) != len(want) {
			t.Fatalf("n=%d: expected %d rows, got %d", n, len(want), len(got))
		}
		for i := range want {
			for k := range want[i] {
				if got[i][k] != want[i][k] {
					t.Errorf("n=%d row %d: expected %v, got %v", n, i, want[i], got[i])
				}
			}
		}
	}
}

func TestNilStateGivesNaN(t *testing.T) {
	jobs := squareJobs(2)
	jobs[1].Y = nil
	rows := Disabled{}.Observe(jobs, 2)

	if rows[0][0] != 0 {
		t.Errorf("expected 0, got %g", rows[0][0])
	}
	if !math.IsNaN(rows[1][0]) || !math.IsNaN(rows[1][1]) {
		t.Errorf("expected NaN row, got %v", rows[1])
	}
}

func TestDefaultIsStable(t *testing.T) {
	if Default() != Default() {
		t.Error("default backend should be selected once")
	}
	if (Disabled{}).Available() {
		t.Error("disabled backend must not be available")
	}
}
