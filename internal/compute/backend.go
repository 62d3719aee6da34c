package compute

import (
	"math"
	"sync"

	"github.com/san-kum/daesim/internal/dynamo"
)

// Job is one evaluation of a variable expression at a state.
type Job struct {
	T      float64
	Y      dynamo.State
	Inputs dynamo.Inputs
	Eval   func(t float64, y dynamo.State, p dynamo.Inputs, dst []float64)
}

type Backend interface {
	Name() string
	Available() bool
	// Observe evaluates every job into a row of length size. Jobs with a nil
	// state produce NaN rows.
	Observe(jobs []Job, size int) [][]float64
	Cleanup()
}

var (
	defaultOnce    sync.Once
	defaultBackend Backend
)

// Default returns the auto-selected backend, chosen once per process.
func Default() Backend {
	defaultOnce.Do(func() {
		defaultBackend = AutoSelectBackend()
	})
	return defaultBackend
}

func AutoSelectBackend() Backend {
	cpu := NewCPUBackend()
	if cpu.Available() {
		return cpu
	}
	return Disabled{}
}

// Disabled never reports itself available, which forces callers onto
// their index-by-index path.
type Disabled struct{}

func (Disabled) Name() string    { return "disabled" }
func (Disabled) Available() bool { return false }
func (Disabled) Cleanup()        {}

func (Disabled) Observe(jobs []Job, size int) [][]float64 {
	return ObserveSerial(jobs, size)
}

// ObserveSerial evaluates jobs one at a time in order.
func ObserveSerial(jobs []Job, size int) [][]float64 {
	rows := make([][]float64, len(jobs))
	for i := range jobs {
		rows[i] = observe(jobs[i], size)
	}
	return rows
}

func observe(j Job, size int) []float64 {
	row := make([]float64, size)
	if j.Y == nil {
		for k := range row {
			row[k] = math.NaN()
		}
		return row
	}
	j.Eval(j.T, j.Y, j.Inputs, row)
	return row
}
