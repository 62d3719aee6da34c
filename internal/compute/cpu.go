//go:build !noaccel

package compute

import (
	"runtime"
	"sync"
)

// CPUBackend evaluates jobs in chunks across all cores.
type CPUBackend struct {
	workers int
}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{
		workers: runtime.NumCPU(),
	}
}

func (c *CPUBackend) Name() string    { return "cpu" }
func (c *CPUBackend) Available() bool { return true }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) Observe(jobs []Job, size int) [][]float64 {
	n := len(jobs)
	rows := make([][]float64, n)

	if n < 16 || c.workers <= 1 {
		for i := range jobs {
			rows[i] = observe(jobs[i], size)
		}
		return rows
	}

	var wg sync.WaitGroup
	chunkSize := (n + c.workers - 1) / c.workers

	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				rows[i] = observe(jobs[i], size)
			}
		}(start, end)
	}

	wg.Wait()
	return rows
}
