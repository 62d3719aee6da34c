//go:build noaccel

package compute

type CPUBackend struct{}

func NewCPUBackend() *CPUBackend {
	return &CPUBackend{}
}

func (c *CPUBackend) Name() string    { return "cpu (not available)" }
func (c *CPUBackend) Available() bool { return false }
func (c *CPUBackend) Cleanup()        {}

func (c *CPUBackend) Observe(jobs []Job, size int) [][]float64 {
	return ObserveSerial(jobs, size)
}
