package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for solver and post-processing operations.
var (
	// ErrConfiguration indicates an invalid model, option or input combination.
	ErrConfiguration = errors.New("dynamo: invalid configuration")

	// ErrToleranceType indicates an absolute tolerance that is neither a scalar
	// nor a vector of state length.
	ErrToleranceType = errors.New("dynamo: absolute tolerance must be a float or a state-length vector")

	// ErrSolver indicates the integrator stopped with a failure flag.
	ErrSolver = errors.New("dynamo: integration failed")

	// ErrRange indicates a query outside the solution time range.
	ErrRange = errors.New("dynamo: requested time before solution start")

	// ErrNotImplemented indicates an unsupported variable shape or axis naming.
	ErrNotImplemented = errors.New("dynamo: not implemented")

	// ErrNoSensitivities indicates sensitivities requested from a solution
	// computed without them.
	ErrNoSensitivities = errors.New("dynamo: solution has no sensitivities")

	// ErrNotFound indicates an unknown variable name.
	ErrNotFound = errors.New("dynamo: not found")
)

// SolverError wraps an integrator failure with the flag and the time reached.
type SolverError struct {
	Flag    int
	Time    float64
	Wrapped error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("%v (flag %d at t=%g)", e.Wrapped, e.Flag, e.Time)
}

func (e *SolverError) Unwrap() error {
	return e.Wrapped
}
