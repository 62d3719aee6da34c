package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/daesim/internal/dynamo"
)

const (
	DefaultRtol                = 1e-6
	DefaultAtol                = 1e-6
	DefaultMaxOrderBDF         = 5
	DefaultMaxNumSteps         = 100000
	DefaultMaxErrorTestFails   = 10
	DefaultMaxNonlinearIters   = 40
	DefaultMaxConvergenceFails = 100
	DefaultNonlinConvCoef      = 0.33
	DefaultNonlinConvCoefIC    = 0.0033
	DefaultMaxNumStepsIC       = 50
	DefaultMaxIterationsIC     = 100
	DefaultMaxBacktracksIC     = 100
	DefaultLinsolMaxIterations = 5
	DefaultPreconHalfBandwidth = 5
)

// Options controls setup and integration.
type Options struct {
	PrintStats                        bool     `yaml:"print_stats"`
	Jacobian                          string   `yaml:"jacobian"`
	LinearSolver                      string   `yaml:"linear_solver"`
	Preconditioner                    string   `yaml:"preconditioner"`
	LinsolMaxIterations               int      `yaml:"linsol_max_iterations"`
	PreconHalfBandwidth               int      `yaml:"precon_half_bandwidth"`
	PreconHalfBandwidthKeep           int      `yaml:"precon_half_bandwidth_keep"`
	NumThreads                        int      `yaml:"num_threads"`
	MaxOrderBDF                       int      `yaml:"max_order_bdf"`
	MaxNumSteps                       int      `yaml:"max_num_steps"`
	DtInit                            float64  `yaml:"dt_init"`
	DtMax                             float64  `yaml:"dt_max"`
	MaxErrorTestFailures              int      `yaml:"max_error_test_failures"`
	MaxNonlinearIterations            int      `yaml:"max_nonlinear_iterations"`
	MaxConvergenceFailures            int      `yaml:"max_convergence_failures"`
	NonlinearConvergenceCoefficient   float64  `yaml:"nonlinear_convergence_coefficient"`
	NonlinearConvergenceCoefficientIC float64  `yaml:"nonlinear_convergence_coefficient_ic"`
	SuppressAlgebraicError            bool     `yaml:"suppress_algebraic_error"`
	MaxNumStepsIC                     int      `yaml:"max_num_steps_ic"`
	MaxNumIterationsIC                int      `yaml:"max_number_iterations_ic"`
	MaxLinesearchBacktracksIC         int      `yaml:"max_linesearch_backtracks_ic"`
	LinesearchOffIC                   bool     `yaml:"linesearch_off_ic"`
	CalcIC                            bool     `yaml:"calc_ic"`
	HermiteInterpolation              bool     `yaml:"hermite_interpolation"`
	Rtol                              float64  `yaml:"rtol"`
	Atol                              any      `yaml:"atol"`
	Sensitivities                     []string `yaml:"sensitivities,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Jacobian:                          "sparse",
		LinearSolver:                      "SUNLinSol_KLU",
		Preconditioner:                    "BBDP",
		LinsolMaxIterations:               DefaultLinsolMaxIterations,
		PreconHalfBandwidth:               DefaultPreconHalfBandwidth,
		PreconHalfBandwidthKeep:           DefaultPreconHalfBandwidth,
		NumThreads:                        1,
		MaxOrderBDF:                       DefaultMaxOrderBDF,
		MaxNumSteps:                       DefaultMaxNumSteps,
		MaxErrorTestFailures:              DefaultMaxErrorTestFails,
		MaxNonlinearIterations:            DefaultMaxNonlinearIters,
		MaxConvergenceFailures:            DefaultMaxConvergenceFails,
		NonlinearConvergenceCoefficient:   DefaultNonlinConvCoef,
		NonlinearConvergenceCoefficientIC: DefaultNonlinConvCoefIC,
		MaxNumStepsIC:                     DefaultMaxNumStepsIC,
		MaxNumIterationsIC:                DefaultMaxIterationsIC,
		MaxLinesearchBacktracksIC:         DefaultMaxBacktracksIC,
		CalcIC:                            true,
		HermiteInterpolation:              true,
		Rtol:                              DefaultRtol,
		Atol:                              DefaultAtol,
	}
}

func Load(path string) (Options, error) {
	return LoadOver(path, DefaultOptions())
}

// LoadOver reads path on top of base: fields absent from the file keep
// their base values.
func LoadOver(path string, base Options) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, err
	}
	opts := base
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return opts, opts.Validate()
}

func Save(path string, opts Options) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var (
	jacobianKinds = map[string]bool{
		"sparse": true, "banded": true, "dense": true, "none": true, "matrix-free": true,
	}
	iterativeSolvers = map[string]bool{
		"SUNLinSol_SPBCGS": true, "SUNLinSol_SPFGMR": true, "SUNLinSol_SPGMR": true, "SUNLinSol_SPTFQMR": true,
	}
	preconditioners = map[string]bool{"none": true, "BBDP": true}
)

// Validate checks the option set and the jacobian/linear solver pairing.
func (o Options) Validate() error {
	if !jacobianKinds[o.Jacobian] {
		return fmt.Errorf("%w: unknown jacobian type %q", dynamo.ErrConfiguration, o.Jacobian)
	}
	if !preconditioners[o.Preconditioner] {
		return fmt.Errorf("%w: unknown preconditioner %q", dynamo.ErrConfiguration, o.Preconditioner)
	}

	ok := false
	switch {
	case o.LinearSolver == "SUNLinSol_KLU":
		ok = o.Jacobian == "sparse"
	case o.LinearSolver == "SUNLinSol_Dense" || o.LinearSolver == "SUNLinSol_LapackDense":
		ok = o.Jacobian == "dense" || o.Jacobian == "none"
	case o.LinearSolver == "SUNLinSol_Band" || o.LinearSolver == "SUNLinSol_LapackBand":
		ok = o.Jacobian == "banded"
	case iterativeSolvers[o.LinearSolver]:
		ok = o.Jacobian == "sparse" || o.Jacobian == "matrix-free"
	default:
		return fmt.Errorf("%w: unknown linear solver %q", dynamo.ErrConfiguration, o.LinearSolver)
	}
	if !ok {
		return fmt.Errorf("%w: linear solver %q does not support jacobian %q",
			dynamo.ErrConfiguration, o.LinearSolver, o.Jacobian)
	}

	if o.Rtol <= 0 {
		return fmt.Errorf("%w: rtol must be positive", dynamo.ErrConfiguration)
	}
	if o.MaxOrderBDF < 1 || o.MaxOrderBDF > 5 {
		return fmt.Errorf("%w: max_order_bdf must be in [1, 5]", dynamo.ErrConfiguration)
	}
	if o.MaxNumSteps < 1 {
		return fmt.Errorf("%w: max_num_steps must be positive", dynamo.ErrConfiguration)
	}
	if o.DtMax < 0 || o.DtInit < 0 {
		return fmt.Errorf("%w: step bounds must be non-negative", dynamo.ErrConfiguration)
	}
	return nil
}

// Iterative reports whether the options name an iterative linear solver.
func (o Options) Iterative() bool {
	return iterativeSolvers[o.LinearSolver]
}
