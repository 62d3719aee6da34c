package solver

import (
	"fmt"
	"math/rand"

	"github.com/san-kum/daesim/internal/config"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/sparse"
)

const (
	probeTime = 10
	probeSeed = 1
)

// Setup holds the artifacts shared by every solve of one model: the kernel,
// the block-diagonal mass matrix and Jacobian pattern, ids and tolerances.
// A Setup is immutable once built.
type Setup struct {
	Model     dynamo.Model
	Options   config.Options
	BatchSize int
	Kernel    Kernel
	Outputs   []dynamo.Variable

	// Mass and IDs are stacked over the batch.
	Mass    *sparse.CSC
	IDs     []float64
	Atol    []float64
	Pattern sparse.Pattern

	NumEvents int
	// Params are the inputs sensitivities are computed for, in declared
	// order. Empty when none were requested or the model cannot provide
	// them; Ignored then lists the requested names.
	Params  []string
	Ignored []string

	blockMass *sparse.CSC
}

// NewSetup checks the model and options and builds the shared artifacts
// for batches of batchSize scenarios. Listing outputs restricts what
// solutions keep to those variables.
func NewSetup(model dynamo.Model, opts config.Options, batchSize int, outputs ...dynamo.Variable) (*Setup, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if batchSize < 1 {
		return nil, fmt.Errorf("%w: batch size %d", dynamo.ErrConfiguration, batchSize)
	}
	kernel, err := newKernel(model, opts.Jacobian)
	if err != nil {
		return nil, err
	}

	n := model.Size()
	ids := model.DifferentialIDs()
	if len(ids) != n {
		return nil, fmt.Errorf("%w: %d differential ids for %d states", dynamo.ErrConfiguration, len(ids), n)
	}
	mass := model.MassMatrix()
	if r, c := mass.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: mass matrix is %dx%d for %d states", dynamo.ErrConfiguration, r, c, n)
	}
	for i, id := range ids {
		if id == 0 && !mass.RowIsZero(i) {
			return nil, fmt.Errorf("%w: mass matrix row %d of an algebraic state is not zero", dynamo.ErrConfiguration, i)
		}
	}

	if len(outputs) > 0 {
		if r, ok := model.(dynamo.Representer); ok && r.Representation() != dynamo.RepresentationCompiled {
			return nil, fmt.Errorf("%w: output variables need a %s model, got %s",
				dynamo.ErrConfiguration, dynamo.RepresentationCompiled, r.Representation())
		}
	}

	rng := rand.New(rand.NewSource(probeSeed))
	probe := make(dynamo.State, n)
	for i := range probe {
		probe[i] = rng.Float64()
	}
	structure := kernel.Structure(probeTime, probe, nil)
	if r, c := structure.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: jacobian is %dx%d for %d states", dynamo.ErrConfiguration, r, c, n)
	}
	block := sparse.Union(structure, mass)

	tol := opts.Atol
	if a, ok := model.(dynamo.AbsoluteTolerance); ok {
		tol = a.Atol()
	}
	atol, err := CheckAtol(tol, n)
	if err != nil {
		return nil, err
	}

	s := &Setup{
		Model:     model,
		Options:   opts,
		BatchSize: batchSize,
		Kernel:    kernel,
		Outputs:   outputs,
		Mass:      sparse.BlockDiag(mass, batchSize),
		Pattern:   sparse.BlockDiag(block, batchSize).Pattern(),
		blockMass: mass,
	}
	for b := 0; b < batchSize; b++ {
		s.IDs = append(s.IDs, ids...)
		s.Atol = append(s.Atol, atol...)
	}
	if ev, ok := model.(dynamo.EventSource); ok {
		s.NumEvents = ev.NumEvents()
	}
	if len(opts.Sensitivities) > 0 {
		if _, ok := model.(dynamo.ParamJacobian); ok {
			s.Params = append([]string(nil), opts.Sensitivities...)
		} else {
			s.Ignored = append([]string(nil), opts.Sensitivities...)
		}
	}
	return s, nil
}

// Size is the stacked state length of one batch.
func (s *Setup) Size() int { return s.Model.Size() * s.BatchSize }
