// Package solver drives batched integrations of a model.
//
// A Setup is built once per model and option set; a Solver then solves any
// number of input scenarios with it, batch by batch:
//
//	setup, err := solver.NewSetup(model, config.DefaultOptions(), 2)
//	s := solver.New(setup, diag.NewSlog(logger))
//	sols, err := s.Solve(ctx, t, inputsA, inputsB, inputsC, inputsD)
//
// Each group of BatchSize scenarios is integrated in lockstep as one
// block-diagonal system. Groups run concurrently, up to NumThreads at once.
package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/daesim/internal/diag"
	"github.com/san-kum/daesim/internal/dynamo"
	"github.com/san-kum/daesim/internal/integrators"
	"github.com/san-kum/daesim/internal/solution"
)

type Solver struct {
	setup *Setup
	rec   diag.Recorder
}

func New(setup *Setup, rec diag.Recorder) *Solver {
	s := &Solver{setup: setup, rec: diag.OrNop(rec)}
	attrs := []any{
		"model", setup.Model.Name(),
		"kernel", setup.Kernel.Name(),
		"batch", setup.BatchSize,
		"nnz", setup.Pattern.NNZ(),
		"events", setup.NumEvents,
	}
	if setup.Options.Iterative() || setup.Options.Jacobian == "matrix-free" {
		attrs = append(attrs, "linear_solver", "direct block LU", "requested", setup.Options.LinearSolver)
	}
	if len(setup.Ignored) > 0 {
		attrs = append(attrs, "sensitivities_ignored", setup.Ignored)
	}
	s.rec.Record(diag.EventSetup, attrs...)
	return s
}

func (s *Solver) Setup() *Setup { return s.setup }

// Solve integrates every scenario over tEval and returns one solution per
// scenario, in input order. The number of scenarios must be a multiple of
// the batch size; no inputs solve a single default scenario. A failed
// integration aborts the whole call with a *dynamo.SolverError.
func (s *Solver) Solve(ctx context.Context, tEval []float64, inputs ...dynamo.Inputs) ([]*solution.Solution, error) {
	k := s.setup.BatchSize
	if len(inputs) == 0 {
		inputs = make([]dynamo.Inputs, k)
	}
	if len(inputs)%k != 0 {
		return nil, fmt.Errorf("%w: %d scenarios do not fill batches of %d", dynamo.ErrConfiguration, len(inputs), k)
	}

	np := 0
	for i, in := range inputs {
		size, err := in.Size(s.setup.Params)
		if err != nil {
			return nil, err
		}
		if i > 0 && size != np {
			return nil, fmt.Errorf("%w: scenario %d has %d sensitivity inputs, expected %d",
				dynamo.ErrConfiguration, i, size, np)
		}
		np = size
	}

	runID := uuid.NewString()
	batches := len(inputs) / k
	s.rec.Record(diag.EventSolve, "run", runID, "scenarios", len(inputs), "batches", batches)

	results := make([][]*solution.Solution, batches)
	g, gctx := errgroup.WithContext(ctx)
	threads := s.setup.Options.NumThreads
	if threads < 1 {
		threads = 1
	}
	g.SetLimit(threads)
	for b := 0; b < batches; b++ {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sols, err := s.solveBatch(runID, tEval, inputs[b*k:(b+1)*k], np)
			if err != nil {
				return err
			}
			results[b] = sols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*solution.Solution, 0, len(inputs))
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (s *Solver) solveBatch(runID string, tEval []float64, inputs []dynamo.Inputs, np int) ([]*solution.Solution, error) {
	start := time.Now()
	opts := s.setup.Options
	sys := newSystem(s.setup, inputs, np)

	y0, s0, err := sys.initialState()
	if err != nil {
		return nil, err
	}

	bdf := integrators.NewBDF(sys, s.setup.Atol, opts.Rtol, opts).WithRecorder(s.rec)
	if np > 0 {
		bdf.WithSensitivities(sys)
	}

	var (
		traj *trajectory
		outs *outputs
		obs  integrators.Observer
	)
	if len(s.setup.Outputs) > 0 {
		outs = newOutputs(sys, s.setup.Outputs)
		obs = outs
	} else {
		traj = &trajectory{keepYP: opts.HermiteInterpolation}
		obs = traj
	}

	res, err := bdf.Integrate(tEval, y0, nil, s0, obs)
	if err != nil {
		return nil, err
	}
	if outs != nil && outs.err != nil {
		return nil, outs.err
	}
	if res.Flag != integrators.FlagSuccess && res.Flag != integrators.FlagRoot {
		return nil, &dynamo.SolverError{Flag: res.Flag, Time: res.T, Wrapped: dynamo.ErrSolver}
	}
	elapsed := time.Since(start)

	term := solution.FinalTime
	if res.Flag == integrators.FlagRoot {
		term = solution.Event
	}
	if opts.PrintStats {
		st := res.Stats
		s.rec.Record(diag.EventStats,
			"run", runID,
			"steps", st.Steps,
			"rhs_evals", st.RHSEvals,
			"jac_evals", st.JacEvals,
			"newton_iters", st.NewtonIters,
			"err_test_fails", st.ErrTestFails,
			"conv_fails", st.ConvFails,
			"root_evals", st.RootEvals,
			"order", st.Order,
			"last_step", st.LastStep,
		)
	}
	s.rec.Record(diag.EventSolveDone, "run", runID, "termination", string(term), "duration", elapsed, "t", res.T)

	batch := &solution.Batch{
		Model:       s.setup.Model,
		Inputs:      inputs,
		Params:      s.setup.Params,
		Termination: term,
	}
	if traj != nil {
		batch.T, batch.Y, batch.YP, batch.S = traj.t, traj.y, traj.yp, traj.s
	} else {
		batch.T, batch.Computed = outs.t, outs.finish()
	}
	return solution.Split(batch, runID, elapsed), nil
}

func errInitialState(got, want int) error {
	return fmt.Errorf("%w: initial state has %d entries for %d states", dynamo.ErrConfiguration, got, want)
}
