// Package dynamo provides the core types shared by the solver and the
// post-processing layers.
//
// The package defines the contract between a discretized model and the
// integration engine:
//
//   - [State]: vector representing the system state
//   - [Inputs]: ordered record of named model inputs
//   - [Model]: residual system M·y′ = f(t, y, p)
//   - [Jacobian], [SparseJacobian]: ∂f/∂y capabilities, one is required
//   - [ParamJacobian]: ∂f/∂p, required for sensitivities
//   - [EventSource]: termination events
//   - [Variable]: output expressions and their [Domain]
//
// # Example
//
//	model := models.NewDecay()
//	setup, _ := solver.NewSetup(model, config.DefaultOptions(), 1)
//	sols, _ := solver.New(setup, nil).Solve(ctx, times, dynamo.Inputs{dynamo.Scalar("k", 1)})
//	y, _ := sols[0].Variable("y")
//
// # Thread Safety
//
// Models and variables are evaluated concurrently across batch scenarios
// and time points. Implementations must not keep mutable state.
package dynamo
