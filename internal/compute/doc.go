// Package compute provides the batched evaluation backends used by the
// processed variable engine.
//
// The package automatically selects the best available backend:
//
//   - CPU: chunked fan-out of expression evaluations across cores
//   - Disabled: reports unavailable, callers evaluate index by index
//
// # Build Tags
//
// Building with -tags noaccel compiles the CPU backend as unavailable:
//
//	go build -tags noaccel ./...
//
// Both paths call the same expression code, so results are identical.
package compute
