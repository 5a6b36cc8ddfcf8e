// Package runner drives equality saturation.
//
// A Runner owns one graph, an ordered list of rules and one scheduler. Each
// iteration searches every rule through the scheduler, applies the admitted
// matches, rebuilds the graph and records an Iteration. The run stops when
// the graph is saturated or a limit is hit.
//
// Thread-safety model:
//   - Run must be called from exactly one goroutine
//   - the scheduler and graph are owned by the run and mutated without locks
//
// INVARIANTS:
//   - rule order never changes after construction
//   - rule names are unique
//   - every admitted record's derivation is released after apply
package runner
