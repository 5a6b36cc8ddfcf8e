// Package harness provides a conformance testing framework for saturation
// runs.
//
// A scenario is a YAML file naming a rule set (inline, from a CUE specs
// directory, or both), a scheduler override, the start expressions, runner
// limits and a list of assertions:
//
//	name: comm-saturates
//	rules:
//	  - name: comm-add
//	    lhs: "(+ ?a ?b)"
//	    rhs: "(+ ?b ?a)"
//	scheduler:
//	  strategy: backoff
//	exprs:
//	  - "(+ a b)"
//	assertions:
//	  - type: equivalent
//	    a: "(+ a b)"
//	    b: "(+ b a)"
//	  - type: stop_reason
//	    reason: saturated
//
// Run executes the scenario against a fresh term graph with a fixed run id
// and a step clock, persists the report to an in-memory store, and builds the
// result's trace from the stored rows. The same scenario therefore always
// produces the same trace, which is compared against a golden file.
//
// # Determinism
//
// Timings are excluded from traces. Everything else in a trace depends only
// on the rules, the scheduler and the start expressions.
package harness
