// Package egraph is a small in-memory term graph used to drive the
// schedulers end to end.
//
// Terms are symbolic: an operator name plus zero or more children, written
// as s-expressions ("(+ a (* b 2))"). Equal terms live in the same
// equivalence class; Union merges classes and Rebuild restores congruence
// closure.
//
// The package also provides patterns ("(+ ?a ?b)") and rewrites built from a
// pair of patterns. A Rewrite satisfies schedule.Rule[*EGraph], so any
// scheduler can admit its matches.
//
// The graph is not safe for concurrent use. The saturation driver searches,
// then applies, then rebuilds, all from one goroutine.
package egraph
