package testutil

import (
	"github.com/roach88/eqsched/internal/ir"
)

// FakeGraph is an inert graph for scheduler tests. Schedulers must never
// mutate it; Mutations exists so tests can assert that.
type FakeGraph struct {
	Mutations int
}

// Matches builds one record per entry of sizes. Record i lives in class
// i+1 and carries sizes[i] distinct substitutions. When tracker is non-nil
// every record gets a fresh derivation.
func Matches(tracker *DerivationTracker, sizes ...int) []ir.SearchMatches {
	ms := make([]ir.SearchMatches, len(sizes))
	for i, n := range sizes {
		ms[i] = Record(tracker, ir.ClassID(i+1), n)
	}
	return ms
}

// Record builds one record in class with n distinct substitutions.
func Record(tracker *DerivationTracker, class ir.ClassID, n int) ir.SearchMatches {
	substs := make([]ir.Subst, n)
	for j := range substs {
		substs[j] = ir.Subst{}.Insert("x", ir.ClassID(int(class)*1000+j))
	}
	m := ir.SearchMatches{Class: class, Substs: substs}
	if tracker != nil {
		m.Derivation = tracker.New()
	}
	return m
}

// SearchFunc produces the matches for the call-th search (zero-based).
// It must return fresh records on every call.
type SearchFunc func(call int) []ir.SearchMatches

// FakeRule is a scripted rule. It counts searches and returns whatever its
// SearchFunc produces.
type FakeRule struct {
	name   string
	search SearchFunc

	// Calls counts Search and SearchWithLimit invocations.
	Calls int
}

// NewFakeRule creates a rule named name backed by search.
func NewFakeRule(name string, search SearchFunc) *FakeRule {
	return &FakeRule{name: name, search: search}
}

// StaticRule returns the same shape of matches on every call: one record
// per entry of sizes, with derivations from tracker when it is non-nil.
func StaticRule(name string, tracker *DerivationTracker, sizes ...int) *FakeRule {
	return NewFakeRule(name, func(int) []ir.SearchMatches {
		return Matches(tracker, sizes...)
	})
}

// ScriptedRule returns script[call] on each call and nothing once the script
// runs out. Each script entry lists record sizes as in Matches.
func ScriptedRule(name string, tracker *DerivationTracker, script ...[]int) *FakeRule {
	return NewFakeRule(name, func(call int) []ir.SearchMatches {
		if call >= len(script) {
			return nil
		}
		return Matches(tracker, script[call]...)
	})
}

// Name returns the rule name.
func (r *FakeRule) Name() string {
	return r.name
}

// Search returns the next scripted result.
func (r *FakeRule) Search(*FakeGraph) []ir.SearchMatches {
	ms := r.search(r.Calls)
	r.Calls++
	return ms
}

// LimitedFakeRule is a FakeRule that also supports limited search.
type LimitedFakeRule struct {
	*FakeRule

	// Limits records the limit passed to each SearchWithLimit call.
	Limits []int
}

// NewLimitedFakeRule wraps r with limited search support.
func NewLimitedFakeRule(r *FakeRule) *LimitedFakeRule {
	return &LimitedFakeRule{FakeRule: r}
}

// SearchWithLimit returns records until at least limit substitutions have
// been collected. Records beyond that point are released and dropped.
func (r *LimitedFakeRule) SearchWithLimit(g *FakeGraph, limit int) []ir.SearchMatches {
	r.Limits = append(r.Limits, limit)
	ms := r.Search(g)
	total := 0
	for i := range ms {
		if total >= limit {
			ir.ReleaseAll(ms[i:])
			return ms[:i]
		}
		total += len(ms[i].Substs)
	}
	return ms
}
