package egraph

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/eqsched/internal/ir"
)

// Rewrite replaces terms matching LHS with RHS by merging their classes.
//
// Rewrite satisfies schedule.Rule[*EGraph] and schedule.LimitedRule[*EGraph].
type Rewrite struct {
	name        string
	lhs         *Pattern
	rhs         *Pattern
	derivations bool
}

// NewRewrite compiles a rewrite. Every RHS variable must appear in the LHS,
// and the LHS must not be a bare variable.
func NewRewrite(name, lhs, rhs string) (*Rewrite, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: rewrite name is required", ErrParse)
	}
	l, err := ParsePattern(lhs)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s lhs: %w", name, err)
	}
	if l.ast.IsVar() {
		return nil, fmt.Errorf("rewrite %s: %w", name, ErrPatternRoot)
	}
	r, err := ParsePattern(rhs)
	if err != nil {
		return nil, fmt.Errorf("rewrite %s rhs: %w", name, err)
	}
	bound := make(map[ir.Var]bool, len(l.vars))
	for _, v := range l.vars {
		bound[v] = true
	}
	for _, v := range r.vars {
		if !bound[v] {
			return nil, fmt.Errorf("rewrite %s: %w: ?%s", name, ErrUnboundVar, v)
		}
	}
	return &Rewrite{name: name, lhs: l, rhs: r}, nil
}

// MustRewrite is like NewRewrite but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustRewrite(name, lhs, rhs string) *Rewrite {
	rw, err := NewRewrite(name, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return rw
}

// FromSpec compiles a rule spec.
func FromSpec(spec ir.RuleSpec) (*Rewrite, error) {
	return NewRewrite(spec.Name, spec.LHS, spec.RHS)
}

// WithDerivations makes searches attach an AST derivation to each match.
func (r *Rewrite) WithDerivations() *Rewrite {
	r.derivations = true
	return r
}

// Name returns the rule name used as the scheduler statistics key.
func (r *Rewrite) Name() string {
	return r.name
}

// LHS returns the searcher pattern.
func (r *Rewrite) LHS() *Pattern {
	return r.lhs
}

// RHS returns the applier pattern.
func (r *Rewrite) RHS() *Pattern {
	return r.rhs
}

// Search finds every match of the LHS.
func (r *Rewrite) Search(g *EGraph) []ir.SearchMatches {
	return r.SearchWithLimit(g, 0)
}

// SearchWithLimit finds matches of the LHS, stopping once at least limit
// substitutions are found. Zero means no limit.
func (r *Rewrite) SearchWithLimit(g *EGraph, limit int) []ir.SearchMatches {
	ms := r.lhs.SearchWithLimit(g, limit)
	if r.derivations {
		for i := range ms {
			ms[i].Derivation = NewAST(r.lhs.ast)
		}
	}
	return ms
}

// Apply instantiates the RHS for every substitution and merges it with the
// matched class. It returns the number of unions that changed the graph.
// The caller keeps ownership of ms.
func (r *Rewrite) Apply(g *EGraph, ms []ir.SearchMatches) (int, error) {
	changed := 0
	for _, m := range ms {
		for _, s := range m.Substs {
			id, err := r.rhs.Instantiate(g, s)
			if err != nil {
				return changed, fmt.Errorf("apply %s: %w", r.name, err)
			}
			if _, ok := g.Union(m.Class, id); ok {
				changed++
			}
		}
	}
	return changed, nil
}

// liveASTs counts unreleased AST derivations.
var liveASTs atomic.Int64

// AST is the derivation attached to a match: the searcher pattern that
// produced it.
type AST struct {
	expr     *Expr
	released bool
}

// NewAST creates a derivation for expr.
func NewAST(expr *Expr) *AST {
	liveASTs.Add(1)
	return &AST{expr: expr}
}

// Clone implements ir.Derivation.
func (a *AST) Clone() ir.Derivation {
	return NewAST(a.expr)
}

// Release implements ir.Derivation.
func (a *AST) Release() {
	if a.released {
		panic("egraph: AST derivation released twice")
	}
	a.released = true
	liveASTs.Add(-1)
}

// String renders the pattern.
func (a *AST) String() string {
	return a.expr.String()
}

// LiveASTs returns the number of AST derivations not yet released.
func LiveASTs() int64 {
	return liveASTs.Load()
}
