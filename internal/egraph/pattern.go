package egraph

import (
	"fmt"

	"github.com/roach88/eqsched/internal/ir"
)

// Pattern is a term with variables, e.g. "(+ ?a (* ?b 0))".
type Pattern struct {
	ast  *Expr
	vars []ir.Var
}

// ParsePattern parses src as a pattern.
func ParsePattern(src string) (*Pattern, error) {
	e, err := Parse(src)
	if err != nil {
		return nil, err
	}
	p := &Pattern{ast: e}
	seen := make(map[ir.Var]bool)
	collectVars(e, seen, &p.vars)
	return p, nil
}

func collectVars(e *Expr, seen map[ir.Var]bool, out *[]ir.Var) {
	if e.IsVar() {
		v := ir.Var(e.Op[1:])
		if !seen[v] {
			seen[v] = true
			*out = append(*out, v)
		}
		return
	}
	for _, c := range e.Children {
		collectVars(c, seen, out)
	}
}

// Vars returns the pattern's variables in first-occurrence order.
func (p *Pattern) Vars() []ir.Var {
	return p.vars
}

// String renders the pattern source.
func (p *Pattern) String() string {
	return p.ast.String()
}

// Search returns every class where the pattern matches, with all
// substitutions for each class. Classes are visited in ascending id order.
func (p *Pattern) Search(g *EGraph) []ir.SearchMatches {
	return p.SearchWithLimit(g, 0)
}

// SearchWithLimit is like Search but stops once at least limit
// substitutions have been collected. A limit of zero means no limit.
func (p *Pattern) SearchWithLimit(g *EGraph, limit int) []ir.SearchMatches {
	var out []ir.SearchMatches
	total := 0
	for _, id := range g.Classes() {
		substs := p.SearchClass(g, id)
		if len(substs) == 0 {
			continue
		}
		out = append(out, ir.SearchMatches{Class: id, Substs: substs})
		total += len(substs)
		if limit > 0 && total >= limit {
			break
		}
	}
	return out
}

// SearchClass returns the distinct substitutions under which the pattern
// matches class id.
func (p *Pattern) SearchClass(g *EGraph, id ir.ClassID) []ir.Subst {
	raw := matchExpr(g, p.ast, g.Find(id), ir.Subst{})
	if len(raw) <= 1 {
		return raw
	}
	seen := make(map[string]bool, len(raw))
	out := raw[:0]
	for _, s := range raw {
		k := s.String()
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

func matchExpr(g *EGraph, pat *Expr, id ir.ClassID, subst ir.Subst) []ir.Subst {
	id = g.Find(id)
	if pat.IsVar() {
		v := ir.Var(pat.Op[1:])
		if bound, ok := subst.Get(v); ok {
			if g.Find(bound) == id {
				return []ir.Subst{subst}
			}
			return nil
		}
		return []ir.Subst{subst.Insert(v, id)}
	}

	cls := g.classes[id]
	if cls == nil {
		return nil
	}
	var out []ir.Subst
	for _, n := range cls.Nodes {
		if n.Op != pat.Op || len(n.Children) != len(pat.Children) {
			continue
		}
		substs := []ir.Subst{subst}
		for i, child := range pat.Children {
			var next []ir.Subst
			for _, s := range substs {
				next = append(next, matchExpr(g, child, n.Children[i], s)...)
			}
			substs = next
			if len(substs) == 0 {
				break
			}
		}
		out = append(out, substs...)
	}
	return out
}

// Instantiate adds the pattern to g with variables replaced by their
// bindings in subst, and returns the class of the root.
func (p *Pattern) Instantiate(g *EGraph, subst ir.Subst) (ir.ClassID, error) {
	return instantiate(g, p.ast, subst)
}

func instantiate(g *EGraph, e *Expr, subst ir.Subst) (ir.ClassID, error) {
	if e.IsVar() {
		v := ir.Var(e.Op[1:])
		id, ok := subst.Get(v)
		if !ok {
			return 0, fmt.Errorf("%w: ?%s", ErrUnboundVar, v)
		}
		return g.Find(id), nil
	}
	children := make([]ir.ClassID, len(e.Children))
	for i, c := range e.Children {
		id, err := instantiate(g, c, subst)
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	return g.Add(Node{Op: e.Op, Children: children}), nil
}
