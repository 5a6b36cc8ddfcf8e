package egraph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/eqsched/internal/ir"
)

// Node is one operator application. Children are class ids, so a node
// stands for every term whose children are drawn from those classes.
type Node struct {
	Op       string
	Children []ir.ClassID
}

// key is the hash-cons key. Callers canonicalize children first.
func (n Node) key() string {
	if len(n.Children) == 0 {
		return n.Op
	}
	var b strings.Builder
	b.WriteString(n.Op)
	for _, c := range n.Children {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatUint(uint64(c), 10))
	}
	return b.String()
}

// EClass is an equivalence class of nodes.
type EClass struct {
	ID    ir.ClassID
	Nodes []Node
}

// EGraph stores terms modulo equality.
//
// INVARIANTS (after Rebuild):
//   - every node's children are canonical class ids
//   - no two classes contain nodes with the same key (congruence)
//   - memo maps each node key to the canonical class containing it
type EGraph struct {
	parent  []ir.ClassID
	classes map[ir.ClassID]*EClass
	memo    map[string]ir.ClassID
	dirty   bool
}

// New creates an empty graph.
func New() *EGraph {
	return &EGraph{
		classes: make(map[ir.ClassID]*EClass),
		memo:    make(map[string]ir.ClassID),
	}
}

// Find returns the canonical id of the class containing id.
func (g *EGraph) Find(id ir.ClassID) ir.ClassID {
	root := id
	for g.parent[root] != root {
		root = g.parent[root]
	}
	// Path compression.
	for g.parent[id] != root {
		next := g.parent[id]
		g.parent[id] = root
		id = next
	}
	return root
}

// Contains reports whether id was issued by this graph.
func (g *EGraph) Contains(id ir.ClassID) bool {
	return int(id) < len(g.parent)
}

func (g *EGraph) canonicalize(n Node) Node {
	out := Node{Op: n.Op}
	if len(n.Children) > 0 {
		out.Children = make([]ir.ClassID, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = g.Find(c)
		}
	}
	return out
}

// Add inserts a node and returns its class. An existing congruent node is
// reused.
func (g *EGraph) Add(n Node) ir.ClassID {
	n = g.canonicalize(n)
	k := n.key()
	if id, ok := g.memo[k]; ok {
		return g.Find(id)
	}
	id := ir.ClassID(len(g.parent))
	g.parent = append(g.parent, id)
	g.classes[id] = &EClass{ID: id, Nodes: []Node{n}}
	g.memo[k] = id
	return id
}

// AddExpr inserts every subterm of e and returns the class of the root.
// Pattern variables are rejected.
func (g *EGraph) AddExpr(e *Expr) (ir.ClassID, error) {
	if e.IsVar() {
		return 0, fmt.Errorf("%w: cannot add pattern variable %s", ErrParse, e.Op)
	}
	children := make([]ir.ClassID, len(e.Children))
	for i, c := range e.Children {
		id, err := g.AddExpr(c)
		if err != nil {
			return 0, err
		}
		children[i] = id
	}
	return g.Add(Node{Op: e.Op, Children: children}), nil
}

// AddString parses src and inserts it.
func (g *EGraph) AddString(src string) (ir.ClassID, error) {
	e, err := Parse(src)
	if err != nil {
		return 0, err
	}
	return g.AddExpr(e)
}

// Union merges the classes of a and b. It reports whether they were
// distinct. The smaller id becomes the root so results are deterministic.
// Searches still see the merged class before Rebuild, but congruent classes
// stay apart until the graph is rebuilt.
func (g *EGraph) Union(a, b ir.ClassID) (ir.ClassID, bool) {
	ra, rb := g.Find(a), g.Find(b)
	if ra == rb {
		return ra, false
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	g.parent[rb] = ra
	g.classes[ra].Nodes = append(g.classes[ra].Nodes, g.classes[rb].Nodes...)
	delete(g.classes, rb)
	g.dirty = true
	return ra, true
}

// Rebuild restores the congruence invariant after unions and returns the
// number of additional merges it performed.
func (g *EGraph) Rebuild() int {
	if !g.dirty {
		return 0
	}
	merges := 0
	for {
		memo := make(map[string]ir.ClassID, len(g.memo))
		merged := false
		for _, id := range g.Classes() {
			cls, ok := g.classes[g.Find(id)]
			if !ok {
				// Merged away earlier in this pass.
				continue
			}
			for _, n := range cls.Nodes {
				k := g.canonicalize(n).key()
				other, seen := memo[k]
				if seen && g.Find(other) != g.Find(cls.ID) {
					g.Union(other, cls.ID)
					merged = true
					merges++
					continue
				}
				memo[k] = g.Find(cls.ID)
			}
		}
		g.memo = memo
		if !merged {
			break
		}
	}
	g.dedupeNodes()
	g.dirty = false
	return merges
}

// dedupeNodes canonicalizes every class's node list and drops duplicates.
func (g *EGraph) dedupeNodes() {
	for _, cls := range g.classes {
		seen := make(map[string]bool, len(cls.Nodes))
		nodes := cls.Nodes[:0]
		for _, n := range cls.Nodes {
			n = g.canonicalize(n)
			k := n.key()
			if seen[k] {
				continue
			}
			seen[k] = true
			nodes = append(nodes, n)
		}
		clear(cls.Nodes[len(nodes):])
		cls.Nodes = nodes
	}
	for k, id := range g.memo {
		g.memo[k] = g.Find(id)
	}
}

// Classes returns the canonical class ids in ascending order.
func (g *EGraph) Classes() []ir.ClassID {
	ids := make([]ir.ClassID, 0, len(g.classes))
	for id := range g.classes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Class returns the class containing id.
func (g *EGraph) Class(id ir.ClassID) *EClass {
	return g.classes[g.Find(id)]
}

// NumClasses returns the number of canonical classes.
func (g *EGraph) NumClasses() int {
	return len(g.classes)
}

// TotalSize returns the number of distinct nodes in the hash-cons table.
func (g *EGraph) TotalSize() int {
	return len(g.memo)
}

// Lookup finds the class of e without inserting anything.
func (g *EGraph) Lookup(e *Expr) (ir.ClassID, bool) {
	children := make([]ir.ClassID, len(e.Children))
	for i, c := range e.Children {
		id, ok := g.Lookup(c)
		if !ok {
			return 0, false
		}
		children[i] = id
	}
	id, ok := g.memo[g.canonicalize(Node{Op: e.Op, Children: children}).key()]
	if !ok {
		return 0, false
	}
	return g.Find(id), true
}

// Equivalent reports whether the two terms are known to be equal.
// A term that is not in the graph is equivalent to nothing.
func (g *EGraph) Equivalent(a, b string) (bool, error) {
	ea, err := Parse(a)
	if err != nil {
		return false, err
	}
	eb, err := Parse(b)
	if err != nil {
		return false, err
	}
	ia, ok := g.Lookup(ea)
	if !ok {
		return false, nil
	}
	ib, ok := g.Lookup(eb)
	if !ok {
		return false, nil
	}
	return ia == ib, nil
}
