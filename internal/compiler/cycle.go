package compiler

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/roach88/eqsched/internal/egraph"
	"github.com/roach88/eqsched/internal/ir"
)

// Cycle warning levels.
const (
	LevelWarning = "warning"
	LevelInfo    = "info"
)

// CycleWarning represents a set of rules that can keep feeding each other.
//
// Cycles are reported, not rejected. Commutativity is a self-cycle and is
// harmless because it adds no new nodes; a cycle through a rule whose RHS is
// larger than its LHS can grow the graph without bound and is what backoff
// scheduling exists for.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["rule-a", "rule-b", "rule-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"

	// Growing lists the rules in the cycle whose RHS is larger than their LHS.
	Growing []string `json:"growing,omitempty"`
}

// AnalyzeCycles performs static cycle analysis on rewrite rules.
//
// The algorithm:
//  1. Build a rule dependency graph: A → B when an operator A's RHS
//     introduces is the root operator of B's LHS
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop
//
// An SCC containing a growing rule is a "warning"; otherwise it is "info".
// Rules whose patterns do not parse are skipped; Validate reports them.
// Results are sorted by their first rule name.
func AnalyzeCycles(rules []ir.RuleSpec) []CycleWarning {
	warnings := []CycleWarning{}
	if len(rules) == 0 {
		return warnings
	}

	shapes := parseShapes(rules)
	graph := buildDependencyGraph(shapes)

	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph, shapes))
		}
	}

	slices.SortFunc(warnings, func(a, b CycleWarning) int {
		return strings.Compare(a.Path[0], b.Path[0])
	})
	return warnings
}

// ruleShape is the part of a rule the analysis looks at.
type ruleShape struct {
	lhsRoot string
	rhsOps  []string
	growing bool
}

func parseShapes(rules []ir.RuleSpec) map[string]ruleShape {
	shapes := make(map[string]ruleShape, len(rules))
	for _, r := range rules {
		lhs, err := egraph.Parse(r.LHS)
		if err != nil || lhs.IsVar() {
			continue
		}
		rhs, err := egraph.Parse(r.RHS)
		if err != nil {
			continue
		}
		ops := make(map[string]bool)
		collectOps(rhs, ops)
		shapes[r.Name] = ruleShape{
			lhsRoot: lhs.Op,
			rhsOps:  slices.Sorted(maps.Keys(ops)),
			growing: exprSize(rhs) > exprSize(lhs),
		}
	}
	return shapes
}

func collectOps(e *egraph.Expr, ops map[string]bool) {
	if e.IsVar() {
		return
	}
	ops[e.Op] = true
	for _, c := range e.Children {
		collectOps(c, ops)
	}
}

func exprSize(e *egraph.Expr) int {
	n := 1
	for _, c := range e.Children {
		n += exprSize(c)
	}
	return n
}

// dependencyGraph maps rule name → rules whose LHS it can create a match for.
// Adjacency lists are sorted.
type dependencyGraph map[string][]string

func buildDependencyGraph(shapes map[string]ruleShape) dependencyGraph {
	graph := make(dependencyGraph, len(shapes))

	// root operator → rules matching on it
	byRoot := make(map[string][]string)
	for name, s := range shapes {
		byRoot[s.lhsRoot] = append(byRoot[s.lhsRoot], name)
	}

	for name, s := range shapes {
		targets := make(map[string]bool)
		for _, op := range s.rhsOps {
			for _, t := range byRoot[op] {
				targets[t] = true
			}
		}
		graph[name] = slices.Sorted(maps.Keys(targets))
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
// Nodes are visited in name order, so the output is deterministic.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			slices.Sort(scc)
			sccs = append(sccs, scc)
		}
	}

	for _, node := range slices.Sorted(maps.Keys(graph)) {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

func cycleSCCToWarning(scc []string, graph dependencyGraph, shapes map[string]ruleShape) CycleWarning {
	var growing []string
	for _, name := range scc {
		if shapes[name].growing {
			growing = append(growing, name)
		}
	}
	level := LevelInfo
	if len(growing) > 0 {
		level = LevelWarning
	}

	if len(scc) == 1 {
		name := scc[0]
		msg := fmt.Sprintf("Self-feeding rule: %s → %s", name, name)
		if len(growing) > 0 {
			msg = fmt.Sprintf("Self-feeding growing rule: %s → %s (may not saturate)", name, name)
		}
		return CycleWarning{
			Path:    []string{name, name},
			Message: msg,
			Level:   level,
			Growing: growing,
		}
	}

	path := reconstructCyclePath(scc, graph)
	msg := fmt.Sprintf("Rule cycle: %s", strings.Join(path, " → "))
	if len(growing) > 0 {
		msg = fmt.Sprintf("Rule cycle through growing rules %s: %s (may not saturate)",
			strings.Join(growing, ", "), strings.Join(path, " → "))
	}
	return CycleWarning{
		Path:    path,
		Message: msg,
		Level:   level,
		Growing: growing,
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: start at the first node in the SCC, follow edges to unvisited
// SCC members, and close the path once no unvisited member is reachable and
// an edge leads back to the start.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool, len(scc))
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := map[string]bool{start: true}

	for {
		next := ""
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && !visited[neighbor] {
				next = neighbor
				break
			}
		}
		if next == "" {
			if slices.Contains(graph[current], start) {
				path = append(path, start)
			}
			return path
		}

		path = append(path, next)
		visited[next] = true
		current = next
	}
}

// sortedKeys returns the keys of m in ascending order.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
