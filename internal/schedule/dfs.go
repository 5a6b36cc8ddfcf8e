package schedule

import (
	"errors"
	"log/slog"
	"slices"

	"github.com/roach88/eqsched/internal/ir"
)

// DefaultMaxDepth bounds how far DFSScheduler descends before it stops
// discovering new matches and only drains its frontier. Zero means
// unbounded.
const DefaultMaxDepth = 1000

// dfsState is the exploration state of one rule.
type dfsState struct {
	frontier  *Frontier
	visited   map[string]struct{}
	currDepth int
}

func newDFSState() *dfsState {
	return &dfsState{
		frontier: NewFrontier(),
		visited:  make(map[string]struct{}),
	}
}

// backtrack abandons the current branch: while the front entry has not been
// visited it is discarded and released. It stops at an empty frontier or at
// a visited front entry.
func (st *dfsState) backtrack() int {
	dropped := 0
	for {
		e, ok := st.frontier.Front()
		if !ok {
			return dropped
		}
		if _, seen := st.visited[e.Key]; seen {
			return dropped
		}
		e, _ = st.frontier.Pop()
		e.Match.Release()
		dropped++
	}
}

// DFSScheduler admits one match per rule per iteration, exploring matches
// depth-first.
//
// Each rule has its own frontier and visited set. A search discovers the
// matches that are neither visited nor pending and pushes them as one block
// one level deeper than the last emitted match. When the matcher finds
// nothing at all, the branch is abandoned: unvisited entries are discarded
// from the front of the frontier. The front entry is then popped, marked
// visited and returned. Once a rule's depth reaches the maximum, it stops
// discovering and drains what is pending.
//
// Matches are identified by class and substitutions; derivations are not
// part of a match's identity.
type DFSScheduler[G any] struct {
	maxDepth    int
	initialized bool
	rules       map[string]*dfsState
}

// NewDFS creates a DFSScheduler. A maxDepth of zero means unbounded.
func NewDFS[G any](maxDepth int) *DFSScheduler[G] {
	return &DFSScheduler[G]{
		maxDepth: max(maxDepth, 0),
		rules:    make(map[string]*dfsState),
	}
}

// MaxDepth returns the discovery depth bound, or zero if unbounded.
func (s *DFSScheduler[G]) MaxDepth() int {
	return s.maxDepth
}

// SetMaxDepth changes the discovery depth bound. Zero means unbounded.
func (s *DFSScheduler[G]) SetMaxDepth(depth int) {
	s.maxDepth = max(depth, 0)
}

// CanStop returns true once at least one search has run and every rule's
// frontier is empty. Only rules searched so far are considered; a rule that
// was never passed to SearchRewrite has no frontier. The runner searches
// every rule each iteration before asking.
func (s *DFSScheduler[G]) CanStop(int) bool {
	if !s.initialized {
		return false
	}
	for _, st := range s.rules {
		if !st.frontier.Empty() {
			return false
		}
	}
	return true
}

// SearchRewrite returns at most one match of rule.
func (s *DFSScheduler[G]) SearchRewrite(iteration int, g G, rule Rule[G]) []ir.SearchMatches {
	s.initialized = true
	name := rule.Name()
	st := s.state(name)

	discovered := 0
	exhausted := false
	if s.maxDepth == 0 || st.currDepth < s.maxDepth {
		found := rule.Search(g)
		exhausted = len(found) == 0
		block := make([]ir.Match, 0, len(found))
		inBlock := make(map[string]struct{}, len(found))
		for _, m := range found {
			key := m.Key()
			if _, seen := st.visited[key]; seen {
				continue
			}
			if _, dup := inBlock[key]; dup || st.frontier.Contains(key) {
				continue
			}
			inBlock[key] = struct{}{}
			block = append(block, m.Own())
		}
		ir.ReleaseAll(found)

		st.frontier.PushBlock(block, st.currDepth+1)
		discovered = len(block)
	}

	if exhausted {
		if n := st.backtrack(); n > 0 {
			slog.Debug("dfs backtracked", "rule", name, "dropped", n)
		}
	}

	e, err := st.frontier.Pop()
	if errors.Is(err, ErrEmptyFrontier) {
		slog.Debug("dfs frontier exhausted", "rule", name, "iteration", iteration)
		return nil
	}

	st.visited[e.Key] = struct{}{}
	st.currDepth = e.Depth

	slog.Debug("dfs emitting match",
		"rule", name,
		"iteration", iteration,
		"class", e.Match.Class,
		"depth", e.Depth,
		"discovered", discovered,
		"pending", st.frontier.Len(),
	)
	return []ir.SearchMatches{e.Match.View()}
}

// Pending returns the number of matches waiting in rule's frontier.
func (s *DFSScheduler[G]) Pending(rule string) int {
	if st, ok := s.rules[rule]; ok {
		return st.frontier.Len()
	}
	return 0
}

// Visited returns the number of matches of rule already emitted.
func (s *DFSScheduler[G]) Visited(rule string) int {
	if st, ok := s.rules[rule]; ok {
		return len(st.visited)
	}
	return 0
}

// Depth returns the depth of rule's most recently emitted match.
func (s *DFSScheduler[G]) Depth(rule string) int {
	if st, ok := s.rules[rule]; ok {
		return st.currDepth
	}
	return 0
}

// Rules returns the names of rules the scheduler has seen, sorted.
func (s *DFSScheduler[G]) Rules() []string {
	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Close releases every pending match. The scheduler can still be used
// afterwards; frontiers start empty.
func (s *DFSScheduler[G]) Close() {
	for _, st := range s.rules {
		st.frontier.Clear()
	}
}

// Strategy returns the registered strategy name.
func (*DFSScheduler[G]) Strategy() string {
	return ir.StrategyDFS
}

func (s *DFSScheduler[G]) state(rule string) *dfsState {
	st, ok := s.rules[rule]
	if !ok {
		st = newDFSState()
		s.rules[rule] = st
	}
	return st
}
