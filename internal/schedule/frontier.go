package schedule

import "github.com/roach88/eqsched/internal/ir"

// FrontierEntry is a pending match, its identity key and the depth it was
// discovered at.
type FrontierEntry struct {
	Match ir.Match
	Key   string
	Depth int
}

// Frontier is a LIFO stack of owned matches awaiting exploration.
//
// The front of the frontier is the last element of entries. PushBlock keeps
// a block's discovery order, so the first match of the most recent block is
// explored first.
type Frontier struct {
	entries []FrontierEntry
	pending map[string]int
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{pending: make(map[string]int)}
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	return len(f.entries)
}

// Empty reports whether nothing is pending.
func (f *Frontier) Empty() bool {
	return len(f.entries) == 0
}

// Contains reports whether a match with key is pending.
func (f *Frontier) Contains(key string) bool {
	return f.pending[key] > 0
}

// PushBlock places ms in front of all pending entries, preserving the order
// of ms, and tags each with depth. The frontier takes ownership of ms.
func (f *Frontier) PushBlock(ms []ir.Match, depth int) {
	for i := len(ms) - 1; i >= 0; i-- {
		key := ms[i].Key()
		f.entries = append(f.entries, FrontierEntry{Match: ms[i], Key: key, Depth: depth})
		f.pending[key]++
	}
}

// Front returns the front entry without removing it.
func (f *Frontier) Front() (FrontierEntry, bool) {
	if len(f.entries) == 0 {
		return FrontierEntry{}, false
	}
	return f.entries[len(f.entries)-1], true
}

// Pop removes and returns the front entry. Ownership of its match passes to
// the caller. It returns ErrEmptyFrontier when nothing is pending.
func (f *Frontier) Pop() (FrontierEntry, error) {
	n := len(f.entries)
	if n == 0 {
		return FrontierEntry{}, ErrEmptyFrontier
	}
	e := f.entries[n-1]
	f.entries[n-1] = FrontierEntry{}
	f.entries = f.entries[:n-1]

	if f.pending[e.Key] <= 1 {
		delete(f.pending, e.Key)
	} else {
		f.pending[e.Key]--
	}
	return e, nil
}

// Clear releases every pending match and empties the frontier.
func (f *Frontier) Clear() {
	for i := range f.entries {
		f.entries[i].Match.Release()
	}
	clear(f.entries)
	f.entries = f.entries[:0]
	clear(f.pending)
}
