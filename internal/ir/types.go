package ir

import (
	"fmt"
	"sort"
	"strings"
)

// ClassID identifies an equivalence class in the term graph.
// Issued by the graph; the scheduler only stores and compares it.
type ClassID uint32

// String renders the id as "c<n>" for logs and traces.
func (id ClassID) String() string {
	return fmt.Sprintf("c%d", uint32(id))
}

// Var is a pattern variable, written "?name" in patterns.
type Var string

// Binding binds one pattern variable to a class.
type Binding struct {
	Var   Var     `json:"var"`
	Class ClassID `json:"class"`
}

// Subst maps pattern variables to classes.
//
// The zero value is an empty substitution. Bindings are kept sorted by
// variable name so that two equal substitutions have identical layouts.
type Subst []Binding

// Get returns the class bound to v.
func (s Subst) Get(v Var) (ClassID, bool) {
	i := sort.Search(len(s), func(i int) bool { return s[i].Var >= v })
	if i < len(s) && s[i].Var == v {
		return s[i].Class, true
	}
	return 0, false
}

// Insert returns s with v bound to c. An existing binding for v is replaced.
// The receiver is not modified when a new slot is needed.
func (s Subst) Insert(v Var, c ClassID) Subst {
	i := sort.Search(len(s), func(i int) bool { return s[i].Var >= v })
	if i < len(s) && s[i].Var == v {
		out := s.Clone()
		out[i].Class = c
		return out
	}
	out := make(Subst, 0, len(s)+1)
	out = append(out, s[:i]...)
	out = append(out, Binding{Var: v, Class: c})
	out = append(out, s[i:]...)
	return out
}

// Len returns the number of bindings.
func (s Subst) Len() int {
	return len(s)
}

// Clone returns an independent copy of s.
func (s Subst) Clone() Subst {
	if s == nil {
		return nil
	}
	out := make(Subst, len(s))
	copy(out, s)
	return out
}

// Equal reports whether s and other bind the same variables to the same classes.
func (s Subst) Equal(other Subst) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the substitution as "{?a=c1, ?b=c2}".
func (s Subst) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, bind := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "?%s=%s", bind.Var, bind.Class)
	}
	b.WriteByte('}')
	return b.String()
}
