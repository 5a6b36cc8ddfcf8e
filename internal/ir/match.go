package ir

// Derivation is an optional proof artifact attached to a match.
//
// Derivations may hold resources outside the Go heap (pooled buffers,
// handles into an explanation store). Whoever discards a record that owns a
// derivation must call Release exactly once.
type Derivation interface {
	// Clone returns an independently owned copy.
	Clone() Derivation

	// Release frees the artifact. Calling it twice is a bug.
	Release()
}

// SearchMatches is the borrowed view returned by a matcher: every
// substitution under which a pattern matched in one class.
//
// Substs may alias buffers owned by the matcher and is only valid until the
// next search on the same graph. Call Own before storing it across calls.
type SearchMatches struct {
	Class      ClassID
	Substs     []Subst
	Derivation Derivation
}

// Own converts the view into a record that is safe to keep across calls.
// Substitutions are deep-copied and the derivation is cloned.
func (m SearchMatches) Own() Match {
	substs := make([]Subst, len(m.Substs))
	for i, s := range m.Substs {
		substs[i] = s.Clone()
	}
	var d Derivation
	if m.Derivation != nil {
		d = m.Derivation.Clone()
	}
	return Match{
		Class:      m.Class,
		Substs:     substs,
		Derivation: d,
	}
}

// Key returns the identity of the view. See MatchKey.
func (m SearchMatches) Key() string {
	return MatchKey(m.Class, m.Substs)
}

// Match is the owned counterpart of SearchMatches. Frontier stacks and
// visited sets hold Match values.
type Match struct {
	Class      ClassID
	Substs     []Subst
	Derivation Derivation
}

// View hands the record back to the driver. Ownership of the substitutions
// and the derivation moves with it; the Match must not be used afterwards.
func (m Match) View() SearchMatches {
	return SearchMatches{
		Class:      m.Class,
		Substs:     m.Substs,
		Derivation: m.Derivation,
	}
}

// Key returns the identity of the record. See MatchKey.
func (m Match) Key() string {
	return MatchKey(m.Class, m.Substs)
}

// Equal reports structural equality: same class and same substitutions.
// Derivations are not compared.
func (m Match) Equal(other Match) bool {
	if m.Class != other.Class || len(m.Substs) != len(other.Substs) {
		return false
	}
	for i := range m.Substs {
		if !m.Substs[i].Equal(other.Substs[i]) {
			return false
		}
	}
	return true
}

// Release frees the record's derivation, if any.
func (m *Match) Release() {
	if m.Derivation != nil {
		m.Derivation.Release()
		m.Derivation = nil
	}
}

// TotalSubsts returns the number of substitutions across all records.
func TotalSubsts(ms []SearchMatches) int {
	total := 0
	for _, m := range ms {
		total += len(m.Substs)
	}
	return total
}

// ReleaseAll releases the derivation of every record in ms.
func ReleaseAll(ms []SearchMatches) {
	for i := range ms {
		if ms[i].Derivation != nil {
			ms[i].Derivation.Release()
			ms[i].Derivation = nil
		}
	}
}
