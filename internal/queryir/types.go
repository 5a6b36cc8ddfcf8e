package queryir

// Query is a sealed query node: Select or Join.
type Query interface {
	queryNode()
}

// Predicate is a sealed filter node.
type Predicate interface {
	predicateNode()
}

// Select reads rows of one table.
//
//	Select{
//		From:   "runs",
//		Filter: And{Predicates: []Predicate{
//			Equals{Field: "strategy", Value: "backoff"},
//			AtLeast{Field: "iterations", Value: 10},
//		}},
//	}
//
// compiles to
//
//	SELECT <fields> FROM runs WHERE strategy = ? AND iterations >= ? ORDER BY id
//
// Empty Fields selects every column of the table in schema order.
type Select struct {
	From   string
	Filter Predicate // nil = no filter
	Fields []string
}

func (Select) queryNode() {}

// Join is an inner join of two Selects. Rows come from Left; Right only
// restricts them, and each Left row appears at most once however many
// Right rows match it. On is required.
//
//	Join{
//		Left:  Select{From: "runs"},
//		Right: Select{From: "rule_stats", Filter: Equals{Field: "rule", Value: "comm-add"}},
//		On:    ColumnEquals{Left: "id", Right: "run_id"},
//	}
type Join struct {
	Left  Select
	Right Select
	On    ColumnEquals
}

func (Join) queryNode() {}

// Equals is field = value. Value must be a string, an int, an int64 or a
// bool.
type Equals struct {
	Field string
	Value any
}

func (Equals) predicateNode() {}

// AtLeast is field >= value on an integer column.
type AtLeast struct {
	Field string
	Value int
}

func (AtLeast) predicateNode() {}

// ColumnEquals compares a column of a Join's left table with a column of
// its right table.
type ColumnEquals struct {
	Left  string
	Right string
}

func (ColumnEquals) predicateNode() {}

// And holds when every predicate holds. An empty And always holds.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Conjoin returns the conjunction of ps with nil entries dropped. It
// returns nil when nothing remains and the single predicate when only one
// does.
func Conjoin(ps ...Predicate) Predicate {
	kept := make([]Predicate, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
