// Package queryir is a small query representation for filtering stored runs.
//
// Callers describe which rows they want; a backend (internal/querysql)
// turns the description into a parameterized statement. Keeping the
// description separate from SQL means table and column names are checked
// against a fixed schema before anything is interpolated, and values are
// never interpolated at all.
//
// The fragment is deliberately narrow:
//
//	Select(table, filter, fields)  rows of one table
//	Join(left, right, on)          inner equi-join of two Selects
//	Equals(field, value)           field = value
//	AtLeast(field, n)              field >= n
//	ColumnEquals(left, right)      join condition between two tables
//	And(predicates...)             conjunction
//
// There is no OR, no NULL and no aggregation.
//
// Query and Predicate are sealed: only types in this package implement
// them, so backends can switch exhaustively.
//
//	switch q := query.(type) {
//	case Select:
//	case Join:
//	}
package queryir
