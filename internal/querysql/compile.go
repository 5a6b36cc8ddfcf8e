// Package querysql compiles queryir queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/eqsched/internal/queryir"
)

// SQLCompiler compiles queries against one schema.
//
// Every statement ends in an ORDER BY over the selected table's key, and
// every value is passed as a parameter.
type SQLCompiler struct {
	schema queryir.Schema
}

// NewSQLCompiler creates a compiler for schema.
func NewSQLCompiler(schema queryir.Schema) *SQLCompiler {
	return &SQLCompiler{schema: schema}
}

// Compile validates q and converts it to SQL and its parameters.
func (c *SQLCompiler) Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(c.schema, q); err != nil {
		return "", nil, err
	}

	switch query := q.(type) {
	case queryir.Select:
		return c.compileSelect(query)
	case *queryir.Select:
		return c.compileSelect(*query)
	case queryir.Join:
		return c.compileJoin(query)
	case *queryir.Join:
		return c.compileJoin(*query)
	default:
		return "", nil, fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) compileSelect(q queryir.Select) (string, []any, error) {
	t := c.schema[q.From]

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(fields(t, q.Fields, ""), ", "))
	b.WriteString(" FROM ")
	b.WriteString(t.Name)

	where, params, err := compilePredicate(q.Filter, "")
	if err != nil {
		return "", nil, err
	}
	if where != "" {
		b.WriteString(" WHERE ")
		b.WriteString(where)
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy(t, ""))
	return b.String(), params, nil
}

// compileJoin qualifies every column with its table name. DISTINCT keeps
// one row per left row.
func (c *SQLCompiler) compileJoin(j queryir.Join) (string, []any, error) {
	left := c.schema[j.Left.From]
	right := c.schema[j.Right.From]
	if left.Name == right.Name {
		return "", nil, fmt.Errorf("%w: self join on %s", queryir.ErrInvalidQuery, left.Name)
	}

	var b strings.Builder
	b.WriteString("SELECT DISTINCT ")
	b.WriteString(strings.Join(fields(left, j.Left.Fields, left.Name), ", "))
	fmt.Fprintf(&b, " FROM %s INNER JOIN %s ON %s.%s = %s.%s",
		left.Name, right.Name,
		left.Name, j.On.Left,
		right.Name, j.On.Right,
	)

	var params []any
	var conds []string
	for _, side := range []struct {
		filter queryir.Predicate
		table  string
	}{
		{j.Left.Filter, left.Name},
		{j.Right.Filter, right.Name},
	} {
		sql, ps, err := compilePredicate(side.filter, side.table)
		if err != nil {
			return "", nil, err
		}
		if sql != "" {
			conds = append(conds, sql)
			params = append(params, ps...)
		}
	}
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(orderBy(left, left.Name))
	return b.String(), params, nil
}

// compilePredicate returns an empty string for a nil or empty predicate.
func compilePredicate(p queryir.Predicate, table string) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "", nil, nil
	case queryir.Equals:
		return qualify(table, pred.Field) + " = ?", []any{sqlValue(pred.Value)}, nil
	case *queryir.Equals:
		return compilePredicate(*pred, table)
	case queryir.AtLeast:
		return qualify(table, pred.Field) + " >= ?", []any{pred.Value}, nil
	case *queryir.AtLeast:
		return compilePredicate(*pred, table)
	case queryir.And:
		var parts []string
		var params []any
		for _, sub := range pred.Predicates {
			sql, ps, err := compilePredicate(sub, table)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			if _, nested := sub.(queryir.And); nested {
				sql = "(" + sql + ")"
			}
			parts = append(parts, sql)
			params = append(params, ps...)
		}
		return strings.Join(parts, " AND "), params, nil
	case *queryir.And:
		return compilePredicate(*pred, table)
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// sqlValue maps booleans to the 0/1 integers SQLite stores.
func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

func fields(t queryir.Table, names []string, table string) []string {
	if len(names) == 0 {
		names = t.ColumnNames()
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = qualify(table, n)
	}
	return out
}

// orderBy compares text keys bytewise so ordering never depends on the
// connection's collation.
func orderBy(t queryir.Table, table string) string {
	keys := make([]string, len(t.OrderBy))
	for i, k := range t.OrderBy {
		col, _ := t.Column(k)
		key := qualify(table, k)
		if col.Kind == queryir.KindText {
			key += " COLLATE BINARY"
		}
		keys[i] = key + " ASC"
	}
	return strings.Join(keys, ", ")
}

func qualify(table, column string) string {
	if table == "" {
		return column
	}
	return table + "." + column
}
