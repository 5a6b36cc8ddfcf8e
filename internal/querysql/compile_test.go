package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/queryir"
)

func TestCompile_SimpleSelect(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	query := queryir.Select{
		From:   "runs",
		Fields: []string{"id", "strategy"},
		Filter: queryir.Equals{Field: "strategy", Value: "backoff"},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT id, strategy FROM runs WHERE strategy = ? ORDER BY id COLLATE BINARY ASC",
		sql)
	assert.NotContains(t, sql, "backoff")
	assert.Equal(t, []any{"backoff"}, params)
}

func TestCompile_PointerSelect(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	sql, params, err := compiler.Compile(&queryir.Select{
		From:   "runs",
		Fields: []string{"id"},
		Filter: &queryir.AtLeast{Field: "iterations", Value: 5},
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT id FROM runs WHERE iterations >= ? ORDER BY id COLLATE BINARY ASC", sql)
	assert.Equal(t, []any{5}, params)
}

func TestCompile_AllColumnsWithoutFilter(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	sql, params, err := compiler.Compile(queryir.Select{From: "iterations"})
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT run_id, idx, nodes, classes, merges FROM iterations ORDER BY run_id COLLATE BINARY ASC, idx ASC",
		sql)
	assert.Empty(t, params)
}

func TestCompile_AndKeepsParameterOrder(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	query := queryir.Select{
		From:   "rule_stats",
		Fields: []string{"rule"},
		Filter: queryir.And{Predicates: []queryir.Predicate{
			queryir.Equals{Field: "run_id", Value: "run-1"},
			queryir.And{Predicates: []queryir.Predicate{
				queryir.AtLeast{Field: "times_banned", Value: 1},
				queryir.Equals{Field: "unbannable", Value: false},
			}},
			queryir.And{},
		}},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT rule FROM rule_stats WHERE run_id = ? AND (times_banned >= ? AND unbannable = ?) "+
			"ORDER BY run_id COLLATE BINARY ASC, rule COLLATE BINARY ASC",
		sql)
	assert.Equal(t, []any{"run-1", 1, 0}, params)
}

func TestCompile_EmptyAndHasNoWhere(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	sql, _, err := compiler.Compile(queryir.Select{
		From:   "runs",
		Fields: []string{"id"},
		Filter: queryir.And{},
	})
	require.NoError(t, err)
	assert.NotContains(t, sql, "WHERE")
}

func TestCompile_Join(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	query := queryir.Join{
		Left: queryir.Select{
			From:   "runs",
			Fields: []string{"id", "strategy"},
			Filter: queryir.Equals{Field: "strategy", Value: "backoff"},
		},
		Right: queryir.Select{
			From: "rule_stats",
			Filter: queryir.And{Predicates: []queryir.Predicate{
				queryir.Equals{Field: "rule", Value: "comm-add"},
				queryir.AtLeast{Field: "times_banned", Value: 1},
			}},
		},
		On: queryir.ColumnEquals{Left: "id", Right: "run_id"},
	}

	sql, params, err := compiler.Compile(query)
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT DISTINCT runs.id, runs.strategy FROM runs INNER JOIN rule_stats ON runs.id = rule_stats.run_id "+
			"WHERE runs.strategy = ? AND rule_stats.rule = ? AND rule_stats.times_banned >= ? "+
			"ORDER BY runs.id COLLATE BINARY ASC",
		sql)
	assert.Equal(t, []any{"backoff", "comm-add", 1}, params)
}

func TestCompile_RejectsInvalidQueries(t *testing.T) {
	compiler := NewSQLCompiler(queryir.RunSchema)

	tests := []struct {
		name  string
		query queryir.Query
	}{
		{"nil", nil},
		{"unknown table", queryir.Select{From: "runs; DROP TABLE runs"}},
		{"unknown column", queryir.Select{From: "runs", Filter: queryir.Equals{Field: "1=1 OR id", Value: "x"}}},
		{"self join", queryir.Join{
			Left:  queryir.Select{From: "runs"},
			Right: queryir.Select{From: "runs"},
			On:    queryir.ColumnEquals{Left: "id", Right: "id"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, params, err := compiler.Compile(tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, queryir.ErrInvalidQuery)
			assert.Empty(t, sql)
			assert.Nil(t, params)
		})
	}
}
