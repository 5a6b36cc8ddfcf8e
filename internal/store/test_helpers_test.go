package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/eqsched/internal/runner"
	"github.com/roach88/eqsched/internal/schedule"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestReport builds a two-iteration backoff run where "assoc" is
// banned after the first iteration.
func createTestReport(id string) *runner.Report {
	return &runner.Report{
		RunID:       id,
		Strategy:    "backoff",
		RuleSetHash: "test-hash",
		StopReason:  runner.StopSaturated,
		Iterations: []runner.Iteration{
			{
				Index:       0,
				Admitted:    map[string]int{"comm": 2, "assoc": 3},
				Applied:     map[string]int{"comm": 1},
				Merges:      1,
				Nodes:       6,
				Classes:     4,
				SearchTime:  3 * time.Millisecond,
				ApplyTime:   2 * time.Millisecond,
				RebuildTime: time.Millisecond,
			},
			{
				Index:    1,
				Admitted: map[string]int{"comm": 2},
				Applied:  map[string]int{},
				Nodes:    6,
				Classes:  4,
			},
		},
		Nodes:     6,
		Classes:   4,
		TotalTime: 10 * time.Millisecond,
		Stats: []schedule.NamedStats{
			{Rule: "assoc", Stats: schedule.RuleStats{TimesApplied: 1, TimesBanned: 1, MatchLimit: 2, BanLength: 5, BannedUntil: 6}},
			{Rule: "comm", Stats: schedule.RuleStats{TimesApplied: 2, MatchLimit: 2, BanLength: 5, Unbannable: true}},
		},
	}
}
