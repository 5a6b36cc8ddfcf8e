package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/eqsched/internal/querysql"
	"github.com/roach88/eqsched/internal/queryir"
	"github.com/roach88/eqsched/internal/runner"
	"github.com/roach88/eqsched/internal/schedule"
)

// runFields are the runs columns in the order scanRun expects.
var runFields = []string{
	"id", "strategy", "stop_reason", "stop_message", "iterations", "nodes", "classes",
	"total_time_ns", "ruleset_hash", "engine_version", "ir_version",
}

var runColumns = strings.Join(runFields, ", ")

// ReadRun returns the run with the given id.
// Returns ErrRunNotFound if no such run is stored.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return rec, nil
}

// RunFilter selects stored runs. Zero fields match everything.
type RunFilter struct {
	Strategy      string
	StopReason    string
	RuleSetHash   string
	MinIterations int
	// BannedRule keeps runs in which the named rule was banned at least once.
	BannedRule string
}

func (f RunFilter) query() queryir.Query {
	var preds []queryir.Predicate
	if f.Strategy != "" {
		preds = append(preds, queryir.Equals{Field: "strategy", Value: f.Strategy})
	}
	if f.StopReason != "" {
		preds = append(preds, queryir.Equals{Field: "stop_reason", Value: f.StopReason})
	}
	if f.RuleSetHash != "" {
		preds = append(preds, queryir.Equals{Field: "ruleset_hash", Value: f.RuleSetHash})
	}
	if f.MinIterations > 0 {
		preds = append(preds, queryir.AtLeast{Field: "iterations", Value: f.MinIterations})
	}

	runs := queryir.Select{
		From:   "runs",
		Filter: queryir.Conjoin(preds...),
		Fields: runFields,
	}
	if f.BannedRule == "" {
		return runs
	}
	return queryir.Join{
		Left: runs,
		Right: queryir.Select{
			From: "rule_stats",
			Filter: queryir.Conjoin(
				queryir.Equals{Field: "rule", Value: f.BannedRule},
				queryir.AtLeast{Field: "times_banned", Value: 1},
			),
		},
		On: queryir.ColumnEquals{Left: "id", Right: "run_id"},
	}
}

// ListRuns returns every stored run ordered by id.
// UUIDv7 run ids sort by creation time.
//
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	return s.FindRuns(ctx, RunFilter{})
}

// FindRuns returns the runs matching f ordered by id.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) FindRuns(ctx context.Context, f RunFilter) ([]RunRecord, error) {
	query, params, err := querysql.NewSQLCompiler(queryir.RunSchema).Compile(f.query())
	if err != nil {
		return nil, fmt.Errorf("compile run filter: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadIterations returns the iterations of a run ordered by index.
//
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadIterations(ctx context.Context, runID string) ([]IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, nodes, classes, merges, search_ns, apply_ns, rebuild_ns
		FROM iterations
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query iterations: %w", err)
	}
	defer rows.Close()

	out := []IterationRecord{}
	for rows.Next() {
		var rec IterationRecord
		var search, apply, rebuild int64
		if err := rows.Scan(
			&rec.RunID, &rec.Index, &rec.Nodes, &rec.Classes, &rec.Merges,
			&search, &apply, &rebuild,
		); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.SearchTime = time.Duration(search)
		rec.ApplyTime = time.Duration(apply)
		rec.RebuildTime = time.Duration(rebuild)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate iterations: %w", err)
	}
	return out, nil
}

// ReadRuleApplications returns a run's per-rule activity ordered by
// iteration, then rule name.
//
// Returns an empty slice (not nil) if nothing was admitted.
func (s *Store) ReadRuleApplications(ctx context.Context, runID string) ([]RuleApplication, error) {
	return s.queryRuleApplications(ctx, `
		SELECT run_id, iteration, rule, admitted, applied
		FROM rule_applications
		WHERE run_id = ?
		ORDER BY iteration ASC, rule COLLATE BINARY ASC
	`, runID)
}

// RuleHistory returns every stored application of one rule across runs,
// ordered by run id, then iteration.
func (s *Store) RuleHistory(ctx context.Context, rule string) ([]RuleApplication, error) {
	return s.queryRuleApplications(ctx, `
		SELECT run_id, iteration, rule, admitted, applied
		FROM rule_applications
		WHERE rule = ?
		ORDER BY run_id COLLATE BINARY ASC, iteration ASC
	`, rule)
}

func (s *Store) queryRuleApplications(ctx context.Context, query string, arg string) ([]RuleApplication, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query rule applications: %w", err)
	}
	defer rows.Close()

	out := []RuleApplication{}
	for rows.Next() {
		var rec RuleApplication
		if err := rows.Scan(&rec.RunID, &rec.Iteration, &rec.Rule, &rec.Admitted, &rec.Applied); err != nil {
			return nil, fmt.Errorf("scan rule application: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule applications: %w", err)
	}
	return out, nil
}

// ReadRuleStats returns a run's final scheduler statistics ordered by rule.
//
// Returns an empty slice (not nil) for schedulers that keep no statistics.
func (s *Store) ReadRuleStats(ctx context.Context, runID string) ([]RuleStatsRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, rule, times_applied, times_banned, match_limit, ban_length, banned_until, unbannable
		FROM rule_stats
		WHERE run_id = ?
		ORDER BY rule COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rule stats: %w", err)
	}
	defer rows.Close()

	out := []RuleStatsRecord{}
	for rows.Next() {
		var rec RuleStatsRecord
		if err := rows.Scan(
			&rec.RunID, &rec.Rule, &rec.TimesApplied, &rec.TimesBanned,
			&rec.MatchLimit, &rec.BanLength, &rec.BannedUntil, &rec.Unbannable,
		); err != nil {
			return nil, fmt.Errorf("scan rule stats: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule stats: %w", err)
	}
	return out, nil
}

// ReadReport reassembles a stored run into a runner.Report.
func (s *Store) ReadReport(ctx context.Context, id string) (*runner.Report, error) {
	run, err := s.ReadRun(ctx, id)
	if err != nil {
		return nil, err
	}
	iters, err := s.ReadIterations(ctx, id)
	if err != nil {
		return nil, err
	}
	apps, err := s.ReadRuleApplications(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.ReadRuleStats(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &runner.Report{
		RunID:       run.ID,
		Strategy:    run.Strategy,
		RuleSetHash: run.RuleSetHash,
		StopReason:  runner.StopReason(run.StopReason),
		StopMessage: run.StopMessage,
		Iterations:  make([]runner.Iteration, len(iters)),
		Nodes:       run.Nodes,
		Classes:     run.Classes,
		TotalTime:   run.TotalTime,
	}
	for i, it := range iters {
		report.Iterations[i] = runner.Iteration{
			Index:       it.Index,
			Admitted:    make(map[string]int),
			Applied:     make(map[string]int),
			Merges:      it.Merges,
			Nodes:       it.Nodes,
			Classes:     it.Classes,
			SearchTime:  it.SearchTime,
			ApplyTime:   it.ApplyTime,
			RebuildTime: it.RebuildTime,
		}
	}
	for _, app := range apps {
		if app.Iteration < 0 || app.Iteration >= len(report.Iterations) {
			return nil, fmt.Errorf("read report %s: application references iteration %d", id, app.Iteration)
		}
		it := &report.Iterations[app.Iteration]
		it.Admitted[app.Rule] = app.Admitted
		if app.Applied > 0 {
			it.Applied[app.Rule] = app.Applied
		}
	}
	for _, st := range stats {
		report.Stats = append(report.Stats, schedule.NamedStats{
			Rule: st.Rule,
			Stats: schedule.RuleStats{
				TimesApplied: st.TimesApplied,
				TimesBanned:  st.TimesBanned,
				MatchLimit:   st.MatchLimit,
				BanLength:    st.BanLength,
				BannedUntil:  st.BannedUntil,
				Unbannable:   st.Unbannable,
			},
		})
	}
	return report, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunRecord, error) {
	var rec RunRecord
	var total int64
	err := row.Scan(
		&rec.ID, &rec.Strategy, &rec.StopReason, &rec.StopMessage,
		&rec.Iterations, &rec.Nodes, &rec.Classes, &total,
		&rec.RuleSetHash, &rec.EngineVersion, &rec.IRVersion,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.TotalTime = time.Duration(total)
	return rec, nil
}
