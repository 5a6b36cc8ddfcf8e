package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/eqsched/internal/ir"
	"github.com/roach88/eqsched/internal/runner"
)

// WriteReport stores a finished run in a single transaction.
//
// Uses ON CONFLICT(id) DO NOTHING on the run row for idempotency: if the run
// id is already stored, nothing else is written and nil is returned.
func (s *Store) WriteReport(ctx context.Context, report *runner.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write report: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, strategy, stop_reason, stop_message, iterations, nodes, classes,
		 total_time_ns, ruleset_hash, engine_version, ir_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		report.RunID,
		report.Strategy,
		string(report.StopReason),
		report.StopMessage,
		len(report.Iterations),
		report.Nodes,
		report.Classes,
		int64(report.TotalTime),
		report.RuleSetHash,
		ir.EngineVersion,
		ir.IRVersion,
	)
	if err != nil {
		return fmt.Errorf("write report: run %s: %w", report.RunID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write report: run %s: %w", report.RunID, err)
	}
	if n == 0 {
		// Already stored.
		return tx.Commit()
	}

	for _, it := range report.Iterations {
		if err := writeIteration(ctx, tx, report.RunID, it); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	for _, st := range report.Stats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rule_stats
			(run_id, rule, times_applied, times_banned, match_limit, ban_length, banned_until, unbannable)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			report.RunID,
			st.Rule,
			st.Stats.TimesApplied,
			st.Stats.TimesBanned,
			st.Stats.MatchLimit,
			st.Stats.BanLength,
			st.Stats.BannedUntil,
			st.Stats.Unbannable,
		)
		if err != nil {
			return fmt.Errorf("write report: stats for %s: %w", st.Rule, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write report: commit: %w", err)
	}
	return nil
}

func writeIteration(ctx context.Context, tx *sql.Tx, runID string, it runner.Iteration) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO iterations
		(run_id, idx, nodes, classes, merges, search_ns, apply_ns, rebuild_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		it.Index,
		it.Nodes,
		it.Classes,
		it.Merges,
		int64(it.SearchTime),
		int64(it.ApplyTime),
		int64(it.RebuildTime),
	)
	if err != nil {
		return fmt.Errorf("iteration %d: %w", it.Index, err)
	}

	// Applied keys are a subset of Admitted keys.
	for _, rule := range it.Rules() {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO rule_applications
			(run_id, iteration, rule, admitted, applied)
			VALUES (?, ?, ?, ?, ?)
		`,
			runID,
			it.Index,
			rule,
			it.Admitted[rule],
			it.Applied[rule],
		)
		if err != nil {
			return fmt.Errorf("iteration %d rule %s: %w", it.Index, rule, err)
		}
	}
	return nil
}
