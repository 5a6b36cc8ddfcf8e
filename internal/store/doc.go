// Package store provides SQLite-backed storage for saturation run reports.
//
// The store is an append-only log with:
//   - runs: one row per finished run (strategy, stop reason, totals)
//   - iterations: one row per search/apply/rebuild round
//   - rule_applications: per-rule admitted and applied counts
//   - rule_stats: the scheduler's final per-rule statistics
//
// Writes are idempotent on the run id: writing the same report twice leaves
// the log unchanged. All reads order by explicit keys (run id, iteration
// index, rule name with COLLATE BINARY), so results are identical across
// databases holding the same runs.
//
// FindRuns filters runs through internal/queryir, compiled to parameterized
// SQL by internal/querysql.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
