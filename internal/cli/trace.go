package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/eqsched/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - without it, runs are listed
	Rule     string // optional - filter to a specific rule
	Filter   store.RunFilter
}

// TraceStep is one iteration in the trace timeline.
type TraceStep struct {
	Index   int                     `json:"index"`
	Nodes   int                     `json:"nodes"`
	Classes int                     `json:"classes"`
	Merges  int                     `json:"merges"`
	Rules   []store.RuleApplication `json:"rules"`
}

// TraceResult holds the complete trace of one run.
type TraceResult struct {
	Run      store.RunRecord         `json:"run"`
	Timeline []TraceStep             `json:"timeline"`
	Stats    []store.RuleStatsRecord `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect stored runs",
		Long: `Inspect runs stored by "eqsched run --db".

Without --run, lists every stored run. With --run, shows the run's
iterations and, per iteration, how many matches each rule had admitted
and how many of them changed the graph, followed by the scheduler's
final per-rule statistics.

With --rule, only that rule is shown. --rule without --run shows the
rule's history across all stored runs.

When listing, --strategy, --stop-reason, --ruleset, --min-iterations and
--banned narrow the runs shown.

Examples:
  eqsched trace --db ./runs.db
  eqsched trace --db ./runs.db --run 0190f5c2-...
  eqsched trace --db ./runs.db --run 0190f5c2-... --rule comm-add
  eqsched trace --db ./runs.db --rule comm-add --format json
  eqsched trace --db ./runs.db --strategy backoff --banned comm-add`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace")
	cmd.Flags().StringVar(&opts.Rule, "rule", "", "filter to a specific rule")
	cmd.Flags().StringVar(&opts.Filter.Strategy, "strategy", "", "list only runs of this strategy")
	cmd.Flags().StringVar(&opts.Filter.StopReason, "stop-reason", "", "list only runs with this stop reason")
	cmd.Flags().StringVar(&opts.Filter.RuleSetHash, "ruleset", "", "list only runs of this rule set hash")
	cmd.Flags().IntVar(&opts.Filter.MinIterations, "min-iterations", 0, "list only runs with at least this many iterations")
	cmd.Flags().StringVar(&opts.Filter.BannedRule, "banned", "", "list only runs in which this rule was banned")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	listing := opts.RunID == "" && opts.Rule == ""
	if !listing && opts.Filter != (store.RunFilter{}) {
		return NewExitError(ExitCommandError, "run filters only apply when listing runs")
	}
	if opts.Filter.MinIterations < 0 {
		return NewExitError(ExitCommandError, "--min-iterations must not be negative")
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	switch {
	case opts.RunID != "":
		return traceRun(ctx, st, opts, cmd)
	case opts.Rule != "":
		return traceRule(ctx, st, opts, cmd)
	default:
		return listRuns(ctx, st, opts, cmd)
	}
}

func listRuns(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	runs, err := st.FindRuns(ctx, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	if opts.Format == "json" {
		return outputTraceJSON(cmd, runs)
	}

	w := cmd.OutOrStdout()
	if len(runs) == 0 {
		if opts.Filter != (store.RunFilter{}) {
			fmt.Fprintln(w, "No runs match.")
		} else {
			fmt.Fprintln(w, "No runs stored.")
		}
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(w, "%s  %-11s  %-15s  %3d iterations  %6d nodes\n",
			run.ID, run.Strategy, run.StopReason, run.Iterations, run.Nodes)
	}
	return nil
}

func traceRule(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	history, err := st.RuleHistory(ctx, opts.Rule)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read rule history", err)
	}
	if opts.Format == "json" {
		return outputTraceJSON(cmd, history)
	}

	w := cmd.OutOrStdout()
	if len(history) == 0 {
		fmt.Fprintf(w, "No applications found for rule: %s\n", opts.Rule)
		return nil
	}
	fmt.Fprintf(w, "History for rule: %s\n", opts.Rule)
	for _, app := range history {
		fmt.Fprintf(w, "  %s [%d] admitted=%d applied=%d\n",
			truncateID(app.RunID), app.Iteration, app.Admitted, app.Applied)
	}
	return nil
}

func traceRun(ctx context.Context, st *store.Store, opts *TraceOptions, cmd *cobra.Command) error {
	result, err := buildTrace(ctx, st, opts.RunID, opts.Rule)
	if errors.Is(err, store.ErrRunNotFound) {
		if opts.Format == "json" {
			_ = newFormatter(opts.RootOptions, cmd).
				Error(ErrCodeNotFound, fmt.Sprintf("run not found: %s", opts.RunID), nil)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "No run found: %s\n", opts.RunID)
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

// buildTrace assembles the stored rows of one run. A non-empty rule keeps
// only that rule's applications and stats.
func buildTrace(ctx context.Context, st *store.Store, runID, rule string) (TraceResult, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	iters, err := st.ReadIterations(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	apps, err := st.ReadRuleApplications(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}
	stats, err := st.ReadRuleStats(ctx, runID)
	if err != nil {
		return TraceResult{}, err
	}

	result := TraceResult{
		Run:      run,
		Timeline: make([]TraceStep, len(iters)),
		Stats:    make([]store.RuleStatsRecord, 0, len(stats)),
	}
	for i, it := range iters {
		result.Timeline[i] = TraceStep{
			Index:   it.Index,
			Nodes:   it.Nodes,
			Classes: it.Classes,
			Merges:  it.Merges,
			Rules:   []store.RuleApplication{},
		}
	}
	// Applications arrive ordered by iteration, then rule.
	for _, app := range apps {
		if rule != "" && app.Rule != rule {
			continue
		}
		if app.Iteration < 0 || app.Iteration >= len(result.Timeline) {
			return TraceResult{}, fmt.Errorf("run %s: application references iteration %d", runID, app.Iteration)
		}
		step := &result.Timeline[app.Iteration]
		step.Rules = append(step.Rules, app)
	}
	for _, s := range stats {
		if rule == "" || s.Rule == rule {
			result.Stats = append(result.Stats, s)
		}
	}
	return result, nil
}

// outputTraceJSON outputs a trace payload as JSON.
func outputTraceJSON(cmd *cobra.Command, data any) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Strategy: %s\n", run.Strategy)
	fmt.Fprintf(w, "Stopped: %s", run.StopReason)
	if run.StopMessage != "" {
		fmt.Fprintf(w, " (%s)", run.StopMessage)
	}
	fmt.Fprintln(w)
	if verbose {
		fmt.Fprintf(w, "Rule set: %s\n", run.RuleSetHash)
		fmt.Fprintf(w, "Versions: engine %s, ir %s\n", run.EngineVersion, run.IRVersion)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no iterations)")
	}
	for _, step := range result.Timeline {
		fmt.Fprintf(w, "  [%d] nodes=%d classes=%d merges=%d\n", step.Index, step.Nodes, step.Classes, step.Merges)
		for _, app := range step.Rules {
			fmt.Fprintf(w, "       %s: admitted %d, applied %d\n", app.Rule, app.Admitted, app.Applied)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	if len(result.Stats) == 0 {
		fmt.Fprintln(w, "  (scheduler kept no statistics)")
	}
	for _, s := range result.Stats {
		fmt.Fprintf(w, "  %s: applied %d, banned %d", s.Rule, s.TimesApplied, s.TimesBanned)
		if s.Unbannable {
			fmt.Fprint(w, " (unbannable)")
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Total: %d iterations, %d nodes, %d classes, %s\n",
		run.Iterations, run.Nodes, run.Classes, run.TotalTime)
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
