package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/eqsched/internal/compiler"
	"github.com/roach88/eqsched/internal/harness"
	"github.com/roach88/eqsched/internal/runner"
	"github.com/roach88/eqsched/internal/store"
	"github.com/roach88/eqsched/internal/testutil"
)

// replayRunID replaces run ids so that snapshots of different runs compare.
const replayRunID = "replay"

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Exprs    []string
	Times    int
	Database string // optional - compare against a stored run
	RunID    string
	Strategy string
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	RuleSetHash   string `json:"ruleset_hash"`
	Runs          int    `json:"runs"`
	StopReason    string `json:"stop_reason"`
	Iterations    int    `json:"iterations"`
	Deterministic bool   `json:"deterministic"`

	// MatchesStored is set when a stored run was compared.
	MatchesStored *bool  `json:"matches_stored,omitempty"`
	StoredRunID   string `json:"stored_run_id,omitempty"`

	// FirstDifference is the first iteration whose trace differed, or -1.
	FirstDifference int `json:"first_difference"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Re-run a saturation and verify determinism",
		Long: `Re-run a saturation several times and verify every run has the same trace.

A trace is what each iteration admitted and applied per rule, the merges
and graph size after it, and the scheduler's final per-rule statistics.
Timings are not compared.

With --db and --run, the replayed trace is also compared against a stored
run. The stored run must have been made with the same rule set.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, etc.)

Examples:
  eqsched replay ./specs --expr "(+ a (+ b c))"
  eqsched replay ./specs --expr "(+ a b)" --times 5 --scheduler dfs
  eqsched replay ./specs --expr "(+ a b)" --db ./runs.db --run 0190f5c2-...`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Exprs, "expr", "e", nil, "start expression (repeatable, required)")
	cmd.Flags().IntVar(&opts.Times, "times", 2, "number of runs to compare")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database holding --run")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "stored run id to compare against")
	cmd.Flags().StringVar(&opts.Strategy, "scheduler", "", "scheduling strategy override")
	_ = cmd.MarkFlagRequired("expr")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Times < 1 {
		return NewExitError(ExitCommandError, "--times must be at least 1")
	}
	if (opts.Database == "") != (opts.RunID == "") {
		return NewExitError(ExitCommandError, "--db and --run must be used together")
	}

	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	specs := loadResult.Specs
	if opts.Strategy != "" {
		specs.Scheduler.Strategy = opts.Strategy
	}
	if errs := compiler.Validate(specs); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.Verbose {
		logger = newLogger(cmd.ErrOrStderr(), true)
	}

	result := ReplayResult{Runs: opts.Times, Deterministic: true, FirstDifference: -1}
	var first *runner.Report
	var firstSnap []byte
	for i := 0; i < opts.Times; i++ {
		_, report, err := saturate(ctx, specs, opts.Exprs,
			runner.WithRunID(testutil.NewFixedRunIDGenerator(replayRunID)),
			runner.WithLogger(logger),
		)
		if report == nil {
			return err
		}
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("replay %d failed", i+1), err)
		}
		formatter.VerboseLog("Replay %d: %s after %d iteration(s)", i+1, report.StopReason, len(report.Iterations))

		snap, err := snapshotReport(report)
		if err != nil {
			return WrapExitError(ExitCommandError, "snapshot replay", err)
		}
		if first == nil {
			first, firstSnap = report, snap
			continue
		}
		if !bytes.Equal(snap, firstSnap) {
			result.Deterministic = false
			result.FirstDifference = firstDifference(first, report)
		}
	}
	result.RuleSetHash = first.RuleSetHash
	result.StopReason = string(first.StopReason)
	result.Iterations = len(first.Iterations)

	if opts.RunID != "" {
		matches, err := compareStored(ctx, opts.Database, opts.RunID, first, firstSnap)
		if err != nil {
			return err
		}
		result.MatchesStored = &matches
		result.StoredRunID = opts.RunID
	}

	return outputReplay(formatter, result)
}

// snapshotReport renders a report's trace with its run id replaced.
func snapshotReport(report *runner.Report) ([]byte, error) {
	normalized := *report
	normalized.RunID = replayRunID
	return harness.Snapshot(replayRunID, harness.ResultFromReport(&normalized))
}

// compareStored reports whether the stored run has the same trace as report.
func compareStored(ctx context.Context, path, runID string, report *runner.Report, snap []byte) (bool, error) {
	st, err := store.Open(path)
	if err != nil {
		return false, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	stored, err := st.ReadReport(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return false, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
	}
	if err != nil {
		return false, WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if stored.RuleSetHash != report.RuleSetHash {
		return false, NewExitError(ExitCommandError,
			fmt.Sprintf("run %s used rule set %s, specs hash to %s", runID, stored.RuleSetHash, report.RuleSetHash))
	}

	storedSnap, err := snapshotReport(stored)
	if err != nil {
		return false, WrapExitError(ExitCommandError, "snapshot stored run", err)
	}
	return bytes.Equal(storedSnap, snap), nil
}

// firstDifference returns the first iteration whose trace differs between
// a and b, or the shorter length when one run is a prefix of the other.
func firstDifference(a, b *runner.Report) int {
	sa, sb := harness.ResultFromReport(a).Trace, harness.ResultFromReport(b).Trace
	n := min(len(sa), len(sb))
	for i := 0; i < n; i++ {
		ja, _ := json.Marshal(sa[i])
		jb, _ := json.Marshal(sb[i])
		if !bytes.Equal(ja, jb) {
			return i
		}
	}
	return n
}

func outputReplay(formatter *OutputFormatter, result ReplayResult) error {
	ok := result.Deterministic && (result.MatchesStored == nil || *result.MatchesStored)

	if formatter.Format == "json" {
		response := CLIResponse{Status: "ok", Data: result}
		if !ok {
			response.Status = "error"
			response.Error = &CLIError{Code: "E_NONDETERMINISTIC", Message: "replayed traces differ"}
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "Replayed %d run(s) of rule set %s\n", result.Runs, truncateID(result.RuleSetHash))
		fmt.Fprintf(w, "Stopped: %s after %d iteration(s)\n", result.StopReason, result.Iterations)
		if result.Deterministic {
			fmt.Fprintln(w, "✓ Deterministic")
		} else {
			fmt.Fprintf(w, "✗ Non-deterministic: traces differ at iteration %d\n", result.FirstDifference)
		}
		if result.MatchesStored != nil {
			if *result.MatchesStored {
				fmt.Fprintf(w, "✓ Matches stored run %s\n", result.StoredRunID)
			} else {
				fmt.Fprintf(w, "✗ Differs from stored run %s\n", result.StoredRunID)
			}
		}
	}

	if !ok {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

