package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/roach88/eqsched/internal/compiler"
	"github.com/roach88/eqsched/internal/egraph"
	"github.com/roach88/eqsched/internal/ir"
	"github.com/roach88/eqsched/internal/runner"
	"github.com/roach88/eqsched/internal/schedule"
	"github.com/roach88/eqsched/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Exprs    []string
	Checks   []string // "a = b" equivalence checks against the saturated graph
	Database string   // optional; the report is stored when set
	Metrics  bool     // print run metrics to stderr

	// Scheduler overrides. Zero values keep what the specs say.
	Strategy   string
	MatchLimit int
	BanLength  int
	BeamWidth  int
	MaxDepth   int

	// Runner overrides.
	IterLimit int
	NodeLimit int
	TimeLimit time.Duration

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to runner.UUIDv7Generator.
	RunIDs runner.RunIDGenerator
}

// CheckResult is the outcome of one --check.
type CheckResult struct {
	A          string `json:"a"`
	B          string `json:"b"`
	Equivalent bool   `json:"equivalent"`
}

// RunOutput is the JSON payload of the run command.
type RunOutput struct {
	Report *runner.Report `json:"report"`
	Checks []CheckResult  `json:"checks,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Saturate expressions with compiled specs",
		Long: `Saturate start expressions with the rules in a specs directory.

The rules, scheduler and runner limits come from the CUE specs; flags
override the scheduler and limits. The run stops when the graph is
saturated or a limit is hit, and prints the run report. With --db the
report is also stored in a SQLite database for later inspection with
"eqsched trace".

Example:
  eqsched run ./specs --expr "(+ a (+ b c))"
  eqsched run ./specs --expr "(* x 1)" --scheduler beam --beam-width 50
  eqsched run ./specs --expr "(+ x 0)" --check "(+ x 0) = x" --db ./runs.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSaturation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Exprs, "expr", "e", nil, "start expression (repeatable, required)")
	cmd.Flags().StringArrayVar(&opts.Checks, "check", nil, `equivalence to check after the run, as "a = b" (repeatable)`)
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database to store the report in")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print run metrics to stderr")
	cmd.Flags().StringVar(&opts.Strategy, "scheduler", "", fmt.Sprintf("scheduling strategy %v", schedule.Strategies()))
	cmd.Flags().IntVar(&opts.MatchLimit, "match-limit", 0, "backoff match limit")
	cmd.Flags().IntVar(&opts.BanLength, "ban-length", 0, "backoff ban length")
	cmd.Flags().IntVar(&opts.BeamWidth, "beam-width", 0, "beam width")
	cmd.Flags().IntVar(&opts.MaxDepth, "max-depth", 0, "dfs discovery depth (negative for unbounded)")
	cmd.Flags().IntVar(&opts.IterLimit, "iter-limit", 0, "maximum iterations")
	cmd.Flags().IntVar(&opts.NodeLimit, "node-limit", 0, "maximum graph size")
	cmd.Flags().DurationVar(&opts.TimeLimit, "time-limit", 0, "maximum wall time")
	_ = cmd.MarkFlagRequired("expr")

	return cmd
}

func runSaturation(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose)

	checks, err := parseChecks(opts.Checks)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --check", err)
	}

	logger.Info("compiling specs", "dir", specsDir)
	loadResult, err := LoadSpecs(specsDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	specs := loadResult.Specs
	opts.applyOverrides(specs)
	if errs := compiler.Validate(specs); len(errs) > 0 {
		return outputValidationErrors(formatter, errs)
	}
	logger.Info("specs compiled", "rules", len(specs.Rules), "strategy", specs.Scheduler.Strategy)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	runOpts := []runner.Option{runner.WithLogger(logger)}
	if opts.RunIDs != nil {
		runOpts = append(runOpts, runner.WithRunID(opts.RunIDs))
	}
	if opts.Metrics {
		mp, err := newStdoutMeterProvider(cmd.ErrOrStderr())
		if err != nil {
			return WrapExitError(ExitCommandError, "metrics exporter", err)
		}
		defer func() {
			// Shutdown flushes the final collection to the exporter.
			if err := mp.Shutdown(context.Background()); err != nil {
				logger.Error("error flushing metrics", "error", err)
			}
		}()
		runOpts = append(runOpts, runner.WithMeterProvider(mp))
	}

	g, report, runErr := saturate(ctx, specs, opts.Exprs, runOpts...)
	if report == nil {
		return runErr
	}

	if opts.Database != "" {
		if err := storeReport(ctx, opts.Database, report, logger); err != nil {
			return err
		}
	}

	if runErr != nil {
		_ = formatter.WithRunID(report.RunID).Error(ErrCodeRunFailed, runErr.Error(), nil)
		return WrapExitError(ExitFailure, "saturation failed", runErr)
	}

	results := make([]CheckResult, len(checks))
	for i, c := range checks {
		eq, err := g.Equivalent(c.A, c.B)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid --check %q", opts.Checks[i]), err)
		}
		results[i] = CheckResult{A: c.A, B: c.B, Equivalent: eq}
	}

	if err := outputRun(formatter, report, results); err != nil {
		return err
	}
	for _, c := range results {
		if !c.Equivalent {
			return NewExitError(ExitFailure, fmt.Sprintf("%s and %s are not equivalent", c.A, c.B))
		}
	}
	return nil
}

// saturate builds a graph from exprs and runs the compiled specs on it. A
// nil report means the run could not start; the error is then an
// *ExitError. Otherwise the error is the run's own.
func saturate(ctx context.Context, specs *compiler.Specs, exprs []string, opts ...runner.Option) (*egraph.EGraph, *runner.Report, error) {
	g := egraph.New()
	for _, src := range exprs {
		if _, err := g.AddString(src); err != nil {
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid --expr %q", src), err)
		}
	}

	rules := make([]runner.Rule[*egraph.EGraph], 0, len(specs.Rules))
	for _, spec := range specs.Rules {
		rw, err := egraph.FromSpec(spec)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, fmt.Sprintf("rule %s", spec.Name), err)
		}
		rules = append(rules, rw)
	}
	sched, err := schedule.FromSpec[*egraph.EGraph](specs.Scheduler)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid scheduler", err)
	}
	hash, err := ir.RuleSetHash(specs.Rules)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "hashing rules", err)
	}

	base := []runner.Option{
		runner.WithSpec(specs.Runner),
		runner.WithRuleSetHash(hash),
	}
	r, err := runner.New(g, rules, sched, append(base, opts...)...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to create runner", err)
	}

	report, err := r.Run(ctx)
	return g, report, err
}

// newLogger returns a text logger on w, at debug level when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newStdoutMeterProvider returns a provider that exports to w when it is
// shut down.
func newStdoutMeterProvider(w io.Writer) (*sdkmetric.MeterProvider, error) {
	exp, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	reader := sdkmetric.NewPeriodicReader(exp)
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), nil
}

func storeReport(ctx context.Context, path string, report *runner.Report, logger *slog.Logger) error {
	logger.Info("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	// A canceled run is still worth keeping.
	if err := st.WriteReport(context.WithoutCancel(ctx), report); err != nil {
		return WrapExitError(ExitCommandError, "failed to store report", err)
	}
	logger.Info("report stored", "run_id", report.RunID)
	return nil
}

// applyOverrides replaces spec values with the flags that were set.
func (opts *RunOptions) applyOverrides(specs *compiler.Specs) {
	if opts.Strategy != "" {
		specs.Scheduler.Strategy = opts.Strategy
	}
	if opts.MatchLimit != 0 {
		specs.Scheduler.MatchLimit = opts.MatchLimit
	}
	if opts.BanLength != 0 {
		specs.Scheduler.BanLength = opts.BanLength
	}
	if opts.BeamWidth != 0 {
		specs.Scheduler.BeamWidth = opts.BeamWidth
	}
	if opts.MaxDepth != 0 {
		specs.Scheduler.MaxDepth = opts.MaxDepth
	}
	if opts.IterLimit != 0 {
		specs.Runner.IterLimit = opts.IterLimit
	}
	if opts.NodeLimit != 0 {
		specs.Runner.NodeLimit = opts.NodeLimit
	}
	if opts.TimeLimit != 0 {
		specs.Runner.TimeLimit = opts.TimeLimit
	}
}

type check struct {
	A, B string
}

// parseChecks splits each "a = b" check at the first " = ".
func parseChecks(raw []string) ([]check, error) {
	checks := make([]check, 0, len(raw))
	for _, s := range raw {
		a, b, ok := strings.Cut(s, " = ")
		a, b = strings.TrimSpace(a), strings.TrimSpace(b)
		if !ok || a == "" || b == "" {
			return nil, fmt.Errorf(`%q: want "a = b"`, s)
		}
		checks = append(checks, check{A: a, B: b})
	}
	return checks, nil
}

// outputRun prints the report and check results.
func outputRun(formatter *OutputFormatter, report *runner.Report, checks []CheckResult) error {
	if formatter.Format == "json" {
		return formatter.WithRunID(report.RunID).Success(RunOutput{Report: report, Checks: checks})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s (%s)\n", report.RunID, report.Strategy)
	fmt.Fprintf(w, "Stopped: %s", report.StopReason)
	if report.StopMessage != "" {
		fmt.Fprintf(w, " (%s)", report.StopMessage)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Iterations: %d, nodes: %d, classes: %d, time: %s\n\n",
		len(report.Iterations), report.Nodes, report.Classes, report.TotalTime)

	for _, it := range report.Iterations {
		fmt.Fprintf(w, "  [%d] admitted=%d merges=%d nodes=%d classes=%d\n",
			it.Index, it.TotalAdmitted(), it.Merges, it.Nodes, it.Classes)
		if formatter.Verbose {
			for _, rule := range it.Rules() {
				fmt.Fprintf(w, "      %s: admitted %d, applied %d\n", rule, it.Admitted[rule], it.Applied[rule])
			}
		}
	}

	if len(report.Stats) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Rule stats:")
		for _, s := range report.Stats {
			fmt.Fprintf(w, "  %s: applied %d, banned %d", s.Rule, s.Stats.TimesApplied, s.Stats.TimesBanned)
			if s.Stats.Unbannable {
				fmt.Fprint(w, " (unbannable)")
			}
			fmt.Fprintln(w)
		}
	}

	if len(checks) > 0 {
		fmt.Fprintln(w)
		for _, c := range checks {
			mark := "✓"
			if !c.Equivalent {
				mark = "✗"
			}
			fmt.Fprintf(w, "%s %s = %s\n", mark, c.A, c.B)
		}
	}

	return nil
}
