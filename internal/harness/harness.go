package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/eqsched/internal/compiler"
	"github.com/roach88/eqsched/internal/egraph"
	"github.com/roach88/eqsched/internal/ir"
	"github.com/roach88/eqsched/internal/runner"
	"github.com/roach88/eqsched/internal/schedule"
	"github.com/roach88/eqsched/internal/store"
	"github.com/roach88/eqsched/internal/testutil"
)

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh graph and a fresh in-memory database.
// A fixed run id and a step clock make the stored rows reproducible.
//
// Execution flow:
// 1. Load the specs directory, if any, and merge the inline rules and overrides
// 2. Validate the merged specs
// 3. Add the start expressions to a new graph
// 4. Saturate the graph with the configured scheduler
// 5. Persist the report and read it back as the trace
// 6. Evaluate assertions against the graph and the stored report
//
// An error is returned only when the scenario cannot be run. Failing
// assertions are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	specs, err := buildSpecs(scenario)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(specs); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid specs: %s", strings.Join(msgs, "; "))
	}

	g := egraph.New()
	for _, src := range scenario.Exprs {
		if _, err := g.AddString(src); err != nil {
			return nil, fmt.Errorf("expr %q: %w", src, err)
		}
	}
	g.Rebuild()

	rules := make([]runner.Rule[*egraph.EGraph], 0, len(specs.Rules))
	for _, spec := range specs.Rules {
		rw, err := egraph.FromSpec(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", spec.Name, err)
		}
		rules = append(rules, rw)
	}

	sched, err := schedule.FromSpec[*egraph.EGraph](specs.Scheduler)
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	hash, err := ir.RuleSetHash(specs.Rules)
	if err != nil {
		return nil, fmt.Errorf("hash rules: %w", err)
	}

	r, err := runner.New(g, rules, sched,
		runner.WithSpec(specs.Runner),
		runner.WithRunID(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		runner.WithClock(testutil.NewStepClock(time.Millisecond).Now),
		runner.WithRuleSetHash(hash),
		runner.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
	)
	if err != nil {
		return nil, fmt.Errorf("create runner: %w", err)
	}

	report, runErr := r.Run(ctx)
	if runErr != nil {
		return nil, fmt.Errorf("run: %w", runErr)
	}

	stored, err := persist(ctx, report)
	if err != nil {
		return nil, err
	}

	result := ResultFromReport(stored)

	actx := &AssertionContext{Graph: g, Report: stored}
	for _, err := range EvaluateAssertions(actx, scenario.Assertions) {
		result.AddError(err.Error())
	}
	return result, nil
}

// buildSpecs merges the scenario's specs directory with its inline rules and
// overrides.
func buildSpecs(scenario *Scenario) (*compiler.Specs, error) {
	specs := &compiler.Specs{}
	if scenario.Specs != "" {
		loaded, err := compiler.LoadDir(scenario.Specs)
		if err != nil {
			return nil, fmt.Errorf("load specs %s: %w", scenario.Specs, err)
		}
		specs = loaded
	}

	for _, step := range scenario.Rules {
		specs.Rules = append(specs.Rules, ir.RuleSpec{Name: step.Name, LHS: step.LHS, RHS: step.RHS})
	}
	specs.Scheduler = scenario.Scheduler.apply(specs.Scheduler)
	specs.Runner = scenario.Runner.apply(specs.Runner)
	return specs, nil
}

// persist writes the report to a fresh in-memory store and reads it back.
func persist(ctx context.Context, report *runner.Report) (*runner.Report, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.WriteReport(ctx, report); err != nil {
		return nil, fmt.Errorf("write report: %w", err)
	}
	stored, err := st.ReadReport(ctx, report.RunID)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return stored, nil
}
