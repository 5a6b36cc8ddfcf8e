package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/eqsched/internal/egraph"
	"github.com/roach88/eqsched/internal/runner"
)

// AssertionContext is what assertions are evaluated against.
type AssertionContext struct {
	Graph  *egraph.EGraph
	Report *runner.Report
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string      // Assertion type for categorization
	Expected string      // Human-readable expected outcome
	Actual   string      // Human-readable actual outcome
	Trace    []TraceStep // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, step := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] admitted=%v applied=%v merges=%d nodes=%d\n",
				step.Index, step.Admitted, step.Applied, step.Merges, step.Nodes)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates every assertion and returns the failures in
// assertion order.
func EvaluateAssertions(ctx *AssertionContext, assertions []Assertion) []error {
	var errs []error
	for i, a := range assertions {
		if err := evaluateAssertion(ctx, a); err != nil {
			errs = append(errs, fmt.Errorf("assertion %d (%s): %w", i, a.Type, err))
		}
	}
	return errs
}

func evaluateAssertion(ctx *AssertionContext, a Assertion) error {
	switch a.Type {
	case AssertEquivalent:
		return assertEquivalent(ctx, a, true)
	case AssertNotEquivalent:
		return assertEquivalent(ctx, a, false)
	case AssertStopReason:
		return assertStopReason(ctx, a)
	case AssertRuleApplied:
		return assertRuleApplied(ctx, a)
	case AssertMaxIterations:
		return assertMaxIterations(ctx, a)
	case AssertBanned:
		return assertBanned(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
}

// assertEquivalent checks whether A and B ended in the same class.
func assertEquivalent(ctx *AssertionContext, a Assertion, want bool) error {
	got, err := ctx.Graph.Equivalent(a.A, a.B)
	if err != nil {
		return err
	}
	if got == want {
		return nil
	}

	relation := "equivalent"
	if !want {
		relation = "not equivalent"
	}
	actual := "equivalent"
	if !got {
		actual = "not equivalent"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s %s %s", a.A, relation, a.B),
		Actual:   actual,
		Trace:    trace(ctx),
	}
}

func assertStopReason(ctx *AssertionContext, a Assertion) error {
	if string(ctx.Report.StopReason) == a.Reason {
		return nil
	}
	actual := string(ctx.Report.StopReason)
	if ctx.Report.StopMessage != "" {
		actual += " (" + ctx.Report.StopMessage + ")"
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: a.Reason,
		Actual:   actual,
		Trace:    trace(ctx),
	}
}

// assertRuleApplied checks the number of iterations in which a rule had
// matches admitted.
func assertRuleApplied(ctx *AssertionContext, a Assertion) error {
	n := ctx.Report.TimesApplied(a.Rule)
	if err := checkCount(a, n); err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("rule %s applied in %s iterations", a.Rule, err.Error()),
			Actual:   fmt.Sprintf("%d", n),
			Trace:    trace(ctx),
		}
	}
	return nil
}

func assertMaxIterations(ctx *AssertionContext, a Assertion) error {
	n := len(ctx.Report.Iterations)
	if n <= *a.Count {
		return nil
	}
	return &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("at most %d iterations", *a.Count),
		Actual:   fmt.Sprintf("%d iterations", n),
	}
}

// assertBanned checks how often the scheduler banned a rule. Without count
// or min it expects at least one ban.
func assertBanned(ctx *AssertionContext, a Assertion) error {
	stats, _ := ctx.Report.RuleStats(a.Rule)
	if a.Count == nil && a.Min == nil {
		one := 1
		a.Min = &one
	}
	if err := checkCount(a, stats.TimesBanned); err != nil {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("rule %s banned %s times", a.Rule, err.Error()),
			Actual:   fmt.Sprintf("%d", stats.TimesBanned),
		}
	}
	return nil
}

// checkCount compares n against the assertion's count and min. The returned
// error describes the expectation.
func checkCount(a Assertion, n int) error {
	if a.Count != nil && n != *a.Count {
		return fmt.Errorf("%d", *a.Count)
	}
	if a.Min != nil && n < *a.Min {
		return fmt.Errorf("at least %d", *a.Min)
	}
	return nil
}

func trace(ctx *AssertionContext) []TraceStep {
	steps, _ := traceFromReport(ctx.Report)
	return steps
}
