package runner

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/roach88/eqsched/internal/runner"

// Metric instrument names.
const (
	MetricIterations        = "eqsched_iterations_total"
	MetricMatchesAdmitted   = "eqsched_matches_admitted_total"
	MetricMatchesApplied    = "eqsched_matches_applied_total"
	MetricRuleBans          = "eqsched_rule_bans_total"
	MetricIterationDuration = "eqsched_iteration_duration_seconds"
)

// runMetrics holds the instruments for one runner.
type runMetrics struct {
	iterations metric.Int64Counter
	admitted   metric.Int64Counter
	applied    metric.Int64Counter
	bans       metric.Int64Counter
	duration   metric.Float64Histogram
}

func newRunMetrics(mp metric.MeterProvider) (*runMetrics, error) {
	meter := mp.Meter(instrumentationName)
	m := &runMetrics{}
	var err error

	m.iterations, err = meter.Int64Counter(
		MetricIterations,
		metric.WithDescription("Saturation iterations completed"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, err
	}

	m.admitted, err = meter.Int64Counter(
		MetricMatchesAdmitted,
		metric.WithDescription("Substitutions admitted by the scheduler"),
		metric.WithUnit("{match}"),
	)
	if err != nil {
		return nil, err
	}

	m.applied, err = meter.Int64Counter(
		MetricMatchesApplied,
		metric.WithDescription("Unions that changed the graph"),
		metric.WithUnit("{union}"),
	)
	if err != nil {
		return nil, err
	}

	m.bans, err = meter.Int64Counter(
		MetricRuleBans,
		metric.WithDescription("Rules banned by the scheduler"),
		metric.WithUnit("{ban}"),
	)
	if err != nil {
		return nil, err
	}

	m.duration, err = meter.Float64Histogram(
		MetricIterationDuration,
		metric.WithDescription("Duration of one search/apply/rebuild round"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// recordIteration records one finished iteration.
func (m *runMetrics) recordIteration(ctx context.Context, strategy string, it Iteration, bans int) {
	attrs := metric.WithAttributes(attribute.String("strategy", strategy))

	m.iterations.Add(ctx, 1, attrs)
	m.duration.Record(ctx, (it.SearchTime + it.ApplyTime + it.RebuildTime).Seconds(), attrs)

	for _, rule := range it.Rules() {
		ruleAttrs := metric.WithAttributes(
			attribute.String("strategy", strategy),
			attribute.String("rule", rule),
		)
		m.admitted.Add(ctx, int64(it.Admitted[rule]), ruleAttrs)
		if n := it.Applied[rule]; n > 0 {
			m.applied.Add(ctx, int64(n), ruleAttrs)
		}
	}
	if bans > 0 {
		m.bans.Add(ctx, int64(bans), attrs)
	}
}

// startRunSpan creates the span covering a whole run.
func startRunSpan(ctx context.Context, tracer trace.Tracer, runID, strategy string, rules int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Runner.Run",
		trace.WithAttributes(
			attribute.String("eqsched.run_id", runID),
			attribute.String("eqsched.strategy", strategy),
			attribute.Int("eqsched.rules", rules),
		),
	)
}

// setRunSpanResult sets the result attributes on a run span.
func setRunSpanResult(span trace.Span, report *Report) {
	span.SetAttributes(
		attribute.String("eqsched.stop_reason", string(report.StopReason)),
		attribute.Int("eqsched.iterations", len(report.Iterations)),
		attribute.Int("eqsched.nodes", report.Nodes),
		attribute.Int("eqsched.classes", report.Classes),
	)
}
