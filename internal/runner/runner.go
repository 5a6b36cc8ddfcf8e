package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/eqsched/internal/ir"
	"github.com/roach88/eqsched/internal/schedule"
)

// Default run limits.
const (
	DefaultIterLimit = 30
	DefaultNodeLimit = 10_000
	DefaultTimeLimit = 5 * time.Second
)

// Graph is the mutable structure a run saturates.
type Graph interface {
	// Rebuild restores the graph's invariants after a round of unions and
	// returns the number of merges it performed.
	Rebuild() int
	TotalSize() int
	NumClasses() int
}

// Rule is a scheduler rule that can also apply its matches.
type Rule[G Graph] interface {
	schedule.Rule[G]

	// Apply rewrites every match into g and returns how many unions changed
	// the graph. It must not keep ms after returning.
	Apply(g G, ms []ir.SearchMatches) (int, error)
}

// Hook runs before every iteration with the report so far. A non-nil error
// stops the run.
type Hook func(ctx context.Context, report *Report) error

type settings struct {
	limits         Limits
	hooks          []Hook
	runIDs         RunIDGenerator
	now            func() time.Time
	ruleSetHash    string
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	logger         *slog.Logger
}

// Option allows configuration of runner parameters.
type Option func(*settings)

// WithIterLimit sets the maximum number of iterations. Zero disables it.
//
// Default: 30 iterations (DefaultIterLimit)
func WithIterLimit(n int) Option {
	return func(s *settings) {
		s.limits.Iterations = n
	}
}

// WithNodeLimit sets the maximum graph size. Zero disables it.
//
// Default: 10000 nodes (DefaultNodeLimit)
func WithNodeLimit(n int) Option {
	return func(s *settings) {
		s.limits.Nodes = n
	}
}

// WithTimeLimit sets the maximum wall time. Zero disables it.
//
// Default: 5s (DefaultTimeLimit)
func WithTimeLimit(d time.Duration) Option {
	return func(s *settings) {
		s.limits.Time = d
	}
}

// WithSpec applies the non-zero fields of a compiled runner spec.
func WithSpec(spec ir.RunnerSpec) Option {
	return func(s *settings) {
		if spec.IterLimit > 0 {
			s.limits.Iterations = spec.IterLimit
		}
		if spec.NodeLimit > 0 {
			s.limits.Nodes = spec.NodeLimit
		}
		if spec.TimeLimit > 0 {
			s.limits.Time = spec.TimeLimit
		}
	}
}

// WithHook adds a hook that runs before every iteration.
func WithHook(h Hook) Option {
	return func(s *settings) {
		s.hooks = append(s.hooks, h)
	}
}

// WithRunID sets the run id generator. Default: UUIDv7Generator.
func WithRunID(gen RunIDGenerator) Option {
	return func(s *settings) {
		s.runIDs = gen
	}
}

// WithClock sets the time source used for timings and the time limit.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.now = now
	}
}

// WithRuleSetHash records the hash of the compiled rules in the report.
func WithRuleSetHash(hash string) Option {
	return func(s *settings) {
		s.ruleSetHash = hash
	}
}

// WithMeterProvider sets the provider for run metrics.
// Default: the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) {
		s.meterProvider = mp
	}
}

// WithTracerProvider sets the provider for run spans.
// Default: the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) {
		s.tracerProvider = tp
	}
}

// WithLogger sets the logger for run progress. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Runner drives saturation of one graph.
type Runner[G Graph] struct {
	graph G
	rules []Rule[G] // Rules in registration order
	sched schedule.Scheduler[G]
	settings
}

// New creates a Runner.
//
// The rules slice is copied so later changes by the caller cannot reorder
// evaluation. Rule names must be unique.
func New[G Graph](g G, rules []Rule[G], sched schedule.Scheduler[G], opts ...Option) (*Runner[G], error) {
	if sched == nil {
		return nil, &RunError{
			Code:      ErrCodeNoScheduler,
			Message:   "a scheduler is required",
			Iteration: -1,
		}
	}

	seen := make(map[string]bool, len(rules))
	for _, rule := range rules {
		if seen[rule.Name()] {
			return nil, NewDuplicateRuleError(rule.Name())
		}
		seen[rule.Name()] = true
	}
	rulesCopy := make([]Rule[G], len(rules))
	copy(rulesCopy, rules)

	r := &Runner[G]{
		graph: g,
		rules: rulesCopy,
		sched: sched,
		settings: settings{
			limits: Limits{
				Iterations: DefaultIterLimit,
				Nodes:      DefaultNodeLimit,
				Time:       DefaultTimeLimit,
			},
			runIDs: UUIDv7Generator{},
			now:    time.Now,
		},
	}
	for _, opt := range opts {
		opt(&r.settings)
	}
	if r.meterProvider == nil {
		r.meterProvider = otel.GetMeterProvider()
	}
	if r.tracerProvider == nil {
		r.tracerProvider = otel.GetTracerProvider()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r, nil
}

// Graph returns the graph being saturated.
func (r *Runner[G]) Graph() G {
	return r.graph
}

// Limits returns the configured run limits.
func (r *Runner[G]) Limits() Limits {
	return r.limits
}

// RuleNames returns the rule names in registration order.
func (r *Runner[G]) RuleNames() []string {
	names := make([]string, len(r.rules))
	for i, rule := range r.rules {
		names[i] = rule.Name()
	}
	return names
}

// Run saturates the graph until it is saturated or a limit is hit.
//
// The returned report is always non-nil. The error is non-nil only when a
// rule failed to apply or a hook stopped the run; limits and cancellation
// are ordinary stop reasons.
//
// Run releases any resources the scheduler still holds when it returns.
func (r *Runner[G]) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       r.runIDs.Generate(),
		Strategy:    schedule.NameOf(r.sched),
		RuleSetHash: r.ruleSetHash,
		Iterations:  []Iteration{},
	}

	metrics, err := newRunMetrics(r.meterProvider)
	if err != nil {
		return report, fmt.Errorf("init run metrics: %w", err)
	}
	tracer := r.tracerProvider.Tracer(instrumentationName)

	ctx, span := startRunSpan(ctx, tracer, report.RunID, report.Strategy, len(r.rules))
	defer span.End()
	defer r.closeScheduler()

	r.logger.Info("saturation starting",
		"run_id", report.RunID,
		"strategy", report.Strategy,
		"rules", len(r.rules),
		"iter_limit", r.limits.Iterations,
		"node_limit", r.limits.Nodes,
		"time_limit", r.limits.Time,
	)

	start := r.now()
	var runErr error

	for i := 0; ; i++ {
		if err := ctx.Err(); err != nil {
			report.StopReason = StopCanceled
			report.StopMessage = err.Error()
			break
		}
		if err := r.limits.Check(i, r.graph.TotalSize(), r.now().Sub(start)); err != nil {
			report.StopReason = err.(*LimitExceededError).Reason
			report.StopMessage = err.Error()
			break
		}
		if err := r.runHooks(ctx, report); err != nil {
			runErr = NewHookError(i, err)
			report.StopReason = StopHook
			report.StopMessage = err.Error()
			break
		}

		it, err := r.iterate(ctx, tracer, metrics, report.Strategy, i)
		report.Iterations = append(report.Iterations, it)
		if err != nil {
			runErr = err
			report.StopReason = StopError
			report.StopMessage = err.Error()
			break
		}

		// CanStop is only consulted once nothing changed.
		if !it.Changed() && r.sched.CanStop(i) {
			report.StopReason = StopSaturated
			break
		}
	}

	report.Nodes = r.graph.TotalSize()
	report.Classes = r.graph.NumClasses()
	report.TotalTime = r.now().Sub(start)
	if sr, ok := any(r.sched).(schedule.StatsReporter); ok {
		report.Stats = sr.Snapshot()
	}

	setRunSpanResult(span, report)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		r.logger.Error("saturation failed",
			"run_id", report.RunID,
			"iterations", len(report.Iterations),
			"error", runErr,
		)
	} else {
		span.SetStatus(codes.Ok, "")
		r.logger.Info("saturation finished",
			"run_id", report.RunID,
			"stop_reason", report.StopReason,
			"iterations", len(report.Iterations),
			"nodes", report.Nodes,
			"classes", report.Classes,
		)
	}
	return report, runErr
}

func (r *Runner[G]) runHooks(ctx context.Context, report *Report) error {
	for _, h := range r.hooks {
		if err := h(ctx, report); err != nil {
			return err
		}
	}
	return nil
}

// iterate runs one search/apply/rebuild round. Each rule's admitted matches
// are applied before the next rule is searched, so later rules see what
// earlier rules added. The graph is rebuilt once, after the last rule.
func (r *Runner[G]) iterate(
	ctx context.Context,
	tracer trace.Tracer,
	metrics *runMetrics,
	strategy string,
	i int,
) (Iteration, error) {
	ctx, span := tracer.Start(ctx, "Runner.Iteration",
		trace.WithAttributes(attribute.Int("eqsched.iteration", i)),
	)
	defer span.End()

	it := Iteration{
		Index:    i,
		Admitted: make(map[string]int),
		Applied:  make(map[string]int),
	}
	bansBefore := r.totalBans()

	mark := r.now()
	for _, rule := range r.rules {
		ms := r.sched.SearchRewrite(i, r.graph, rule)
		searched := r.now()
		it.SearchTime += searched.Sub(mark)
		if n := ir.TotalSubsts(ms); n > 0 {
			it.Admitted[rule.Name()] = n
		}

		changed := 0
		var err error
		if len(ms) > 0 {
			changed, err = rule.Apply(r.graph, ms)
			ir.ReleaseAll(ms)
		}
		mark = r.now()
		it.ApplyTime += mark.Sub(searched)
		if err != nil {
			span.RecordError(err)
			return it, NewApplyError(rule.Name(), i, err)
		}
		if changed > 0 {
			it.Applied[rule.Name()] = changed
		}
	}

	it.Merges = r.graph.Rebuild()
	it.RebuildTime = r.now().Sub(mark)
	it.Nodes = r.graph.TotalSize()
	it.Classes = r.graph.NumClasses()

	bans := r.totalBans() - bansBefore
	metrics.recordIteration(ctx, strategy, it, bans)

	span.SetAttributes(
		attribute.Int("eqsched.admitted", it.TotalAdmitted()),
		attribute.Int("eqsched.merges", it.Merges),
		attribute.Int("eqsched.nodes", it.Nodes),
	)
	r.logger.Debug("iteration complete",
		"iteration", i,
		"admitted", it.TotalAdmitted(),
		"changed", it.Changed(),
		"merges", it.Merges,
		"nodes", it.Nodes,
		"classes", it.Classes,
		"bans", bans,
	)
	return it, nil
}

func (r *Runner[G]) totalBans() int {
	sr, ok := any(r.sched).(schedule.StatsReporter)
	if !ok {
		return 0
	}
	total := 0
	for _, s := range sr.Snapshot() {
		total += s.Stats.TimesBanned
	}
	return total
}

func (r *Runner[G]) closeScheduler() {
	if c, ok := any(r.sched).(interface{ Close() }); ok {
		c.Close()
	}
}
