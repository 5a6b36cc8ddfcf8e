package harness

import "github.com/roach88/eqsched/internal/runner"

// TraceStep is one iteration of a run as it appears in a trace.
type TraceStep struct {
	Index    int            `json:"index"`
	Admitted map[string]int `json:"admitted"`
	Applied  map[string]int `json:"applied"`
	Merges   int            `json:"merges"`
	Nodes    int            `json:"nodes"`
	Classes  int            `json:"classes"`
}

// RuleSummary is a rule's final scheduler statistics as they appear in a
// trace.
type RuleSummary struct {
	Rule         string `json:"rule"`
	TimesApplied int    `json:"times_applied"`
	TimesBanned  int    `json:"times_banned"`
	BannedUntil  int    `json:"banned_until"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// Report is the run report as read back from the store.
	Report *runner.Report `json:"-"`

	// Trace contains the run's iterations in order.
	Trace []TraceStep `json:"trace"`

	// Stats holds per-rule scheduler statistics, sorted by rule.
	Stats []RuleSummary `json:"stats,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceStep{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// ResultFromReport builds a passing result whose trace and stats come from
// report. Snapshot of two such results compares runs without timings.
func ResultFromReport(report *runner.Report) *Result {
	result := NewResult()
	result.Report = report
	result.Trace, result.Stats = traceFromReport(report)
	return result
}

// traceFromReport converts a report into trace steps and rule summaries.
func traceFromReport(report *runner.Report) ([]TraceStep, []RuleSummary) {
	steps := make([]TraceStep, len(report.Iterations))
	for i, it := range report.Iterations {
		steps[i] = TraceStep{
			Index:    it.Index,
			Admitted: it.Admitted,
			Applied:  it.Applied,
			Merges:   it.Merges,
			Nodes:    it.Nodes,
			Classes:  it.Classes,
		}
	}

	var stats []RuleSummary
	for _, s := range report.Stats {
		stats = append(stats, RuleSummary{
			Rule:         s.Rule,
			TimesApplied: s.Stats.TimesApplied,
			TimesBanned:  s.Stats.TimesBanned,
			BannedUntil:  s.Stats.BannedUntil,
		})
	}
	return steps, stats
}
