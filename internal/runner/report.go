package runner

import (
	"slices"
	"time"

	"github.com/roach88/eqsched/internal/schedule"
)

// StopReason says why a run ended.
type StopReason string

const (
	StopSaturated      StopReason = "saturated"
	StopIterationLimit StopReason = "iteration_limit"
	StopNodeLimit      StopReason = "node_limit"
	StopTimeLimit      StopReason = "time_limit"
	StopCanceled       StopReason = "canceled"
	StopHook           StopReason = "hook"
	StopError          StopReason = "error"
)

// ValidStopReasons defines the accepted stop reason strings.
var ValidStopReasons = map[StopReason]bool{
	StopSaturated:      true,
	StopIterationLimit: true,
	StopNodeLimit:      true,
	StopTimeLimit:      true,
	StopCanceled:       true,
	StopHook:           true,
	StopError:          true,
}

// Iteration records one search/apply/rebuild round.
type Iteration struct {
	Index int `json:"index"`

	// Admitted counts substitutions each rule's scheduler admitted.
	// Rules that were banned or found nothing are absent.
	Admitted map[string]int `json:"admitted"`

	// Applied counts, per rule, the unions that changed the graph.
	Applied map[string]int `json:"applied"`

	// Merges is the number of congruence merges performed by rebuild.
	Merges int `json:"merges"`

	Nodes   int `json:"nodes"`
	Classes int `json:"classes"`

	SearchTime  time.Duration `json:"search_time"`
	ApplyTime   time.Duration `json:"apply_time"`
	RebuildTime time.Duration `json:"rebuild_time"`
}

// Changed reports whether the iteration modified the graph.
func (it Iteration) Changed() bool {
	if it.Merges > 0 {
		return true
	}
	for _, n := range it.Applied {
		if n > 0 {
			return true
		}
	}
	return false
}

// TotalAdmitted returns the number of substitutions admitted across rules.
func (it Iteration) TotalAdmitted() int {
	total := 0
	for _, n := range it.Admitted {
		total += n
	}
	return total
}

// Rules returns the names of rules with admitted matches, sorted.
func (it Iteration) Rules() []string {
	names := make([]string, 0, len(it.Admitted))
	for name := range it.Admitted {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Report summarizes a finished run.
type Report struct {
	RunID       string     `json:"run_id"`
	Strategy    string     `json:"strategy"`
	RuleSetHash string     `json:"ruleset_hash,omitempty"`
	StopReason  StopReason `json:"stop_reason"`

	// StopMessage carries the limit, hook or cancellation detail.
	StopMessage string `json:"stop_message,omitempty"`

	Iterations []Iteration   `json:"iterations"`
	Nodes      int           `json:"nodes"`
	Classes    int           `json:"classes"`
	TotalTime  time.Duration `json:"total_time"`

	// Stats holds the scheduler's per-rule statistics when it keeps any.
	Stats []schedule.NamedStats `json:"stats,omitempty"`
}

// TimesApplied returns the number of iterations in which rule had matches
// admitted.
func (r *Report) TimesApplied(rule string) int {
	n := 0
	for _, it := range r.Iterations {
		if it.Admitted[rule] > 0 {
			n++
		}
	}
	return n
}

// TotalApplied returns the number of graph-changing unions rule performed.
func (r *Report) TotalApplied(rule string) int {
	n := 0
	for _, it := range r.Iterations {
		n += it.Applied[rule]
	}
	return n
}

// RuleStats returns the scheduler statistics recorded for rule.
func (r *Report) RuleStats(rule string) (schedule.RuleStats, bool) {
	for _, s := range r.Stats {
		if s.Rule == rule {
			return s.Stats, true
		}
	}
	return schedule.RuleStats{}, false
}
