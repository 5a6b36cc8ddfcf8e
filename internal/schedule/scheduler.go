package schedule

import "github.com/roach88/eqsched/internal/ir"

// Rule is a rewrite rule as seen by a scheduler: a stable name, used as the
// key for per-rule state, and a search over the graph.
type Rule[G any] interface {
	Name() string
	Search(g G) []ir.SearchMatches
}

// LimitedRule is a Rule whose search can stop early once at least limit
// substitutions are found. Schedulers that only need to know whether a
// threshold was crossed use it when available.
type LimitedRule[G any] interface {
	Rule[G]
	SearchWithLimit(g G, limit int) []ir.SearchMatches
}

// Scheduler decides which matches of each rule are applied.
type Scheduler[G any] interface {
	// CanStop reports whether the driver may end saturation at this
	// iteration. It must be safe to call before any SearchRewrite call.
	CanStop(iteration int) bool

	// SearchRewrite searches rule against g and returns the admitted
	// matches. It may update the scheduler's own state but never g.
	// Ownership of the returned records passes to the caller.
	SearchRewrite(iteration int, g G, rule Rule[G]) []ir.SearchMatches
}

// StatsReporter is implemented by schedulers that keep per-rule statistics.
type StatsReporter interface {
	// Stats returns a copy of the statistics for rule.
	Stats(rule string) (RuleStats, bool)

	// Snapshot returns a copy of every rule's statistics, sorted by name.
	Snapshot() []NamedStats
}

// NamedStats pairs a rule name with its statistics.
type NamedStats struct {
	Rule  string    `json:"rule"`
	Stats RuleStats `json:"stats"`
}

// NameOf returns the strategy name of s, or "custom" for schedulers defined
// outside this package.
func NameOf[G any](s Scheduler[G]) string {
	if n, ok := s.(interface{ Strategy() string }); ok {
		return n.Strategy()
	}
	return "custom"
}
