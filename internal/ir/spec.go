package ir

import "time"

// RuleSpec is a compiled rewrite rule: rewrite LHS to RHS wherever LHS
// matches. Both sides are s-expression patterns; "?x" is a variable.
type RuleSpec struct {
	Name string `json:"name"`
	LHS  string `json:"lhs"`
	RHS  string `json:"rhs"`
}

// Strategy names accepted in scheduler specs.
const (
	StrategyDefault    = "default"
	StrategyBFS        = "bfs" // alias for default
	StrategyBackoff    = "backoff"
	StrategyBeam       = "beam"
	StrategyDFS        = "dfs"
	StrategyDFSBackoff = "dfs-backoff"
)

// ValidStrategies defines allowed strategy names.
var ValidStrategies = map[string]bool{
	StrategyDefault:    true,
	StrategyBFS:        true,
	StrategyBackoff:    true,
	StrategyBeam:       true,
	StrategyDFS:        true,
	StrategyDFSBackoff: true,
}

// SchedulerSpec is the compiled scheduler configuration.
// Zero-valued fields mean "use the strategy default".
type SchedulerSpec struct {
	Strategy   string `json:"strategy"`
	MatchLimit int    `json:"match_limit,omitempty"`
	BanLength  int    `json:"ban_length,omitempty"`
	BeamWidth  int    `json:"beam_width,omitempty"`
	MaxDepth   int    `json:"max_depth,omitempty"`

	// DoNotBan lists rules the backoff strategy must never ban.
	DoNotBan []string `json:"do_not_ban,omitempty"`

	// Rules holds per-rule backoff overrides keyed by rule name.
	Rules map[string]RuleLimits `json:"rules,omitempty"`
}

// RuleLimits overrides backoff limits for a single rule.
type RuleLimits struct {
	MatchLimit int `json:"match_limit,omitempty"`
	BanLength  int `json:"ban_length,omitempty"`
}

// RunnerSpec is the compiled driver configuration.
// Zero-valued fields mean "use the runner default".
type RunnerSpec struct {
	IterLimit int           `json:"iter_limit,omitempty"`
	NodeLimit int           `json:"node_limit,omitempty"`
	TimeLimit time.Duration `json:"time_limit,omitempty"`
}
