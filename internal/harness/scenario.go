package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/eqsched/internal/ir"
)

// Scenario defines a conformance test scenario.
// Scenarios saturate a set of start expressions and assert on the final
// graph and on the run report.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs is an optional CUE specs directory whose rules, scheduler and
	// runner blocks are loaded first. Relative paths are resolved against
	// the scenario file's base path.
	Specs string `yaml:"specs,omitempty"`

	// Rules are inline rules, registered after any rules from Specs.
	Rules []RuleStep `yaml:"rules,omitempty"`

	// Scheduler overrides the scheduler configuration field by field.
	Scheduler *SchedulerConfig `yaml:"scheduler,omitempty"`

	// Runner overrides the runner limits field by field.
	Runner *RunnerConfig `yaml:"runner,omitempty"`

	// Exprs are the start expressions added to the graph before the run.
	Exprs []string `yaml:"exprs"`

	// Assertions validate the final graph and report.
	// Supported types: equivalent, not_equivalent, stop_reason,
	// rule_applied, max_iterations, banned
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id.
	// If empty, defaults to "test-run-default" so golden files are stable.
	RunID string `yaml:"run_id,omitempty"`
}

// RuleStep is an inline rewrite rule.
type RuleStep struct {
	Name string `yaml:"name"`
	LHS  string `yaml:"lhs"`
	RHS  string `yaml:"rhs"`
}

// SchedulerConfig is the YAML form of ir.SchedulerSpec. Zero fields leave
// the loaded or default value in place.
type SchedulerConfig struct {
	Strategy   string                    `yaml:"strategy,omitempty"`
	MatchLimit int                       `yaml:"match_limit,omitempty"`
	BanLength  int                       `yaml:"ban_length,omitempty"`
	BeamWidth  int                       `yaml:"beam_width,omitempty"`
	MaxDepth   int                       `yaml:"max_depth,omitempty"`
	DoNotBan   []string                  `yaml:"do_not_ban,omitempty"`
	Rules      map[string]RuleLimitsStep `yaml:"rules,omitempty"`
}

// RuleLimitsStep is the YAML form of ir.RuleLimits.
type RuleLimitsStep struct {
	MatchLimit int `yaml:"match_limit,omitempty"`
	BanLength  int `yaml:"ban_length,omitempty"`
}

// RunnerConfig is the YAML form of ir.RunnerSpec. time_limit takes a Go
// duration string such as "500ms".
type RunnerConfig struct {
	IterLimit int           `yaml:"iter_limit,omitempty"`
	NodeLimit int           `yaml:"node_limit,omitempty"`
	TimeLimit time.Duration `yaml:"time_limit,omitempty"`
}

// Assertion validates the final graph or the run report.
type Assertion struct {
	// Type specifies the assertion type:
	// - "equivalent": A and B are in the same class
	// - "not_equivalent": A and B are not in the same class
	// - "stop_reason": the run stopped for Reason
	// - "rule_applied": Rule had matches admitted in Count iterations,
	//   or in at least Min iterations
	// - "max_iterations": the run took at most Count iterations
	// - "banned": Rule was banned exactly Count times, or at least Min
	//   times (default: at least once)
	Type string `yaml:"type"`

	// A and B are expressions (used by equivalent, not_equivalent).
	A string `yaml:"a,omitempty"`
	B string `yaml:"b,omitempty"`

	// Reason is the expected stop reason (used by stop_reason).
	Reason string `yaml:"reason,omitempty"`

	// Rule is the rule name (used by rule_applied, banned).
	Rule string `yaml:"rule,omitempty"`

	// Count is an exact expected count. A pointer so that zero is a valid
	// expectation.
	Count *int `yaml:"count,omitempty"`

	// Min is a minimum expected count.
	Min *int `yaml:"min,omitempty"`
}

// Assertion type constants.
const (
	AssertEquivalent    = "equivalent"
	AssertNotEquivalent = "not_equivalent"
	AssertStopReason    = "stop_reason"
	AssertRuleApplied   = "rule_applied"
	AssertMaxIterations = "max_iterations"
	AssertBanned        = "banned"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// A relative specs directory is resolved against the scenario file's
// directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving a relative specs directory against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Specs != "" && !filepath.IsAbs(scenario.Specs) && basePath != "" {
		scenario.Specs = filepath.Join(basePath, scenario.Specs)
	}
	return scenario, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Exprs) == 0 {
		return fmt.Errorf("at least one expression is required")
	}
	if len(s.Rules) == 0 && s.Specs == "" {
		return fmt.Errorf("rules or specs is required")
	}
	for i, r := range s.Rules {
		if r.Name == "" || r.LHS == "" || r.RHS == "" {
			return fmt.Errorf("rules[%d]: name, lhs and rhs are required", i)
		}
	}
	if s.Scheduler != nil && s.Scheduler.Strategy != "" && !ir.ValidStrategies[s.Scheduler.Strategy] {
		return fmt.Errorf("scheduler: unknown strategy %q", s.Scheduler.Strategy)
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion checks that an assertion has required fields for its type.
func validateAssertion(index int, a Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertEquivalent, AssertNotEquivalent:
		if a.A == "" || a.B == "" {
			return fmt.Errorf("assertions[%d]: a and b are required for %s", index, a.Type)
		}
	case AssertStopReason:
		if a.Reason == "" {
			return fmt.Errorf("assertions[%d]: reason is required for stop_reason", index)
		}
	case AssertRuleApplied:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for rule_applied", index)
		}
		if a.Count == nil && a.Min == nil {
			return fmt.Errorf("assertions[%d]: count or min is required for rule_applied", index)
		}
	case AssertMaxIterations:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for max_iterations", index)
		}
	case AssertBanned:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for banned", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	if a.Min != nil && *a.Min < 0 {
		return fmt.Errorf("assertions[%d]: min must be non-negative", index)
	}
	return nil
}

// apply merges the override into base.
func (c *SchedulerConfig) apply(base ir.SchedulerSpec) ir.SchedulerSpec {
	if c == nil {
		return base
	}
	if c.Strategy != "" {
		base.Strategy = c.Strategy
	}
	if c.MatchLimit != 0 {
		base.MatchLimit = c.MatchLimit
	}
	if c.BanLength != 0 {
		base.BanLength = c.BanLength
	}
	if c.BeamWidth != 0 {
		base.BeamWidth = c.BeamWidth
	}
	if c.MaxDepth != 0 {
		base.MaxDepth = c.MaxDepth
	}
	if len(c.DoNotBan) > 0 {
		base.DoNotBan = append(base.DoNotBan, c.DoNotBan...)
	}
	if len(c.Rules) > 0 {
		merged := make(map[string]ir.RuleLimits, len(base.Rules)+len(c.Rules))
		for name, l := range base.Rules {
			merged[name] = l
		}
		for name, l := range c.Rules {
			merged[name] = ir.RuleLimits{MatchLimit: l.MatchLimit, BanLength: l.BanLength}
		}
		base.Rules = merged
	}
	return base
}

func (c *RunnerConfig) apply(base ir.RunnerSpec) ir.RunnerSpec {
	if c == nil {
		return base
	}
	if c.IterLimit != 0 {
		base.IterLimit = c.IterLimit
	}
	if c.NodeLimit != 0 {
		base.NodeLimit = c.NodeLimit
	}
	if c.TimeLimit != 0 {
		base.TimeLimit = c.TimeLimit
	}
	return base
}
