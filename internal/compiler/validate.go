package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/eqsched/internal/egraph"
	"github.com/roach88/eqsched/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// RuleSpec errors (E101-E109)
	ErrRuleNameEmpty   = "E101" // rule name is required
	ErrRuleLHSEmpty    = "E102" // lhs is required
	ErrRuleRHSEmpty    = "E103" // rhs is required
	ErrInvalidPattern  = "E104" // pattern does not parse
	ErrDuplicateName   = "E105" // duplicate rule name
	ErrUnboundVariable = "E106" // rhs variable not bound by lhs
	ErrVariablePattern = "E107" // lhs is a bare variable
	ErrEmptyRuleSet    = "E108" // no rules defined

	// SchedulerSpec errors (E110-E119)
	ErrUnknownStrategy = "E110" // strategy name not registered
	ErrInvalidLimit    = "E111" // negative limit or width
	ErrUnknownRuleRef  = "E112" // do_not_ban or rules names an undefined rule

	// RunnerSpec errors (E120-E129)
	ErrInvalidRunnerLimit = "E120" // negative runner limit
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports RuleSpec, SchedulerSpec, RunnerSpec and *Specs.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.RuleSpec:
		return validateRuleSpec(spec, "rule."+spec.Name)
	case ir.RuleSpec:
		return validateRuleSpec(&spec, "rule."+spec.Name)
	case *ir.SchedulerSpec:
		return validateSchedulerSpec(spec)
	case ir.SchedulerSpec:
		return validateSchedulerSpec(&spec)
	case *ir.RunnerSpec:
		return validateRunnerSpec(spec)
	case ir.RunnerSpec:
		return validateRunnerSpec(&spec)
	case *Specs:
		return validateSpecs(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateSpecs validates each part and the references between them.
func validateSpecs(specs *Specs) []ValidationError {
	var errs []ValidationError

	// E108: a run needs at least one rule
	if len(specs.Rules) == 0 {
		errs = append(errs, ValidationError{
			Field:   "rule",
			Message: "at least one rule is required",
			Code:    ErrEmptyRuleSet,
		})
	}

	names := make(map[string]bool, len(specs.Rules))
	for i := range specs.Rules {
		rule := &specs.Rules[i]

		// E105: duplicate rule name
		if names[rule.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("rules[%d].name", i),
				Message: fmt.Sprintf("duplicate rule name: %q", rule.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[rule.Name] = true

		errs = append(errs, validateRuleSpec(rule, "rule."+rule.Name)...)
	}

	errs = append(errs, validateSchedulerSpec(&specs.Scheduler)...)
	errs = append(errs, validateRunnerSpec(&specs.Runner)...)

	// E112: scheduler references must name defined rules
	for i, name := range specs.Scheduler.DoNotBan {
		if !names[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("scheduler.do_not_ban[%d]", i),
				Message: fmt.Sprintf("undefined rule %q", name),
				Code:    ErrUnknownRuleRef,
			})
		}
	}
	for _, name := range sortedKeys(specs.Scheduler.Rules) {
		if !names[name] {
			errs = append(errs, ValidationError{
				Field:   "scheduler.rules." + name,
				Message: fmt.Sprintf("undefined rule %q", name),
				Code:    ErrUnknownRuleRef,
			})
		}
	}

	return errs
}

// validateRuleSpec validates a single rewrite rule. Pattern checks reuse the
// rewrite compiler so validation and execution agree.
func validateRuleSpec(rule *ir.RuleSpec, field string) []ValidationError {
	var errs []ValidationError

	// E101: name is required
	if strings.TrimSpace(rule.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".name",
			Message: "rule name is required",
			Code:    ErrRuleNameEmpty,
		})
	}

	// E102/E103: both sides are required
	if strings.TrimSpace(rule.LHS) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".lhs",
			Message: "lhs is required and must be non-empty",
			Code:    ErrRuleLHSEmpty,
		})
	}
	if strings.TrimSpace(rule.RHS) == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".rhs",
			Message: "rhs is required and must be non-empty",
			Code:    ErrRuleRHSEmpty,
		})
	}
	if len(errs) > 0 {
		return errs
	}

	if _, err := egraph.ParsePattern(rule.LHS); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".lhs",
			Message: err.Error(),
			Code:    ErrInvalidPattern,
		})
	}
	if _, err := egraph.ParsePattern(rule.RHS); err != nil {
		errs = append(errs, ValidationError{
			Field:   field + ".rhs",
			Message: err.Error(),
			Code:    ErrInvalidPattern,
		})
	}
	if len(errs) > 0 {
		return errs
	}

	if _, err := egraph.NewRewrite(rule.Name, rule.LHS, rule.RHS); err != nil {
		switch {
		case errors.Is(err, egraph.ErrUnboundVar):
			errs = append(errs, ValidationError{
				Field:   field + ".rhs",
				Message: err.Error(),
				Code:    ErrUnboundVariable,
			})
		case errors.Is(err, egraph.ErrPatternRoot):
			errs = append(errs, ValidationError{
				Field:   field + ".lhs",
				Message: "lhs must have an operator at its root, not a bare variable",
				Code:    ErrVariablePattern,
			})
		default:
			errs = append(errs, ValidationError{
				Field:   field,
				Message: err.Error(),
				Code:    ErrInvalidPattern,
			})
		}
	}

	return errs
}

type limitField struct {
	field string
	value int
}

// validateSchedulerSpec validates scheduler configuration.
func validateSchedulerSpec(spec *ir.SchedulerSpec) []ValidationError {
	var errs []ValidationError

	// E110: strategy must be registered ("" selects the default)
	if spec.Strategy != "" && !ir.ValidStrategies[spec.Strategy] {
		errs = append(errs, ValidationError{
			Field:   "scheduler.strategy",
			Message: fmt.Sprintf("unknown strategy %q", spec.Strategy),
			Code:    ErrUnknownStrategy,
		})
	}

	// E111: limits must be non-negative (zero selects the default).
	// A negative max_depth is allowed and means unbounded.
	limits := []limitField{
		{"scheduler.match_limit", spec.MatchLimit},
		{"scheduler.ban_length", spec.BanLength},
		{"scheduler.beam_width", spec.BeamWidth},
	}
	for _, name := range sortedKeys(spec.Rules) {
		rl := spec.Rules[name]
		limits = append(limits,
			limitField{"scheduler.rules." + name + ".match_limit", rl.MatchLimit},
			limitField{"scheduler.rules." + name + ".ban_length", rl.BanLength},
		)
	}
	for _, l := range limits {
		if l.value < 0 {
			errs = append(errs, ValidationError{
				Field:   l.field,
				Message: fmt.Sprintf("must not be negative, got %d", l.value),
				Code:    ErrInvalidLimit,
			})
		}
	}

	return errs
}

// validateRunnerSpec validates runner limits.
func validateRunnerSpec(spec *ir.RunnerSpec) []ValidationError {
	var errs []ValidationError

	if spec.IterLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "runner.iter_limit",
			Message: fmt.Sprintf("must not be negative, got %d", spec.IterLimit),
			Code:    ErrInvalidRunnerLimit,
		})
	}
	if spec.NodeLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "runner.node_limit",
			Message: fmt.Sprintf("must not be negative, got %d", spec.NodeLimit),
			Code:    ErrInvalidRunnerLimit,
		})
	}
	if spec.TimeLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "runner.time_limit",
			Message: fmt.Sprintf("must not be negative, got %v", spec.TimeLimit),
			Code:    ErrInvalidRunnerLimit,
		})
	}

	return errs
}
