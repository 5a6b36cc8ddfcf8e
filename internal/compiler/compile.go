package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/eqsched/internal/ir"
)

// Specs is everything compiled from one CUE value: the rules in declaration
// order plus scheduler and runner configuration.
type Specs struct {
	Rules     []ir.RuleSpec
	Scheduler ir.SchedulerSpec
	Runner    ir.RunnerSpec
}

// CompileSpecs compiles the top-level rule, scheduler and runner fields of
// v. The scheduler and runner blocks are optional; their zero values select
// the defaults.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: comm: { lhs: "(+ ?a ?b)", rhs: "(+ ?b ?a)" }`)
//	specs, err := CompileSpecs(v)
func CompileSpecs(v cue.Value) (*Specs, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rules, err := CompileRules(v.LookupPath(cue.ParsePath("rule")))
	if err != nil {
		return nil, err
	}
	specs := &Specs{Rules: rules}

	if sv := v.LookupPath(cue.ParsePath("scheduler")); sv.Exists() {
		sched, err := CompileScheduler(sv)
		if err != nil {
			return nil, err
		}
		specs.Scheduler = *sched
	}

	if rv := v.LookupPath(cue.ParsePath("runner")); rv.Exists() {
		run, err := CompileRunner(rv)
		if err != nil {
			return nil, err
		}
		specs.Runner = *run
	}

	return specs, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// lookupString returns the string at field, or "" and false if absent.
func lookupString(v cue.Value, field string) (string, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", false, nil
	}
	s, err := fv.String()
	if err != nil {
		return "", true, formatCUEError(err)
	}
	return s, true, nil
}

// lookupInt returns the integer at field, or 0 if absent. Non-integers,
// including floats, are compile errors.
func lookupInt(v cue.Value, path, field string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, nil
	}
	if fv.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{
			Field:   path + "." + field,
			Message: fmt.Sprintf("must be an integer, got %v", fv.IncompleteKind()),
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}
