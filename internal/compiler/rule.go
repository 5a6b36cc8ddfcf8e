package compiler

import (
	"cuelang.org/go/cue"

	"github.com/roach88/eqsched/internal/ir"
)

// CompileRule parses a CUE value into a RuleSpec. The rule name is the
// value's struct label.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`rule: "comm-add": { lhs: "(+ ?a ?b)", rhs: "(+ ?b ?a)" }`)
//	spec, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."comm-add"`)))
//
// Only presence and type are checked here. Pattern syntax is checked by
// Validate.
func CompileRule(v cue.Value) (*ir.RuleSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.RuleSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].Unquoted()
	}

	lhs, ok, err := lookupString(v, "lhs")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{
			Field:   "rule." + spec.Name + ".lhs",
			Message: "lhs is required",
			Pos:     v.Pos(),
		}
	}
	spec.LHS = lhs

	rhs, ok, err := lookupString(v, "rhs")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &CompileError{
			Field:   "rule." + spec.Name + ".rhs",
			Message: "rhs is required",
			Pos:     v.Pos(),
		}
	}
	spec.RHS = rhs

	return spec, nil
}

// CompileRules compiles every field of a rule block in declaration order.
// A missing block yields an empty slice.
func CompileRules(v cue.Value) ([]ir.RuleSpec, error) {
	rules := []ir.RuleSpec{}
	if !v.Exists() {
		return rules, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		spec, err := CompileRule(iter.Value())
		if err != nil {
			return nil, err
		}
		rules = append(rules, *spec)
	}
	return rules, nil
}
