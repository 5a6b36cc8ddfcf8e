package compiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/ir"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateRuleSpec(t *testing.T) {
	tests := []struct {
		name  string
		rule  ir.RuleSpec
		codes []string
	}{
		{"valid", ir.RuleSpec{Name: "comm", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"}, nil},
		{"ground rhs", ir.RuleSpec{Name: "zero", LHS: "(* ?a 0)", RHS: "0"}, nil},
		{"missing name", ir.RuleSpec{LHS: "(f ?x)", RHS: "?x"}, []string{ErrRuleNameEmpty}},
		{"empty lhs", ir.RuleSpec{Name: "r", RHS: "?x"}, []string{ErrRuleLHSEmpty}},
		{"empty both", ir.RuleSpec{Name: "r"}, []string{ErrRuleLHSEmpty, ErrRuleRHSEmpty}},
		{"bad lhs", ir.RuleSpec{Name: "r", LHS: "(f ?x", RHS: "?x"}, []string{ErrInvalidPattern}},
		{"bad rhs", ir.RuleSpec{Name: "r", LHS: "(f ?x)", RHS: "(g ?x))"}, []string{ErrInvalidPattern}},
		{"unbound", ir.RuleSpec{Name: "r", LHS: "(f ?x)", RHS: "(g ?y)"}, []string{ErrUnboundVariable}},
		{"bare variable", ir.RuleSpec{Name: "r", LHS: "?x", RHS: "(f ?x)"}, []string{ErrVariablePattern}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.rule)
			if len(tt.codes) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.codes, codes(errs))
		})
	}
}

func TestValidateRuleSpec_Pointer(t *testing.T) {
	errs := Validate(&ir.RuleSpec{Name: "r", LHS: "(f ?x)", RHS: "(g ?y)"})
	require.Len(t, errs, 1)
	assert.Equal(t, "rule.r.rhs", errs[0].Field)
}

func TestValidateSchedulerSpec(t *testing.T) {
	tests := []struct {
		name  string
		spec  ir.SchedulerSpec
		codes []string
	}{
		{"empty strategy", ir.SchedulerSpec{}, nil},
		{"backoff", ir.SchedulerSpec{Strategy: "backoff", MatchLimit: 10, BanLength: 2}, nil},
		{"negative depth is unbounded", ir.SchedulerSpec{Strategy: "dfs", MaxDepth: -1}, nil},
		{"unknown", ir.SchedulerSpec{Strategy: "greedy"}, []string{ErrUnknownStrategy}},
		{"negative limits", ir.SchedulerSpec{Strategy: "backoff", MatchLimit: -1, BanLength: -2}, []string{ErrInvalidLimit, ErrInvalidLimit}},
		{"negative width", ir.SchedulerSpec{Strategy: "beam", BeamWidth: -5}, []string{ErrInvalidLimit}},
		{
			"negative rule limit",
			ir.SchedulerSpec{Strategy: "backoff", Rules: map[string]ir.RuleLimits{"r": {MatchLimit: -1}}},
			[]string{ErrInvalidLimit},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.spec)
			if len(tt.codes) == 0 {
				assert.Empty(t, errs)
				return
			}
			assert.Equal(t, tt.codes, codes(errs))
		})
	}
}

func TestValidateRunnerSpec(t *testing.T) {
	assert.Empty(t, Validate(ir.RunnerSpec{IterLimit: 10, NodeLimit: 100, TimeLimit: time.Second}))

	errs := Validate(&ir.RunnerSpec{IterLimit: -1, NodeLimit: -1, TimeLimit: -time.Second})
	assert.Equal(t, []string{ErrInvalidRunnerLimit, ErrInvalidRunnerLimit, ErrInvalidRunnerLimit}, codes(errs))
}

func TestValidateSpecs(t *testing.T) {
	specs := &Specs{
		Rules: []ir.RuleSpec{
			{Name: "comm", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"},
			{Name: "assoc", LHS: "(+ ?a (+ ?b ?c))", RHS: "(+ (+ ?a ?b) ?c)"},
		},
		Scheduler: ir.SchedulerSpec{
			Strategy: "backoff",
			DoNotBan: []string{"comm"},
			Rules:    map[string]ir.RuleLimits{"assoc": {MatchLimit: 50}},
		},
	}

	assert.Empty(t, Validate(specs))
}

func TestValidateSpecs_CrossReferences(t *testing.T) {
	specs := &Specs{
		Rules: []ir.RuleSpec{
			{Name: "comm", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"},
			{Name: "comm", LHS: "(* ?a ?b)", RHS: "(* ?b ?a)"},
		},
		Scheduler: ir.SchedulerSpec{
			Strategy: "backoff",
			DoNotBan: []string{"missing"},
			Rules:    map[string]ir.RuleLimits{"ghost": {MatchLimit: 5}},
		},
	}

	errs := Validate(specs)
	assert.Equal(t, []string{ErrDuplicateName, ErrUnknownRuleRef, ErrUnknownRuleRef}, codes(errs))
	assert.Equal(t, "scheduler.do_not_ban[0]", errs[1].Field)
	assert.Equal(t, "scheduler.rules.ghost", errs[2].Field)
}

func TestValidateSpecs_NoRules(t *testing.T) {
	errs := Validate(&Specs{})
	assert.Equal(t, []string{ErrEmptyRuleSet}, codes(errs))
}

func TestValidate_UnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "int")
}

func TestValidationError_Error(t *testing.T) {
	e := ValidationError{Field: "rule.r.lhs", Message: "lhs is required", Code: ErrRuleLHSEmpty}
	assert.Equal(t, "[E102] rule.r.lhs: lhs is required", e.Error())

	e.Line = 7
	assert.Equal(t, "[E102] line 7: rule.r.lhs: lhs is required", e.Error())
}
