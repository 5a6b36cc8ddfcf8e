package compiler

import (
	"errors"
	"testing"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/ir"
)

func compileString(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return v
}

func TestCompileSpecs(t *testing.T) {
	v := compileString(t, `
		rule: "comm-add": { lhs: "(+ ?a ?b)", rhs: "(+ ?b ?a)" }
		rule: "zero-add": { lhs: "(+ ?a 0)", rhs: "?a" }

		scheduler: {
			strategy:    "backoff"
			match_limit: 1000
			ban_length:  5
			do_not_ban: ["comm-add"]
			rules: "zero-add": { match_limit: 10 }
		}

		runner: { iter_limit: 30, node_limit: 10000, time_limit: "5s" }
	`)

	specs, err := CompileSpecs(v)
	require.NoError(t, err)

	require.Len(t, specs.Rules, 2)
	assert.Equal(t, ir.RuleSpec{Name: "comm-add", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"}, specs.Rules[0])
	assert.Equal(t, "zero-add", specs.Rules[1].Name)

	assert.Equal(t, ir.SchedulerSpec{
		Strategy:   "backoff",
		MatchLimit: 1000,
		BanLength:  5,
		DoNotBan:   []string{"comm-add"},
		Rules:      map[string]ir.RuleLimits{"zero-add": {MatchLimit: 10}},
	}, specs.Scheduler)

	assert.Equal(t, ir.RunnerSpec{IterLimit: 30, NodeLimit: 10000, TimeLimit: 5 * time.Second}, specs.Runner)
	assert.Empty(t, Validate(specs))
}

func TestCompileSpecs_RulesOnly(t *testing.T) {
	v := compileString(t, `rule: comm: { lhs: "(* ?a ?b)", rhs: "(* ?b ?a)" }`)

	specs, err := CompileSpecs(v)
	require.NoError(t, err)

	assert.Len(t, specs.Rules, 1)
	assert.Equal(t, ir.SchedulerSpec{}, specs.Scheduler)
	assert.Equal(t, ir.RunnerSpec{}, specs.Runner)
}

func TestCompileSpecs_Empty(t *testing.T) {
	specs, err := CompileSpecs(compileString(t, `{}`))
	require.NoError(t, err)
	assert.NotNil(t, specs.Rules)
	assert.Empty(t, specs.Rules)
}

func TestCompileRule_MissingRHS(t *testing.T) {
	v := compileString(t, `rule: broken: { lhs: "(f ?x)" }`)

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.broken")))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "rule.broken.rhs", ce.Field)
	assert.Contains(t, ce.Message, "required")
}

func TestCompileRule_WrongType(t *testing.T) {
	v := compileString(t, `rule: r: { lhs: 42, rhs: "x" }`)

	_, err := CompileRule(v.LookupPath(cue.ParsePath("rule.r")))
	require.Error(t, err)
}

func TestCompileRule_QuotedName(t *testing.T) {
	v := compileString(t, `rule: "mul-one": { lhs: "(* ?a 1)", rhs: "?a" }`)

	spec, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."mul-one"`)))
	require.NoError(t, err)
	assert.Equal(t, "mul-one", spec.Name)
}

func TestCompileScheduler_Defaults(t *testing.T) {
	v := compileString(t, `scheduler: {}`)

	spec, err := CompileScheduler(v.LookupPath(cue.ParsePath("scheduler")))
	require.NoError(t, err)
	assert.Equal(t, ir.StrategyDefault, spec.Strategy)
	assert.Zero(t, spec.MatchLimit)
	assert.Nil(t, spec.DoNotBan)
	assert.Nil(t, spec.Rules)
}

func TestCompileScheduler_BeamAndDepth(t *testing.T) {
	v := compileString(t, `scheduler: { strategy: "beam", beam_width: 200, max_depth: -1 }`)

	spec, err := CompileScheduler(v.LookupPath(cue.ParsePath("scheduler")))
	require.NoError(t, err)
	assert.Equal(t, "beam", spec.Strategy)
	assert.Equal(t, 200, spec.BeamWidth)
	assert.Equal(t, -1, spec.MaxDepth)
}

func TestCompileScheduler_FloatLimitRejected(t *testing.T) {
	v := compileString(t, `scheduler: { strategy: "backoff", match_limit: 10.5 }`)

	_, err := CompileScheduler(v.LookupPath(cue.ParsePath("scheduler")))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "scheduler.match_limit", ce.Field)
	assert.Contains(t, ce.Message, "integer")
}

func TestCompileRunner_InvalidDuration(t *testing.T) {
	v := compileString(t, `runner: { time_limit: "soon" }`)

	_, err := CompileRunner(v.LookupPath(cue.ParsePath("runner")))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "runner.time_limit", ce.Field)
	assert.Contains(t, ce.Error(), `invalid duration "soon"`)
}

func TestCompileRunner_Partial(t *testing.T) {
	v := compileString(t, `runner: { iter_limit: 4 }`)

	spec, err := CompileRunner(v.LookupPath(cue.ParsePath("runner")))
	require.NoError(t, err)
	assert.Equal(t, ir.RunnerSpec{IterLimit: 4}, *spec)
}

func TestCompileError_Format(t *testing.T) {
	err := &CompileError{Field: "rule.r.lhs", Message: "lhs is required"}
	assert.Equal(t, "rule.r.lhs: lhs is required", err.Error())
}

func TestCompileSpecs_CUEConflict(t *testing.T) {
	v := cuecontext.New().CompileString(`
		rule: r: { lhs: "(f ?x)", rhs: "?x" }
		rule: r: { lhs: "(g ?x)" }
	`)

	_, err := CompileSpecs(v)
	require.Error(t, err)
}
