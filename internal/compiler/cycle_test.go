package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/ir"
)

func TestAnalyzeCycles_Empty(t *testing.T) {
	warnings := AnalyzeCycles(nil)
	assert.Empty(t, warnings, "no rules should produce no warnings")
	assert.NotNil(t, warnings)
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "double", LHS: "(* ?x 2)", RHS: "(<< ?x 1)"},
		{Name: "shift-zero", LHS: "(<< ?x 0)", RHS: "?x"},
	}

	warnings := AnalyzeCycles(rules)
	assert.Empty(t, warnings, "DAG should produce no cycle warnings")
}

func TestAnalyzeCycles_CommutativityIsInfo(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "comm-add", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"},
	}

	warnings := AnalyzeCycles(rules)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"comm-add", "comm-add"}, warnings[0].Path)
	assert.Equal(t, LevelInfo, warnings[0].Level)
	assert.Empty(t, warnings[0].Growing)
}

func TestAnalyzeCycles_GrowingSelfLoopIsWarning(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "grow", LHS: "(f ?x)", RHS: "(f (g ?x))"},
	}

	warnings := AnalyzeCycles(rules)
	require.Len(t, warnings, 1)
	assert.Equal(t, LevelWarning, warnings[0].Level)
	assert.Equal(t, []string{"grow"}, warnings[0].Growing)
	assert.Contains(t, warnings[0].Message, "may not saturate")
}

func TestAnalyzeCycles_TwoRuleCycle(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "f-to-g", LHS: "(f ?x)", RHS: "(g ?x)"},
		{Name: "g-to-f", LHS: "(g ?x)", RHS: "(f (h ?x))"},
	}

	warnings := AnalyzeCycles(rules)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"f-to-g", "g-to-f", "f-to-g"}, warnings[0].Path)
	assert.Equal(t, LevelWarning, warnings[0].Level)
	assert.Equal(t, []string{"g-to-f"}, warnings[0].Growing)
}

func TestAnalyzeCycles_SelfLoopInsideLargerCycle(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "a", LHS: "(f ?x)", RHS: "(f (g ?x))"},
		{Name: "b", LHS: "(g ?x)", RHS: "(f ?x)"},
	}

	warnings := AnalyzeCycles(rules)
	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"a", "b", "a"}, warnings[0].Path)
}

func TestAnalyzeCycles_SkipsInvalidRules(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "broken", LHS: "(f ?x", RHS: "(f ?x)"},
		{Name: "bare", LHS: "?x", RHS: "(f ?x)"},
	}

	assert.Empty(t, AnalyzeCycles(rules))
}

func TestAnalyzeCycles_DeterministicOrder(t *testing.T) {
	rules := []ir.RuleSpec{
		{Name: "zeta", LHS: "(* ?a ?b)", RHS: "(* ?b ?a)"},
		{Name: "alpha", LHS: "(+ ?a ?b)", RHS: "(+ ?b ?a)"},
	}

	for i := 0; i < 10; i++ {
		warnings := AnalyzeCycles(rules)
		require.Len(t, warnings, 2)
		assert.Equal(t, "alpha", warnings[0].Path[0])
		assert.Equal(t, "zeta", warnings[1].Path[0])
	}
}
