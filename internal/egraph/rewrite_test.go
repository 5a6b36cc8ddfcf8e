package egraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/ir"
)

func TestPattern_SearchBindsVariables(t *testing.T) {
	g := New()
	mustAdd(t, g, "(+ a b)")
	a, _ := g.Lookup(MustParse("a"))
	b, _ := g.Lookup(MustParse("b"))

	p, err := ParsePattern("(+ ?x ?y)")
	require.NoError(t, err)
	assert.Equal(t, []ir.Var{"x", "y"}, p.Vars())

	ms := p.Search(g)
	require.Len(t, ms, 1)
	require.Len(t, ms[0].Substs, 1)

	x, _ := ms[0].Substs[0].Get("x")
	y, _ := ms[0].Substs[0].Get("y")
	assert.Equal(t, a, x)
	assert.Equal(t, b, y)
}

func TestPattern_NonLinear(t *testing.T) {
	g := New()
	mustAdd(t, g, "(+ a a)")
	mustAdd(t, g, "(+ a b)")

	p, err := ParsePattern("(+ ?x ?x)")
	require.NoError(t, err)

	ms := p.Search(g)
	require.Len(t, ms, 1)
	cls, _ := g.Lookup(MustParse("(+ a a)"))
	assert.Equal(t, cls, ms[0].Class)
}

func TestPattern_MultipleSubstsPerClass(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")
	mustAdd(t, g, "(f b)")
	fa, _ := g.Lookup(MustParse("(f a)"))
	fb, _ := g.Lookup(MustParse("(f b)"))
	g.Union(fa, fb)
	g.Rebuild()

	p, err := ParsePattern("(f ?x)")
	require.NoError(t, err)

	ms := p.Search(g)
	require.Len(t, ms, 1, "both nodes live in one class")
	assert.Len(t, ms[0].Substs, 2)
}

func TestPattern_SearchWithLimit(t *testing.T) {
	g := New()
	for _, s := range []string{"(f a)", "(f b)", "(f c)", "(f d)"} {
		mustAdd(t, g, s)
	}
	p, err := ParsePattern("(f ?x)")
	require.NoError(t, err)

	assert.Len(t, p.Search(g), 4)
	assert.Len(t, p.SearchWithLimit(g, 2), 2)
	assert.Equal(t, 2, ir.TotalSubsts(p.SearchWithLimit(g, 2)))
}

func TestNewRewrite_Validation(t *testing.T) {
	_, err := NewRewrite("bad-rhs", "(+ ?a ?b)", "(+ ?a ?c)")
	assert.ErrorIs(t, err, ErrUnboundVar)

	_, err = NewRewrite("var-lhs", "?a", "(+ ?a 0)")
	assert.ErrorIs(t, err, ErrPatternRoot)

	_, err = NewRewrite("", "(+ ?a ?b)", "(+ ?b ?a)")
	assert.ErrorIs(t, err, ErrParse)

	_, err = NewRewrite("bad-parse", "(+ ?a", "?a")
	assert.ErrorIs(t, err, ErrParse)
}

func TestRewrite_ApplyCommutativity(t *testing.T) {
	g := New()
	mustAdd(t, g, "(+ a b)")
	mustAdd(t, g, "(+ b a)")

	rw := MustRewrite("comm-add", "(+ ?x ?y)", "(+ ?y ?x)")
	assert.Equal(t, "comm-add", rw.Name())

	ms := rw.Search(g)
	changed, err := rw.Apply(g, ms)
	require.NoError(t, err)
	assert.Equal(t, 1, changed, "one union merges both orders; the symmetric one is a no-op")
	g.Rebuild()

	eq, err := g.Equivalent("(+ a b)", "(+ b a)")
	require.NoError(t, err)
	assert.True(t, eq)

	// Saturated: a second round changes nothing.
	changed, err = rw.Apply(g, rw.Search(g))
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestRewrite_ApplyAddsNewTerms(t *testing.T) {
	g := New()
	mustAdd(t, g, "(* x 2)")

	rw := MustRewrite("mul2-to-shl", "(* ?a 2)", "(<< ?a 1)")
	changed, err := rw.Apply(g, rw.Search(g))
	require.NoError(t, err)
	assert.Equal(t, 1, changed)
	g.Rebuild()

	eq, err := g.Equivalent("(* x 2)", "(<< x 1)")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestRewrite_FromSpec(t *testing.T) {
	rw, err := FromSpec(ir.RuleSpec{Name: "zero", LHS: "(+ ?a 0)", RHS: "?a"})
	require.NoError(t, err)
	assert.Equal(t, "(+ ?a 0)", rw.LHS().String())
	assert.Equal(t, "?a", rw.RHS().String())
}

func TestRewrite_DerivationsAreCounted(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")
	mustAdd(t, g, "(f b)")

	before := LiveASTs()
	rw := MustRewrite("f-id", "(f ?x)", "?x").WithDerivations()
	ms := rw.Search(g)
	require.Len(t, ms, 2)
	for _, m := range ms {
		require.NotNil(t, m.Derivation)
	}
	assert.Equal(t, before+2, LiveASTs())

	owned := ms[0].Own()
	assert.Equal(t, before+3, LiveASTs())
	owned.Release()

	ir.ReleaseAll(ms)
	assert.Equal(t, before, LiveASTs())
}

func TestAST_DoubleReleasePanics(t *testing.T) {
	a := NewAST(MustParse("(f ?x)"))
	a.Release()
	assert.Panics(t, func() { a.Release() })
	assert.Equal(t, "(f ?x)", a.String())
}
