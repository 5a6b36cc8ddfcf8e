package egraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, g *EGraph, src string) uint32 {
	t.Helper()
	id, err := g.AddString(src)
	require.NoError(t, err)
	return uint32(id)
}

func TestEGraph_HashConsing(t *testing.T) {
	g := New()
	a := mustAdd(t, g, "(+ x y)")
	b := mustAdd(t, g, "(+ x y)")

	assert.Equal(t, a, b)
	assert.Equal(t, 3, g.NumClasses(), "x, y, (+ x y)")
	assert.Equal(t, 3, g.TotalSize())
}

func TestEGraph_UnionAndFind(t *testing.T) {
	g := New()
	x, err := g.AddString("x")
	require.NoError(t, err)
	y, err := g.AddString("y")
	require.NoError(t, err)

	root, changed := g.Union(x, y)
	assert.True(t, changed)
	assert.Equal(t, x, root, "smaller id wins")
	assert.Equal(t, g.Find(x), g.Find(y))

	_, changed = g.Union(y, x)
	assert.False(t, changed)
	assert.Equal(t, 1, g.NumClasses())
}

func TestEGraph_RebuildRestoresCongruence(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")
	mustAdd(t, g, "(f b)")
	a, _ := g.Lookup(MustParse("a"))
	b, _ := g.Lookup(MustParse("b"))

	eq, err := g.Equivalent("(f a)", "(f b)")
	require.NoError(t, err)
	assert.False(t, eq)

	g.Union(a, b)
	merges := g.Rebuild()
	assert.Equal(t, 1, merges, "(f a) and (f b) become congruent")

	eq, err = g.Equivalent("(f a)", "(f b)")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestEGraph_RebuildCascades(t *testing.T) {
	g := New()
	mustAdd(t, g, "(g (f a))")
	mustAdd(t, g, "(g (f b))")
	a, _ := g.Lookup(MustParse("a"))
	b, _ := g.Lookup(MustParse("b"))

	g.Union(a, b)
	assert.Equal(t, 2, g.Rebuild())

	eq, err := g.Equivalent("(g (f a))", "(g (f b))")
	require.NoError(t, err)
	assert.True(t, eq)
}

func TestEGraph_RebuildCleanIsNoop(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")
	assert.Equal(t, 0, g.Rebuild())
}

func TestEGraph_RebuildDedupesNodes(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")
	mustAdd(t, g, "(f b)")
	a, _ := g.Lookup(MustParse("a"))
	b, _ := g.Lookup(MustParse("b"))
	g.Union(a, b)
	g.Rebuild()

	fa, ok := g.Lookup(MustParse("(f a)"))
	require.True(t, ok)
	assert.Len(t, g.Class(fa).Nodes, 1, "(f a) and (f b) collapse to one canonical node")
}

func TestEGraph_LookupMissing(t *testing.T) {
	g := New()
	mustAdd(t, g, "(f a)")

	_, ok := g.Lookup(MustParse("(f b)"))
	assert.False(t, ok)

	eq, err := g.Equivalent("(f a)", "(f b)")
	require.NoError(t, err)
	assert.False(t, eq)
}

func TestEGraph_AddRejectsVariables(t *testing.T) {
	g := New()
	_, err := g.AddString("(f ?x)")
	assert.ErrorIs(t, err, ErrParse)
}

func TestEGraph_Contains(t *testing.T) {
	g := New()
	id, err := g.AddString("a")
	require.NoError(t, err)
	assert.True(t, g.Contains(id))
	assert.False(t, g.Contains(id+1))
}

func TestEGraph_ClassesSorted(t *testing.T) {
	g := New()
	mustAdd(t, g, "(+ (* a b) c)")
	ids := g.Classes()
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1], ids[i])
	}
}
