package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/eqsched/internal/ir"
)

func TestMatches_Shape(t *testing.T) {
	ms := Matches(nil, 3, 1)
	require.Len(t, ms, 2)
	assert.Equal(t, ir.ClassID(1), ms[0].Class)
	assert.Equal(t, ir.ClassID(2), ms[1].Class)
	assert.Len(t, ms[0].Substs, 3)
	assert.Len(t, ms[1].Substs, 1)
	assert.Nil(t, ms[0].Derivation)
	assert.Equal(t, 4, ir.TotalSubsts(ms))
}

func TestMatches_DistinctKeys(t *testing.T) {
	ms := Matches(nil, 2, 2)
	assert.NotEqual(t, ms[0].Key(), ms[1].Key())
	assert.Equal(t, ms[0].Key(), Matches(nil, 2)[0].Key(), "same shape, same key")
}

func TestDerivationTracker_Counts(t *testing.T) {
	tr := NewDerivationTracker()
	ms := Matches(tr, 1, 1, 1)
	assert.Equal(t, 3, tr.Live())

	owned := ms[0].Own()
	assert.Equal(t, 4, tr.Live())
	assert.Equal(t, 4, tr.Created())

	owned.Release()
	ir.ReleaseAll(ms)
	assert.Zero(t, tr.Live())
	assert.Zero(t, tr.DoubleReleases())
}

func TestDerivationTracker_DoubleRelease(t *testing.T) {
	tr := NewDerivationTracker()
	d := tr.New()
	d.Release()
	d.Release()
	assert.Equal(t, 1, tr.DoubleReleases())
	assert.Zero(t, tr.Live())
}

func TestScriptedRule_RunsOut(t *testing.T) {
	r := ScriptedRule("r", nil, []int{1, 2}, []int{5})
	g := &FakeGraph{}

	assert.Len(t, r.Search(g), 2)
	assert.Len(t, r.Search(g), 1)
	assert.Empty(t, r.Search(g))
	assert.Equal(t, 3, r.Calls)
	assert.Equal(t, "r", r.Name())
}

func TestLimitedFakeRule_StopsAtLimit(t *testing.T) {
	tr := NewDerivationTracker()
	r := NewLimitedFakeRule(StaticRule("r", tr, 2, 2, 2, 2))

	ms := r.SearchWithLimit(&FakeGraph{}, 3)
	assert.Len(t, ms, 2, "2+2 reaches the limit")
	assert.Equal(t, []int{3}, r.Limits)
	assert.Equal(t, 2, tr.Live(), "dropped records are released")

	ir.ReleaseAll(ms)
	assert.Zero(t, tr.Live())
}
