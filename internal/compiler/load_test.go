package compiler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	specs, err := LoadDir(filepath.Join("testdata", "arith"))
	require.NoError(t, err)

	require.Len(t, specs.Rules, 2)
	names := []string{specs.Rules[0].Name, specs.Rules[1].Name}
	assert.ElementsMatch(t, []string{"comm-add", "zero-add"}, names)

	assert.Equal(t, "backoff", specs.Scheduler.Strategy)
	assert.Equal(t, 100, specs.Scheduler.MatchLimit)
	assert.Equal(t, []string{"zero-add"}, specs.Scheduler.DoNotBan)
	assert.Equal(t, 20, specs.Runner.IterLimit)
	assert.Equal(t, 2*time.Second, specs.Runner.TimeLimit)

	assert.Empty(t, Validate(specs))
}

func TestLoadDir_Missing(t *testing.T) {
	_, err := LoadDir(filepath.Join("testdata", "does-not-exist"))
	require.Error(t, err)
}
