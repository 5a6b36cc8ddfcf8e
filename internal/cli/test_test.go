package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSpecsDir     = filepath.Join("testdata", "specs")
	testScenariosDir = filepath.Join("testdata", "scenarios")
)

func executeTest(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// copyScenario copies a testdata scenario into dir.
func copyScenario(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(testScenariosDir, name))
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 2 arg")
}

func TestTestCommandNonExistentSpecsDir(t *testing.T) {
	_, err := executeTest(t, &RootOptions{Format: "text"}, "/nonexistent/specs", testScenariosDir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "specs directory not found")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, testSpecsDir, t.TempDir())
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
}

func TestTestCommandPasses(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, testScenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ arith-specs")
	assert.Contains(t, out, "✓ comm-default")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandPassesJSON(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, testSpecsDir, testScenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Passed)
	assert.Equal(t, 0, resp.Data.Failed)
}

func TestTestCommandVerboseShowsStop(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text", Verbose: true}, testSpecsDir, testScenariosDir, "--filter", "arith_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith-specs\n  stopped: saturated after 2 iteration(s)\n")
}

func TestTestCommandJSONCarriesStop(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "json"}, testSpecsDir, testScenariosDir, "--filter", "arith_*")
	require.NoError(t, err)

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Scenarios, 1)
	sc := resp.Data.Scenarios[0]
	assert.True(t, sc.Pass)
	assert.Equal(t, "saturated", sc.StopReason)
	assert.Equal(t, 2, sc.Iterations)
	assert.Empty(t, sc.Errors)
}

func TestTestCommandFilter(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, testScenariosDir, "--filter", "comm_*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ comm-default")
	assert.NotContains(t, out, "arith-specs")
	assert.Contains(t, out, "1 total")
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(`name: wrong
rules:
  - name: comm-add
    lhs: "(+ ?a ?b)"
    rhs: "(+ ?b ?a)"
exprs:
  - "(+ a b)"
assertions:
  - type: equivalent
    a: "a"
    b: "b"
`), 0644))

	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong")
	assert.Contains(t, out, "Assertion failed: equivalent")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	out, err := executeTest(t, &RootOptions{Format: "json"}, testSpecsDir, dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "broken.yaml", resp.Data.Scenarios[0].Name)
	assert.Contains(t, resp.Data.Scenarios[0].Errors[0], "failed to load scenario")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "arith_specs.yaml")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "arith_specs.golden"), []byte(`{"stale":true}`), 0644))

	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, dir)
	require.Error(t, err)
	assert.Contains(t, out, "Golden file mismatch")
}

func TestTestCommandUpdateGolden(t *testing.T) {
	dir := t.TempDir()
	copyScenario(t, dir, "arith_specs.yaml")

	out, err := executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith-specs (golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "arith_specs.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(testScenariosDir, "golden", "arith_specs.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// The updated golden now passes.
	out, err = executeTest(t, &RootOptions{Format: "text"}, testSpecsDir, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ arith-specs\n")
}

func TestTestHelpText(t *testing.T) {
	out, err := executeTest(t, &RootOptions{Format: "text"}, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "saturation scenarios")
	assert.Contains(t, out, "--update")
	assert.Contains(t, out, "--filter")
	assert.Contains(t, out, "specs-dir")
	assert.Contains(t, out, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "comm.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "assoc.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "backoff-ban.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "backoff-unban.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "beam-width.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "backoff-*")
	require.NoError(t, err)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "backoff-"), f)
	}

	_, err = findScenarioFiles(tmpDir, "[")
	assert.Error(t, err)
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "subdir")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "root.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "sub.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"/path/to/scenario.yaml", "/path/to/golden/scenario.golden"},
		{"/path/to/scenario.yml", "/path/to/golden/scenario.golden"},
		{"scenarios/test.yaml", "scenarios/golden/test.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.input))
	}
}
