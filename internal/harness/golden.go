package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/eqsched/internal/ir"
)

// GoldenDir is where golden traces are stored, relative to the test's
// package directory.
const GoldenDir = "testdata/golden"

// Snapshot renders a scenario result as canonical JSON. Timings are not part
// of a snapshot, so equal runs produce byte-identical output.
func Snapshot(name string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Trace))
	for i, step := range result.Trace {
		steps[i] = map[string]any{
			"index":    step.Index,
			"admitted": countsMap(step.Admitted),
			"applied":  countsMap(step.Applied),
			"merges":   step.Merges,
			"nodes":    step.Nodes,
			"classes":  step.Classes,
		}
	}

	snapshot := map[string]any{
		"scenario": name,
		"pass":     result.Pass,
		"trace":    steps,
	}
	if r := result.Report; r != nil {
		snapshot["run_id"] = r.RunID
		snapshot["strategy"] = r.Strategy
		snapshot["stop_reason"] = string(r.StopReason)
		snapshot["nodes"] = r.Nodes
		snapshot["classes"] = r.Classes
	}
	if len(result.Stats) > 0 {
		stats := make([]any, len(result.Stats))
		for i, s := range result.Stats {
			stats[i] = map[string]any{
				"rule":          s.Rule,
				"times_applied": s.TimesApplied,
				"times_banned":  s.TimesBanned,
				"banned_until":  s.BannedUntil,
			}
		}
		snapshot["stats"] = stats
	}
	if len(result.Errors) > 0 {
		errs := make([]any, len(result.Errors))
		for i, e := range result.Errors {
			errs[i] = e
		}
		snapshot["errors"] = errs
	}
	return ir.MarshalCanonical(snapshot)
}

func countsMap(m map[string]int) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()
	return assertGoldenIn(t, GoldenDir, name, result)
}

func assertGoldenIn(t *testing.T, dir, name string, result *Result) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir(dir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
