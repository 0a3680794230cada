package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/quire/internal/ir"
)

// TraceSnapshot is the golden form of a scenario's trace.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
}

// Canonical encodes the snapshot as canonical JSON followed by a newline.
func (s *TraceSnapshot) Canonical() ([]byte, error) {
	events := make(ir.IRArray, len(s.Trace))
	for i, e := range s.Trace {
		obj := ir.IRObject{
			"run":  ir.IRInt(e.Run),
			"seq":  ir.IRInt(e.Seq),
			"kind": ir.IRString(e.Kind),
			"rep":  ir.IRString(e.Rep),
		}
		if e.Dependency != "" {
			obj["dependency"] = ir.IRString(e.Dependency)
		}
		events[i] = obj
	}
	data, err := ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(s.ScenarioName),
		"trace":         events,
	})
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario, fails the test on unmet expectations
// and compares the trace against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result's trace against a golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace}
	data, err := snapshot.Canonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
