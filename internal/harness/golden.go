package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/relfilter/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// All fields use canonical JSON serialization for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	TraceID      string       `json:"trace_id,omitempty"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Compiled filters keep their typed values, so a
// datetime is written in its UTC text form and a decimal as its digits.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"seq":   event.Seq,
			"query": event.Query,
		}
		if event.Model != "" {
			eventMap["model"] = event.Model
		}
		if event.Backend != "" {
			eventMap["backend"] = event.Backend
		}
		if event.Filter != nil {
			eventMap["filter"] = *event.Filter
		}
		if event.SQL != "" {
			eventMap["sql"] = event.SQL
		}
		if event.Rows != nil {
			eventMap["rows"] = event.Rows
		}
		if event.Error != "" {
			eventMap["error"] = event.Error
		}
		traceList[i] = eventMap
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
	}
	if s.TraceID != "" {
		result["trace_id"] = s.TraceID
	}
	return result
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	traceJSON, err := MarshalSnapshot(scenario, result)
	if err != nil {
		return nil, err
	}
	assertSnapshot(t, scenario.Name, traceJSON)
	return result, nil
}

// MarshalSnapshot returns the canonical JSON of a scenario's trace, the form
// golden files hold.
func MarshalSnapshot(scenario *Scenario, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: scenario.Name,
		TraceID:      scenario.TraceID,
		Trace:        result.Trace,
	}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

func assertSnapshot(t *testing.T, name string, traceJSON []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, traceJSON)
}
