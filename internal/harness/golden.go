package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/hollowdata/gridstate/internal/query"
)

// TraceSnapshot captures the complete delivery trace plus final state for
// a scenario execution. It serializes canonically so golden files diff
// cleanly across runs.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	Final        query.State  `json:"final_state"`
}

// toCanonicalMap converts the snapshot to a map[string]any for the
// canonical encoder. Absent fields are omitted rather than zero-valued,
// matching how change details are built.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]any{
			"kind": event.Kind,
			"seq":  event.Seq,
		}
		switch event.Kind {
		case EventChange:
			eventMap["page"] = event.Page
			eventMap["limit"] = event.Limit
			if event.Sort != "" {
				eventMap["sort"] = event.Sort
			}
			if event.Order != query.OrderNone {
				eventMap["order"] = string(event.Order)
			}
			if len(event.Filter) > 0 {
				eventMap["filter"] = event.Filter
			}
		case EventSelect:
			eventMap["selected"] = event.Selected
		}
		traceList[i] = eventMap
	}

	finalMap := map[string]any{
		"page":  s.Final.Page,
		"limit": s.Final.Limit,
	}
	if s.Final.Sort != "" {
		finalMap["sort"] = s.Final.Sort
	}
	if s.Final.Order != query.OrderNone {
		finalMap["order"] = string(s.Final.Order)
	}
	if len(s.Final.Filter) > 0 {
		finalMap["filter"] = s.Final.Filter
	}
	if len(s.Final.Selected) > 0 {
		finalMap["selected"] = s.Final.Selected
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"final_state":   finalMap,
	}
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against the golden file testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; a trace mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against the golden
// file for scenarioName. Useful when the caller needs the Result for
// additional checks beyond the golden comparison.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		Final:        result.Final,
	}

	traceJSON, err := query.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
