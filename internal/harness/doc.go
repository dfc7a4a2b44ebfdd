// Package harness provides conformance testing for grid state behavior.
//
// The harness loads YAML scenarios, drives a real grid over a manual
// timer fabric, and validates the delivery trace and final state as
// executable contract tests.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	columns:
//	  dir: ./definitions
//	  grid: people
//	grid:
//	  page: 1
//	  limit: 10
//	  total: 95
//	steps:
//	  - dispatch:
//	      - op: set_filter
//	        key: email
//	        value: ada
//	  - advance: 300ms
//	assertions:
//	  - type: notify_count
//	    count: 1
//	  - type: final_state
//	    expect:
//	      page: 1
//	      filter: { email: ada }
//
// The columns section is optional; without it scenarios run against a
// built-in column set with one debounced column.
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - notify_count: exactly N change deliveries occurred
//   - select_count: exactly N selection deliveries occurred
//   - pending_count: exactly N debounce timers are still armed at the end
//   - trace_order: first deliveries of the given kinds appear in order
//   - trace_contains: some delivery of a kind matches the expect clause
//   - final_state: the final state matches the expect clause (subset)
//
// # Deterministic Execution
//
// Scenarios never sleep. Debounce windows are driven by explicit advance
// steps over a manual timer fabric, and every delivery happens on the
// runner's goroutine, so traces are identical across runs and suitable
// for golden file comparison.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/debounce.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
