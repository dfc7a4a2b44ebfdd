package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowdata/gridstate/internal/query"
)

// writeScenario writes scenario YAML into a temp dir and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, `
name: filter_and_page
description: "Filter edit followed by a page move"
grid:
  page: 2
  limit: 25
steps:
  - dispatch:
      - op: set_filter
        key: name
        value: ada
      - op: set_page
        page: 3
  - advance: 300ms
assertions:
  - type: notify_count
    count: 2
  - type: final_state
    expect:
      page: 3
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "filter_and_page", scenario.Name)
	assert.Equal(t, "Filter edit followed by a page move", scenario.Description)
	assert.Equal(t, 2, scenario.Grid.Page)
	assert.Equal(t, 25, scenario.Grid.Limit)
	require.Len(t, scenario.Steps, 2)
	assert.Len(t, scenario.Steps[0].Dispatch, 2)
	assert.Equal(t, "300ms", scenario.Steps[1].Advance)
	require.Len(t, scenario.Assertions, 2)
	assert.Equal(t, AssertNotifyCount, scenario.Assertions[0].Type)
}

func TestLoadScenario_SanitizeOverrides(t *testing.T) {
	path := writeScenario(t, `
name: sanitize_overrides
description: "per-scenario sanitizer flag overrides"
grid:
  sanitize:
    drop_null: false
    drop_empty_text: false
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	require.NotNil(t, scenario.Grid.Sanitize)
	flags := scenario.Grid.Sanitize.Flags()
	assert.False(t, flags.DropNull)
	assert.False(t, flags.DropEmptyText)
	assert.True(t, flags.DropUnset)
	assert.True(t, flags.DropEmptyList)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingName(t *testing.T) {
	path := writeScenario(t, `
description: "Missing name"
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_MissingDescription(t *testing.T) {
	path := writeScenario(t, `
name: no_description
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestLoadScenario_MissingSteps(t *testing.T) {
	path := writeScenario(t, `
name: no_steps
description: "no steps"
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "steps list is required")
}

func TestLoadScenario_MissingAssertions(t *testing.T) {
	path := writeScenario(t, `
name: no_assertions
description: "no assertions"
steps:
  - dispatch:
      - op: set_page
        page: 2
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions list is required")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	// "assertion:" instead of "assertions:" must fail loudly, not load a
	// scenario with zero assertions.
	path := writeScenario(t, `
name: typo
description: "typo in assertions key"
steps:
  - dispatch:
      - op: set_page
        page: 2
assertion:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_StepExclusivity(t *testing.T) {
	path := writeScenario(t, `
name: bad_step
description: "dispatch and advance in one step"
steps:
  - advance: 300ms
    dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestLoadScenario_EmptyStep(t *testing.T) {
	path := writeScenario(t, `
name: empty_step
description: "a step with no action"
steps:
  - {}
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one of dispatch, advance, total is required")
}

func TestLoadScenario_UnknownOp(t *testing.T) {
	path := writeScenario(t, `
name: bad_op
description: "unknown command op"
steps:
  - dispatch:
      - op: set_pgae
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "set_pgae"`)
}

func TestLoadScenario_BadAdvanceDuration(t *testing.T) {
	path := writeScenario(t, `
name: bad_advance
description: "advance is not a duration"
steps:
  - advance: soon
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid advance duration")
}

func TestLoadScenario_BadCommandPayloads(t *testing.T) {
	tests := []struct {
		name    string
		command string
		wantErr string
	}{
		{"page_zero", "op: set_page\n        page: 0", "page must be >= 1"},
		{"limit_missing", "op: set_limit", "limit must be >= 1"},
		{"sort_missing_column", "op: set_sort", "column is required"},
		{"order_invalid", "op: set_order\n        order: sideways", `order must be "asc" or "desc"`},
		{"filter_missing_key", "op: set_filter\n        value: x", "key is required"},
		{"remove_missing_key", "op: remove_filter", "key is required"},
		{"select_missing_id", "op: select", "id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, `
name: bad_payload
description: "malformed command payload"
steps:
  - dispatch:
      - `+tt.command+`
assertions:
  - type: notify_count
    count: 1
`)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	path := writeScenario(t, `
name: bad_assertion
description: "unknown assertion type"
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: trace_len
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "trace_len"`)
}

func TestLoadScenario_UnknownExpectKey(t *testing.T) {
	path := writeScenario(t, `
name: bad_expect
description: "unknown expect key"
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: final_state
    expect:
      pgae: 2
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown expect key "pgae"`)
}

func TestLoadScenario_TraceOrderRequiresKinds(t *testing.T) {
	path := writeScenario(t, `
name: bad_order
description: "trace_order without kinds"
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: trace_order
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kinds list is required")
}

func TestLoadScenario_ColumnsRefValidated(t *testing.T) {
	path := writeScenario(t, `
name: missing_defs
description: "columns dir does not exist"
columns:
  dir: /nonexistent/definitions
  grid: people
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns.dir not found")
}

func TestLoadScenarioWithBasePath_ResolvesColumnsDir(t *testing.T) {
	dir := t.TempDir()
	defsDir := filepath.Join(dir, "definitions")
	require.NoError(t, os.MkdirAll(defsDir, 0o755))

	scenarioPath := filepath.Join(dir, "scenario.yaml")
	content := `
name: relative_columns
description: "columns dir relative to the scenario file"
columns:
  dir: ./definitions
  grid: people
steps:
  - dispatch:
      - op: set_page
        page: 2
assertions:
  - type: notify_count
    count: 1
`
	require.NoError(t, os.WriteFile(scenarioPath, []byte(content), 0o644))

	scenario, err := LoadScenarioWithBasePath(scenarioPath, dir)
	require.NoError(t, err)
	assert.Equal(t, defsDir, scenario.Columns.Dir)
}

func TestBuildCommand_FilterValueShapes(t *testing.T) {
	path := writeScenario(t, `
name: value_shapes
description: "every filter value shape decodes"
steps:
  - dispatch:
      - op: set_filter
        key: name
        value: ada
      - op: set_filter
        key: age
        value: 36
      - op: set_filter
        key: active
        value: true
      - op: set_filter
        key: tags
        value: [go, sql]
      - op: set_filter
        key: note
        value: null
      - op: set_filter
        key: ghost
assertions:
  - type: notify_count
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	specs := scenario.Steps[0].Dispatch
	require.Len(t, specs, 6)

	cmd, err := buildCommand(&specs[0])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "name", Value: query.Text("ada")}, cmd)

	cmd, err = buildCommand(&specs[1])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "age", Value: query.Int(36)}, cmd)

	cmd, err = buildCommand(&specs[2])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "active", Value: query.Bool(true)}, cmd)

	cmd, err = buildCommand(&specs[3])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "tags", Value: query.Texts("go", "sql")}, cmd)

	// Explicit null is the null sentinel.
	cmd, err = buildCommand(&specs[4])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "note", Value: query.Null{}}, cmd)

	// Absent value is the unset sentinel.
	cmd, err = buildCommand(&specs[5])
	require.NoError(t, err)
	assert.Equal(t, query.SetFilter{Key: "ghost", Value: nil}, cmd)
}

func TestBuildCommand_RejectsFractionalValues(t *testing.T) {
	path := writeScenario(t, `
name: float_value
description: "fractional filter values are rejected"
steps:
  - dispatch:
      - op: set_filter
        key: ratio
        value: 0.5
assertions:
  - type: notify_count
    count: 1
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fractional numbers are not valid filter values")
}

func TestBuildCommand_ReplaceFilter(t *testing.T) {
	path := writeScenario(t, `
name: replace
description: "replace_filter builds a whole map"
steps:
  - dispatch:
      - op: replace_filter
        filter:
          name: ada
          age: 36
assertions:
  - type: notify_count
    count: 1
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	cmd, err := buildCommand(&scenario.Steps[0].Dispatch[0])
	require.NoError(t, err)

	rf, ok := cmd.(query.ReplaceFilter)
	require.True(t, ok)
	assert.True(t, rf.Filter.Equal(query.Filter{"name": query.Text("ada"), "age": query.Int(36)}))
}
