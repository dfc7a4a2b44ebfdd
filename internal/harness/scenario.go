package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
)

// Scenario defines a conformance test scenario: a grid configuration, a
// sequence of steps to drive it with, and assertions over the resulting
// delivery trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Columns optionally points at a CUE grid definition to run against.
	// When absent the built-in column set is used.
	Columns *ColumnsRef `yaml:"columns,omitempty"`

	// Grid tunes the grid under test. Zero values mean defaults.
	Grid GridSetup `yaml:"grid,omitempty"`

	// Steps is the main flow: dispatches, virtual time advances, and
	// total-size updates, executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the delivery trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// ColumnsRef points at a CUE grid definition.
type ColumnsRef struct {
	// Dir is the definition directory, relative to the scenario file.
	Dir string `yaml:"dir"`

	// Grid is the grid name inside the definition package.
	Grid string `yaml:"grid"`
}

// GridSetup carries the grid construction knobs a scenario may tune.
type GridSetup struct {
	// Page is the initial page. Zero means the default.
	Page int `yaml:"page,omitempty"`

	// Limit is the initial page size. Zero means the default.
	Limit int `yaml:"limit,omitempty"`

	// ResetOnFilterChange opts single-key filter edits into the page
	// reset policy.
	ResetOnFilterChange bool `yaml:"reset_on_filter_change,omitempty"`

	// Total pre-loads the dataset size before the first step.
	Total int64 `yaml:"total,omitempty"`

	// Sanitize overrides the sanitizer passes applied to outgoing change
	// details. Absent flags keep their default (on).
	Sanitize *SanitizeSetup `yaml:"sanitize,omitempty"`
}

// SanitizeSetup selects sanitizer passes per scenario.
type SanitizeSetup struct {
	DropNull      *bool `yaml:"drop_null,omitempty"`
	DropUnset     *bool `yaml:"drop_unset,omitempty"`
	DropEmptyText *bool `yaml:"drop_empty_text,omitempty"`
	DropEmptyList *bool `yaml:"drop_empty_list,omitempty"`
}

// Flags folds the overrides into the default flag set.
func (s *SanitizeSetup) Flags() grid.Flags {
	flags := grid.AllFlags()
	if s.DropNull != nil {
		flags.DropNull = *s.DropNull
	}
	if s.DropUnset != nil {
		flags.DropUnset = *s.DropUnset
	}
	if s.DropEmptyText != nil {
		flags.DropEmptyText = *s.DropEmptyText
	}
	if s.DropEmptyList != nil {
		flags.DropEmptyList = *s.DropEmptyList
	}
	return flags
}

// Step is one scenario action. Exactly one field must be set.
type Step struct {
	// Dispatch sends a command batch to the grid.
	Dispatch []CommandSpec `yaml:"dispatch,omitempty"`

	// Advance moves virtual time forward, firing due debounce timers.
	// The value is a Go duration string ("300ms", "1s").
	Advance string `yaml:"advance,omitempty"`

	// Total updates the dataset size mid-scenario.
	Total *int64 `yaml:"total,omitempty"`
}

// CommandSpec is the YAML form of a single command. Op selects the
// variant; the other fields carry its payload.
//
// Filter values distinguish three shapes the same way the engine does:
// an absent value key is the unset sentinel, an explicit null is the
// null sentinel, and everything else is a real value.
type CommandSpec struct {
	Op     string               `yaml:"op"`
	Page   int                  `yaml:"page,omitempty"`
	Limit  int                  `yaml:"limit,omitempty"`
	Column string               `yaml:"column,omitempty"`
	Order  string               `yaml:"order,omitempty"`
	Key    string               `yaml:"key,omitempty"`
	Value  yaml.Node            `yaml:"value,omitempty"`
	Filter map[string]yaml.Node `yaml:"filter,omitempty"`
	ID     string               `yaml:"id,omitempty"`
	IDs    []string             `yaml:"ids,omitempty"`
}

// Assertion validates the delivery trace or the final state.
type Assertion struct {
	// Type selects the assertion:
	//   - "notify_count": exactly Count change deliveries
	//   - "select_count": exactly Count selection deliveries
	//   - "pending_count": exactly Count debounce timers still armed
	//   - "trace_order": first deliveries of the given kinds appear in order
	//   - "trace_contains": some delivery of Kind matches Expect
	//   - "final_state": the final state matches Expect
	Type string `yaml:"type"`

	// Count is the expected number of occurrences (count assertions).
	Count int `yaml:"count,omitempty"`

	// Kind is the delivery kind to look for (trace_contains).
	Kind string `yaml:"kind,omitempty"`

	// Kinds is the expected delivery order (trace_order).
	Kinds []string `yaml:"kinds,omitempty"`

	// Expect holds expected field values (trace_contains, final_state).
	// Recognized keys: page, limit, sort, order, filter, selected.
	// An explicit null asserts the field is absent.
	Expect map[string]yaml.Node `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertNotifyCount   = "notify_count"
	AssertSelectCount   = "select_count"
	AssertPendingCount  = "pending_count"
	AssertTraceOrder    = "trace_order"
	AssertTraceContains = "trace_contains"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file. Returns an error if
// the file doesn't exist, is malformed, contains unknown fields (typos),
// or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, "")
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the column definition directory relative to basePath. Use this
// when scenario files reference definitions with relative paths.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Columns != nil && basePath != "" && !filepath.IsAbs(scenario.Columns.Dir) {
		scenario.Columns.Dir = filepath.Join(basePath, scenario.Columns.Dir)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Columns != nil {
		if s.Columns.Dir == "" {
			return fmt.Errorf("columns.dir is required when columns is present")
		}
		if s.Columns.Grid == "" {
			return fmt.Errorf("columns.grid is required when columns is present")
		}
		if _, err := os.Stat(s.Columns.Dir); os.IsNotExist(err) {
			return fmt.Errorf("columns.dir not found: %s", s.Columns.Dir)
		}
	}

	// Zero means "use the default"; only negative values are malformed.
	if s.Grid.Page < 0 {
		return fmt.Errorf("grid.page must be >= 1")
	}
	if s.Grid.Limit < 0 {
		return fmt.Errorf("grid.limit must be >= 1")
	}
	if s.Grid.Total < 0 {
		return fmt.Errorf("grid.total must be >= 0")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks that a step has exactly one action and that the
// action is well formed.
func validateStep(index int, step *Step) error {
	actions := 0
	if len(step.Dispatch) > 0 {
		actions++
	}
	if step.Advance != "" {
		actions++
	}
	if step.Total != nil {
		actions++
	}
	if actions == 0 {
		return fmt.Errorf("steps[%d]: one of dispatch, advance, total is required", index)
	}
	if actions > 1 {
		return fmt.Errorf("steps[%d]: dispatch, advance, and total are mutually exclusive", index)
	}

	for j := range step.Dispatch {
		if _, err := buildCommand(&step.Dispatch[j]); err != nil {
			return fmt.Errorf("steps[%d].dispatch[%d]: %w", index, j, err)
		}
	}

	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("steps[%d]: invalid advance duration %q: %w", index, step.Advance, err)
		}
		if d < 0 {
			return fmt.Errorf("steps[%d]: advance duration must not be negative", index)
		}
	}

	if step.Total != nil && *step.Total < 0 {
		return fmt.Errorf("steps[%d]: total must be >= 0", index)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertNotifyCount, AssertSelectCount, AssertPendingCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for trace_order", index)
		}
		for _, kind := range a.Kinds {
			if kind != EventChange && kind != EventSelect {
				return fmt.Errorf("assertions[%d]: unknown delivery kind %q", index, kind)
			}
		}
	case AssertTraceContains:
		if a.Kind != EventChange && a.Kind != EventSelect {
			return fmt.Errorf("assertions[%d]: kind must be %q or %q for trace_contains", index, EventChange, EventSelect)
		}
		if err := validateExpectKeys(index, a.Expect); err != nil {
			return err
		}
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
		if err := validateExpectKeys(index, a.Expect); err != nil {
			return err
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateExpectKeys(index int, expect map[string]yaml.Node) error {
	for key := range expect {
		switch key {
		case "page", "limit", "sort", "order", "filter", "selected":
		default:
			return fmt.Errorf("assertions[%d]: unknown expect key %q", index, key)
		}
	}
	return nil
}

// buildCommand converts a YAML command spec into an engine command.
// Payload validation happens here so that malformed scenarios fail at
// load time rather than mid-run.
func buildCommand(spec *CommandSpec) (query.Command, error) {
	switch query.CommandTag(spec.Op) {
	case query.TagSetPage:
		if spec.Page < 1 {
			return nil, fmt.Errorf("set_page: page must be >= 1")
		}
		return query.SetPage{Page: spec.Page}, nil
	case query.TagSetLimit:
		if spec.Limit < 1 {
			return nil, fmt.Errorf("set_limit: limit must be >= 1")
		}
		return query.SetLimit{Limit: spec.Limit}, nil
	case query.TagSetSort:
		if spec.Column == "" {
			return nil, fmt.Errorf("set_sort: column is required")
		}
		return query.SetSort{Column: spec.Column}, nil
	case query.TagSetOrder:
		switch spec.Order {
		case string(query.OrderAsc):
			return query.SetOrder{Order: query.OrderAsc}, nil
		case string(query.OrderDesc):
			return query.SetOrder{Order: query.OrderDesc}, nil
		default:
			return nil, fmt.Errorf("set_order: order must be %q or %q", query.OrderAsc, query.OrderDesc)
		}
	case query.TagToggleOrder:
		return query.ToggleOrder{}, nil
	case query.TagClearSort:
		return query.ClearSort{}, nil
	case query.TagClearOrder:
		return query.ClearOrder{}, nil
	case query.TagSetFilter:
		if spec.Key == "" {
			return nil, fmt.Errorf("set_filter: key is required")
		}
		v, err := decodeValueNode(&spec.Value)
		if err != nil {
			return nil, fmt.Errorf("set_filter: %w", err)
		}
		return query.SetFilter{Key: spec.Key, Value: v}, nil
	case query.TagRemoveFilter:
		if spec.Key == "" {
			return nil, fmt.Errorf("remove_filter: key is required")
		}
		return query.RemoveFilter{Key: spec.Key}, nil
	case query.TagReplaceFilter:
		f := query.Filter{}
		for key := range spec.Filter {
			node := spec.Filter[key]
			v, err := decodeValueNode(&node)
			if err != nil {
				return nil, fmt.Errorf("replace_filter: key %q: %w", key, err)
			}
			f[key] = v
		}
		return query.ReplaceFilter{Filter: f}, nil
	case query.TagClearFilter:
		return query.ClearFilter{}, nil
	case query.TagClearAll:
		return query.ClearAll{}, nil
	case query.TagSelect:
		if spec.ID == "" {
			return nil, fmt.Errorf("select: id is required")
		}
		return query.Select{ID: spec.ID}, nil
	case query.TagDeselect:
		if spec.ID == "" {
			return nil, fmt.Errorf("deselect: id is required")
		}
		return query.Deselect{ID: spec.ID}, nil
	case query.TagToggleSelect:
		if spec.ID == "" {
			return nil, fmt.Errorf("toggle_select: id is required")
		}
		return query.ToggleSelect{ID: spec.ID}, nil
	case query.TagSetSelected:
		return query.SetSelected{IDs: spec.IDs}, nil
	case query.TagClearSelected:
		return query.ClearSelected{}, nil
	default:
		return nil, fmt.Errorf("unknown op %q", spec.Op)
	}
}

// decodeValueNode converts a YAML value node into a filter value. A zero
// node (the value key was absent) is the unset sentinel; an explicit null
// node is the null sentinel. Fractional numbers and objects are rejected,
// the same as the JSON decode path.
func decodeValueNode(n *yaml.Node) (query.Value, error) {
	if n.IsZero() {
		return nil, nil
	}

	switch n.Kind {
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return query.Null{}, nil
		case "!!str":
			return query.Text(n.Value), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return nil, fmt.Errorf("invalid integer %q: %w", n.Value, err)
			}
			return query.Int(i), nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, fmt.Errorf("invalid bool %q: %w", n.Value, err)
			}
			return query.Bool(b), nil
		case "!!float":
			return nil, fmt.Errorf("fractional numbers are not valid filter values: %s", n.Value)
		default:
			return nil, fmt.Errorf("unsupported scalar tag %s", n.Tag)
		}
	case yaml.SequenceNode:
		list := make(query.List, len(n.Content))
		for i, elem := range n.Content {
			v, err := decodeValueNode(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = v
		}
		return list, nil
	case yaml.MappingNode:
		return nil, fmt.Errorf("objects are not valid filter values")
	default:
		return nil, fmt.Errorf("unsupported value node kind %d", n.Kind)
	}
}
