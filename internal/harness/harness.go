package harness

import (
	"fmt"
	"time"

	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
	"github.com/hollowdata/gridstate/internal/testutil"
)

// defaultColumns is the built-in column set scenarios run against when
// they don't reference a CUE definition. It covers every filter kind and
// includes one debounced column so debounce scenarios need no extra
// setup.
func defaultColumns() *schema.Set {
	return schema.MustSet([]schema.Column{
		{Key: "name", Title: "Name", Sortable: true, Filter: schema.FilterText},
		{Key: "email", Title: "Email", Sortable: true, Filter: schema.FilterText, Debounce: 300 * time.Millisecond},
		{Key: "city", Title: "City", Filter: schema.FilterText},
		{Key: "role", Title: "Role", Filter: schema.FilterSelect, Options: []string{"admin", "editor", "viewer"}},
		{Key: "age", Title: "Age", Sortable: true},
	})
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh grid wired to a manual timer fabric,
// so debounce windows elapse only when an advance step says so. All
// deliveries happen on the calling goroutine, which keeps the trace order
// deterministic and golden comparison stable.
//
// Infrastructure failures (unloadable column definitions, malformed
// steps) return an error; assertion failures land in Result.Errors with
// Pass false.
func Run(scenario *Scenario) (*Result, error) {
	columns, err := resolveColumns(scenario)
	if err != nil {
		return nil, err
	}

	result := NewResult()
	timers := testutil.NewManualTimers()

	opts := []grid.Option{
		grid.WithOnChange(func(d grid.ChangeDetails) { result.AddChange(d) }),
		grid.WithOnSelect(func(ids []string) { result.AddSelect(ids) }),
		grid.WithTimers(func(d time.Duration, fn func()) grid.Timer { return timers.New(d, fn) }),
	}
	if scenario.Grid.Page > 0 {
		opts = append(opts, grid.WithInitialPage(scenario.Grid.Page))
	}
	if scenario.Grid.Limit > 0 {
		opts = append(opts, grid.WithInitialLimit(scenario.Grid.Limit))
	}
	if scenario.Grid.ResetOnFilterChange {
		opts = append(opts, grid.WithResetOnFilterChange())
	}
	if scenario.Grid.Sanitize != nil {
		opts = append(opts, grid.WithSanitize(scenario.Grid.Sanitize.Flags()))
	}

	g := grid.New(columns, opts...)
	defer g.Close()

	if scenario.Grid.Total > 0 {
		g.SetTotal(scenario.Grid.Total)
	}

	for i, step := range scenario.Steps {
		if err := executeStep(g, timers, &step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	result.Final = g.State()
	result.Pending = g.Pending()

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}

	return result, nil
}

func resolveColumns(scenario *Scenario) (*schema.Set, error) {
	if scenario.Columns == nil {
		return defaultColumns(), nil
	}

	cols, err := schema.LoadGrid(scenario.Columns.Dir, scenario.Columns.Grid)
	if err != nil {
		return nil, fmt.Errorf("failed to load columns for scenario %q: %w", scenario.Name, err)
	}
	return cols, nil
}

func executeStep(g *grid.Grid, timers *testutil.ManualTimers, step *Step) error {
	switch {
	case len(step.Dispatch) > 0:
		batch := make([]query.Command, len(step.Dispatch))
		for j := range step.Dispatch {
			cmd, err := buildCommand(&step.Dispatch[j])
			if err != nil {
				return fmt.Errorf("dispatch[%d]: %w", j, err)
			}
			batch[j] = cmd
		}
		g.Dispatch(batch...)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("invalid advance duration %q: %w", step.Advance, err)
		}
		timers.Advance(d)
	case step.Total != nil:
		g.SetTotal(*step.Total)
	default:
		return fmt.Errorf("empty step")
	}
	return nil
}
