package query

// CommandTag identifies a command variant. Tags are recorded on the state
// produced by a transition and drive the page-reset policy; they are not
// semantically part of the query.
type CommandTag string

const (
	TagSetPage       CommandTag = "set_page"
	TagSetLimit      CommandTag = "set_limit"
	TagSetSort       CommandTag = "set_sort"
	TagSetOrder      CommandTag = "set_order"
	TagToggleOrder   CommandTag = "toggle_order"
	TagClearSort     CommandTag = "clear_sort"
	TagClearOrder    CommandTag = "clear_order"
	TagSetFilter     CommandTag = "set_filter"
	TagRemoveFilter  CommandTag = "remove_filter"
	TagReplaceFilter CommandTag = "replace_filter"
	TagClearFilter   CommandTag = "clear_filter"
	TagClearAll      CommandTag = "clear_all"
	TagSelect        CommandTag = "select"
	TagDeselect      CommandTag = "deselect"
	TagToggleSelect  CommandTag = "toggle_select"
	TagSetSelected   CommandTag = "set_selected"
	TagClearSelected CommandTag = "clear_selected"
)

// Command is a sealed union of state-transition requests. Each variant
// carries only the payload fields it needs, so dispatch is exhaustive at
// compile time instead of falling through a runtime switch.
//
// Commands are dispatched as a batch: one transition may carry several
// commands, and the page-reset policy looks at the whole set.
type Command interface {
	Tag() CommandTag
	command() // Sealed - only these types implement it
}

// SetPage sets the current page.
type SetPage struct{ Page int }

func (SetPage) command()        {}
func (SetPage) Tag() CommandTag { return TagSetPage }

// SetLimit sets the page size.
type SetLimit struct{ Limit int }

func (SetLimit) command()        {}
func (SetLimit) Tag() CommandTag { return TagSetLimit }

// SetSort sets the sorted column key.
type SetSort struct{ Column string }

func (SetSort) command()        {}
func (SetSort) Tag() CommandTag { return TagSetSort }

// SetOrder sets the sort direction.
type SetOrder struct{ Order Order }

func (SetOrder) command()        {}
func (SetOrder) Tag() CommandTag { return TagSetOrder }

// ToggleOrder advances the sort direction through the fixed cycle
// none -> asc -> desc -> none, regardless of whether a sort column is set.
type ToggleOrder struct{}

func (ToggleOrder) command()        {}
func (ToggleOrder) Tag() CommandTag { return TagToggleOrder }

// ClearSort clears the sorted column, leaving the direction untouched.
type ClearSort struct{}

func (ClearSort) command()        {}
func (ClearSort) Tag() CommandTag { return TagClearSort }

// ClearOrder clears the sort direction, leaving the column untouched.
type ClearOrder struct{}

func (ClearOrder) command()        {}
func (ClearOrder) Tag() CommandTag { return TagClearOrder }

// SetFilter adds or overwrites a single filter key.
type SetFilter struct {
	Key   string
	Value Value
}

func (SetFilter) command()        {}
func (SetFilter) Tag() CommandTag { return TagSetFilter }

// RemoveFilter deletes a filter key outright. No removal sentinel is left
// behind for the sanitizer to clean up.
type RemoveFilter struct{ Key string }

func (RemoveFilter) command()        {}
func (RemoveFilter) Tag() CommandTag { return TagRemoveFilter }

// ReplaceFilter swaps the whole filter map.
type ReplaceFilter struct{ Filter Filter }

func (ReplaceFilter) command()        {}
func (ReplaceFilter) Tag() CommandTag { return TagReplaceFilter }

// ClearFilter empties the filter map.
type ClearFilter struct{}

func (ClearFilter) command()        {}
func (ClearFilter) Tag() CommandTag { return TagClearFilter }

// ClearAll resets every field to the configured initial defaults.
type ClearAll struct{}

func (ClearAll) command()        {}
func (ClearAll) Tag() CommandTag { return TagClearAll }

// Select appends a row id to the selection if absent.
type Select struct{ ID string }

func (Select) command()        {}
func (Select) Tag() CommandTag { return TagSelect }

// Deselect removes a row id from the selection.
type Deselect struct{ ID string }

func (Deselect) command()        {}
func (Deselect) Tag() CommandTag { return TagDeselect }

// ToggleSelect flips a row id's selection membership.
type ToggleSelect struct{ ID string }

func (ToggleSelect) command()        {}
func (ToggleSelect) Tag() CommandTag { return TagToggleSelect }

// SetSelected replaces the selection wholesale.
type SetSelected struct{ IDs []string }

func (SetSelected) command()        {}
func (SetSelected) Tag() CommandTag { return TagSetSelected }

// ClearSelected empties the selection.
type ClearSelected struct{}

func (ClearSelected) command()        {}
func (ClearSelected) Tag() CommandTag { return TagClearSelected }

// Tags returns the tags of a command batch in dispatch order.
func Tags(batch []Command) []CommandTag {
	tags := make([]CommandTag, len(batch))
	for i, cmd := range batch {
		tags[i] = cmd.Tag()
	}
	return tags
}

// HasTag reports whether any command in the batch carries the given tag.
func HasTag(batch []Command, tag CommandTag) bool {
	for _, cmd := range batch {
		if cmd.Tag() == tag {
			return true
		}
	}
	return false
}
