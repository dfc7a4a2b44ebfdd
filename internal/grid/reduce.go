package grid

import (
	"slices"

	"github.com/hollowdata/gridstate/internal/query"
)

// ReduceOptions carries the caller configuration the reducer itself has no
// notion of: the initial defaults that ClearAll and the page-reset policy
// target, and whether single-key filter edits also reset the page.
type ReduceOptions struct {
	// Initial supplies the reset targets. Initial.Page is where a
	// reset-triggering command sends the page; the full value is what
	// ClearAll restores.
	Initial query.State

	// ResetOnFilterChange extends the page-reset policy to SetFilter and
	// RemoveFilter, which never trigger it on their own.
	ResetOnFilterChange bool
}

// resetTriggers is the fixed set of commands that invalidate the current
// page offset by changing the shape of the result set. SetPage, SetFilter,
// and RemoveFilter are deliberately absent: SetPage is the page, and
// single-key filter edits reset only when the caller opts in.
var resetTriggers = map[query.CommandTag]bool{
	query.TagSetLimit:      true,
	query.TagSetSort:       true,
	query.TagSetOrder:      true,
	query.TagToggleOrder:   true,
	query.TagReplaceFilter: true,
	query.TagClearFilter:   true,
	query.TagClearOrder:    true,
	query.TagClearSort:     true,
}

// filterEdits are the single-key filter commands governed by the
// ResetOnFilterChange opt-in.
var filterEdits = map[query.CommandTag]bool{
	query.TagSetFilter:    true,
	query.TagRemoveFilter: true,
}

// Reduce applies a command batch to a state snapshot and returns the next
// snapshot. Pure and total: no side effects, no validation of payloads,
// never panics. Calling it twice with the same inputs yields structurally
// equal results.
//
// The batch is a set: commands apply in order, the produced state records
// every dispatched tag, and if any member triggers the page-reset policy
// the reset is applied exactly once, after all field updates.
func Reduce(prev query.State, batch []query.Command, opts ReduceOptions) query.State {
	next := prev.Clone()
	next.Commands = query.Tags(batch)

	for _, cmd := range batch {
		next = applyCommand(next, cmd, opts)
	}

	if resetsPage(batch, opts) {
		next.Page = opts.Initial.Page
	}

	return next
}

// applyCommand applies one command's field update. Unrecognized commands
// fall through untouched: the state still records their tags, nothing
// else changes.
func applyCommand(st query.State, cmd query.Command, opts ReduceOptions) query.State {
	switch c := cmd.(type) {
	case query.SetPage:
		st.Page = c.Page
	case query.SetLimit:
		st.Limit = c.Limit
	case query.SetSort:
		st.Sort = c.Column
	case query.SetOrder:
		st.Order = c.Order
	case query.ToggleOrder:
		st.Order = st.Order.Toggle()
	case query.ClearSort:
		st.Sort = ""
	case query.ClearOrder:
		st.Order = query.OrderNone
	case query.SetFilter:
		st.Filter[c.Key] = c.Value
	case query.RemoveFilter:
		delete(st.Filter, c.Key)
	case query.ReplaceFilter:
		st.Filter = c.Filter.Clone()
	case query.ClearFilter:
		st.Filter = query.Filter{}
	case query.ClearAll:
		tags := st.Commands
		st = opts.Initial.Clone()
		st.Commands = tags
	case query.Select:
		if !slices.Contains(st.Selected, c.ID) {
			st.Selected = append(st.Selected, c.ID)
		}
	case query.Deselect:
		st.Selected = slices.DeleteFunc(st.Selected, func(id string) bool {
			return id == c.ID
		})
	case query.ToggleSelect:
		if slices.Contains(st.Selected, c.ID) {
			st.Selected = slices.DeleteFunc(st.Selected, func(id string) bool {
				return id == c.ID
			})
		} else {
			st.Selected = append(st.Selected, c.ID)
		}
	case query.SetSelected:
		st.Selected = slices.Clone(c.IDs)
	case query.ClearSelected:
		st.Selected = nil
	}
	return st
}

// resetsPage reports whether any command in the batch triggers the
// page-reset policy under the given options.
func resetsPage(batch []query.Command, opts ReduceOptions) bool {
	for _, cmd := range batch {
		tag := cmd.Tag()
		if resetTriggers[tag] {
			return true
		}
		if opts.ResetOnFilterChange && filterEdits[tag] {
			return true
		}
	}
	return false
}
