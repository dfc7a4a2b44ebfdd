package query

import "slices"

// Order is the sort direction. The zero value means no direction is set;
// order and sort column are independent fields, and either may be present
// without the other.
type Order string

const (
	OrderNone Order = ""
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Toggle returns the next direction in the fixed three-state cycle
// none -> asc -> desc -> none. Cycling is legal with no sort column set.
func (o Order) Toggle() Order {
	switch o {
	case OrderAsc:
		return OrderDesc
	case OrderDesc:
		return OrderNone
	default:
		return OrderAsc
	}
}

// State is the canonical query snapshot for one grid instance: pagination,
// sorting, filtering, and selection, plus the tags of the transition that
// produced it.
//
// INVARIANTS:
//   - Page >= 1 and Limit >= 1 always; a transition setting them lower is
//     caller error and is not defended against
//   - State is never mutated in place; every transition produces a new
//     value so that prior snapshots remain valid for change detection
//   - Selected has set semantics for membership with first-insertion order
//     preserved for display
type State struct {
	Page     int          `json:"page"`
	Limit    int          `json:"limit"`
	Sort     string       `json:"sort,omitempty"`
	Order    Order        `json:"order,omitempty"`
	Filter   Filter       `json:"filter,omitempty"`
	Selected []string     `json:"selected,omitempty"`
	Commands []CommandTag `json:"commands,omitempty"`
}

// NewState returns a State with the given pagination and empty filter and
// selection.
func NewState(page, limit int) State {
	return State{Page: page, Limit: limit, Filter: Filter{}}
}

// Clone returns a copy safe to hand to a reducer: the filter map, selected
// slice, and command tags are copied; filter values are shared (see
// Filter.Clone).
func (s State) Clone() State {
	out := s
	out.Filter = s.Filter.Clone()
	out.Selected = slices.Clone(s.Selected)
	out.Commands = slices.Clone(s.Commands)
	return out
}

// Equal reports structural equality, ignoring the command tags: two states
// that describe the same query compare equal even when different
// transitions produced them.
func (s State) Equal(other State) bool {
	return s.Page == other.Page &&
		s.Limit == other.Limit &&
		s.Sort == other.Sort &&
		s.Order == other.Order &&
		s.Filter.Equal(other.Filter) &&
		slices.Equal(s.Selected, other.Selected)
}

// IsSelected reports whether id is in the selection.
func (s State) IsSelected(id string) bool {
	return slices.Contains(s.Selected, id)
}
