// Package schema defines column descriptors for a grid: which columns
// exist, which are sortable, how each is filtered, and the debounce
// duration gating filter-change notifications.
//
// Column sets are built programmatically (NewSet) or loaded from CUE
// definition files (Load). The grid consumes them read-only.
package schema

import (
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"

	"github.com/hollowdata/gridstate/internal/query"
)

// FilterKind names the filter control a column carries.
type FilterKind string

const (
	FilterNone   FilterKind = "none"
	FilterText   FilterKind = "text"
	FilterSelect FilterKind = "select"
	FilterMulti  FilterKind = "multi"
)

// validFilterKinds is the closed set accepted by validation.
var validFilterKinds = map[FilterKind]bool{
	FilterNone:   true,
	FilterText:   true,
	FilterSelect: true,
	FilterMulti:  true,
}

// Column describes one grid column. Consumed read-only by the engine.
type Column struct {
	// Key is the unique column identifier used in sort and filter state.
	Key string

	// Title is the display label. Defaults to Key when empty.
	Title string

	// Sortable marks the column as a legal sort target.
	Sortable bool

	// Filter selects the filter control; FilterNone (the zero value)
	// means the column cannot be filtered.
	Filter FilterKind

	// Options enumerates legal values for select and multi filters.
	Options []string

	// Debounce delays filter-change notifications for this column. Zero
	// means notify synchronously.
	Debounce time.Duration

	// DeriveState optionally transforms the state snapshot after each
	// transition. Must be pure and idempotent under repeated application;
	// the post-derivation state becomes the canonical snapshot for
	// subsequent change detection.
	DeriveState func(query.State) query.State
}

// Set is an ordered, validated collection of columns indexed by key.
type Set struct {
	cols  []Column
	index map[string]int
}

// NewSet validates the columns and builds a Set. Declaration order is
// preserved; it determines the order derive hooks apply in.
func NewSet(cols ...Column) (*Set, error) {
	s := &Set{
		cols:  make([]Column, len(cols)),
		index: make(map[string]int, len(cols)),
	}
	copy(s.cols, cols)

	for i, c := range s.cols {
		if c.Key == "" {
			return nil, fmt.Errorf("column %d: key must not be empty", i)
		}
		if _, dup := s.index[c.Key]; dup {
			return nil, fmt.Errorf("duplicate column key: %s", c.Key)
		}
		if c.Filter == "" {
			c.Filter = FilterNone
			s.cols[i].Filter = FilterNone
		}
		if !validFilterKinds[c.Filter] {
			return nil, fmt.Errorf("column %s: unknown filter kind %q", c.Key, c.Filter)
		}
		if len(c.Options) > 0 && c.Filter != FilterSelect && c.Filter != FilterMulti {
			return nil, fmt.Errorf("column %s: options require a select or multi filter", c.Key)
		}
		if c.Debounce < 0 {
			return nil, fmt.Errorf("column %s: negative debounce %s", c.Key, c.Debounce)
		}
		s.index[c.Key] = i
	}
	return s, nil
}

// MustSet is NewSet panicking on error. For fixtures and demo wiring
// where the column list is a literal.
func MustSet(cols ...Column) *Set {
	s, err := NewSet(cols...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup returns the column for a key.
func (s *Set) Lookup(key string) (Column, bool) {
	i, ok := s.index[key]
	if !ok {
		return Column{}, false
	}
	return s.cols[i], true
}

// Columns returns the columns in declaration order. The slice is a copy.
func (s *Set) Columns() []Column {
	out := make([]Column, len(s.cols))
	copy(out, s.cols)
	return out
}

// Keys returns the column keys in declaration order.
func (s *Set) Keys() []string {
	keys := make([]string, len(s.cols))
	for i, c := range s.cols {
		keys[i] = c.Key
	}
	return keys
}

// Len returns the number of columns.
func (s *Set) Len() int {
	return len(s.cols)
}

// DeriveHooks returns the non-nil DeriveState hooks in declaration order.
func (s *Set) DeriveHooks() []func(query.State) query.State {
	var hooks []func(query.State) query.State
	for _, c := range s.cols {
		if c.DeriveState != nil {
			hooks = append(hooks, c.DeriveState)
		}
	}
	return hooks
}

// maxSuggestDistance bounds how far a suggestion may be from the unknown
// key before it stops being helpful.
const maxSuggestDistance = 2

// Suggest returns the known key nearest to an unknown one, or "" when
// nothing is within editing distance. Used for did-you-mean diagnostics
// in the CLI and the scenario harness.
func (s *Set) Suggest(key string) string {
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, c := range s.cols {
		d := levenshtein.ComputeDistance(key, c.Key)
		if d < bestDist {
			best, bestDist = c.Key, d
		}
	}
	return best
}
