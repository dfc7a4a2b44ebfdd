package grid

import "github.com/hollowdata/gridstate/internal/query"

// Flags selects which sanitizer passes run when building change details.
// Each defaults to on.
type Flags struct {
	DropNull      bool
	DropUnset     bool
	DropEmptyText bool
	DropEmptyList bool
}

// AllFlags returns the default flag set with every pass enabled.
func AllFlags() Flags {
	return Flags{DropNull: true, DropUnset: true, DropEmptyText: true, DropEmptyList: true}
}

// Sanitize runs the selected passes over a filter map. The sentinel passes
// target disjoint value classes and are order-independent; the empty-list
// pass runs last so lists collapsed by the others are removed too.
//
// Sanitize mutates the map it is given and must run on a clone, never on
// the canonical stored state: the stored filter is the source of truth
// change detection compares against. Idempotent - sanitizing an already
// sanitized filter is a no-op.
func Sanitize(f query.Filter, flags Flags) {
	if flags.DropNull {
		StripNull(f)
	}
	if flags.DropUnset {
		StripUnset(f)
	}
	if flags.DropEmptyText {
		StripEmptyText(f)
	}
	if flags.DropEmptyList {
		StripEmptyList(f)
	}
}

// StripNull deletes keys holding an explicit Null and filters Null
// elements out of lists. A list collapsed to empty keeps its key; only
// StripEmptyList removes keys for emptiness.
func StripNull(f query.Filter) {
	stripSentinel(f, func(v query.Value) bool {
		_, isNull := v.(query.Null)
		return isNull
	})
}

// StripUnset deletes keys holding no value (nil) and filters nil elements
// out of lists. Symmetric to StripNull for the second sentinel class.
func StripUnset(f query.Filter) {
	stripSentinel(f, func(v query.Value) bool {
		return v == nil
	})
}

// StripEmptyText deletes keys holding exactly the empty string and filters
// empty-string elements out of lists.
func StripEmptyText(f query.Filter) {
	stripSentinel(f, func(v query.Value) bool {
		return v == query.Text("")
	})
}

// StripEmptyList deletes keys holding a zero-length list.
func StripEmptyList(f query.Filter) {
	for k, v := range f {
		if l, ok := v.(query.List); ok && len(l) == 0 {
			delete(f, k)
		}
	}
}

// stripSentinel is the shared shape of the three sentinel passes: drop
// matching scalar values, rebuild lists without matching elements. Lists
// are always rebuilt rather than edited in place because their backing may
// be shared with the canonical state.
func stripSentinel(f query.Filter, drop func(query.Value) bool) {
	for k, v := range f {
		if l, ok := v.(query.List); ok {
			f[k] = withoutElements(l, drop)
			continue
		}
		if drop(v) {
			delete(f, k)
		}
	}
}

func withoutElements(l query.List, drop func(query.Value) bool) query.List {
	out := make(query.List, 0, len(l))
	for _, v := range l {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}
