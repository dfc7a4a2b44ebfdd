package grid

import "github.com/hollowdata/gridstate/internal/query"

// FirstChangedKey compares two filter snapshots and returns the first key
// of next whose value differs from prev's, in canonical key order.
//
// A nil prev means "was nothing": the first key of next is reported
// changed. Lists compare by identity, not content - a rebuilt list counts
// as changed even when its elements match, which errs on the side of
// notifying. Everything else compares by strict equality, no coercion.
//
// Detection is asymmetric: only additions and modifications within next's
// key set are visible. A key removed from next relative to prev is NOT
// detected. This is a documented limitation of the contract, kept as-is.
func FirstChangedKey(prev, next query.Filter) (string, bool) {
	if prev == nil {
		for _, k := range next.SortedKeys() {
			return k, true
		}
		return "", false
	}

	for _, k := range next.SortedKeys() {
		if valueChanged(prev[k], next[k]) {
			return k, true
		}
	}
	return "", false
}

// valueChanged reports whether a single filter value differs between two
// snapshots. Lists: changed when lengths differ or the backing storage is
// not shared. Scalars and sentinels: strict equality.
func valueChanged(prev, next query.Value) bool {
	pl, pok := prev.(query.List)
	nl, nok := next.(query.List)
	if pok && nok {
		if len(pl) != len(nl) {
			return true
		}
		return len(pl) > 0 && &pl[0] != &nl[0]
	}
	if pok != nok {
		return true
	}
	return prev != next
}
