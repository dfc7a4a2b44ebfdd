package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hollowdata/gridstate/internal/query"
)

func TestFirstChangedKey_AddedKey(t *testing.T) {
	prev := query.Filter{"a": query.Int(1)}
	next := query.Filter{"a": query.Int(1), "b": query.Int(2)}

	key, ok := FirstChangedKey(prev, next)

	assert.True(t, ok)
	assert.Equal(t, "b", key)
}

func TestFirstChangedKey_RemovedKeyUndetected(t *testing.T) {
	// Detection walks the next filter's keys, so a key that only the
	// previous filter had is invisible. Asymmetric on purpose: it matches
	// how removal-by-merge behaves upstream.
	prev := query.Filter{"a": query.Int(1), "b": query.Int(2)}
	next := query.Filter{"a": query.Int(1)}

	key, ok := FirstChangedKey(prev, next)

	assert.False(t, ok)
	assert.Empty(t, key)
}

func TestFirstChangedKey_ValueChange(t *testing.T) {
	prev := query.Filter{"a": query.Int(1)}
	next := query.Filter{"a": query.Int(2)}

	key, ok := FirstChangedKey(prev, next)

	assert.True(t, ok)
	assert.Equal(t, "a", key)
}

func TestFirstChangedKey_NoChange(t *testing.T) {
	shared := query.Texts("x", "y")
	prev := query.Filter{"a": query.Int(1), "tags": shared}
	next := query.Filter{"a": query.Int(1), "tags": shared}

	_, ok := FirstChangedKey(prev, next)

	assert.False(t, ok)
}

func TestFirstChangedKey_SortedKeyOrder(t *testing.T) {
	prev := query.Filter{}
	next := query.Filter{"zeta": query.Int(1), "alpha": query.Int(2), "mid": query.Int(3)}

	key, ok := FirstChangedKey(prev, next)

	assert.True(t, ok)
	assert.Equal(t, "alpha", key, "ties break by bytewise key order")
}

func TestFirstChangedKey_NilPrev(t *testing.T) {
	next := query.Filter{"b": query.Int(1), "a": query.Int(2)}

	key, ok := FirstChangedKey(nil, next)

	assert.True(t, ok)
	assert.Equal(t, "a", key)

	_, ok = FirstChangedKey(nil, query.Filter{})
	assert.False(t, ok)
}

func TestFirstChangedKey_Lists(t *testing.T) {
	shared := query.Texts("x", "y")

	t.Run("same backing unchanged", func(t *testing.T) {
		_, ok := FirstChangedKey(
			query.Filter{"tags": shared},
			query.Filter{"tags": shared},
		)
		assert.False(t, ok)
	})

	t.Run("length change detected", func(t *testing.T) {
		key, ok := FirstChangedKey(
			query.Filter{"tags": shared},
			query.Filter{"tags": query.Texts("x")},
		)
		assert.True(t, ok)
		assert.Equal(t, "tags", key)
	})

	t.Run("rebuilt backing detected despite equal contents", func(t *testing.T) {
		key, ok := FirstChangedKey(
			query.Filter{"tags": shared},
			query.Filter{"tags": query.Texts("x", "y")},
		)
		assert.True(t, ok)
		assert.Equal(t, "tags", key)
	})

	t.Run("two empty lists unchanged", func(t *testing.T) {
		_, ok := FirstChangedKey(
			query.Filter{"tags": query.List{}},
			query.Filter{"tags": query.List{}},
		)
		assert.False(t, ok)
	})

	t.Run("list replacing scalar detected", func(t *testing.T) {
		key, ok := FirstChangedKey(
			query.Filter{"tags": query.Text("x")},
			query.Filter{"tags": query.Texts("x")},
		)
		assert.True(t, ok)
		assert.Equal(t, "tags", key)
	})
}

func TestFirstChangedKey_SentinelTransitions(t *testing.T) {
	t.Run("null to value", func(t *testing.T) {
		key, ok := FirstChangedKey(
			query.Filter{"id": query.Null{}},
			query.Filter{"id": query.Text("r1")},
		)
		assert.True(t, ok)
		assert.Equal(t, "id", key)
	})

	t.Run("unset value added equals missing", func(t *testing.T) {
		// A key set to the unset sentinel compares equal to the key not
		// being there at all.
		_, ok := FirstChangedKey(
			query.Filter{},
			query.Filter{"note": nil},
		)
		assert.False(t, ok)
	})
}
