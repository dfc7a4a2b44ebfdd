package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowdata/gridstate/internal/query"
)

func TestSanitize_DropsAllSentinels(t *testing.T) {
	f := query.Filter{
		"name": query.Text(""),
		"tags": query.List{},
		"id":   query.Null{},
		"note": nil,
		"city": query.Text("NY"),
	}

	Sanitize(f, AllFlags())

	require.Len(t, f, 1)
	assert.Equal(t, query.Text("NY"), f["city"])
}

func TestSanitize_Idempotent(t *testing.T) {
	f := query.Filter{
		"name": query.Text(""),
		"tags": query.Texts("a", "", "b"),
		"id":   query.Null{},
		"city": query.Text("NY"),
		"age":  query.Int(30),
	}

	Sanitize(f, AllFlags())
	once := f.Clone()
	Sanitize(f, AllFlags())

	assert.True(t, f.Equal(once), "second pass should change nothing")
}

func TestSanitize_FiltersListElements(t *testing.T) {
	f := query.Filter{
		"tags": query.List{query.Text("go"), query.Text(""), query.Null{}, nil, query.Text("db")},
	}

	Sanitize(f, AllFlags())

	require.Contains(t, f, "tags", "key survives while the list is non-empty")
	assert.Equal(t, query.Texts("go", "db"), f["tags"])
}

func TestSanitize_ListCollapsedToEmptyIsDropped(t *testing.T) {
	f := query.Filter{
		"tags": query.List{query.Text(""), query.Null{}},
		"city": query.Text("NY"),
	}

	// The sentinel passes empty the list; the empty-list pass, running
	// last, then removes the key.
	Sanitize(f, AllFlags())

	assert.NotContains(t, f, "tags")
	assert.Contains(t, f, "city")
}

func TestSanitize_EmptyListKeptWithoutDropEmptyList(t *testing.T) {
	f := query.Filter{
		"tags": query.List{query.Null{}},
	}

	Sanitize(f, Flags{DropNull: true})

	require.Contains(t, f, "tags")
	assert.Len(t, f["tags"].(query.List), 0, "collapsed list stays when the empty-list pass is off")
}

func TestSanitize_ZeroFlagsIsNoOp(t *testing.T) {
	f := query.Filter{
		"name": query.Text(""),
		"tags": query.List{},
		"id":   query.Null{},
		"note": nil,
	}
	before := f.Clone()

	Sanitize(f, Flags{})

	assert.True(t, f.Equal(before))
}

func TestSanitize_KeepsRealValues(t *testing.T) {
	f := query.Filter{
		"age":    query.Int(0),
		"active": query.Bool(false),
		"city":   query.Text("NY"),
		"roles":  query.Texts("admin"),
	}
	before := f.Clone()

	// Zero-valued scalars are real values, not sentinels.
	Sanitize(f, AllFlags())

	assert.True(t, f.Equal(before))
}

func TestStripNull(t *testing.T) {
	f := query.Filter{
		"id":   query.Null{},
		"note": nil,
		"name": query.Text(""),
		"tags": query.List{query.Null{}, query.Text("a")},
	}

	StripNull(f)

	assert.NotContains(t, f, "id")
	assert.Contains(t, f, "note", "unset is a different sentinel")
	assert.Contains(t, f, "name")
	assert.Equal(t, query.Texts("a"), f["tags"])
}

func TestStripUnset(t *testing.T) {
	f := query.Filter{
		"note": nil,
		"id":   query.Null{},
		"tags": query.List{nil, query.Text("a")},
	}

	StripUnset(f)

	assert.NotContains(t, f, "note")
	assert.Contains(t, f, "id", "explicit null is a different sentinel")
	assert.Equal(t, query.Texts("a"), f["tags"])
}

func TestStripEmptyText(t *testing.T) {
	f := query.Filter{
		"name": query.Text(""),
		"city": query.Text("NY"),
		"tags": query.List{query.Text(""), query.Text("a")},
	}

	StripEmptyText(f)

	assert.NotContains(t, f, "name")
	assert.Equal(t, query.Text("NY"), f["city"])
	assert.Equal(t, query.Texts("a"), f["tags"])
}

func TestStripEmptyList(t *testing.T) {
	f := query.Filter{
		"tags":  query.List{},
		"roles": query.Texts("admin"),
		"name":  query.Text(""),
	}

	StripEmptyList(f)

	assert.NotContains(t, f, "tags")
	assert.Contains(t, f, "roles")
	assert.Contains(t, f, "name", "only lists are in scope")
}

func TestSanitize_RebuildsListBacking(t *testing.T) {
	orig := query.Texts("a", "", "b")
	f := query.Filter{"tags": orig}

	Sanitize(f, AllFlags())

	got := f["tags"].(query.List)
	require.Len(t, got, 2)
	assert.NotSame(t, &orig[0], &got[0], "sanitizing allocates a fresh list")
	assert.Equal(t, query.Texts("a", "", "b"), orig, "original backing untouched")
}
