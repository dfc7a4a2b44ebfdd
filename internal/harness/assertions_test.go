package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/hollowdata/gridstate/internal/query"
)

// sampleTrace is a change, a select, and a second change, the shape most
// assertions are written against.
func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Kind: EventChange, Seq: 1, Page: 1, Limit: 10},
		{Kind: EventSelect, Seq: 2, Selected: []string{"row-1"}},
		{Kind: EventChange, Seq: 3, Page: 2, Limit: 10, Sort: "name", Order: query.OrderAsc,
			Filter: query.Filter{"city": query.Text("Oslo")}},
	}
}

// expectNodes builds an expect clause from YAML source, the same way
// scenario files produce one.
func expectNodes(t *testing.T, src string) map[string]yaml.Node {
	t.Helper()
	var m map[string]yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(src), &m))
	return m
}

func TestAssertDeliveryCount_Match(t *testing.T) {
	trace := sampleTrace()

	err := assertDeliveryCount(trace, Assertion{Type: AssertNotifyCount, Count: 2}, EventChange)
	assert.NoError(t, err)

	err = assertDeliveryCount(trace, Assertion{Type: AssertSelectCount, Count: 1}, EventSelect)
	assert.NoError(t, err)
}

func TestAssertDeliveryCount_Mismatch(t *testing.T) {
	err := assertDeliveryCount(sampleTrace(), Assertion{Type: AssertNotifyCount, Count: 3}, EventChange)
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertNotifyCount, ae.Type)
	assert.Contains(t, ae.Error(), "Expected: 3 change deliveries")
	assert.Contains(t, ae.Error(), "Actual: 2 deliveries")
}

func TestAssertPendingCount(t *testing.T) {
	result := NewResult()
	result.Pending = 1

	assert.NoError(t, assertPendingCount(result, Assertion{Type: AssertPendingCount, Count: 1}))

	err := assertPendingCount(result, Assertion{Type: AssertPendingCount, Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected: 0 pending debounce timers")
}

func TestAssertTraceOrder_Match(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:  AssertTraceOrder,
		Kinds: []string{EventChange, EventSelect},
	})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type:  AssertTraceOrder,
		Kinds: []string{EventSelect, EventChange},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "should be before")
}

func TestAssertTraceOrder_MissingKind(t *testing.T) {
	trace := []TraceEvent{{Kind: EventChange, Seq: 1, Page: 1, Limit: 10}}

	err := assertTraceOrder(trace, Assertion{
		Type:  AssertTraceOrder,
		Kinds: []string{EventChange, EventSelect},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing kind: select")
}

func TestAssertTraceContains_SubsetMatch(t *testing.T) {
	// Only page is specified; the sort and filter on the event are
	// irrelevant to the match.
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Kind:   EventChange,
		Expect: expectNodes(t, "page: 2"),
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_FilterMatch(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Kind:   EventChange,
		Expect: expectNodes(t, "filter: { city: Oslo }"),
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NoMatch(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Kind:   EventChange,
		Expect: expectNodes(t, "page: 9"),
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Error(), "no matching delivery in trace")
	assert.Contains(t, ae.Error(), "page=9")
}

func TestAssertTraceContains_SelectKind(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:   AssertTraceContains,
		Kind:   EventSelect,
		Expect: expectNodes(t, "selected: [row-1]"),
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_AnyOfKind(t *testing.T) {
	// No expect clause: any delivery of the kind satisfies it.
	err := assertTraceContains(sampleTrace(), Assertion{
		Type: AssertTraceContains,
		Kind: EventSelect,
	})
	assert.NoError(t, err)
}

func TestAssertFinalState_Match(t *testing.T) {
	result := NewResult()
	result.Final = query.State{
		Page:     2,
		Limit:    10,
		Sort:     "name",
		Order:    query.OrderAsc,
		Filter:   query.Filter{"city": query.Text("Oslo")},
		Selected: []string{"row-1"},
	}

	err := assertFinalState(result, Assertion{
		Type: AssertFinalState,
		Expect: expectNodes(t, `
page: 2
limit: 10
sort: name
order: asc
filter: { city: Oslo }
selected: [row-1]
`),
	})
	assert.NoError(t, err)
}

func TestAssertFinalState_NullAssertsAbsent(t *testing.T) {
	result := NewResult()
	result.Final = query.NewState(1, 10)

	err := assertFinalState(result, Assertion{
		Type:   AssertFinalState,
		Expect: expectNodes(t, "sort: null\norder: null\nfilter: null"),
	})
	assert.NoError(t, err)

	result.Final.Sort = "name"
	err = assertFinalState(result, Assertion{
		Type:   AssertFinalState,
		Expect: expectNodes(t, "sort: null"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sort = "name", expected absent`)
}

func TestAssertFinalState_Mismatch(t *testing.T) {
	result := NewResult()
	result.Final = query.NewState(3, 10)

	err := assertFinalState(result, Assertion{
		Type:   AssertFinalState,
		Expect: expectNodes(t, "page: 1"),
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertFinalState, ae.Type)
	assert.Contains(t, ae.Error(), "page = 3, expected 1")
}

func TestAssertFinalState_SelectedOrderMatters(t *testing.T) {
	result := NewResult()
	result.Final = query.NewState(1, 10)
	result.Final.Selected = []string{"b", "a"}

	err := assertFinalState(result, Assertion{
		Type:   AssertFinalState,
		Expect: expectNodes(t, "selected: [a, b]"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "selected = [b a], expected [a b]")
}

func TestTraceEventString(t *testing.T) {
	change := TraceEvent{Kind: EventChange, Seq: 1, Page: 2, Limit: 10, Sort: "name",
		Order: query.OrderDesc, Filter: query.Filter{"city": query.Text("Oslo")}}
	assert.Equal(t, `change page=2 limit=10 sort=name order=desc filter={"city":"Oslo"}`, change.String())

	bare := TraceEvent{Kind: EventChange, Seq: 1, Page: 1, Limit: 10}
	assert.Equal(t, "change page=1 limit=10", bare.String())

	sel := TraceEvent{Kind: EventSelect, Seq: 2, Selected: []string{"row-1", "row-2"}}
	assert.Equal(t, "select [row-1 row-2]", sel.String())
}

func TestEvaluateAssertions_CollectsAllFailures(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()
	result.Final = query.NewState(2, 10)

	errors := EvaluateAssertions(result, []Assertion{
		{Type: AssertNotifyCount, Count: 2},                         // passes
		{Type: AssertSelectCount, Count: 9},                         // fails
		{Type: AssertFinalState, Expect: expectNodes(t, "page: 7")}, // fails
	})

	require.Len(t, errors, 2)
	assert.Contains(t, errors[0], "select_count")
	assert.Contains(t, errors[1], "page = 2, expected 7")
}

func TestEvaluateAssertions_UnknownType(t *testing.T) {
	result := NewResult()

	errors := EvaluateAssertions(result, []Assertion{{Type: "trace_len"}})
	require.Len(t, errors, 1)
	assert.Contains(t, errors[0], `unknown assertion type "trace_len"`)
}
