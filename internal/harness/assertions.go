package harness

import (
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hollowdata/gridstate/internal/query"
)

// AssertionError is returned when an assertion fails. It includes the
// full delivery trace so a failure is debuggable from the message alone.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nDelivery trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
	}

	return buf.String()
}

// countKind counts deliveries of one kind in the trace.
func countKind(trace []TraceEvent, kind string) int {
	n := 0
	for _, event := range trace {
		if event.Kind == kind {
			n++
		}
	}
	return n
}

// assertDeliveryCount checks that the trace holds exactly the expected
// number of deliveries of one kind. Backs notify_count and select_count.
func assertDeliveryCount(trace []TraceEvent, assertion Assertion, kind string) error {
	count := countKind(trace, kind)
	if count != assertion.Count {
		return &AssertionError{
			Type:     assertion.Type,
			Expected: fmt.Sprintf("%d %s deliveries", assertion.Count, kind),
			Actual:   fmt.Sprintf("%d deliveries", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertPendingCount checks the number of debounce timers still armed
// when the scenario ended.
func assertPendingCount(result *Result, assertion Assertion) error {
	if result.Pending != assertion.Count {
		return &AssertionError{
			Type:     AssertPendingCount,
			Expected: fmt.Sprintf("%d pending debounce timers", assertion.Count),
			Actual:   fmt.Sprintf("%d pending", result.Pending),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceOrder checks that the first delivery of each kind appears in
// the given order. Intervening deliveries are allowed.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if positions[event.Kind] == 0 {
			positions[event.Kind] = i + 1 // 1-indexed for readability
		}
	}

	for _, kind := range assertion.Kinds {
		if positions[kind] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all kinds present: %v", assertion.Kinds),
				Actual:   fmt.Sprintf("missing kind: %s", kind),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Kinds); i++ {
		prev, curr := assertion.Kinds[i-1], assertion.Kinds[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("kinds in order: %v", assertion.Kinds),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceContains checks that some delivery of the given kind matches
// every field in the expect clause (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if event.Kind != assertion.Kind {
			continue
		}
		if matched, err := eventMatches(event, assertion.Expect); err != nil {
			return err
		} else if matched {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("a %s delivery matching %s", assertion.Kind, formatExpect(assertion.Expect)),
		Actual:   "no matching delivery in trace",
		Trace:    trace,
	}
}

// assertFinalState checks the final state against the expect clause.
// Subset semantics: only the listed keys are checked. An explicit null
// asserts the field is absent.
func assertFinalState(result *Result, assertion Assertion) error {
	st := result.Final

	for _, key := range sortedExpectKeys(assertion.Expect) {
		node := assertion.Expect[key]
		var mismatch string

		switch key {
		case "page":
			expected, err := decodeIntNode(&node)
			if err != nil {
				return fmt.Errorf("final_state: page: %w", err)
			}
			if st.Page != expected {
				mismatch = fmt.Sprintf("page = %d, expected %d", st.Page, expected)
			}
		case "limit":
			expected, err := decodeIntNode(&node)
			if err != nil {
				return fmt.Errorf("final_state: limit: %w", err)
			}
			if st.Limit != expected {
				mismatch = fmt.Sprintf("limit = %d, expected %d", st.Limit, expected)
			}
		case "sort":
			expected, absent, err := decodeStringNode(&node)
			if err != nil {
				return fmt.Errorf("final_state: sort: %w", err)
			}
			if absent && st.Sort != "" {
				mismatch = fmt.Sprintf("sort = %q, expected absent", st.Sort)
			}
			if !absent && st.Sort != expected {
				mismatch = fmt.Sprintf("sort = %q, expected %q", st.Sort, expected)
			}
		case "order":
			expected, absent, err := decodeStringNode(&node)
			if err != nil {
				return fmt.Errorf("final_state: order: %w", err)
			}
			if absent && st.Order != query.OrderNone {
				mismatch = fmt.Sprintf("order = %q, expected absent", st.Order)
			}
			if !absent && st.Order != query.Order(expected) {
				mismatch = fmt.Sprintf("order = %q, expected %q", st.Order, expected)
			}
		case "filter":
			expected, err := decodeFilterNode(&node)
			if err != nil {
				return fmt.Errorf("final_state: filter: %w", err)
			}
			if !st.Filter.Equal(expected) {
				actual, _ := query.MarshalCanonical(st.Filter)
				want, _ := query.MarshalCanonical(expected)
				mismatch = fmt.Sprintf("filter = %s, expected %s", actual, want)
			}
		case "selected":
			var expected []string
			if err := node.Decode(&expected); err != nil {
				return fmt.Errorf("final_state: selected: %w", err)
			}
			if !slices.Equal(st.Selected, expected) {
				mismatch = fmt.Sprintf("selected = %v, expected %v", st.Selected, expected)
			}
		}

		if mismatch != "" {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: formatExpect(assertion.Expect),
				Actual:   mismatch,
				Trace:    result.Trace,
			}
		}
	}

	return nil
}

// eventMatches reports whether one change delivery satisfies every field
// of the expect clause.
func eventMatches(ev TraceEvent, expect map[string]yaml.Node) (bool, error) {
	for _, key := range sortedExpectKeys(expect) {
		node := expect[key]

		switch key {
		case "page":
			expected, err := decodeIntNode(&node)
			if err != nil {
				return false, fmt.Errorf("trace_contains: page: %w", err)
			}
			if ev.Page != expected {
				return false, nil
			}
		case "limit":
			expected, err := decodeIntNode(&node)
			if err != nil {
				return false, fmt.Errorf("trace_contains: limit: %w", err)
			}
			if ev.Limit != expected {
				return false, nil
			}
		case "sort":
			expected, absent, err := decodeStringNode(&node)
			if err != nil {
				return false, fmt.Errorf("trace_contains: sort: %w", err)
			}
			if absent != (ev.Sort == "") || (!absent && ev.Sort != expected) {
				return false, nil
			}
		case "order":
			expected, absent, err := decodeStringNode(&node)
			if err != nil {
				return false, fmt.Errorf("trace_contains: order: %w", err)
			}
			if absent != (ev.Order == query.OrderNone) || (!absent && ev.Order != query.Order(expected)) {
				return false, nil
			}
		case "filter":
			expected, err := decodeFilterNode(&node)
			if err != nil {
				return false, fmt.Errorf("trace_contains: filter: %w", err)
			}
			if !ev.Filter.Equal(expected) {
				return false, nil
			}
		case "selected":
			var expected []string
			if err := node.Decode(&expected); err != nil {
				return false, fmt.Errorf("trace_contains: selected: %w", err)
			}
			if !slices.Equal(ev.Selected, expected) {
				return false, nil
			}
		}
	}
	return true, nil
}

func sortedExpectKeys(expect map[string]yaml.Node) []string {
	keys := make([]string, 0, len(expect))
	for k := range expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func decodeIntNode(n *yaml.Node) (int, error) {
	var i int
	if err := n.Decode(&i); err != nil {
		return 0, fmt.Errorf("expected an integer: %w", err)
	}
	return i, nil
}

// decodeStringNode decodes a scalar expectation. An explicit null means
// "assert the field is absent".
func decodeStringNode(n *yaml.Node) (value string, absent bool, err error) {
	if n.Tag == "!!null" {
		return "", true, nil
	}
	var s string
	if err := n.Decode(&s); err != nil {
		return "", false, fmt.Errorf("expected a string or null: %w", err)
	}
	return s, false, nil
}

// decodeFilterNode decodes an expected filter map. An explicit null means
// the empty filter.
func decodeFilterNode(n *yaml.Node) (query.Filter, error) {
	if n.Tag == "!!null" {
		return query.Filter{}, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping or null")
	}

	f := query.Filter{}
	// Mapping content alternates key node, value node.
	for i := 0; i+1 < len(n.Content); i += 2 {
		key := n.Content[i].Value
		v, err := decodeValueNode(n.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		f[key] = v
	}
	return f, nil
}

// formatExpect renders an expect clause for failure messages, keys in
// sorted order.
func formatExpect(expect map[string]yaml.Node) string {
	if len(expect) == 0 {
		return "(any)"
	}

	parts := make([]string, 0, len(expect))
	for _, k := range sortedExpectKeys(expect) {
		node := expect[k]
		parts = append(parts, fmt.Sprintf("%s=%s", k, renderNode(&node)))
	}
	return strings.Join(parts, " ")
}

func renderNode(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return "null"
	}
	if n.Kind == yaml.ScalarNode {
		return n.Value
	}
	data, err := yaml.Marshal(n)
	if err != nil {
		return "?"
	}
	return strings.TrimSpace(string(data))
}

// EvaluateAssertions evaluates all assertions against the result and
// returns a message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertNotifyCount:
			err = assertDeliveryCount(result.Trace, assertion, EventChange)
		case AssertSelectCount:
			err = assertDeliveryCount(result.Trace, assertion, EventSelect)
		case AssertPendingCount:
			err = assertPendingCount(result, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
