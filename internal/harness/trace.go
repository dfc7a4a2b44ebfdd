package harness

import (
	"fmt"
	"strings"

	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
)

// Trace event kinds. A "change" event is one onChange delivery, a "select"
// event is one onSelect delivery.
const (
	EventChange = "change"
	EventSelect = "select"
)

// TraceEvent records a single callback delivery. Change events carry the
// notification details; select events carry the selection snapshot.
type TraceEvent struct {
	Kind     string       `json:"kind"`
	Seq      int          `json:"seq"`
	Page     int          `json:"page,omitempty"`
	Limit    int          `json:"limit,omitempty"`
	Sort     string       `json:"sort,omitempty"`
	Order    query.Order  `json:"order,omitempty"`
	Filter   query.Filter `json:"filter,omitempty"`
	Selected []string     `json:"selected,omitempty"`
}

// String renders the event on one line, the format used in failure
// messages and replay output.
func (e TraceEvent) String() string {
	if e.Kind == EventSelect {
		return fmt.Sprintf("select %v", e.Selected)
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "change page=%d limit=%d", e.Page, e.Limit)
	if e.Sort != "" {
		fmt.Fprintf(&buf, " sort=%s", e.Sort)
	}
	if e.Order != query.OrderNone {
		fmt.Fprintf(&buf, " order=%s", e.Order)
	}
	if len(e.Filter) > 0 {
		if data, err := query.MarshalCanonical(e.Filter); err == nil {
			fmt.Fprintf(&buf, " filter=%s", data)
		}
	}
	return buf.String()
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace contains all deliveries in the order the grid made them.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty when Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the grid state after the last step.
	Final query.State `json:"final_state"`

	// Pending is the number of debounce timers still armed after the last
	// step. A scenario that ends mid-debounce leaves this non-zero.
	Pending int `json:"pending,omitempty"`
}

// NewResult returns a passing result to accumulate into.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddChange appends a change delivery to the trace.
func (r *Result) AddChange(d grid.ChangeDetails) {
	r.Trace = append(r.Trace, TraceEvent{
		Kind:   EventChange,
		Seq:    len(r.Trace) + 1,
		Page:   d.Page,
		Limit:  d.Limit,
		Sort:   d.Sort,
		Order:  d.Order,
		Filter: d.Filter,
	})
}

// AddSelect appends a selection delivery to the trace.
func (r *Result) AddSelect(ids []string) {
	r.Trace = append(r.Trace, TraceEvent{
		Kind:     EventSelect,
		Seq:      len(r.Trace) + 1,
		Selected: ids,
	})
}
