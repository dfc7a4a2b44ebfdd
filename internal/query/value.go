package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Value is a sealed interface over the types a filter entry can hold.
// Only Text, List, Int, Bool, and Null implement it.
//
// A nil Value is legal inside a Filter and marks a key that was supplied
// without a value. It is a distinct class from Null: the sanitizer cleans
// the two with separate passes, and change detection treats them as
// different values.
type Value interface {
	filterValue() // Sealed - only these types implement it
}

// Text is a string filter value.
type Text string

func (Text) filterValue() {}

// List is an ordered collection of filter values, typically Text elements
// produced by multi-select filter controls.
type List []Value

func (List) filterValue() {}

// Int is an integer filter value. Always int64, never float.
type Int int64

func (Int) filterValue() {}

// Bool is a boolean filter value.
type Bool bool

func (Bool) filterValue() {}

// Null is an explicit null filter value, as decoded from JSON null.
// Using an explicit type keeps nil free to mean "supplied without a value".
type Null struct{}

func (Null) filterValue() {}

// MarshalJSON implements json.Marshaler for Null.
func (Null) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Texts builds a List from plain strings. Convenience for the common
// multi-select case.
func Texts(ss ...string) List {
	l := make(List, len(ss))
	for i, s := range ss {
		l[i] = Text(s)
	}
	return l
}

// Filter maps column keys to filter values. Keys are unique; later writes
// to the same key overwrite. Filters are flat: a List never nests.
type Filter map[string]Value

// Clone returns a copy of the filter map. Values are shared with the
// original: the reducer's merge semantics keep untouched entries
// reference-identical across transitions, which is what change detection
// compares. Sanitizer passes never mutate a List in place, so sharing is
// safe.
func (f Filter) Clone() Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SortedKeys returns the filter's keys in canonical (bytewise) order.
// Filter maps have no insertion order in Go; every iteration that must be
// deterministic goes through this.
func (f Filter) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Equal reports structural equality of two filters: same key set, and
// element-wise equal values. Lists compare by contents here, unlike change
// detection which compares them by identity.
func (f Filter) Equal(other Filter) bool {
	if len(f) != len(other) {
		return false
	}
	for k, v := range f {
		ov, ok := other[k]
		if !ok || !ValueEqual(v, ov) {
			return false
		}
	}
	return true
}

// ValueEqual reports structural equality of two filter values.
func ValueEqual(a, b Value) bool {
	al, aok := a.(List)
	bl, bok := b.(List)
	if aok && bok {
		if len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !ValueEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	if aok != bok {
		return false
	}
	return a == b
}

// UnmarshalValue decodes a JSON value into the Value union with strict
// validation: floats and objects are rejected, null becomes Null, arrays
// become List. This is the decode path for filter payloads arriving from
// outside the process.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return toValue(raw)
}

// toValue recursively converts a decoded JSON value to a Value.
func toValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return Text(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("filter numbers must be integers: %s", val)
		}
		return Int(n), nil
	case []any:
		l := make(List, len(val))
		for i, elem := range val {
			ev, err := toValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			l[i] = ev
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported filter value type: %T", v)
	}
}

// MarshalValue encodes a Value as plain JSON. nil encodes as null, the
// same as Null; the distinction is process-internal and does not survive
// serialization.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case Null:
		return []byte("null"), nil
	case Text:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case List:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}
