// Package query defines the canonical data model for grid query state.
//
// This package contains type definitions only. All other internal packages
// import query; query imports nothing internal. This keeps the model the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Filter values form a closed union (Value) - no floats, no nesting
//     beyond one list level
//   - A nil Value models a key supplied without a value; it is distinct
//     from the explicit Null variant and has its own sanitizer pass
//   - State is replaced wholesale on every transition, never mutated in
//     place, so previous snapshots stay valid for change detection
package query
