// Package grid implements the command-driven state engine behind a
// headless tabular-data widget.
//
// The package owns pagination, sorting, filtering, and selection state,
// decides when that state changes, and decides when and how observers are
// notified.
//
// ARCHITECTURE:
//
// Reducer:
// Every transition is a batch of commands applied by a pure reducer
// (Reduce). The reducer never mutates the previous state; each dispatch
// produces a fresh snapshot so earlier snapshots remain valid for change
// detection.
//
// Notification pipeline:
// After a transition the Grid builds a sanitized ChangeDetails snapshot,
// asks the change detector which filter key changed, consults the column
// configuration for a debounce duration, and either routes the callback
// through the per-key debounce scheduler or invokes it synchronously.
// Exactly one onChange fires (immediately or delayed) per transition;
// selection changes notify through onSelect and are never debounced.
//
// Concurrency:
// Dispatches are serialized by a mutex, so transitions apply strictly in
// call order. Debounced callbacks fire on timer goroutines and may
// therefore arrive after notifications for later, non-debounced
// transitions. The debounce scheduler's key->timer map is owned by its
// Grid, never process-global, so independent grids sharing column keys
// cannot collide.
package grid
