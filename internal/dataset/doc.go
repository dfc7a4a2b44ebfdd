// Package dataset provides the SQLite-backed people table the demo grid
// browses.
//
// The store owns the connection configuration and schema lifecycle:
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
//   - PRAGMA user_version: incremental schema migrations
//
// Row IDs are UUIDv7 strings, so lexicographic id order is insertion
// order and the id ASC tiebreaker in compiled queries stays stable.
// Deterministic generators can be swapped in for golden tests.
//
// Search bridges grid query snapshots to SQL through the datasql
// compiler: one call returns the requested page and the total match
// count the grid needs for its pagination.
package dataset
