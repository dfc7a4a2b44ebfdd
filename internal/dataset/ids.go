package dataset

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// IDGenerator produces row IDs for inserted people.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-sortable UUIDv7 row IDs.
//
// UUIDv7 embeds a timestamp in the most significant bits, so lexicographic
// id order is insertion order. That keeps the id ASC tiebreaker in
// compiled queries aligned with seed order.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// NewID creates a new UUIDv7 as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (g UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator returns predictable prefixed IDs for testing.
//
// Unlike UUIDv7Generator, the output is fully deterministic: the same
// seed run produces byte-identical rows, which golden snapshot tests
// depend on. IDs are zero-padded so lexicographic order matches issue
// order, mirroring the UUIDv7 property.
//
// Thread-safety: safe for concurrent use via internal mutex.
type SequenceGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceGenerator creates a generator issuing "<prefix>-0001",
// "<prefix>-0002", and so on.
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	return &SequenceGenerator{prefix: prefix}
}

// NewID returns the next ID in the sequence.
func (g *SequenceGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
