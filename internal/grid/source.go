package grid

import (
	"sync"

	"github.com/hollowdata/gridstate/internal/query"
)

// Source is the state container contract: get and set, nothing more.
// Subscription mechanics belong to the container implementation, not to
// this package. Get returns the current snapshot; callers must treat it
// as read-only, the reducer clones before mutating.
type Source interface {
	Get() query.State
	Set(query.State)
}

// Provider supplies a candidate Source on each access. A nil Provider, or
// one returning nil, is an absent slot.
type Provider func() Source

// Memory is the internally owned fallback Source: a mutex-guarded
// in-process state cell.
type Memory struct {
	mu    sync.RWMutex
	state query.State
}

// NewMemory creates a Memory source holding the given initial state.
func NewMemory(initial query.State) *Memory {
	return &Memory{state: initial}
}

// Get returns the stored snapshot.
func (m *Memory) Get() query.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Set replaces the stored snapshot wholesale.
func (m *Memory) Set(st query.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st
}

// Resolver picks the authoritative Source for a grid instance: the first
// present candidate in order, else the internally owned fallback.
//
// Resolution runs on every access, never cached, so swapping which
// candidate a Provider supplies takes effect on the next read.
type Resolver struct {
	candidates []Provider
	fallback   Source
}

// NewResolver creates a Resolver over the given fallback and ordered
// candidate providers.
func NewResolver(fallback Source, candidates ...Provider) *Resolver {
	return &Resolver{candidates: candidates, fallback: fallback}
}

// Resolve returns the first present candidate, else the fallback.
func (r *Resolver) Resolve() Source {
	for _, p := range r.candidates {
		if p == nil {
			continue
		}
		if s := p(); s != nil {
			return s
		}
	}
	return r.fallback
}
