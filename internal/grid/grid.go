package grid

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
)

// Default pagination applied when no option overrides it.
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// maxDeriveSteps bounds the derive-hook fixpoint loop. Hooks are required
// to be idempotent, so a chain that has not stabilized after this many
// rounds is oscillating and the grid refuses to guess which state it meant.
const maxDeriveSteps = 8

// ChangeDetails is the payload delivered to the change callback after a
// transition. Sort, Order, and Filter are present only when set: absent
// sort and order are zero values, and Filter is nil whenever sanitizing
// leaves nothing behind.
type ChangeDetails struct {
	Page   int          `json:"page"`
	Limit  int          `json:"limit"`
	Sort   string       `json:"sort,omitempty"`
	Order  query.Order  `json:"order,omitempty"`
	Filter query.Filter `json:"filter,omitempty"`
}

// ChangeFunc receives query-affecting transitions. Synchronous deliveries
// run on the dispatching goroutine; debounced ones run on a timer
// goroutine. The callback may call back into the grid.
type ChangeFunc func(ChangeDetails)

// SelectFunc receives the full selection after it changes. The slice is a
// copy and may be empty. Never debounced.
type SelectFunc func(ids []string)

// Option configures a Grid at construction.
type Option func(*Grid)

// WithInitialPage sets the page the grid starts on and the target every
// page reset returns to.
func WithInitialPage(page int) Option {
	return func(g *Grid) { g.initialPage = page }
}

// WithInitialLimit sets the starting page size.
func WithInitialLimit(limit int) Option {
	return func(g *Grid) { g.initialLimit = limit }
}

// WithResetOnFilterChange makes single-key filter edits (SetFilter,
// RemoveFilter) reset the page like the batch-level triggers do.
func WithResetOnFilterChange() Option {
	return func(g *Grid) { g.reset.ResetOnFilterChange = true }
}

// WithSanitize overrides the sanitizer flag set applied to outgoing
// filter payloads. The default is AllFlags; pass the zero Flags to
// deliver filters verbatim.
func WithSanitize(flags Flags) Option {
	return func(g *Grid) { g.flags = flags }
}

// WithOnChange registers the change callback.
func WithOnChange(fn ChangeFunc) Option {
	return func(g *Grid) { g.onChange = fn }
}

// WithOnSelect registers the selection callback.
func WithOnSelect(fn SelectFunc) Option {
	return func(g *Grid) { g.onSelect = fn }
}

// WithStateSource adds a state source candidate. Candidates are consulted
// in registration order on every state access; the first whose provider
// returns a non-nil Source wins. When none does, the grid falls back to
// its own in-memory source.
func WithStateSource(p Provider) Option {
	return func(g *Grid) { g.providers = append(g.providers, p) }
}

// WithTimers replaces the scheduler's timer factory. A test seam:
// production grids use real timers.
func WithTimers(f TimerFactory) Option {
	return func(g *Grid) { g.timers = f }
}

// Grid is the engine instance: it owns the state source resolution, the
// reducer configuration, the debounce scheduler, and the notification
// callbacks for one table.
//
// Thread-safety: all methods are safe for concurrent use. Dispatch
// serializes transitions under an internal mutex; callbacks are invoked
// outside it, so they may re-enter the grid freely.
//
// Invariant: exactly one change delivery is produced per query-affecting
// transition. A debounced delivery may be superseded by a later
// transition on the same column before it fires; that coalescing is the
// debounce contract, not a lost notification.
type Grid struct {
	id      string
	columns *schema.Set
	hooks   []func(query.State) query.State
	flags   Flags
	reset   ReduceOptions

	onChange ChangeFunc
	onSelect SelectFunc

	resolver *Resolver
	sched    *Scheduler
	clock    *Clock

	total atomic.Int64

	// Construction-only; read exclusively by New.
	initialPage  int
	initialLimit int
	providers    []Provider
	timers       TimerFactory

	mu     sync.Mutex
	closed bool
}

// New builds a Grid over a column set. Panics on a nil column set or
// out-of-range initial pagination: these are wiring mistakes, not
// runtime conditions.
func New(columns *schema.Set, opts ...Option) *Grid {
	if columns == nil {
		panic("grid: nil column set")
	}
	g := &Grid{
		id:           uuid.Must(uuid.NewV7()).String(),
		columns:      columns,
		hooks:        columns.DeriveHooks(),
		flags:        AllFlags(),
		initialPage:  DefaultPage,
		initialLimit: DefaultLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.initialPage < 1 {
		panic(fmt.Sprintf("grid: initial page %d, must be >= 1", g.initialPage))
	}
	if g.initialLimit < 1 {
		panic(fmt.Sprintf("grid: initial limit %d, must be >= 1", g.initialLimit))
	}

	initial := query.NewState(g.initialPage, g.initialLimit)
	g.reset.Initial = initial
	g.resolver = NewResolver(NewMemory(initial), g.providers...)

	var schedOpts []SchedulerOption
	if g.timers != nil {
		schedOpts = append(schedOpts, WithTimerFactory(g.timers))
	}
	g.sched = NewScheduler(schedOpts...)
	g.clock = NewClock()

	slog.Debug("grid: created",
		"grid", g.id,
		"columns", columns.Len(),
		"page", g.initialPage,
		"limit", g.initialLimit)
	return g
}

// selectionTags are the commands that touch only the selection. A batch
// made entirely of these produces a selection delivery and no change
// delivery.
var selectionTags = map[query.CommandTag]bool{
	query.TagSelect:        true,
	query.TagDeselect:      true,
	query.TagToggleSelect:  true,
	query.TagSetSelected:   true,
	query.TagClearSelected: true,
}

// transition is the delivery plan computed under the grid mutex and
// executed after it is released.
type transition struct {
	seq        int64
	details    ChangeDetails
	notify     bool
	debounce   string
	delay      time.Duration
	selChanged bool
	selected   []string
}

// Dispatch applies a command batch as one transition and delivers the
// resulting notifications. An empty batch is a no-op. Panics after Close.
func (g *Grid) Dispatch(cmds ...query.Command) {
	if len(cmds) == 0 {
		return
	}
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		panic("grid: dispatch after Close")
	}
	t := g.apply(cmds)
	if t.notify && t.debounce != "" && g.onChange != nil {
		details := t.details
		g.sched.Schedule(t.debounce, t.delay, func() { g.onChange(details) })
	}
	g.mu.Unlock()

	if t.notify && t.debounce == "" && g.onChange != nil {
		g.onChange(t.details)
	}
	if t.selChanged && g.onSelect != nil {
		g.onSelect(t.selected)
	}
}

// apply runs the reducer and derive hooks, commits the new snapshot, and
// computes the delivery plan. Caller holds g.mu.
func (g *Grid) apply(batch []query.Command) transition {
	src := g.resolver.Resolve()
	prev := src.Get()
	next := g.derive(Reduce(prev, batch, g.reset))
	src.Set(next)

	t := transition{seq: g.clock.Next()}
	if !selectionOnly(next.Commands) {
		t.notify = true
		t.details = g.details(next)
		if slices.Contains(next.Commands, query.TagSetFilter) {
			t.debounce, t.delay = g.debounceFor(prev, next)
		}
	}
	if !slices.Equal(prev.Selected, next.Selected) {
		t.selChanged = true
		t.selected = slices.Clone(next.Selected)
	}

	slog.Debug("grid: transition",
		"grid", g.id,
		"seq", t.seq,
		"tags", next.Commands,
		"page", next.Page,
		"limit", next.Limit,
		"debounce", t.debounce)
	return t
}

// selectionOnly reports whether every tag in the batch is a selection
// command.
func selectionOnly(tags []query.CommandTag) bool {
	for _, tag := range tags {
		if !selectionTags[tag] {
			return false
		}
	}
	return true
}

// derive runs the column derive hooks to a fixpoint. The committed
// snapshot keeps the batch's command tags even if a hook rewrote them.
func (g *Grid) derive(st query.State) query.State {
	if len(g.hooks) == 0 {
		return st
	}
	tags := st.Commands
	for step := 0; step < maxDeriveSteps; step++ {
		next := st
		for _, hook := range g.hooks {
			next = hook(next)
		}
		if next.Equal(st) {
			next.Commands = slices.Clone(tags)
			return next
		}
		st = next
	}
	panic(fmt.Sprintf("grid %s: derive hooks still changing state after %d rounds", g.id, maxDeriveSteps))
}

// details builds the change payload for a committed snapshot. The filter
// is sanitized on a clone; the stored state keeps the raw values so a
// caller reading it back still sees exactly what it set.
func (g *Grid) details(st query.State) ChangeDetails {
	d := ChangeDetails{
		Page:  st.Page,
		Limit: st.Limit,
		Sort:  st.Sort,
		Order: st.Order,
	}
	f := st.Filter.Clone()
	Sanitize(f, g.flags)
	if len(f) > 0 {
		d.Filter = f
	}
	return d
}

// debounceFor decides whether this transition's delivery goes through the
// scheduler: only a SetFilter batch whose first changed key lands on a
// column with a positive debounce does. Detection runs against the raw
// filters, so a key the sanitizer strips from the payload still routes by
// the column that changed.
func (g *Grid) debounceFor(prev, next query.State) (string, time.Duration) {
	key, ok := FirstChangedKey(prev.Filter, next.Filter)
	if !ok {
		return "", 0
	}
	col, ok := g.columns.Lookup(key)
	if !ok || col.Debounce <= 0 {
		return "", 0
	}
	return key, col.Debounce
}

// State returns a snapshot of the current query state. The clone is the
// caller's to mutate.
func (g *Grid) State() query.State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.resolver.Resolve().Get().Clone()
}

// Columns returns the grid's column set.
func (g *Grid) Columns() *schema.Set {
	return g.columns
}

// Pending reports how many debounced deliveries are waiting to fire.
func (g *Grid) Pending() int {
	return g.sched.Len()
}

// SetTotal records the backend's total row count for pagination math.
// Panics on a negative count.
func (g *Grid) SetTotal(n int64) {
	if n < 0 {
		panic(fmt.Sprintf("grid: negative total %d", n))
	}
	g.total.Store(n)
}

// Total returns the last recorded total row count.
func (g *Grid) Total() int64 {
	return g.total.Load()
}

// HasNextPage reports whether rows exist past the current page, per the
// last recorded total.
func (g *Grid) HasNextPage() bool {
	st := g.State()
	return int64(st.Page)*int64(st.Limit) < g.total.Load()
}

// HasPrevPage reports whether the current page is past the first.
func (g *Grid) HasPrevPage() bool {
	return g.State().Page > 1
}

// Close cancels all pending debounced deliveries and rejects further
// dispatches. Idempotent.
func (g *Grid) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	g.sched.Stop()
	slog.Debug("grid: closed", "grid", g.id)
}

// SetPage moves to a page. Panics when page < 1.
func (g *Grid) SetPage(page int) {
	if page < 1 {
		panic(fmt.Sprintf("grid: page %d, must be >= 1", page))
	}
	g.Dispatch(query.SetPage{Page: page})
}

// SetLimit changes the page size and resets the page. Panics when
// limit < 1.
func (g *Grid) SetLimit(limit int) {
	if limit < 1 {
		panic(fmt.Sprintf("grid: limit %d, must be >= 1", limit))
	}
	g.Dispatch(query.SetLimit{Limit: limit})
}

// SetSort sets the sort column and resets the page. Panics on a column
// the schema does not declare sortable: sorting is schema-bound, unlike
// filter keys, which pass through for the backend to interpret.
func (g *Grid) SetSort(column string) {
	col, ok := g.columns.Lookup(column)
	if !ok {
		if s := g.columns.Suggest(column); s != "" {
			panic(fmt.Sprintf("grid: unknown sort column %q (did you mean %q?)", column, s))
		}
		panic(fmt.Sprintf("grid: unknown sort column %q", column))
	}
	if !col.Sortable {
		panic(fmt.Sprintf("grid: column %q is not sortable", column))
	}
	g.Dispatch(query.SetSort{Column: column})
}

// SetOrder sets the sort direction and resets the page. Panics on an
// order outside asc, desc, and none.
func (g *Grid) SetOrder(order query.Order) {
	switch order {
	case query.OrderNone, query.OrderAsc, query.OrderDesc:
	default:
		panic(fmt.Sprintf("grid: invalid order %q", order))
	}
	g.Dispatch(query.SetOrder{Order: order})
}

// ToggleOrder advances the sort direction through the none, asc, desc
// cycle and resets the page.
func (g *Grid) ToggleOrder() {
	g.Dispatch(query.ToggleOrder{})
}

// ClearSort removes the sort column and resets the page.
func (g *Grid) ClearSort() {
	g.Dispatch(query.ClearSort{})
}

// ClearOrder removes the sort direction and resets the page.
func (g *Grid) ClearOrder() {
	g.Dispatch(query.ClearOrder{})
}

// SetFilter sets one filter key. The page resets only when the grid was
// built WithResetOnFilterChange.
func (g *Grid) SetFilter(key string, v query.Value) {
	g.Dispatch(query.SetFilter{Key: key, Value: v})
}

// RemoveFilter deletes one filter key. The page resets only when the
// grid was built WithResetOnFilterChange.
func (g *Grid) RemoveFilter(key string) {
	g.Dispatch(query.RemoveFilter{Key: key})
}

// ReplaceFilter swaps the whole filter and resets the page.
func (g *Grid) ReplaceFilter(f query.Filter) {
	g.Dispatch(query.ReplaceFilter{Filter: f})
}

// ClearFilter empties the filter and resets the page.
func (g *Grid) ClearFilter() {
	g.Dispatch(query.ClearFilter{})
}

// ClearAll restores the initial state.
func (g *Grid) ClearAll() {
	g.Dispatch(query.ClearAll{})
}

// Select adds a row to the selection.
func (g *Grid) Select(id string) {
	g.Dispatch(query.Select{ID: id})
}

// Deselect removes a row from the selection.
func (g *Grid) Deselect(id string) {
	g.Dispatch(query.Deselect{ID: id})
}

// ToggleSelect flips a row's selection membership.
func (g *Grid) ToggleSelect(id string) {
	g.Dispatch(query.ToggleSelect{ID: id})
}

// SetSelected replaces the selection wholesale.
func (g *Grid) SetSelected(ids []string) {
	g.Dispatch(query.SetSelected{IDs: ids})
}

// ClearSelected empties the selection.
func (g *Grid) ClearSelected() {
	g.Dispatch(query.ClearSelected{})
}
