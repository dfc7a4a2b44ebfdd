package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowdata/gridstate/internal/dataset"
	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/testutil"
)

// newTestApp builds an app over the default columns with no store. Tests
// here drive the key handlers directly and never run a search.
func newTestApp(t *testing.T, opts ...grid.Option) *App {
	t.Helper()
	a := New(nil, dataset.DefaultColumns(), opts...)
	t.Cleanup(a.grid.Close)
	return a
}

// drainDeliveries empties the delivery channels so buffered sends from
// synchronous dispatches never block a later one.
func drainDeliveries(a *App) {
	for {
		select {
		case <-a.changes:
		case <-a.selects:
		default:
			return
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNew_PartitionsColumns(t *testing.T) {
	a := newTestApp(t)

	assert.Equal(t, []string{"name", "email", "age"}, a.sortable)
	assert.Equal(t, []string{"name", "email", "city", "role"}, a.filterable)
}

func TestHandleKey_Paging(t *testing.T) {
	a := newTestApp(t)
	a.grid.SetTotal(45)

	a.handleKey(keyMsg("n"))
	drainDeliveries(a)
	assert.Equal(t, 2, a.grid.State().Page)

	a.handleKey(keyMsg("p"))
	drainDeliveries(a)
	assert.Equal(t, 1, a.grid.State().Page)
}

func TestHandleKey_PagingGuards(t *testing.T) {
	a := newTestApp(t)
	a.grid.SetTotal(5)

	a.handleKey(keyMsg("n"))
	assert.Equal(t, 1, a.grid.State().Page)
	assert.Equal(t, "already on the last page", a.status)

	a.handleKey(keyMsg("p"))
	assert.Equal(t, 1, a.grid.State().Page)
	assert.Equal(t, "already on the first page", a.status)
}

func TestCycleSort_WalksSortableThenClears(t *testing.T) {
	a := newTestApp(t)

	want := []string{"name", "email", "age"}
	for _, col := range want {
		a.handleKey(keyMsg("s"))
		drainDeliveries(a)
		assert.Equal(t, col, a.grid.State().Sort)
	}

	a.handleKey(keyMsg("s"))
	drainDeliveries(a)
	assert.Equal(t, "", a.grid.State().Sort)
}

func TestHandleKey_ToggleOrder(t *testing.T) {
	a := newTestApp(t)

	a.handleKey(keyMsg("o"))
	drainDeliveries(a)
	assert.Equal(t, query.OrderAsc, a.grid.State().Order)

	a.handleKey(keyMsg("o"))
	drainDeliveries(a)
	assert.Equal(t, query.OrderDesc, a.grid.State().Order)
}

func TestHandleKey_SpaceTogglesSelection(t *testing.T) {
	a := newTestApp(t)
	a.rows = []dataset.Person{{ID: "p1", Name: "Ada"}, {ID: "p2", Name: "Grace"}}
	a.cursor = 1

	a.handleKey(keyMsg(" "))
	drainDeliveries(a)
	assert.Equal(t, []string{"p2"}, a.grid.State().Selected)

	a.handleKey(keyMsg(" "))
	drainDeliveries(a)
	assert.Empty(t, a.grid.State().Selected)
}

func TestHandleKey_ClearRestoresInitialState(t *testing.T) {
	a := newTestApp(t)
	a.grid.SetTotal(100)
	a.handleKey(keyMsg("n"))
	a.handleKey(keyMsg("s"))
	drainDeliveries(a)

	a.handleKey(keyMsg("c"))
	drainDeliveries(a)

	st := a.grid.State()
	assert.Equal(t, 1, st.Page)
	assert.Equal(t, "", st.Sort)
	assert.Equal(t, "cleared", a.status)
}

func TestHandleKey_QuitClosesGrid(t *testing.T) {
	a := newTestApp(t)

	_, cmd := a.handleKey(keyMsg("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	assert.Panics(t, func() { a.grid.Dispatch(query.SetPage{Page: 2}) })
}

func TestFilterKeys_EditAndDispatch(t *testing.T) {
	a := newTestApp(t)

	a.handleKey(keyMsg("/"))
	require.True(t, a.filtering)
	assert.Equal(t, "name", a.filterable[a.filterIdx])

	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ada")})
	drainDeliveries(a)
	assert.Equal(t, "ada", a.input)
	assert.Equal(t, query.Text("ada"), a.grid.State().Filter["name"])

	for i := 0; i < 3; i++ {
		a.handleFilterKey(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	drainDeliveries(a)
	assert.Equal(t, "", a.input)
	assert.NotContains(t, a.grid.State().Filter, "name")

	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, a.filtering)
}

func TestFilterKeys_TabCyclesAndLoadsExistingValue(t *testing.T) {
	a := newTestApp(t)
	a.grid.SetFilter("email", query.Text("ada"))
	drainDeliveries(a)

	a.handleKey(keyMsg("/"))
	assert.Equal(t, "", a.input)

	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "email", a.filterable[a.filterIdx])
	assert.Equal(t, "ada", a.input)
}

func TestFilterKeys_DebouncedColumnCoalesces(t *testing.T) {
	timers := testutil.NewManualTimers()
	a := newTestApp(t, grid.WithTimers(func(d time.Duration, fn func()) grid.Timer {
		return timers.New(d, fn)
	}))

	a.handleKey(keyMsg("/"))
	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, "email", a.filterable[a.filterIdx])

	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("jo")})
	a.handleFilterKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})
	assert.Equal(t, 1, a.grid.Pending())

	timers.Advance(300 * time.Millisecond)
	assert.Equal(t, 0, a.grid.Pending())

	select {
	case d := <-a.changes:
		assert.Equal(t, query.Filter{"email": query.Text("jon")}, d.Filter)
	default:
		t.Fatal("expected a change delivery after the debounce fired")
	}
}

func TestUpdate_RowsMsgClampsCursorAndRecordsTotal(t *testing.T) {
	a := newTestApp(t)
	a.cursor = 5

	a.Update(rowsMsg{rows: []dataset.Person{{ID: "p1"}, {ID: "p2"}}, total: 2})

	assert.Equal(t, 1, a.cursor)
	assert.Equal(t, int64(2), a.total)
	assert.Equal(t, int64(2), a.grid.Total())
	assert.False(t, a.loading)
}

func TestUpdate_StaleRowsMsgDropped(t *testing.T) {
	a := newTestApp(t)
	a.searchSeq = 2
	a.rows = []dataset.Person{{ID: "keep"}}

	a.Update(rowsMsg{seq: 1, rows: []dataset.Person{{ID: "stale"}}, total: 1})

	require.Len(t, a.rows, 1)
	assert.Equal(t, "keep", a.rows[0].ID)
}

func TestUpdate_SelectMsgRebuildsSelectedSet(t *testing.T) {
	a := newTestApp(t)

	a.Update(selectMsg{"p1", "p3"})
	assert.Equal(t, map[string]bool{"p1": true, "p3": true}, a.selected)

	a.Update(selectMsg{})
	assert.Empty(t, a.selected)
}

func TestView_RendersTableAndFooter(t *testing.T) {
	a := newTestApp(t)
	a.loading = false
	a.rows = []dataset.Person{
		{ID: "p1", Name: "Ada Lovelace", Email: "ada@example.com", City: "London", Role: "admin", Age: 36},
	}
	a.total = 1
	a.selected = map[string]bool{"p1": true}

	out := a.View()
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "Page 1 of 1 (1 row(s))")
	assert.Contains(t, out, "selected: 1")
	assert.Contains(t, out, "[space] select")
}

func TestView_EmptyStates(t *testing.T) {
	a := newTestApp(t)

	a.loading = true
	assert.Contains(t, a.View(), "loading...")

	a.loading = false
	assert.Contains(t, a.View(), "(no rows match)")
}

func TestHeaderLabel_SortIndicator(t *testing.T) {
	col, ok := dataset.DefaultColumns().Lookup("name")
	require.True(t, ok)

	assert.Equal(t, "Name", headerLabel(col, query.State{Sort: "email"}))
	assert.Equal(t, "Name ↑", headerLabel(col, query.State{Sort: "name", Order: query.OrderAsc}))
	assert.Equal(t, "Name ↓", headerLabel(col, query.State{Sort: "name", Order: query.OrderDesc}))
	assert.Equal(t, "Name •", headerLabel(col, query.State{Sort: "name"}))
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", clip("short", 10))
	assert.Equal(t, "exactly-te", clip("exactly-te", 10))
	assert.Equal(t, "truncated…", clip("truncated-long", 10))
}
