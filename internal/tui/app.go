package tui

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hollowdata/gridstate/internal/dataset"
	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
)

// App is the interactive dataset browser. It owns a Grid and treats it as
// the single source of query state: every key dispatches a command, and
// the table requeries only when the grid's change callback delivers. The
// app never duplicates paging, sort, or filter state of its own.
type App struct {
	ctx     context.Context
	store   *dataset.Store
	columns *schema.Set
	grid    *grid.Grid

	// Deliveries cross from the grid's callbacks (dispatch goroutine or a
	// debounce timer goroutine) into the update loop through these
	// channels, consumed by the waitForChange and waitForSelect commands.
	changes chan grid.ChangeDetails
	selects chan []string

	rows     []dataset.Person
	total    int64
	selected map[string]bool

	cursor     int
	sortable   []string
	filterable []string

	filtering bool
	filterIdx int
	input     string

	status    string
	loading   bool
	searchSeq int
}

// New builds the browser over an open store and a column set. Extra grid
// options are applied before the app's own wiring; a test seam for
// installing manual timers.
func New(st *dataset.Store, columns *schema.Set, opts ...grid.Option) *App {
	a := &App{
		ctx:      context.Background(),
		store:    st,
		columns:  columns,
		changes:  make(chan grid.ChangeDetails, 8),
		selects:  make(chan []string, 8),
		selected: map[string]bool{},
		loading:  true,
	}
	for _, c := range columns.Columns() {
		if c.Sortable {
			a.sortable = append(a.sortable, c.Key)
		}
		if c.Filter != schema.FilterNone {
			a.filterable = append(a.filterable, c.Key)
		}
	}

	gridOpts := append(slices.Clone(opts),
		grid.WithResetOnFilterChange(),
		grid.WithOnChange(func(d grid.ChangeDetails) { a.changes <- d }),
		grid.WithOnSelect(func(ids []string) { a.selects <- ids }),
	)
	a.grid = grid.New(columns, gridOpts...)
	return a
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.search(), a.waitForChange(), a.waitForSelect())
}

// waitForChange surfaces the next change delivery as a message. Rearmed
// after every receive so each delivery is consumed exactly once.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		return changeMsg(<-a.changes)
	}
}

func (a *App) waitForSelect() tea.Cmd {
	return func() tea.Msg {
		return selectMsg(<-a.selects)
	}
}

// search queries the store with the grid's current snapshot. The sequence
// number lets Update drop a response that an even newer query has already
// superseded.
func (a *App) search() tea.Cmd {
	a.searchSeq++
	seq := a.searchSeq
	return func() tea.Msg {
		rows, total, err := a.store.Search(a.ctx, a.columns, a.grid.State())
		if err != nil {
			return errMsg{err}
		}
		return rowsMsg{seq: seq, rows: rows, total: total}
	}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.filtering {
			return a.handleFilterKey(m)
		}
		return a.handleKey(m)
	case changeMsg:
		a.loading = true
		a.status = ""
		return a, tea.Batch(a.search(), a.waitForChange())
	case selectMsg:
		a.selected = make(map[string]bool, len(m))
		for _, id := range m {
			a.selected[id] = true
		}
		return a, a.waitForSelect()
	case rowsMsg:
		if m.seq != a.searchSeq {
			return a, nil
		}
		a.rows = m.rows
		a.total = m.total
		a.grid.SetTotal(m.total)
		a.loading = false
		if a.cursor >= len(a.rows) {
			a.cursor = len(a.rows) - 1
		}
		if a.cursor < 0 {
			a.cursor = 0
		}
	case errMsg:
		a.status = "error: " + m.Error()
		a.loading = false
	}
	return a, nil
}

func (a *App) handleKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		a.grid.Close()
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.rows)-1 {
			a.cursor++
		}
	case "n":
		if a.grid.HasNextPage() {
			a.grid.SetPage(a.grid.State().Page + 1)
		} else {
			a.status = "already on the last page"
		}
	case "p":
		if a.grid.HasPrevPage() {
			a.grid.SetPage(a.grid.State().Page - 1)
		} else {
			a.status = "already on the first page"
		}
	case "s":
		a.cycleSort()
	case "o":
		a.grid.ToggleOrder()
	case "/":
		if len(a.filterable) == 0 {
			a.status = "no filterable columns"
			break
		}
		a.filtering = true
		a.loadFilterInput()
	case " ":
		if len(a.rows) > 0 {
			a.grid.ToggleSelect(a.rows[a.cursor].ID)
		}
	case "c":
		a.grid.ClearAll()
		a.status = "cleared"
	}
	return a, nil
}

// handleFilterKey edits the filter prompt. Every edit dispatches
// immediately, so a debounced column coalesces keystrokes exactly the way
// a backend consumer would see them.
func (a *App) handleFilterKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.Type {
	case tea.KeyEsc, tea.KeyEnter:
		a.filtering = false
	case tea.KeyTab:
		a.filterIdx = (a.filterIdx + 1) % len(a.filterable)
		a.loadFilterInput()
	case tea.KeyBackspace, tea.KeyCtrlH:
		if a.input != "" {
			r := []rune(a.input)
			a.input = string(r[:len(r)-1])
			a.pushFilter()
		}
	case tea.KeySpace:
		a.input += " "
		a.pushFilter()
	case tea.KeyRunes:
		a.input += string(m.Runes)
		a.pushFilter()
	case tea.KeyCtrlC:
		a.grid.Close()
		return a, tea.Quit
	}
	return a, nil
}

// cycleSort advances the sort through the sortable columns and back to
// unsorted.
func (a *App) cycleSort() {
	if len(a.sortable) == 0 {
		a.status = "no sortable columns"
		return
	}
	current := a.grid.State().Sort
	next := 0
	for i, key := range a.sortable {
		if key == current {
			next = i + 1
			break
		}
	}
	if next >= len(a.sortable) {
		a.grid.ClearSort()
		return
	}
	a.grid.SetSort(a.sortable[next])
}

// loadFilterInput seeds the prompt with the active filter value for the
// current column, so reopening edits in place instead of starting over.
func (a *App) loadFilterInput() {
	key := a.filterable[a.filterIdx]
	a.input = ""
	if v, ok := a.grid.State().Filter[key]; ok {
		if t, ok := v.(query.Text); ok {
			a.input = string(t)
		}
	}
}

// pushFilter dispatches the prompt contents for the active column. Empty
// input removes the key so the prompt and the query state never disagree.
func (a *App) pushFilter() {
	key := a.filterable[a.filterIdx]
	if a.input == "" {
		a.grid.RemoveFilter(key)
		return
	}
	a.grid.SetFilter(key, query.Text(a.input))
}

// messages
type rowsMsg struct {
	seq   int
	rows  []dataset.Person
	total int64
}

type changeMsg grid.ChangeDetails

type selectMsg []string

type errMsg struct{ error }

// styles
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	headerStyle   = lipgloss.NewStyle().Bold(true)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

func (a *App) View() string {
	st := a.grid.State()
	var b strings.Builder
	b.WriteString(titleStyle.Render("gridstate"))
	b.WriteString("\n\n")
	b.WriteString(a.renderTable(st))
	b.WriteString("\n")
	b.WriteString(a.renderFooter(st))
	return b.String()
}

func (a *App) renderTable(st query.State) string {
	cols := a.columns.Columns()
	var b strings.Builder

	header := "   "
	for _, c := range cols {
		header += fmt.Sprintf("%-*s  ", widthFor(c.Key), headerLabel(c, st))
	}
	b.WriteString(headerStyle.Render(strings.TrimRight(header, " ")))
	b.WriteString("\n")

	if len(a.rows) == 0 {
		if a.loading {
			b.WriteString(faintStyle.Render("loading..."))
		} else {
			b.WriteString(faintStyle.Render("(no rows match)"))
		}
		b.WriteString("\n")
		return b.String()
	}

	for i, p := range a.rows {
		marker := " "
		if i == a.cursor {
			marker = "▶"
		}
		check := " "
		if a.selected[p.ID] {
			check = "✓"
		}
		line := marker + check + " "
		for _, c := range cols {
			w := widthFor(c.Key)
			line += fmt.Sprintf("%-*s  ", w, clip(cell(p, c.Key), w))
		}
		line = strings.TrimRight(line, " ")
		switch {
		case i == a.cursor:
			line = cursorStyle.Render(line)
		case a.selected[p.ID]:
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (a *App) renderFooter(st query.State) string {
	var b strings.Builder

	pages := int64(1)
	if a.total > 0 {
		pages = (a.total + int64(st.Limit) - 1) / int64(st.Limit)
	}
	b.WriteString(fmt.Sprintf("Page %d of %d (%d row(s))", st.Page, pages, a.total))
	if st.Sort != "" {
		b.WriteString("  sort: " + st.Sort)
		if st.Order != query.OrderNone {
			b.WriteString(" " + string(st.Order))
		}
	}
	if len(st.Filter) > 0 {
		if data, err := query.MarshalCanonical(st.Filter); err == nil {
			b.WriteString("  filter: " + string(data))
		}
	}
	if n := len(a.selected); n > 0 {
		b.WriteString(fmt.Sprintf("  selected: %d", n))
	}
	b.WriteString("\n")

	if a.filtering {
		b.WriteString(a.renderFilterPrompt())
		b.WriteString("\n")
	}

	b.WriteString(faintStyle.Render("[n/p] page  [s] sort  [o] order  [/] filter  [space] select  [c] clear  [q] quit"))
	if a.status != "" {
		b.WriteString("\n" + a.status)
	}
	return b.String()
}

// renderFilterPrompt shows the live input for the active filter column,
// with the column's debounce and the pending delivery count so coalescing
// is visible while typing.
func (a *App) renderFilterPrompt() string {
	key := a.filterable[a.filterIdx]
	col, _ := a.columns.Lookup(key)

	hint := "[tab] column  [enter] done  [esc] close"
	if col.Debounce > 0 {
		hint = fmt.Sprintf("debounce %s (%d pending)  %s", col.Debounce, a.grid.Pending(), hint)
	}
	if len(col.Options) > 0 {
		hint = "options: " + strings.Join(col.Options, ", ") + "  " + hint
	}
	return fmt.Sprintf("/%s: %s█  %s", key, a.input, faintStyle.Render(hint))
}

func headerLabel(c schema.Column, st query.State) string {
	title := c.Title
	if title == "" {
		title = c.Key
	}
	if st.Sort != c.Key {
		return title
	}
	switch st.Order {
	case query.OrderAsc:
		return title + " ↑"
	case query.OrderDesc:
		return title + " ↓"
	default:
		return title + " •"
	}
}

// cell renders one Person field by column key. Unknown keys render empty:
// a CUE set may declare columns the sample table does not carry.
func cell(p dataset.Person, key string) string {
	switch key {
	case "id":
		return p.ID
	case "name":
		return p.Name
	case "email":
		return p.Email
	case "city":
		return p.City
	case "role":
		return p.Role
	case "age":
		return strconv.Itoa(p.Age)
	default:
		return ""
	}
}

func widthFor(key string) int {
	switch key {
	case "name":
		return 20
	case "email":
		return 30
	case "city":
		return 12
	case "role":
		return 8
	case "age":
		return 4
	default:
		return 16
	}
}

func clip(s string, w int) string {
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w <= 1 {
		return string(r[:w])
	}
	return string(r[:w-1]) + "…"
}
