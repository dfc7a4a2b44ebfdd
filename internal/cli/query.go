package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hollowdata/gridstate/internal/dataset"
	"github.com/hollowdata/gridstate/internal/grid"
	"github.com/hollowdata/gridstate/internal/query"
	"github.com/hollowdata/gridstate/internal/schema"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Database string
	Filters  []string // key=value pairs
	Sort     string
	Order    string
	Page     int
	Limit    int
}

// QueryResult is the JSON payload for a one-shot query.
type QueryResult struct {
	Rows        []dataset.Person `json:"rows"`
	Total       int64            `json:"total"`
	Page        int              `json:"page"`
	Limit       int              `json:"limit"`
	HasNextPage bool             `json:"has_next_page"`
	HasPrevPage bool             `json:"has_prev_page"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a one-shot query against the dataset",
		Long: `Dispatch paging, sorting, and filter commands through a grid, compile
the resulting state to SQL, and print the page of rows.

Filters repeat per column (--filter name=ada --filter role=admin). Text
columns match as substrings, select columns match exactly.

Examples:
  gridstate query --db ./gridstate.db
  gridstate query --db ./gridstate.db --filter role=admin --sort name
  gridstate query --db ./gridstate.db --page 3 --limit 20 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringArrayVar(&opts.Filters, "filter", nil, "filter as key=value (repeatable)")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort column")
	cmd.Flags().StringVar(&opts.Order, "order", "", "sort order (asc|desc)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number (default from config)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "rows per page (default from config)")

	return cmd
}

func runQuery(opts *QueryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Database.Path
	}
	page := opts.Page
	if page <= 0 {
		page = opts.Config.Grid.Page
	}
	if page <= 0 {
		page = grid.DefaultPage
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = opts.Config.Grid.Limit
	}
	if limit <= 0 {
		limit = grid.DefaultLimit
	}

	columns := dataset.DefaultColumns()

	batch, err := buildQueryBatch(opts, columns)
	if err != nil {
		return err
	}

	st, err := dataset.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// The batch resets the page to the initial page, so --page survives
	// alongside sort and filter commands.
	g := grid.New(columns,
		grid.WithInitialPage(page),
		grid.WithInitialLimit(limit),
	)
	defer g.Close()

	if len(batch) > 0 {
		g.Dispatch(batch...)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rows, total, err := st.Search(ctx, columns, g.State())
	if err != nil {
		return WrapExitError(ExitCommandError, "query failed", err)
	}
	g.SetTotal(total)

	result := QueryResult{
		Rows:        rows,
		Total:       total,
		Page:        g.State().Page,
		Limit:       g.State().Limit,
		HasNextPage: g.HasNextPage(),
		HasPrevPage: g.HasPrevPage(),
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputQueryTable(formatter, result)
}

// buildQueryBatch converts flags to a command batch. Unknown column keys
// fail fast with a did-you-mean suggestion instead of compiling a query
// that silently matches nothing.
func buildQueryBatch(opts *QueryOptions, columns *schema.Set) ([]query.Command, error) {
	var batch []query.Command

	for _, pair := range opts.Filters {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid filter %q: expected key=value", pair))
		}
		if err := checkColumn(columns, key, "filter"); err != nil {
			return nil, err
		}
		batch = append(batch, query.SetFilter{Key: key, Value: query.Text(value)})
	}

	if opts.Sort != "" {
		if err := checkColumn(columns, opts.Sort, "sort"); err != nil {
			return nil, err
		}
		batch = append(batch, query.SetSort{Column: opts.Sort})
	}

	switch opts.Order {
	case "":
	case "asc":
		batch = append(batch, query.SetOrder{Order: query.OrderAsc})
	case "desc":
		batch = append(batch, query.SetOrder{Order: query.OrderDesc})
	default:
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid order %q: must be asc or desc", opts.Order))
	}

	return batch, nil
}

func checkColumn(columns *schema.Set, key, use string) error {
	if _, ok := columns.Lookup(key); ok {
		return nil
	}
	if s := columns.Suggest(key); s != "" {
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s column %q (did you mean %q?)", use, key, s))
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s column %q", use, key))
}

func outputQueryTable(formatter *OutputFormatter, result QueryResult) error {
	w := formatter.Writer

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tCITY\tROLE\tAGE")
	for _, p := range result.Rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n", p.ID, p.Name, p.Email, p.City, p.Role, p.Age)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(result.Rows) == 0 {
		fmt.Fprintln(w, "(no rows)")
	}

	totalPages := int((result.Total + int64(result.Limit) - 1) / int64(result.Limit))
	if totalPages < 1 {
		totalPages = 1
	}
	fmt.Fprintf(w, "\nPage %d of %d (%d row(s) total)\n", result.Page, totalPages, result.Total)
	if result.HasNextPage {
		fmt.Fprintf(w, "Next: --page %d\n", result.Page+1)
	}
	if result.HasPrevPage {
		fmt.Fprintf(w, "Prev: --page %d\n", result.Page-1)
	}
	return nil
}
