package cli

import (
	"context"
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/hollowdata/gridstate/internal/dataset"
	"github.com/hollowdata/gridstate/internal/schema"
	"github.com/hollowdata/gridstate/internal/tui"
)

// BrowseOptions holds flags for the browse command.
type BrowseOptions struct {
	*RootOptions
	Database   string
	ColumnsDir string
	Grid       string
}

// NewBrowseCommand creates the browse command.
func NewBrowseCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BrowseOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the dataset interactively",
		Long: `Open an interactive grid over the dataset.

Keys: n/p page, s cycle sort column, o toggle order, / filter,
space select, c clear, q quit. Filter keystrokes on debounced columns
coalesce before the query reruns.

Examples:
  gridstate browse --db ./gridstate.db
  gridstate browse --db ./gridstate.db --columns ./grids --grid people`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.ColumnsDir, "columns", "", "CUE column definitions directory")
	cmd.Flags().StringVar(&opts.Grid, "grid", "people", "grid name inside the definitions")

	return cmd
}

func runBrowse(opts *BrowseOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if dbPath == "" {
		dbPath = opts.Config.Database.Path
	}

	columns := dataset.DefaultColumns()
	if opts.ColumnsDir != "" {
		loaded, err := schema.LoadGrid(opts.ColumnsDir, opts.Grid)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to load columns", err)
		}
		columns = loaded
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

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	count, err := st.CountAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count rows", err)
	}
	if count == 0 {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("database is empty: run 'gridstate seed --db %s' first", dbPath))
	}

	slog.Debug("starting browser", "db", dbPath, "rows", count, "columns", columns.Len())

	app := tui.New(st, columns)
	program := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return WrapExitError(ExitFailure, "browser error", err)
	}
	return nil
}
