package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hollowdata/gridstate/internal/dataset"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Database string
	Rows     int

	// IDs allows overriding the row ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs dataset.IDGenerator
}

// SeedResult is the JSON payload for a seed run.
type SeedResult struct {
	Database string `json:"database"`
	Inserted int    `json:"inserted"`
	Total    int64  `json:"total"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create and seed the demo dataset",
		Long: `Create the SQLite demo dataset (if missing) and insert sample people
rows. Seeding is additive: rows get fresh UUIDv7 IDs each run.

Examples:
  gridstate seed --db ./gridstate.db
  gridstate seed --db ./gridstate.db --rows 200`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().IntVar(&opts.Rows, "rows", 0, "number of rows to insert (default from config)")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
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
	rows := opts.Rows
	if rows <= 0 {
		rows = opts.Config.Seed.Rows
	}

	gen := opts.IDs
	if gen == nil {
		gen = dataset.UUIDv7Generator{}
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
	inserted, err := st.Seed(ctx, rows, gen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to seed dataset", err)
	}

	total, err := st.CountAll(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count rows", err)
	}

	slog.Debug("dataset seeded", "db", dbPath, "inserted", inserted, "total", total)

	if formatter.Format == "json" {
		return formatter.Success(SeedResult{Database: dbPath, Inserted: inserted, Total: total})
	}

	fmt.Fprintf(formatter.Writer, "Seeded %d row(s) into %s (%d total)\n", inserted, dbPath, total)
	return nil
}
