package cli

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowdata/gridstate/internal/dataset"
)

// The happy path starts a terminal program, so these tests only cover
// the checks runBrowse performs before handing off to the TUI.

func runBrowseForTest(t *testing.T, opts *BrowseOptions) error {
	t.Helper()
	cmd := &cobra.Command{}
	return runBrowse(opts, cmd)
}

func TestBrowseEmptyDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st, err := dataset.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	err = runBrowseForTest(t, &BrowseOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database is empty: run 'gridstate seed --db")
	assert.Contains(t, err.Error(), dbPath)
}

func TestBrowseBadColumnsDir(t *testing.T) {
	err := runBrowseForTest(t, &BrowseOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    filepath.Join(t.TempDir(), "unused.db"),
		ColumnsDir:  t.TempDir(),
		Grid:        "people",
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load columns")
}

func TestBrowseBadDatabasePath(t *testing.T) {
	err := runBrowseForTest(t, &BrowseOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    "/nonexistent/dir/gridstate.db",
	})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
