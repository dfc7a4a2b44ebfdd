package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollowdata/gridstate/internal/dataset"
)

func runSeedForTest(t *testing.T, opts *SeedOptions) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	return buf, runSeed(opts, cmd)
}

func TestSeedInsertsRows(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	opts := &SeedOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Rows:        12,
		IDs:         dataset.NewSequenceGenerator("row"),
	}

	buf, err := runSeedForTest(t, opts)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), fmt.Sprintf("Seeded 12 row(s) into %s (12 total)", dbPath))
}

func TestSeedIsAdditive(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")

	first := &SeedOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Rows:        10,
		IDs:         dataset.NewSequenceGenerator("a"),
	}
	buf, err := runSeedForTest(t, first)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "(10 total)")

	// A different prefix keeps the second batch's IDs from colliding
	// with the first.
	second := &SeedOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    dbPath,
		Rows:        5,
		IDs:         dataset.NewSequenceGenerator("b"),
	}
	buf, err = runSeedForTest(t, second)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Seeded 5 row(s)")
	assert.Contains(t, buf.String(), "(15 total)")
}

func TestSeedCommandExecute(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")

	buf := &bytes.Buffer{}
	rootOpts := &RootOptions{Format: "text"}
	cmd := NewSeedCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"--db", dbPath, "--rows", "5"})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Seeded 5 row(s)")
}

func TestSeedJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "seed.db")
	opts := &SeedOptions{
		RootOptions: &RootOptions{Format: "json"},
		Database:    dbPath,
		Rows:        7,
		IDs:         dataset.NewSequenceGenerator("p"),
	}

	buf, err := runSeedForTest(t, opts)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, dbPath, resp.Data.Database)
	assert.Equal(t, 7, resp.Data.Inserted)
	assert.Equal(t, int64(7), resp.Data.Total)
}

func TestSeedBadDatabasePath(t *testing.T) {
	opts := &SeedOptions{
		RootOptions: &RootOptions{Format: "text"},
		Database:    "/nonexistent/dir/gridstate.db",
		Rows:        3,
	}

	_, err := runSeedForTest(t, opts)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
