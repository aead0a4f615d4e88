// ABOUTME: Tests for the runs list and show commands
// ABOUTME: Seeds a temporary database and checks text and JSON output
package commands

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedRun stores one completed run in a fresh database pointed to by DATABASE_PATH
func seedRun(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.db")
	t.Setenv("DATABASE_PATH", path)
	t.Setenv("LOG_DIR", "")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ctx := context.Background()
	seed := []models.Message{models.NewUserMessage("Compare sales")}
	run, err := st.CreateRun(ctx, "Compare sales", seed)
	require.NoError(t, err)
	require.NoError(t, st.CompleteRun(ctx, run.RunID, []string{"generator", "reflector", "curator"}, append(seed,
		models.NewMessage("generator", "Sales increased."),
		models.NewMessage("reflector", "Looks right."),
		models.NewMessage("curator", `{"operations":[]}`),
	)))
	return run.RunID
}

func TestRunsList(t *testing.T) {
	id := seedRun(t)

	out, err := execute(t, "runs", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "generator,reflector,curator")
}

func TestRunsList_JSON(t *testing.T) {
	id := seedRun(t)

	out, err := execute(t, "--format", "json", "runs", "list", "--limit", "5")
	require.NoError(t, err)

	var runs []models.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].RunID)
	assert.Equal(t, models.RunStatusCompleted, runs[0].Status)
}

func TestRunsShow(t *testing.T) {
	id := seedRun(t)

	out, err := execute(t, "runs", "show", id)
	require.NoError(t, err)
	assert.Contains(t, out, "== generator ==")
	assert.Contains(t, out, "Sales increased.")
	assert.Contains(t, out, "== curator ==")

	_, err = execute(t, "runs", "show", "run_missing")
	assert.ErrorContains(t, err, "not found")
}
