// ABOUTME: Tests for MCP tool handlers
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/harper/ace-pipeline/internal/supervisor"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runErr error
	stored map[string]*models.Run
	limit  int
}

func (f *fakeRuns) Run(_ context.Context, task string) (*service.Outcome, error) {
	run := &models.Run{
		RunID:    "run_1",
		Task:     task,
		Status:   models.RunStatusCompleted,
		Steps:    []string{"generator", "reflector", "curator"},
		Messages: []models.Message{models.NewUserMessage(task)},
	}
	if f.runErr != nil {
		run.Status = models.RunStatusFailed
		return &service.Outcome{Run: run}, f.runErr
	}
	return &service.Outcome{Run: run, Completed: true}, nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*models.Run, error) {
	if r, ok := f.stored[id]; ok {
		return r, nil
	}
	return nil, store.ErrRunNotFound
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]models.Run, error) {
	f.limit = limit
	return []models.Run{{RunID: "run_1"}}, nil
}

type fakeSearcher struct {
	limit int
	err   error
}

func (f *fakeSearcher) Search(_ context.Context, query string, limit int) ([]models.PlaybookHit, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []models.PlaybookHit{{ID: "b-1", Text: query, SimilarityScore: 0.8}}, nil
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestRegisterTools(t *testing.T) {
	server := mcpserver.NewMCPServer("test", "0.0.1")
	h := RegisterTools(server, &fakeRuns{}, nil)
	assert.NotNil(t, h)
}

func TestRunPipeline(t *testing.T) {
	h := &Handlers{runs: &fakeRuns{}}

	res, err := h.RunPipeline(context.Background(), callRequest(map[string]any{"message": "Compare sales"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var body map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	assert.Equal(t, "run_1", body["run_id"])
	assert.Equal(t, true, body["completed"])
}

func TestRunPipelineErrors(t *testing.T) {
	h := &Handlers{runs: &fakeRuns{runErr: supervisor.ErrOrderingViolation}}

	res, err := h.RunPipeline(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = h.RunPipeline(context.Background(), callRequest(map[string]any{"message": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "run_1")
}

func TestSearchPlaybook(t *testing.T) {
	s := &fakeSearcher{}
	h := &Handlers{runs: &fakeRuns{}, searcher: s}

	res, err := h.SearchPlaybook(context.Background(), callRequest(map[string]any{"query": "sales"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 5, s.limit)
	assert.Contains(t, resultText(t, res), "b-1")

	_, err = h.SearchPlaybook(context.Background(), callRequest(map[string]any{"query": "sales", "limit": 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, s.limit)
}

func TestSearchPlaybookFailures(t *testing.T) {
	h := &Handlers{runs: &fakeRuns{}}
	res, err := h.SearchPlaybook(context.Background(), callRequest(map[string]any{"query": "sales"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	h.searcher = &fakeSearcher{err: errors.New("offline")}
	res, err = h.SearchPlaybook(context.Background(), callRequest(map[string]any{"query": "sales"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "offline")
}

func TestGetRun(t *testing.T) {
	h := &Handlers{runs: &fakeRuns{stored: map[string]*models.Run{
		"run_9": {RunID: "run_9", Status: models.RunStatusCompleted},
	}}}

	res, err := h.GetRun(context.Background(), callRequest(map[string]any{"run_id": "run_9"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "run_9")

	res, err = h.GetRun(context.Background(), callRequest(map[string]any{"run_id": "nope"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{}
	h := &Handlers{runs: runs}

	res, err := h.ListRuns(context.Background(), callRequest(map[string]any{}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, store.DefaultListLimit, runs.limit)
}
