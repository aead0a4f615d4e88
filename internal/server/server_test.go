// ABOUTME: Tests for the HTTP API
// ABOUTME: Uses httptest against the gin engine with fake services
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/harper/ace-pipeline/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRuns struct {
	runErr  error
	run     *models.Run
	lastTry string
	limit   int
}

func (f *fakeRuns) Run(_ context.Context, task string) (*service.Outcome, error) {
	f.lastTry = task
	if task == "" {
		return nil, service.ErrEmptyTask
	}
	if f.runErr != nil {
		return &service.Outcome{Run: &models.Run{RunID: "run_failed", Status: models.RunStatusFailed}}, f.runErr
	}
	return &service.Outcome{Run: f.run, Completed: true}, nil
}

func (f *fakeRuns) Get(_ context.Context, id string) (*models.Run, error) {
	if f.run != nil && id == f.run.RunID {
		return f.run, nil
	}
	return nil, store.ErrRunNotFound
}

func (f *fakeRuns) List(_ context.Context, limit int) ([]models.Run, error) {
	f.limit = limit
	if f.run == nil {
		return nil, nil
	}
	return []models.Run{*f.run}, nil
}

type fakeSearcher struct {
	err error
}

func (f fakeSearcher) Search(_ context.Context, query string, limit int) ([]models.PlaybookHit, error) {
	if f.err != nil {
		return nil, f.err
	}
	hits := make([]models.PlaybookHit, 0, limit)
	for i := 0; i < limit && i < 2; i++ {
		hits = append(hits, models.PlaybookHit{ID: fmt.Sprintf("b-%d", i), Text: query})
	}
	return hits, nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func sampleRun() *models.Run {
	return &models.Run{
		RunID:  "run_123",
		Task:   "Compare sales",
		Status: models.RunStatusCompleted,
		Steps:  []string{"generator", "reflector", "curator"},
		Messages: []models.Message{
			models.NewUserMessage("Compare sales"),
			models.NewMessage("generator", "draft"),
		},
	}
}

func newTestServer(deps Deps) *Server {
	gin.SetMode(gin.TestMode)
	deps.Logger = logger.Discard()
	return New(deps)
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestCreateRun(t *testing.T) {
	runs := &fakeRuns{run: sampleRun()}
	s := newTestServer(Deps{Runs: runs})

	w := do(s, http.MethodPost, "/api/v1/runs", `{"message":"Compare sales"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Compare sales", runs.lastTry)

	var body struct {
		Run       models.Run `json:"run"`
		Completed bool       `json:"completed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run_123", body.Run.RunID)
	assert.True(t, body.Completed)
	assert.Len(t, body.Run.Messages, 2)
}

func TestCreateRunValidation(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{}})

	w := do(s, http.MethodPost, "/api/v1/runs", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/v1/runs", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateRunFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"protocol violation", fmt.Errorf("step 1: %w", supervisor.ErrProtocolViolation), http.StatusBadGateway},
		{"ordering violation", supervisor.ErrOrderingViolation, http.StatusBadGateway},
		{"worker failed", supervisor.ErrWorkerFailed, http.StatusBadGateway},
		{"max steps", supervisor.ErrMaxSteps, http.StatusInternalServerError},
		{"other", errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(Deps{Runs: &fakeRuns{runErr: tt.err}})
			w := do(s, http.MethodPost, "/api/v1/runs", `{"message":"x"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), "run_failed")
		})
	}
}

func TestGetRun(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{run: sampleRun()}})

	w := do(s, http.MethodGet, "/api/v1/runs/run_123", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"run_id":"run_123"`)

	w = do(s, http.MethodGet, "/api/v1/runs/run_missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRuns(t *testing.T) {
	runs := &fakeRuns{run: sampleRun()}
	s := newTestServer(Deps{Runs: runs})

	w := do(s, http.MethodGet, "/api/v1/runs?limit=3", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, runs.limit)
	assert.Contains(t, w.Body.String(), "run_123")

	w = do(s, http.MethodGet, "/api/v1/runs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.DefaultListLimit, runs.limit)

	w = do(s, http.MethodGet, "/api/v1/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchPlaybook(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{}, Searcher: fakeSearcher{}})

	w := do(s, http.MethodPost, "/api/v1/playbook/search", `{"query":"sales","limit":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Results []models.PlaybookHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Results, 1)

	w = do(s, http.MethodPost, "/api/v1/playbook/search", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchPlaybookUnavailable(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{}})
	w := do(s, http.MethodPost, "/api/v1/playbook/search", `{"query":"sales"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s = newTestServer(Deps{Runs: &fakeRuns{}, Searcher: fakeSearcher{err: errors.New("embedding quota")}})
	w = do(s, http.MethodPost, "/api/v1/playbook/search", `{"query":"sales"}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealth(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{}, Health: fakePinger{}, Version: "1.2.3"})
	w := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
	assert.Contains(t, w.Body.String(), `"version":"1.2.3"`)

	s = newTestServer(Deps{Runs: &fakeRuns{}, Health: fakePinger{err: errors.New("closed")}})
	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s := newTestServer(Deps{Runs: &fakeRuns{}})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
