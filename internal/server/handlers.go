// ABOUTME: HTTP handlers for runs, playbook search and health
// ABOUTME: Maps pipeline errors to status codes
package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/playbook"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/harper/ace-pipeline/internal/supervisor"
)

type runRequest struct {
	Message string `json:"message" binding:"required"`
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

type errorBody struct {
	Error string `json:"error"`
	RunID string `json:"run_id,omitempty"`
}

func (s *Server) createRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "message is required"})
		return
	}

	ctx := logger.ContextWithLogger(c.Request.Context(), s.deps.Logger)
	out, err := s.deps.Runs.Run(ctx, req.Message)
	if err != nil {
		_ = c.Error(err)
		body := errorBody{Error: err.Error()}
		if out != nil && out.Run != nil {
			body.RunID = out.Run.RunID
		}
		c.JSON(runErrorStatus(err), body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run":       out.Run,
		"completed": out.Completed,
		"rerouted":  out.Rerouted,
	})
}

// runErrorStatus maps run failures onto HTTP status codes. Decision service
// misbehaviour is an upstream failure.
func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyTask):
		return http.StatusBadRequest
	case errors.Is(err, supervisor.ErrProtocolViolation),
		errors.Is(err, supervisor.ErrOrderingViolation),
		errors.Is(err, supervisor.ErrWorkerFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) listRuns(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultListLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, errorBody{Error: "limit must be a positive integer"})
		return
	}

	runs, err := s.deps.Runs.List(c.Request.Context(), limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	run, err := s.deps.Runs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, errorBody{Error: "run not found", RunID: c.Param("id")})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) searchPlaybook(c *gin.Context) {
	if s.deps.Searcher == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody{Error: "playbook index not configured"})
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: "query is required"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = playbook.DefaultSearchLimit
	}

	hits, err := s.deps.Searcher.Search(c.Request.Context(), req.Query, req.Limit)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, errorBody{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": hits})
}

func (s *Server) health(c *gin.Context) {
	status := gin.H{"status": "ok", "version": s.deps.Version}
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(c.Request.Context()); err != nil {
			status["status"] = "unavailable"
			status["database"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "ok"
	}
	c.JSON(http.StatusOK, status)
}
