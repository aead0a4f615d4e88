// ABOUTME: HTTP API for submitting runs, reading transcripts and searching the playbook
// ABOUTME: Built on gin with structured request logging and graceful shutdown
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/service"
)

// RunService executes and looks up runs
type RunService interface {
	Run(ctx context.Context, task string) (*service.Outcome, error)
	Get(ctx context.Context, runID string) (*models.Run, error)
	List(ctx context.Context, limit int) ([]models.Run, error)
}

// Searcher queries the playbook index
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]models.PlaybookHit, error)
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP API. Searcher and Health may be nil.
type Deps struct {
	Runs     RunService
	Searcher Searcher
	Health   Pinger
	Logger   *charmlog.Logger
	Version  string
}

// Server is the HTTP front end
type Server struct {
	deps   Deps
	router *gin.Engine
}

// New builds the server and its routes
func New(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = charmlog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(deps.Logger))

	s := &Server{deps: deps, router: router}
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.health)

	api := s.router.Group("/api/v1")
	api.POST("/runs", s.createRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.POST("/playbook/search", s.searchPlaybook)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.deps.Logger.Info("starting HTTP server", "address", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.deps.Logger.Debug("received shutdown signal, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	<-errCh

	s.deps.Logger.Info("server shutdown completed")
	return nil
}

// LoggerMiddleware logs each request through the structured logger
func LoggerMiddleware(log *charmlog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		log.Info("request completed",
			"method", c.Request.Method,
			"path", path,
			"status_code", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"body_size", c.Writer.Size(),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}
