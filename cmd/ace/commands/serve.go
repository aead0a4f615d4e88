// ABOUTME: Serve command starts the HTTP API
// ABOUTME: Shuts down gracefully on SIGINT or SIGTERM
package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/ace-pipeline/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

// NewServeCmd creates the serve command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API.

Endpoints:
  POST /api/v1/runs             run the pipeline on {"message": "..."}
  GET  /api/v1/runs             list recent runs
  GET  /api/v1/runs/:id         fetch a run with its transcript
  POST /api/v1/playbook/search  search the playbook
  GET  /health                  database health`,
		RunE: runServe,
	}
	cmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from HTTP_ADDR)")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.openRunner(); err != nil {
		return err
	}

	deps := server.Deps{
		Runs:    a.runner,
		Health:  a.store,
		Logger:  a.log,
		Version: versionInfo.Version,
	}
	if a.index != nil {
		deps.Searcher = a.index
	}

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(deps).Run(a.context(ctx), addr)
}
