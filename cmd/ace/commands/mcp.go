// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM agents run the pipeline and search the playbook via stdio
package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/harper/ace-pipeline/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs ace as an MCP (Model Context Protocol) server over stdio with the
tools run_pipeline, search_playbook, get_run and list_runs.`,
		RunE: runMCP,
		Example: `  # Configure in claude_desktop_config.json:
  # {
  #   "mcpServers": {
  #     "ace": {
  #       "command": "ace",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.openRunner(); err != nil {
		return err
	}

	server := mcpserver.NewMCPServer("ACE Pipeline", versionInfo.Version)
	var searcher mcp.Searcher
	if a.index != nil {
		searcher = a.index
	}
	mcp.RegisterTools(server, a.runner, searcher)

	ctx, stop := signal.NotifyContext(background(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("MCP server starting on stdio")

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- mcpserver.ServeStdio(server)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}
	return nil
}
