// ABOUTME: MCP tool definitions and registration for the ACE pipeline server
// ABOUTME: Exposes runs and playbook search to MCP clients over stdio
package mcp

import (
	"context"

	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/service"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
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

// RegisterTools registers all MCP tools with the server. searcher may be nil,
// in which case search_playbook reports that the index is unavailable.
func RegisterTools(server *mcpserver.MCPServer, runs RunService, searcher Searcher) *Handlers {
	handlers := &Handlers{runs: runs, searcher: searcher}

	server.AddTool(mcp.Tool{
		Name:        "run_pipeline",
		Description: "Run the generator, reflector and curator pipeline on a task and return the full transcript.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Task for the pipeline",
				},
			},
			Required: []string{"message"},
		},
	}, handlers.RunPipeline)

	server.AddTool(mcp.Tool{
		Name:        "search_playbook",
		Description: "Search the playbook for bullets relevant to a query, ranked by similarity.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results to return (default: 5)",
					"default":     5,
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchPlaybook)

	server.AddTool(mcp.Tool{
		Name:        "get_run",
		Description: "Get a stored run with its transcript.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run ID returned by run_pipeline",
				},
			},
			Required: []string{"run_id"},
		},
	}, handlers.GetRun)

	server.AddTool(mcp.Tool{
		Name:        "list_runs",
		Description: "List recent runs without transcripts.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"limit": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of runs (default: 20)",
					"default":     20,
				},
			},
		},
	}, handlers.ListRuns)

	return handlers
}
