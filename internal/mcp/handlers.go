// ABOUTME: MCP tool handler implementations
// ABOUTME: Failures are returned as tool errors rather than protocol errors
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harper/ace-pipeline/internal/playbook"
	"github.com/harper/ace-pipeline/internal/store"
	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	runs     RunService
	searcher Searcher
}

// RunPipeline handles the run_pipeline tool
func (h *Handlers) RunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}

	out, err := h.runs.Run(ctx, message)
	if err != nil {
		if out != nil && out.Run != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run %s failed: %v", out.Run.RunID, err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("run failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"run_id":    out.Run.RunID,
		"status":    out.Run.Status,
		"completed": out.Completed,
		"steps":     out.Run.Steps,
		"messages":  out.Run.Messages,
	})
}

// SearchPlaybook handles the search_playbook tool
func (h *Handlers) SearchPlaybook(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.searcher == nil {
		return mcp.NewToolResultError("playbook index not configured"), nil
	}

	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}
	limit := request.GetInt("limit", playbook.DefaultSearchLimit)

	hits, err := h.searcher.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("playbook search failed: %v", err)), nil
	}

	return jsonResult(map[string]interface{}{
		"query":   query,
		"results": hits,
	})
}

// GetRun handles the get_run tool
func (h *Handlers) GetRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError("run_id argument is required and must be a string"), nil
	}

	run, err := h.runs.Get(ctx, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("run %s not found", runID)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get run: %v", err)), nil
	}
	return jsonResult(run)
}

// ListRuns handles the list_runs tool
func (h *Handlers) ListRuns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	runs, err := h.runs.List(ctx, request.GetInt("limit", store.DefaultListLimit))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list runs: %v", err)), nil
	}
	return jsonResult(map[string]interface{}{"runs": runs})
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
