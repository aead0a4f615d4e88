// ABOUTME: Agent adapts a chat model, a system prompt and tools into a worker
// ABOUTME: Each call sees the whole conversation and returns one reply
package agents

import (
	"context"
	"errors"

	"github.com/harper/ace-pipeline/internal/llm"
	"github.com/harper/ace-pipeline/internal/models"
)

// Agent is a supervisor worker backed by a chat model
type Agent struct {
	model  llm.ChatModel
	system string
	tools  []llm.Tool
}

// NewAgent builds an agent with a fixed system prompt and tool set
func NewAgent(model llm.ChatModel, system string, tools ...llm.Tool) (*Agent, error) {
	if model == nil {
		return nil, errors.New("agent requires a chat model")
	}
	return &Agent{model: model, system: system, tools: tools}, nil
}

// Tools returns the names of the agent's tools
func (a *Agent) Tools() []string {
	names := make([]string, len(a.tools))
	for i, t := range a.tools {
		names[i] = t.Name
	}
	return names
}

// Generate implements supervisor.Generator
func (a *Agent) Generate(ctx context.Context, history []models.Message) (string, error) {
	return a.model.Generate(ctx, llm.GenerateRequest{
		System:  a.system,
		History: history,
		Tools:   a.tools,
	})
}
