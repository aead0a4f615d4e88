// ABOUTME: Provider-neutral request types shared by the OpenAI and Anthropic clients
// ABOUTME: Tools carry a JSON schema and a handler the client calls during generation
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/supervisor"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// ErrMalformedDecision is returned when the decision answer cannot be parsed
var ErrMalformedDecision = fmt.Errorf("%w: malformed structured output", supervisor.ErrProtocolViolation)

// ErrToolLoop is returned when a model keeps calling tools past the limit
var ErrToolLoop = errors.New("tool call limit reached")

// Tool is a function the model may call while generating
type Tool struct {
	Name        string
	Description string
	Parameters  jsonschema.Definition
	Call        func(ctx context.Context, args json.RawMessage) (string, error)
}

// GenerateRequest is one worker generation
type GenerateRequest struct {
	System  string
	History []models.Message
	Tools   []Tool
}

// ChatModel is what agents need from a provider
type ChatModel interface {
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Provider is a ChatModel that can also serve as the decision service
type Provider interface {
	ChatModel
	supervisor.DecisionService
}

type routerAnswer struct {
	Next string `json:"next"`
}

// routerSchema constrains the decision to the option set
func routerSchema(options []string) *jsonschema.Definition {
	return &jsonschema.Definition{
		Type:        jsonschema.Object,
		Description: "Worker to route to next. If no workers needed, route to FINISH.",
		Properties: map[string]jsonschema.Definition{
			"next": {Type: jsonschema.String, Enum: options},
		},
		Required:             []string{"next"},
		AdditionalProperties: false,
	}
}

// parseRouterAnswer extracts "next" from a JSON object, tolerating prose or
// code fences around it
func parseRouterAnswer(content string) (string, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in %q", ErrMalformedDecision, content)
	}
	var ans routerAnswer
	if err := json.Unmarshal([]byte(content[start:end+1]), &ans); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedDecision, err)
	}
	if ans.Next == "" {
		return "", fmt.Errorf("%w: missing next", ErrMalformedDecision)
	}
	return ans.Next, nil
}

// callTool runs a requested tool. Failures are reported back to the model as
// text so the worker can continue without the tool's result.
func callTool(ctx context.Context, tools []Tool, name string, args json.RawMessage) (out string, isErr bool) {
	log := logger.FromContext(ctx).With("tool", name)
	for _, t := range tools {
		if t.Name != name {
			continue
		}
		res, err := t.Call(ctx, args)
		if err != nil {
			log.Warn("tool call failed", "err", err)
			return fmt.Sprintf("tool %s failed: %v", name, err), true
		}
		log.Debug("tool call finished", "chars", len(res))
		return res, false
	}
	log.Warn("model requested unknown tool")
	return fmt.Sprintf("unknown tool %q", name), true
}

// transcript folds history into one text block, one entry per message
func transcript(history []models.Message) string {
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteString("\n\n")
		}
		author := m.Author
		if author == "" {
			author = models.AuthorUser
		}
		fmt.Fprintf(&b, "[%s]: %s", author, m.Content)
	}
	return b.String()
}
