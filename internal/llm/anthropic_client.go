// ABOUTME: Anthropic client for routing decisions and worker generation
// ABOUTME: History is folded into one user turn; tool use loops until end_turn
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/harper/ace-pipeline/internal/config"
	"github.com/harper/ace-pipeline/internal/models"
)

// AnthropicConfig holds configuration for the Anthropic client
type AnthropicConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	Temperature       float64
	MaxTokens         int64
	Timeout           time.Duration
	MaxRetries        int
	MaxToolIterations int
}

// AnthropicConfigFromSettings maps loaded settings onto an Anthropic configuration
func AnthropicConfigFromSettings(cfg *config.Config) *AnthropicConfig {
	return &AnthropicConfig{
		APIKey:            cfg.AnthropicKey,
		Model:             cfg.AnthropicModel,
		Temperature:       cfg.Temperature,
		MaxTokens:         int64(cfg.MaxTokens),
		Timeout:           cfg.Timeout,
		MaxRetries:        cfg.MaxRetries,
		MaxToolIterations: cfg.MaxToolIterations,
	}
}

// AnthropicClient talks to the Messages API. Retries are left to the SDK.
type AnthropicClient struct {
	client            anthropic.Client
	model             anthropic.Model
	temperature       float64
	maxTokens         int64
	timeout           time.Duration
	maxToolIterations int
}

// NewAnthropicClient creates a client from cfg
func NewAnthropicClient(cfg *AnthropicConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &AnthropicClient{
		client:            anthropic.NewClient(opts...),
		model:             anthropic.Model(cfg.Model),
		temperature:       cfg.Temperature,
		maxTokens:         cfg.MaxTokens,
		timeout:           cfg.Timeout,
		maxToolIterations: cfg.MaxToolIterations,
	}
	if c.maxTokens <= 0 {
		c.maxTokens = 4096
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.maxToolIterations <= 0 {
		c.maxToolIterations = 5
	}
	return c, nil
}

// Choose asks for a JSON object naming the next node and parses it
func (c *AnthropicClient) Choose(ctx context.Context, directive string, history []models.Message, options []string) (string, error) {
	system := directive + fmt.Sprintf(
		"\n\nRespond with only a JSON object of the form {\"next\": \"<choice>\"} where <choice> is one of: %s.",
		strings.Join(options, ", "),
	)

	resp, err := c.send(ctx, system, []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(transcript(history))),
	}, nil)
	if err != nil {
		return "", err
	}
	return parseRouterAnswer(textOf(resp))
}

// Generate runs one worker turn, answering tool_use blocks until the model
// ends its turn
func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(transcript(req.History))),
	}
	tools := toAnthropicTools(req.Tools)

	for i := 0; i < c.maxToolIterations; i++ {
		resp, err := c.send(ctx, req.System, messages, tools)
		if err != nil {
			return "", err
		}
		if resp.StopReason != anthropic.StopReasonToolUse {
			return textOf(resp), nil
		}

		var assistant []anthropic.ContentBlockParamUnion
		var results []anthropic.ContentBlockParamUnion
		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				assistant = append(assistant, anthropic.NewTextBlock(variant.Text))
			case anthropic.ToolUseBlock:
				assistant = append(assistant, anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				out, isErr := callTool(ctx, req.Tools, variant.Name, variant.Input)
				results = append(results, anthropic.NewToolResultBlock(variant.ID, out, isErr))
			}
		}
		messages = append(messages,
			anthropic.NewAssistantMessage(assistant...),
			anthropic.NewUserMessage(results...),
		)
	}
	return "", fmt.Errorf("%w: %d iterations", ErrToolLoop, c.maxToolIterations)
}

func (c *AnthropicClient) send(ctx context.Context, system string, messages []anthropic.MessageParam, tools []anthropic.ToolUnionParam) (*anthropic.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Messages:    messages,
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(tools) > 0 {
		params.Tools = tools
	}

	resp, err := c.client.Messages.New(callCtx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}
	return resp, nil
}

func textOf(resp *anthropic.Message) string {
	var parts []string
	for _, block := range resp.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			parts = append(parts, tb.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props := make(map[string]any, len(t.Parameters.Properties))
		for name, def := range t.Parameters.Properties {
			raw, err := json.Marshal(&def)
			if err != nil {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal(raw, &m); err != nil {
				continue
			}
			props[name] = m
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: props,
					Required:   t.Parameters.Required,
				},
			},
		})
	}
	return out
}
