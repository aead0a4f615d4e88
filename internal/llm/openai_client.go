// ABOUTME: OpenAI client for routing decisions, worker generation and embeddings
// ABOUTME: Decisions use strict JSON-schema output; generation runs a bounded tool loop
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harper/ace-pipeline/internal/config"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/util"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is the default model for chat completions
	DefaultChatModel = "gpt-4o-mini"
	// DefaultEmbeddingModel is the default model for embeddings
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

// ClientConfig holds configuration for the OpenAI client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ChatModel         string
	EmbeddingModel    openai.EmbeddingModel
	Temperature       float32
	MaxTokens         int
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	MaxToolIterations int
}

// DefaultConfig returns the default client configuration
func DefaultConfig(apiKey string) *ClientConfig {
	return &ClientConfig{
		APIKey:            apiKey,
		ChatModel:         DefaultChatModel,
		EmbeddingModel:    DefaultEmbeddingModel,
		Timeout:           60 * time.Second,
		MaxRetries:        3,
		RetryDelay:        2 * time.Second,
		MaxToolIterations: 5,
	}
}

// ConfigFromSettings maps loaded settings onto the default client
// configuration. Unset models and durations keep their defaults.
func ConfigFromSettings(cfg *config.Config) *ClientConfig {
	c := DefaultConfig(cfg.OpenAIKey)
	if cfg.ChatModel != "" {
		c.ChatModel = cfg.ChatModel
	}
	if cfg.EmbeddingModel != "" {
		c.EmbeddingModel = openai.EmbeddingModel(cfg.EmbeddingModel)
	}
	if cfg.Timeout > 0 {
		c.Timeout = cfg.Timeout
	}
	if cfg.RetryDelay > 0 {
		c.RetryDelay = cfg.RetryDelay
	}
	if cfg.MaxToolIterations > 0 {
		c.MaxToolIterations = cfg.MaxToolIterations
	}
	c.Temperature = float32(cfg.Temperature)
	c.MaxTokens = cfg.MaxTokens
	c.MaxRetries = cfg.MaxRetries
	return c
}

// OpenAIClient wraps the OpenAI API client with retry logic
type OpenAIClient struct {
	client            *openai.Client
	chatModel         string
	embeddingModel    openai.EmbeddingModel
	temperature       float32
	maxTokens         int
	timeout           time.Duration
	maxRetries        int
	retryDelay        time.Duration
	maxToolIterations int
}

// NewOpenAIClientWithConfig creates a new OpenAI client with custom configuration
func NewOpenAIClientWithConfig(cfg *ClientConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	c := &OpenAIClient{
		client:            openai.NewClientWithConfig(oc),
		chatModel:         cfg.ChatModel,
		embeddingModel:    cfg.EmbeddingModel,
		temperature:       cfg.Temperature,
		maxTokens:         cfg.MaxTokens,
		timeout:           cfg.Timeout,
		maxRetries:        cfg.MaxRetries,
		retryDelay:        cfg.RetryDelay,
		maxToolIterations: cfg.MaxToolIterations,
	}
	if c.chatModel == "" {
		c.chatModel = DefaultChatModel
	}
	if c.embeddingModel == "" {
		c.embeddingModel = DefaultEmbeddingModel
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if c.maxToolIterations <= 0 {
		c.maxToolIterations = 5
	}
	return c, nil
}

// Choose asks the model for the next node. The response format is a strict
// JSON schema whose "next" property is an enum of options.
func (c *OpenAIClient) Choose(ctx context.Context, directive string, history []models.Message, options []string) (string, error) {
	resp, err := c.chat(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    toOpenAIMessages(directive, history),
		Temperature: c.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "router",
				Schema: routerSchema(options),
				Strict: true,
			},
		},
	})
	if err != nil {
		return "", err
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return "", fmt.Errorf("%w: refusal: %s", ErrMalformedDecision, msg.Refusal)
	}
	return parseRouterAnswer(msg.Content)
}

// Generate runs one worker turn: system prompt plus full history, resolving
// tool calls until the model answers in text
func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	msgs := toOpenAIMessages(req.System, req.History)
	tools := toOpenAITools(req.Tools)

	for i := 0; i < c.maxToolIterations; i++ {
		chatReq := openai.ChatCompletionRequest{
			Model:       c.chatModel,
			Messages:    msgs,
			Temperature: c.temperature,
			Tools:       tools,
		}
		if c.maxTokens > 0 {
			chatReq.MaxTokens = c.maxTokens
		}

		resp, err := c.chat(ctx, chatReq)
		if err != nil {
			return "", err
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		msgs = append(msgs, msg)
		for _, tc := range msg.ToolCalls {
			out, _ := callTool(ctx, req.Tools, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    out,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
			})
		}
	}
	return "", fmt.Errorf("%w: %d iterations", ErrToolLoop, c.maxToolIterations)
}

// GenerateEmbedding generates an embedding vector for text
func (c *OpenAIClient) GenerateEmbedding(ctx context.Context, text string) ([]float64, error) {
	var embedding []float64
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.client.CreateEmbeddings(callCtx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: c.embeddingModel,
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Data) == 0 {
			return errors.New("no embeddings returned")
		}

		// Convert []float32 to []float64
		embedding32 := resp.Data[0].Embedding
		embedding = make([]float64, len(embedding32))
		for i, v := range embedding32 {
			embedding[i] = float64(v)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}
	return embedding, nil
}

func (c *OpenAIClient) chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	var resp openai.ChatCompletionResponse
	err := util.Retry(ctx, c.maxRetries, c.retryDelay, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		r, err := c.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return classify(err)
		}
		if len(r.Choices) == 0 {
			return errors.New("no completion choices returned")
		}
		resp = r
		return nil
	})
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	return resp, nil
}

// classify marks client errors other than rate limiting as permanent
func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.HTTPStatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests && code != http.StatusRequestTimeout {
			return util.Permanent(err)
		}
	}
	return err
}

// toOpenAIMessages puts the system prompt first and tags every history
// message with its author so attribution survives the round trip
func toOpenAIMessages(system string, history []models.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, m := range history {
		author := m.Author
		if author == "" {
			author = models.AuthorUser
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: m.Content,
			Name:    author,
		})
	}
	return msgs
}

func toOpenAITools(tools []Tool) []openai.Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  &params,
			},
		})
	}
	return out
}
