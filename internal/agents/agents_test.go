// ABOUTME: Tests for agents, tools and pipeline assembly
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/harper/ace-pipeline/internal/config"
	"github.com/harper/ace-pipeline/internal/llm"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/harper/ace-pipeline/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider answers routing calls from a script and generation calls by prompt
type fakeProvider struct {
	mu        sync.Mutex
	decisions []string
	requests  []llm.GenerateRequest
}

func (f *fakeProvider) Choose(_ context.Context, _ string, _ []models.Message, _ []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.decisions) == 0 {
		return "", errors.New("script exhausted")
	}
	next := f.decisions[0]
	f.decisions = f.decisions[1:]
	return next, nil
}

func (f *fakeProvider) Generate(_ context.Context, req llm.GenerateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	switch req.System {
	case GeneratorPrompt:
		return "draft answer", nil
	case ReflectorPrompt:
		return "reflection", nil
	case CuratorPrompt:
		return `{"reasoning":"ok","operations":[]}`, nil
	}
	return "", errors.New("unknown prompt")
}

type fakeRetriever struct {
	hits  []models.PlaybookHit
	err   error
	query string
	limit int
}

func (r *fakeRetriever) Search(_ context.Context, query string, limit int) ([]models.PlaybookHit, error) {
	r.query, r.limit = query, limit
	return r.hits, r.err
}

func testConfig() *config.Config {
	return &config.Config{OrderingPolicy: "enforce", MaxReroutes: 2, MaxSteps: 12}
}

func TestPipelineRunsAllWorkersInOrder(t *testing.T) {
	model := &fakeProvider{decisions: []string{"generator", "reflector", "curator", "FINISH"}}
	coord, err := NewPipeline(testConfig(), model, &fakeRetriever{})
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), supervisor.NewState(models.NewUserMessage("Compare sales for 2023 and 2024")))
	require.NoError(t, err)
	assert.True(t, res.Completed)

	msgs := res.State.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "generator", msgs[1].Author)
	assert.Equal(t, "draft answer", msgs[1].Content)
	assert.Equal(t, "reflector", msgs[2].Author)
	assert.Equal(t, "curator", msgs[3].Author)

	require.Len(t, model.requests, 3)
	assert.Len(t, model.requests[0].History, 1)
	assert.Len(t, model.requests[1].History, 2)
	assert.Len(t, model.requests[2].History, 3)
	assert.Len(t, model.requests[0].Tools, 2)
	assert.Empty(t, model.requests[1].Tools)
	assert.Empty(t, model.requests[2].Tools)
}

func TestPipelineWithoutRetrieverOmitsPlaybookTool(t *testing.T) {
	model := &fakeProvider{decisions: []string{"generator", "FINISH"}}
	coord, err := NewPipeline(testConfig(), model, nil)
	require.NoError(t, err)

	res, err := coord.Run(context.Background(), supervisor.NewState(models.NewUserMessage("hi")))
	require.NoError(t, err)
	assert.False(t, res.Completed)
	require.Len(t, model.requests, 1)
	require.Len(t, model.requests[0].Tools, 1)
	assert.Equal(t, SalesDataTool, model.requests[0].Tools[0].Name)
}

func TestPipelineRejectsBadPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.OrderingPolicy = "chaos"
	_, err := NewPipeline(cfg, &fakeProvider{}, nil)
	assert.Error(t, err)
}

func TestNewAgentRequiresModel(t *testing.T) {
	_, err := NewAgent(nil, "x")
	assert.Error(t, err)

	a, err := NewAgent(&fakeProvider{}, GeneratorPrompt, NewSalesDataTool())
	require.NoError(t, err)
	assert.Equal(t, []string{SalesDataTool}, a.Tools())
}

func TestCompareSales(t *testing.T) {
	tests := []struct {
		last, present string
		want          string
	}{
		{"100", "150", "Sales have increased compared to last year."},
		{"$1,200", "900", "Sales have decreased compared to last year."},
		{"9", "10", "Sales have increased compared to last year."},
		{"42", "42.0", "Sales are unchanged compared to last year."},
		{"low", "high", "Sales have decreased compared to last year."},
	}
	for _, tt := range tests {
		t.Run(tt.last+"->"+tt.present, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareSales(tt.last, tt.present))
		})
	}
}

func TestSalesDataToolParsesArguments(t *testing.T) {
	tool := NewSalesDataTool()
	out, err := tool.Call(context.Background(), json.RawMessage(`{"last_year":"10","present_year":"12"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "increased")

	out, err = tool.Call(context.Background(), json.RawMessage(`{"last_year":1500,"present_year":"$1,200"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "decreased")

	_, err = tool.Call(context.Background(), json.RawMessage(`{"last_year":true,"present_year":"1"}`))
	assert.Error(t, err)

	_, err = tool.Call(context.Background(), json.RawMessage(`[]`))
	assert.Error(t, err)
}

func TestPlaybookQueryTool(t *testing.T) {
	r := &fakeRetriever{hits: []models.PlaybookHit{
		{ID: "str-1", Section: "strategies", Text: "Compare against last year first.", SimilarityScore: 0.91},
	}}
	tool := NewPlaybookQueryTool(r, 5)

	out, err := tool.Call(context.Background(), json.RawMessage(`{"query":"sales"}`))
	require.NoError(t, err)
	assert.Equal(t, "[str-1] (strategies, score 0.910) Compare against last year first.", out)
	assert.Equal(t, "sales", r.query)
	assert.Equal(t, 5, r.limit)

	_, err = tool.Call(context.Background(), json.RawMessage(`{"query":"sales","limit":2}`))
	require.NoError(t, err)
	assert.Equal(t, 2, r.limit)
}

func TestPlaybookQueryToolErrors(t *testing.T) {
	tool := NewPlaybookQueryTool(&fakeRetriever{err: errors.New("index offline")}, 5)
	_, err := tool.Call(context.Background(), json.RawMessage(`{"query":"sales"}`))
	assert.ErrorContains(t, err, "index offline")

	_, err = tool.Call(context.Background(), json.RawMessage(`{"query":"  "}`))
	assert.Error(t, err)
}

func TestFormatHitsEmpty(t *testing.T) {
	assert.Equal(t, "No relevant playbook bullets found.", FormatHits(nil))
}
