// ABOUTME: Tools exposed to the generator: sales comparison and playbook retrieval
// ABOUTME: Tool failures are returned to the model as text by the llm layer
package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/harper/ace-pipeline/internal/llm"
	"github.com/harper/ace-pipeline/internal/models"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	SalesDataTool     = "sales_data"
	PlaybookQueryTool = "playbook_query"
)

// Retriever finds playbook bullets relevant to a query
type Retriever interface {
	Search(ctx context.Context, query string, limit int) ([]models.PlaybookHit, error)
}

type salesArgs struct {
	LastYear    figure `json:"last_year"`
	PresentYear figure `json:"present_year"`
}

// figure accepts a JSON string or number
type figure string

func (f *figure) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = figure(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("figure must be a string or number: %w", err)
	}
	*f = figure(n.String())
	return nil
}

// NewSalesDataTool compares last year's sales figure with this year's
func NewSalesDataTool() llm.Tool {
	return llm.Tool{
		Name:        SalesDataTool,
		Description: "Compare sales between last year and the present year. Pass both figures as numbers or strings.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"last_year":    {Type: jsonschema.String, Description: "Sales figure for last year"},
				"present_year": {Type: jsonschema.String, Description: "Sales figure for the present year"},
			},
			Required: []string{"last_year", "present_year"},
		},
		Call: func(_ context.Context, raw json.RawMessage) (string, error) {
			var args salesArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			return CompareSales(string(args.LastYear), string(args.PresentYear)), nil
		},
	}
}

// CompareSales reports the direction of change between two figures. Figures
// are compared numerically when both parse, otherwise as text.
func CompareSales(lastYear, presentYear string) string {
	cmp := strings.Compare(presentYear, lastYear)
	last, errLast := parseFigure(lastYear)
	present, errPresent := parseFigure(presentYear)
	if errLast == nil && errPresent == nil {
		switch {
		case present > last:
			cmp = 1
		case present < last:
			cmp = -1
		default:
			cmp = 0
		}
	}

	switch {
	case cmp > 0:
		return "Sales have increased compared to last year."
	case cmp < 0:
		return "Sales have decreased compared to last year."
	default:
		return "Sales are unchanged compared to last year."
	}
}

func parseFigure(s string) (float64, error) {
	clean := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(s))
	return strconv.ParseFloat(clean, 64)
}

type playbookArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// NewPlaybookQueryTool searches the playbook through r
func NewPlaybookQueryTool(r Retriever, defaultLimit int) llm.Tool {
	return llm.Tool{
		Name:        PlaybookQueryTool,
		Description: "Search the playbook for strategies and pitfalls relevant to a query.",
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"query": {Type: jsonschema.String, Description: "What to look for"},
				"limit": {Type: jsonschema.Integer, Description: "Maximum number of bullets to return"},
			},
			Required: []string{"query"},
		},
		Call: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args playbookArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", fmt.Errorf("invalid arguments: %w", err)
			}
			if strings.TrimSpace(args.Query) == "" {
				return "", errors.New("query is required")
			}
			limit := args.Limit
			if limit <= 0 {
				limit = defaultLimit
			}

			hits, err := r.Search(ctx, args.Query, limit)
			if err != nil {
				return "", err
			}
			return FormatHits(hits), nil
		},
	}
}

// FormatHits renders hits one per line for a model to read
func FormatHits(hits []models.PlaybookHit) string {
	if len(hits) == 0 {
		return "No relevant playbook bullets found."
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] (%s, score %.3f) %s", h.ID, h.Section, h.SimilarityScore, h.Text)
	}
	return b.String()
}
