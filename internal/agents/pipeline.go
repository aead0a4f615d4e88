// ABOUTME: Pipeline assembly: router plus generator, reflector and curator
// ABOUTME: Produces a compiled coordinator configured from settings
package agents

import (
	"fmt"

	"github.com/harper/ace-pipeline/internal/config"
	"github.com/harper/ace-pipeline/internal/llm"
	"github.com/harper/ace-pipeline/internal/playbook"
	"github.com/harper/ace-pipeline/internal/supervisor"
)

// NewPipeline wires the three workers behind a router that uses model for
// decisions. A nil retriever leaves the generator without playbook_query.
func NewPipeline(cfg *config.Config, model llm.Provider, retriever Retriever) (*supervisor.Coordinator, error) {
	policy, err := supervisor.ParsePolicy(cfg.OrderingPolicy)
	if err != nil {
		return nil, err
	}

	router, err := supervisor.NewRouter(model, supervisor.DefaultOrder())
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	tools := []llm.Tool{NewSalesDataTool()}
	if retriever != nil {
		tools = append(tools, NewPlaybookQueryTool(retriever, playbook.DefaultSearchLimit))
	}

	generator, err := NewAgent(model, GeneratorPrompt, tools...)
	if err != nil {
		return nil, err
	}
	reflector, err := NewAgent(model, ReflectorPrompt)
	if err != nil {
		return nil, err
	}
	curator, err := NewAgent(model, CuratorPrompt)
	if err != nil {
		return nil, err
	}

	return supervisor.NewGraph(router).
		AddWorker(supervisor.WorkerGenerator, generator).
		AddWorker(supervisor.WorkerReflector, reflector).
		AddWorker(supervisor.WorkerCurator, curator).
		SetEntry(supervisor.SupervisorNode).
		Compile(
			supervisor.WithPolicy(policy),
			supervisor.WithMaxReroutes(cfg.MaxReroutes),
			supervisor.WithMaxSteps(cfg.MaxSteps),
		)
}
