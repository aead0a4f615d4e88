// ABOUTME: Router asks a decision service which worker runs next
// ABOUTME: Builds the routing prompt and the correction re-request
package supervisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/harper/ace-pipeline/internal/logger"
	"github.com/harper/ace-pipeline/internal/models"
)

// DecisionService picks the next node from a closed set of options.
// Implementations must use constrained output; the Router still validates
// the answer before it reaches the Coordinator.
type DecisionService interface {
	Choose(ctx context.Context, directive string, history []models.Message, options []string) (string, error)
}

// DecisionFunc adapts a function to DecisionService
type DecisionFunc func(ctx context.Context, directive string, history []models.Message, options []string) (string, error)

func (f DecisionFunc) Choose(ctx context.Context, directive string, history []models.Message, options []string) (string, error) {
	return f(ctx, directive, history, options)
}

// Router is the decision stage. Its directive and option set are fixed at
// construction.
type Router struct {
	service   DecisionService
	workers   []WorkerName
	options   []string
	directive string
}

// NewRouter builds a router over the ordered worker list
func NewRouter(service DecisionService, workers []WorkerName) (*Router, error) {
	if service == nil {
		return nil, fmt.Errorf("%w: decision service is required", ErrInvalidGraph)
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("%w: at least one worker is required", ErrInvalidGraph)
	}
	seen := make(map[WorkerName]bool, len(workers))
	for _, w := range workers {
		switch {
		case w == "":
			return nil, fmt.Errorf("%w: empty worker name", ErrInvalidGraph)
		case string(w) == FinishOption || string(w) == EndNode || string(w) == SupervisorNode:
			return nil, fmt.Errorf("%w: reserved worker name %q", ErrInvalidGraph, w)
		case seen[w]:
			return nil, fmt.Errorf("%w: duplicate worker %q", ErrInvalidGraph, w)
		}
		seen[w] = true
	}

	ws := append([]WorkerName(nil), workers...)
	return &Router{
		service:   service,
		workers:   ws,
		options:   optionSet(ws),
		directive: BuildDirective(ws),
	}, nil
}

// Workers returns the ordered worker list
func (r *Router) Workers() []WorkerName {
	return append([]WorkerName(nil), r.workers...)
}

// Options returns the enumerated option set, FINISH first
func (r *Router) Options() []string {
	return append([]string(nil), r.options...)
}

// Directive returns the supervisor instruction sent with every call
func (r *Router) Directive() string { return r.directive }

// Decide asks the decision service for the next node given the current history
func (r *Router) Decide(ctx context.Context, state *State) (Decision, error) {
	return r.decide(ctx, state, r.directive)
}

// Redecide asks again after the Coordinator rejected a decision, telling the
// decision service which step is expected instead
func (r *Router) Redecide(ctx context.Context, state *State, rejected, expected Decision) (Decision, error) {
	want := expected.String()
	if expected.IsTerminal() {
		want = FinishOption
	}
	got := rejected.String()
	if rejected.IsTerminal() {
		got = FinishOption
	}
	directive := r.directive + fmt.Sprintf(
		"\nCORRECTION: your previous choice %q was rejected because it breaks the required order. "+
			"The next step must be %q.\n", got, want)
	return r.decide(ctx, state, directive)
}

func (r *Router) decide(ctx context.Context, state *State, directive string) (Decision, error) {
	raw, err := r.service.Choose(ctx, directive, state.Messages(), r.Options())
	if err != nil {
		return Decision{}, fmt.Errorf("decision service: %w", err)
	}
	d, err := ParseDecision(raw, r.workers)
	if err != nil {
		return Decision{}, err
	}
	logger.FromContext(ctx).Debug("routing decision", "raw", raw, "next", d.String())
	return d, nil
}

// BuildDirective renders the supervisor instruction for an ordered worker list
func BuildDirective(workers []WorkerName) string {
	names := make([]string, len(workers))
	for i, w := range workers {
		names[i] = string(w)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a Supervisor Agent that manages a sequential workflow using these workers: %s.\n\n",
		strings.Join(names, ", "))
	b.WriteString("Your ONLY responsibility is to route the user query through the following steps IN THIS EXACT ORDER:\n")
	for i, n := range names {
		arrow := " →"
		if i == len(names)-1 {
			arrow = ""
		}
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, n, arrow)
	}
	b.WriteString("\nRULES:\n")
	fmt.Fprintf(&b, "- ALWAYS start with the %s.\n", names[0])
	b.WriteString("- NEVER skip a worker and NEVER run a worker twice.\n")
	b.WriteString("- The output of each worker becomes the input to the next.\n")
	b.WriteString("- When a worker completes its task, route to the next worker.\n")
	fmt.Fprintf(&b, "- After %s finishes, answer %s.\n", names[len(names)-1], FinishOption)
	b.WriteString("- Do not do any worker's job yourself; only delegate.\n\n")
	b.WriteString("Your job: track which worker has finished (each worker's message carries its name) " +
		"and ensure the sequence continues correctly.\n")
	return b.String()
}
