// ABOUTME: Graph assembly for the supervisor and worker nodes
// ABOUTME: Compile validates wiring and returns a Coordinator
package supervisor

import (
	"errors"
	"fmt"
)

// SupervisorNode is the name of the routing node and the only entry point
const SupervisorNode = "supervisor"

// Option configures a compiled Coordinator
type Option func(*Coordinator)

// WithPolicy sets the ordering policy (default PolicyEnforce)
func WithPolicy(p Policy) Option {
	return func(c *Coordinator) { c.policy = p }
}

// WithMaxReroutes bounds re-requests per routing round
func WithMaxReroutes(n int) Option {
	return func(c *Coordinator) { c.maxReroutes = n }
}

// WithMaxSteps bounds routing rounds per run
func WithMaxSteps(n int) Option {
	return func(c *Coordinator) { c.maxSteps = n }
}

// Graph wires the supervisor node and worker nodes. The only edge declared
// by callers is the entry edge; worker → supervisor edges are implicit.
type Graph struct {
	router  *Router
	workers map[WorkerName]Worker
	entry   string
	errs    []error
}

// NewGraph starts a graph around router
func NewGraph(router *Router) *Graph {
	return &Graph{router: router, workers: make(map[WorkerName]Worker)}
}

// AddWorker registers a worker node
func (g *Graph) AddWorker(name WorkerName, gen Generator) *Graph {
	switch {
	case gen == nil:
		g.errs = append(g.errs, fmt.Errorf("worker %q has no generator", name))
	case g.workers[name].Generator != nil:
		g.errs = append(g.errs, fmt.Errorf("duplicate worker %q", name))
	default:
		g.workers[name] = Worker{Name: name, Generator: gen}
	}
	return g
}

// SetEntry declares the entry edge. Only SupervisorNode is accepted.
func (g *Graph) SetEntry(node string) *Graph {
	g.entry = node
	return g
}

// Compile validates the wiring and returns a ready Coordinator
func (g *Graph) Compile(opts ...Option) (*Coordinator, error) {
	errs := append([]error(nil), g.errs...)
	if g.router == nil {
		errs = append(errs, errors.New("router is required"))
	}
	if g.entry != SupervisorNode {
		errs = append(errs, fmt.Errorf("entry must be %q, got %q", SupervisorNode, g.entry))
	}

	var order []WorkerName
	if g.router != nil {
		order = g.router.Workers()
		known := make(map[WorkerName]bool, len(order))
		for _, w := range order {
			known[w] = true
			if _, ok := g.workers[w]; !ok {
				errs = append(errs, fmt.Errorf("router option %q has no worker node", w))
			}
		}
		for name := range g.workers {
			if !known[name] {
				errs = append(errs, fmt.Errorf("worker %q is not a router option", name))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, errors.Join(errs...))
	}

	c := &Coordinator{
		router:      g.router,
		workers:     make(map[WorkerName]Worker, len(g.workers)),
		order:       order,
		policy:      PolicyEnforce,
		maxReroutes: defaultMaxReroutes,
		maxSteps:    defaultMaxSteps,
	}
	for k, v := range g.workers {
		c.workers[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := ParsePolicy(string(c.policy)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidGraph, err)
	}
	if c.maxReroutes < 0 {
		return nil, fmt.Errorf("%w: max reroutes must be >= 0", ErrInvalidGraph)
	}
	if c.maxSteps <= 0 {
		return nil, fmt.Errorf("%w: max steps must be positive", ErrInvalidGraph)
	}
	return c, nil
}
