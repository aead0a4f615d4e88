// ABOUTME: Coordinator drives the routing state machine
// ABOUTME: Applies the ordering policy and records the transition trace
package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/harper/ace-pipeline/internal/logger"
)

// Phase is a coordinator state
type Phase string

const (
	PhaseRouting    Phase = "routing"
	PhaseRunning    Phase = "running"
	PhaseTerminated Phase = "terminated"
)

// Policy controls how out-of-sequence decisions are handled
type Policy string

const (
	// PolicyEnforce rejects skips and revisits and re-requests a decision
	PolicyEnforce Policy = "enforce"
	// PolicyTrust accepts any in-set decision
	PolicyTrust Policy = "trust"
)

// ParsePolicy validates a configured policy name
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyEnforce, PolicyTrust:
		return Policy(s), nil
	default:
		return "", fmt.Errorf("unknown ordering policy %q (want %q or %q)", s, PolicyEnforce, PolicyTrust)
	}
}

// Transition is one edge taken by the coordinator
type Transition struct {
	Step   int        `json:"step"`
	From   Phase      `json:"from"`
	To     Phase      `json:"to"`
	Worker WorkerName `json:"worker,omitempty"`
	At     time.Time  `json:"at"`
}

// Result is the outcome of a run that reached Terminated
type Result struct {
	State *State
	// Steps lists the workers that ran, in order
	Steps []WorkerName
	Trace []Transition
	// Completed is true when every worker in the sequence ran
	Completed bool
	// Rerouted counts decisions rejected by the ordering guard
	Rerouted int
}

const (
	defaultMaxReroutes = 2
	defaultMaxSteps    = 12
)

// Coordinator alternates between routing and running workers until the
// router terminates the run. It is safe to share between runs; all per-run
// data lives in State and Result.
type Coordinator struct {
	router      *Router
	workers     map[WorkerName]Worker
	order       []WorkerName
	policy      Policy
	maxReroutes int
	maxSteps    int
}

// Order returns the enforced worker sequence
func (c *Coordinator) Order() []WorkerName {
	return append([]WorkerName(nil), c.order...)
}

// Policy returns the ordering policy in effect
func (c *Coordinator) Policy() Policy { return c.policy }

// Run drives state from Routing to Terminated. Any fatal error aborts the run;
// messages appended before the failure stay in state.
func (c *Coordinator) Run(ctx context.Context, state *State) (*Result, error) {
	log := logger.FromContext(ctx).With("component", "supervisor")
	res := &Result{State: state}
	progress := 0

	record := func(step int, from, to Phase, w WorkerName) {
		res.Trace = append(res.Trace, Transition{Step: step, From: from, To: to, Worker: w, At: time.Now()})
	}

	for step := 0; ; step++ {
		if step >= c.maxSteps {
			return res, &StepError{Step: step, Phase: PhaseRouting, Err: ErrMaxSteps}
		}
		if err := ctx.Err(); err != nil {
			return res, &StepError{Step: step, Phase: PhaseRouting, Err: err}
		}

		decision, err := c.router.Decide(ctx, state)
		if err != nil {
			return res, &StepError{Step: step, Phase: PhaseRouting, Err: err}
		}
		decision, err = c.guard(ctx, state, decision, progress, res)
		if err != nil {
			return res, &StepError{Step: step, Phase: PhaseRouting, Err: err}
		}
		state.setNext(decision)

		name, ok := decision.Worker()
		if !ok {
			record(step, PhaseRouting, PhaseTerminated, "")
			res.Completed = c.coversOrder(res.Steps)
			if !res.Completed {
				log.Warn("run terminated before the sequence completed", "ran", len(res.Steps), "of", len(c.order))
			}
			log.Info("run terminated", "steps", len(res.Steps), "messages", state.Len())
			return res, nil
		}

		worker, ok := c.workers[name]
		if !ok {
			return res, &StepError{Step: step, Phase: PhaseRouting, Worker: name,
				Err: fmt.Errorf("%w: no node for %q", ErrProtocolViolation, name)}
		}

		record(step, PhaseRouting, PhaseRunning, name)
		if err := ctx.Err(); err != nil {
			return res, &StepError{Step: step, Phase: PhaseRunning, Worker: name, Err: err}
		}

		log.Info("running worker", "step", step, "worker", name)
		msg, err := Invoke(ctx, worker, state)
		if err != nil {
			return res, &StepError{Step: step, Phase: PhaseRunning, Worker: name, Err: err}
		}
		state.append(msg)
		res.Steps = append(res.Steps, name)
		if idx := c.indexOf(name); idx >= progress {
			progress = idx + 1
		}
		record(step, PhaseRunning, PhaseRouting, name)
	}
}

// guard applies the ordering policy. Terminate is always honored; under
// PolicyEnforce a worker decision must be the next unfinished worker, else
// the router is asked again up to maxReroutes times.
func (c *Coordinator) guard(ctx context.Context, state *State, d Decision, progress int, res *Result) (Decision, error) {
	if c.policy == PolicyTrust {
		return d, nil
	}

	expected := Terminate
	if progress < len(c.order) {
		expected = RouteTo(c.order[progress])
	}

	for attempt := 0; ; attempt++ {
		if d.IsTerminal() || d == expected {
			return d, nil
		}
		if attempt >= c.maxReroutes {
			return Decision{}, fmt.Errorf("%w: got %s, want %s", ErrOrderingViolation, d, expected)
		}

		logger.FromContext(ctx).Warn("rejected out-of-sequence decision",
			"got", d.String(), "want", expected.String(), "attempt", attempt+1)
		res.Rerouted++

		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}
		next, err := c.router.Redecide(ctx, state, d, expected)
		if err != nil {
			return Decision{}, err
		}
		d = next
	}
}

func (c *Coordinator) coversOrder(steps []WorkerName) bool {
	ran := make(map[WorkerName]bool, len(steps))
	for _, s := range steps {
		ran[s] = true
	}
	for _, w := range c.order {
		if !ran[w] {
			return false
		}
	}
	return true
}

func (c *Coordinator) indexOf(w WorkerName) int {
	for i, n := range c.order {
		if n == w {
			return i
		}
	}
	return -1
}
