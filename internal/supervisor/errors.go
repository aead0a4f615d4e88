// ABOUTME: Sentinel errors and the StepError wrapper
// ABOUTME: Callers classify failures with errors.Is
package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation: the decision service answered outside the option set
	ErrProtocolViolation = errors.New("decision outside option set")
	// ErrOrderingViolation: the decision service kept choosing out of sequence
	ErrOrderingViolation = errors.New("decision out of sequence")
	// ErrWorkerFailed: a worker's generation service failed
	ErrWorkerFailed = errors.New("worker failed")
	// ErrMaxSteps: the run exceeded its routing budget
	ErrMaxSteps = errors.New("routing step limit reached")
	// ErrInvalidGraph: graph assembly was given inconsistent wiring
	ErrInvalidGraph = errors.New("invalid graph")
)

// StepError locates a fatal failure within a run
type StepError struct {
	Step   int
	Phase  Phase
	Worker WorkerName
	Err    error
}

func (e *StepError) Error() string {
	if e.Worker != "" {
		return fmt.Sprintf("step %d (%s %s): %v", e.Step, e.Phase, e.Worker, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Phase, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
