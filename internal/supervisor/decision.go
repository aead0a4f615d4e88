// ABOUTME: Routing decisions and worker names
// ABOUTME: Parses raw decision-service answers into a closed Decision
package supervisor

import (
	"fmt"
	"strings"
)

// WorkerName identifies a worker node
type WorkerName string

const (
	WorkerGenerator WorkerName = "generator"
	WorkerReflector WorkerName = "reflector"
	WorkerCurator   WorkerName = "curator"
)

// DefaultOrder is the fixed logical sequence of the pipeline
func DefaultOrder() []WorkerName {
	return []WorkerName{WorkerGenerator, WorkerReflector, WorkerCurator}
}

const (
	// FinishOption is the completion answer offered to the decision service
	FinishOption = "FINISH"
	// EndNode is the terminal sentinel stored in State.next
	EndNode = "__end__"
)

// Decision is the closed result of a routing call: one worker, or Terminate.
// The zero value is invalid.
type Decision struct {
	worker   WorkerName
	terminal bool
}

// Terminate is the terminal decision
var Terminate = Decision{terminal: true}

// RouteTo returns the decision selecting worker w
func RouteTo(w WorkerName) Decision {
	return Decision{worker: w}
}

// IsTerminal reports whether d ends the run
func (d Decision) IsTerminal() bool { return d.terminal }

// Worker returns the selected worker; ok is false for Terminate
func (d Decision) Worker() (WorkerName, bool) {
	if d.terminal || d.worker == "" {
		return "", false
	}
	return d.worker, true
}

// String renders the decision the way it is stored in State.next
func (d Decision) String() string {
	if d.terminal {
		return EndNode
	}
	return string(d.worker)
}

// ParseDecision validates a raw decision-service answer against the allowed
// workers. FINISH maps to Terminate; anything else outside the set is a
// protocol violation.
func ParseDecision(raw string, workers []WorkerName) (Decision, error) {
	v := strings.TrimSpace(raw)
	if v == FinishOption {
		return Terminate, nil
	}
	for _, w := range workers {
		if v == string(w) {
			return RouteTo(w), nil
		}
	}
	return Decision{}, fmt.Errorf("%w: %q not in %v", ErrProtocolViolation, raw, optionSet(workers))
}

// optionSet is the enumerated choice offered to the decision service
func optionSet(workers []WorkerName) []string {
	opts := make([]string, 0, len(workers)+1)
	opts = append(opts, FinishOption)
	for _, w := range workers {
		opts = append(opts, string(w))
	}
	return opts
}
