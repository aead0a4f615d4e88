// ABOUTME: Run records persisted for every coordination run
// ABOUTME: Tracks status, transcript and the failure reason when a run aborts
package models

import "time"

// RunStatus is the lifecycle status of a persisted run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is the persisted view of one coordination run
type Run struct {
	RunID      string     `json:"run_id"`
	Task       string     `json:"task"`
	Status     RunStatus  `json:"status"`
	Steps      []string   `json:"steps,omitempty"`
	Messages   []Message  `json:"messages,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Final returns the last message of the transcript, or false when empty
func (r *Run) Final() (Message, bool) {
	if len(r.Messages) == 0 {
		return Message{}, false
	}
	return r.Messages[len(r.Messages)-1], true
}
