// ABOUTME: Append-only shared conversation state
// ABOUTME: Holds the transcript and the last routing decision
package supervisor

import "github.com/harper/ace-pipeline/internal/models"

// State is the conversation threaded through one run: an append-only
// message history plus the next pointer. A State belongs to exactly one run
// and is not safe for concurrent use.
type State struct {
	messages []models.Message
	next     string
}

// NewState seeds a state with the given messages
func NewState(seed ...models.Message) *State {
	msgs := make([]models.Message, len(seed))
	copy(msgs, seed)
	return &State{messages: msgs}
}

// Messages returns a copy of the history in append order
func (s *State) Messages() []models.Message {
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages
func (s *State) Len() int { return len(s.messages) }

// Next returns the scheduled node; ok is false before the first decision
func (s *State) Next() (next string, ok bool) {
	return s.next, s.next != ""
}

func (s *State) append(msg models.Message) {
	s.messages = append(s.messages, msg)
}

func (s *State) setNext(d Decision) {
	s.next = d.String()
}
