// ABOUTME: Conversation message model shared by the supervisor, store and transports
// ABOUTME: A message is immutable once appended to a conversation
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuthorUser marks messages that came from the person submitting the task
const AuthorUser = "user"

// Message is one entry in a conversation history
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh ID and timestamp
func NewMessage(author, content string) Message {
	return Message{
		ID:        fmt.Sprintf("msg_%s", uuid.New().String()[:12]),
		Author:    author,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// NewUserMessage creates a user-authored message
func NewUserMessage(content string) Message {
	return NewMessage(AuthorUser, content)
}
