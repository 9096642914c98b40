package model

import (
	"context"
)

// Role of a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three transcript roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one transcript entry. It is never mutated after being appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func UserMessage(content string) Message      { return Message{Role: RoleUser, Content: content} }
func AssistantMessage(content string) Message { return Message{Role: RoleAssistant, Content: content} }

// ThreadContext is the mutable scratch state of a thread.
// UserID is sticky: only an explicit or resolved identity replaces it.
type ThreadContext struct {
	UserID         *int64 `json:"user_id,omitempty"`
	UserName       string `json:"user_name,omitempty"`
	LastSearch     string `json:"last_search,omitempty"`
	LastAction     string `json:"last_action,omitempty"`
	CurrentProduct string `json:"current_product,omitempty"`
}

// HasUser reports whether an identity has been resolved.
func (c ThreadContext) HasUser() bool {
	return c.UserID != nil
}

// SetUser records a resolved identity.
func (c *ThreadContext) SetUser(id int64) {
	c.UserID = &id
}

// Thread is one conversation: its transcript and resolved context.
type Thread struct {
	ID       string
	Messages []Message
	Context  ThreadContext
}

type ConversationStore interface {
	// GetOrCreate returns the thread, initialising it with only the system message when unknown.
	GetOrCreate(ctx context.Context, threadID string, system Message) (*Thread, error)

	// Append adds a message to the end of the thread transcript.
	Append(ctx context.Context, threadID string, message Message) error

	// ReplaceHistory resets the transcript to [system] + history. Context is kept.
	ReplaceHistory(ctx context.Context, threadID string, system Message, history []Message) error

	// SaveContext overwrites the thread context.
	SaveContext(ctx context.Context, threadID string, tc ThreadContext) error
}
