// Package conversation defines conversation history types and the store
// interface the compressor and reporter read from.
package conversation

import (
	"context"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleSystem marks the synthetic summary entry produced by compression.
	RoleSystem Role = "system"
)

// Message is one entry of a conversation's history.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation groups messages and the documents in its scope.
type Conversation struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	ScopeID   string    `json:"scope_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	// DocumentIDs are documents explicitly attached to the conversation.
	DocumentIDs []string `json:"document_ids,omitempty"`
}

// VisibleTo reports whether requester may read the conversation. A
// conversation without an owner is shared.
func (c *Conversation) VisibleTo(requester string) bool {
	return c.Owner == "" || c.Owner == requester
}

// Store loads conversations and their history. GetConversation returns
// (nil, nil) when the conversation does not exist.
type Store interface {
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	// ListMessages returns messages oldest first.
	ListMessages(ctx context.Context, conversationID string) ([]Message, error)
}

// Contents returns the message contents in order.
func Contents(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}
