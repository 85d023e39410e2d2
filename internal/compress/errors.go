package compress

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidWindow is returned for a negative retention window.
	ErrInvalidWindow = errors.New("invalid retention window")

	// ErrConversationNotFound means the store has no such conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrEmptySummary means the provider answered with no text.
	ErrEmptySummary = errors.New("provider returned an empty summary")
)

// Error records which step of a compression failed.
type Error struct {
	// Op is the failing step: "load", "select", "generate".
	Op             string
	ConversationID string
	Err            error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("compress %s failed", e.Op)
	if e.ConversationID != "" {
		msg += " for conversation " + e.ConversationID
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *Error) Unwrap() error {
	return e.Err
}
