package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/ctxpack/internal/conversation"
)

// ErrUnknownConversation is returned when writing to a missing conversation.
var ErrUnknownConversation = errors.New("unknown conversation")

// CreateConversation starts a conversation owned by owner.
func (s *Store) CreateConversation(ctx context.Context, owner, title, scopeID string) (*conversation.Conversation, error) {
	c := conversation.Conversation{
		ID:        uuid.New().String(),
		Owner:     owner,
		Title:     title,
		ScopeID:   scopeID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, owner, title, scope_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Owner, c.Title, c.ScopeID, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return &c, nil
}

// GetConversation returns the conversation with its attached document ids,
// or (nil, nil) if it does not exist.
func (s *Store) GetConversation(ctx context.Context, id string) (*conversation.Conversation, error) {
	var c conversation.Conversation
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, title, scope_id, created_at FROM conversations WHERE id = ?`, id,
	).Scan(&c.ID, &c.Owner, &c.Title, &c.ScopeID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document_id FROM conversation_documents WHERE conversation_id = ? ORDER BY added_at ASC, document_id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("listing conversation documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var docID string
		if err := rows.Scan(&docID); err != nil {
			return nil, fmt.Errorf("scanning document id: %w", err)
		}
		c.DocumentIDs = append(c.DocumentIDs, docID)
	}
	return &c, rows.Err()
}

// AttachDocument adds a document to a conversation's explicit scope.
// Attaching the same document twice is a no-op.
func (s *Store) AttachDocument(ctx context.Context, conversationID, documentID string) error {
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO conversation_documents (conversation_id, document_id) VALUES (?, ?)`,
		conversationID, documentID,
	)
	if err != nil {
		return fmt.Errorf("attaching document: %w", err)
	}
	return nil
}

// AppendMessage adds a message to the end of a conversation.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, role conversation.Role, content string) (*conversation.Message, error) {
	if role != conversation.RoleUser && role != conversation.RoleAssistant {
		return nil, fmt.Errorf("invalid message role %q", role)
	}
	if err := s.requireConversation(ctx, conversationID); err != nil {
		return nil, err
	}

	m := conversation.Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, conversationID, m.Role, m.Content, m.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	return &m, nil
}

// ListMessages returns all messages of a conversation in insertion order.
func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]conversation.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY seq ASC`, conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []conversation.Message
	for rows.Next() {
		var m conversation.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) requireConversation(ctx context.Context, id string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM conversations WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	if err != nil {
		return fmt.Errorf("checking conversation: %w", err)
	}
	return nil
}
