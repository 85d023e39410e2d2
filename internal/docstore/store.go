// Package docstore persists documents, conversations and user settings in
// SQLite. It provides the document lookups, keyword search, conversation
// history and provider settings that context assembly reads.
package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/ctxpack/internal/db"
	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// Document is a stored document. Owner is empty for documents every
// requester may read.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ScopeID   string    `json:"scope_id,omitempty"`
	Owner     string    `json:"owner,omitempty"`
	Path      string    `json:"path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages persistence of documents and conversations.
type Store struct {
	db *db.DB
}

// NewStore creates a new store over database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// PutDocument inserts d, or replaces the document with the same id.
func (s *Store) PutDocument(ctx context.Context, d Document) (*Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, scope_id, owner, path, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   title = excluded.title, content = excluded.content, scope_id = excluded.scope_id,
		   owner = excluded.owner, path = excluded.path, updated_at = excluded.updated_at`,
		d.ID, d.Title, d.Content, d.ScopeID, d.Owner, d.Path, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}
	return &d, nil
}

// GetDocument returns the document if it exists and requester may read it,
// and (nil, nil) otherwise.
func (s *Store) GetDocument(ctx context.Context, id, requester string) (*retrieval.Document, error) {
	var d retrieval.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, scope_id FROM documents
		 WHERE id = ? AND (owner = '' OR owner = ?)`, id, requester,
	).Scan(&d.ID, &d.Title, &d.Content, &d.ScopeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	return &d, nil
}

// ListDocumentsByScope returns the readable documents in a scope, oldest first.
func (s *Store) ListDocumentsByScope(ctx context.Context, requester, scopeID string) ([]retrieval.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, scope_id FROM documents
		 WHERE scope_id = ? AND (owner = '' OR owner = ?)
		 ORDER BY created_at ASC, id ASC`, scopeID, requester,
	)
	if err != nil {
		return nil, fmt.Errorf("listing scope documents: %w", err)
	}
	defer rows.Close()

	var docs []retrieval.Document
	for rows.Next() {
		var d retrieval.Document
		if err := rows.Scan(&d.ID, &d.Title, &d.Content, &d.ScopeID); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document with the given id. It reports whether
// a row was deleted.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CountDocuments returns the total number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}
