package vectordb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/ziadkadry99/ctxpack/internal/embeddings"
)

const (
	collectionName = "documents"
	exportFile     = "chromem.gob.gz"
)

// ChromemStore implements VectorStore using chromem-go.
type ChromemStore struct {
	db         *chromem.DB
	collection *chromem.Collection
	embedFunc  chromem.EmbeddingFunc
}

// NewChromemStore creates a new in-memory ChromemStore.
func NewChromemStore(embedder embeddings.Embedder) (*ChromemStore, error) {
	db := chromem.NewDB()
	ef := embeddings.ToChromemFunc(embedder)

	col, err := db.GetOrCreateCollection(collectionName, nil, ef)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &ChromemStore{
		db:         db,
		collection: col,
		embedFunc:  ef,
	}, nil
}

func (s *ChromemStore) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: metadataToMap(doc.Metadata),
		}
	}

	return s.collection.AddDocuments(ctx, chromDocs, 1)
}

// Search returns up to limit results. Owner visibility cannot be expressed
// as a chromem equality filter, so it is applied to an over-fetched result
// set afterwards.
func (s *ChromemStore) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	count := s.collection.Count()
	if count == 0 {
		return nil, nil
	}

	fetch := limit
	if filter != nil && filter.Requester != "" {
		fetch = limit * 3
	}
	// chromem-go requires nResults <= collection size.
	if fetch > count {
		fetch = count
	}

	results, err := s.collection.Query(ctx, query, fetch, buildWhereClause(filter), nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		md := mapToMetadata(r.Metadata)
		if filter != nil && filter.Requester != "" && md.Owner != "" && md.Owner != filter.Requester {
			continue
		}
		out = append(out, SearchResult{
			Document:   Document{ID: r.ID, Content: r.Content, Metadata: md},
			Similarity: r.Similarity,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *ChromemStore) DeleteByPath(ctx context.Context, path string) error {
	return s.collection.Delete(ctx, map[string]string{"path": path}, nil)
}

func (s *ChromemStore) Persist(ctx context.Context, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	return s.db.ExportToFile(filepath.Join(dir, exportFile), true, "")
}

func (s *ChromemStore) Load(ctx context.Context, dir string) error {
	if err := s.db.ImportFromFile(filepath.Join(dir, exportFile), ""); err != nil {
		return fmt.Errorf("import from file: %w", err)
	}

	// Re-acquire collection reference after import.
	col := s.db.GetCollection(collectionName, s.embedFunc)
	if col == nil {
		return fmt.Errorf("collection %q not found after import", collectionName)
	}
	s.collection = col
	return nil
}

// Exists reports whether dir holds a persisted index.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, exportFile))
	return err == nil
}

func (s *ChromemStore) Count() int {
	return s.collection.Count()
}

func metadataToMap(m DocumentMetadata) map[string]string {
	return map[string]string{
		"document_id":  m.DocumentID,
		"title":        m.Title,
		"scope_id":     m.ScopeID,
		"owner":        m.Owner,
		"path":         m.Path,
		"content_hash": m.ContentHash,
		"last_updated": m.LastUpdated.Format(time.RFC3339),
	}
}

func mapToMetadata(m map[string]string) DocumentMetadata {
	lastUpdated, _ := time.Parse(time.RFC3339, m["last_updated"])
	return DocumentMetadata{
		DocumentID:  m["document_id"],
		Title:       m["title"],
		ScopeID:     m["scope_id"],
		Owner:       m["owner"],
		Path:        m["path"],
		ContentHash: m["content_hash"],
		LastUpdated: lastUpdated,
	}
}

// buildWhereClause converts a SearchFilter to a chromem where clause.
func buildWhereClause(filter *SearchFilter) map[string]string {
	if filter == nil {
		return nil
	}
	where := make(map[string]string)
	if filter.ScopeID != "" {
		where["scope_id"] = filter.ScopeID
	}
	if filter.Path != "" {
		where["path"] = filter.Path
	}
	if len(where) == 0 {
		return nil
	}
	return where
}
