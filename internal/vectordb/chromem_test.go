package vectordb

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mockEmbedder returns deterministic embeddings based on text content.
// It produces a simple hash-based vector for reproducible tests.
type mockEmbedder struct {
	dims int
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims}
}

func (m *mockEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		results[i] = m.deterministicVector(text)
	}
	return results, nil
}

func (m *mockEmbedder) Dimensions() int { return m.dims }
func (m *mockEmbedder) Name() string    { return "mock" }

// deterministicVector produces a normalized vector from text.
// Similar texts will produce similar vectors because shared characters contribute
// to the same positions in the vector.
func (m *mockEmbedder) deterministicVector(text string) []float32 {
	vec := make([]float32, m.dims)
	for i, ch := range text {
		idx := (int(ch) + i) % m.dims
		vec[idx] += 1.0
	}
	// Normalize
	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}

func seedStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}

	now := time.Now()
	docs := []Document{
		{
			ID:      "auth#0",
			Content: "The authentication module handles user login and session management",
			Metadata: DocumentMetadata{
				DocumentID: "auth", Title: "Auth", ScopeID: "backend", Path: "docs/auth.md", LastUpdated: now,
			},
		},
		{
			ID:      "db#0",
			Content: "Database connection pooling and query execution",
			Metadata: DocumentMetadata{
				DocumentID: "db", Title: "Database", ScopeID: "backend", Owner: "alice", Path: "docs/db.md", LastUpdated: now,
			},
		},
		{
			ID:      "ui#0",
			Content: "Frontend button styling and layout guidelines",
			Metadata: DocumentMetadata{
				DocumentID: "ui", Title: "UI", ScopeID: "frontend", Path: "docs/ui.md", LastUpdated: now,
			},
		},
	}
	if err := store.AddDocuments(context.Background(), docs); err != nil {
		t.Fatalf("AddDocuments: %v", err)
	}
	return store
}

func TestChromemStore_AddAndSearch(t *testing.T) {
	store := seedStore(t)

	if store.Count() != 3 {
		t.Fatalf("expected 3 documents, got %d", store.Count())
	}

	results, err := store.Search(context.Background(), "user login authentication", 2, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Similarity == 0 {
			t.Error("result has zero similarity")
		}
		if r.Document.Metadata.DocumentID == "" || r.Document.Metadata.Title == "" {
			t.Errorf("metadata not round-tripped: %+v", r.Document.Metadata)
		}
	}
}

func TestChromemStore_SearchEmpty(t *testing.T) {
	store, err := NewChromemStore(newMockEmbedder(16))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	results, err := store.Search(context.Background(), "anything", 5, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results, got %d", len(results))
	}
}

func TestChromemStore_SearchWithScopeFilter(t *testing.T) {
	store := seedStore(t)

	results, err := store.Search(context.Background(), "layout", 10, &SearchFilter{ScopeID: "frontend"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Document.Metadata.DocumentID != "ui" {
		t.Fatalf("expected only ui, got %+v", results)
	}
}

func TestChromemStore_SearchOwnerVisibility(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	results, err := store.Search(ctx, "database", 10, &SearchFilter{Requester: "bob"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Document.Metadata.DocumentID == "db" {
			t.Error("bob should not see alice's document")
		}
	}
	if len(results) != 2 {
		t.Errorf("expected 2 public results, got %d", len(results))
	}

	results, err = store.Search(ctx, "database", 10, &SearchFilter{Requester: "alice"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected alice to see 3 results, got %d", len(results))
	}
}

func TestChromemStore_DeleteByPath(t *testing.T) {
	store := seedStore(t)

	if err := store.DeleteByPath(context.Background(), "docs/auth.md"); err != nil {
		t.Fatalf("DeleteByPath: %v", err)
	}
	if store.Count() != 2 {
		t.Errorf("expected 2 documents after delete, got %d", store.Count())
	}
}

func TestChromemStore_PersistAndLoad(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	if Exists(dir) {
		t.Fatal("empty dir should not hold an index")
	}
	if err := store.Persist(ctx, dir); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !Exists(dir) {
		t.Fatal("expected index file after Persist")
	}
	if _, err := os.Stat(filepath.Join(dir, exportFile)); err != nil {
		t.Fatalf("stat: %v", err)
	}

	loaded, err := NewChromemStore(newMockEmbedder(64))
	if err != nil {
		t.Fatalf("NewChromemStore: %v", err)
	}
	if err := loaded.Load(ctx, dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Count() != 3 {
		t.Errorf("expected 3 documents after load, got %d", loaded.Count())
	}
}
