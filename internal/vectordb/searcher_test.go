package vectordb

import (
	"context"
	"errors"
	"testing"

	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

type stubVectorStore struct {
	results []SearchResult
	err     error
	filter  *SearchFilter
}

func (s *stubVectorStore) AddDocuments(context.Context, []Document) error { return nil }
func (s *stubVectorStore) DeleteByPath(context.Context, string) error    { return nil }
func (s *stubVectorStore) Persist(context.Context, string) error         { return nil }
func (s *stubVectorStore) Load(context.Context, string) error            { return nil }
func (s *stubVectorStore) Count() int                                    { return len(s.results) }

func (s *stubVectorStore) Search(_ context.Context, _ string, _ int, f *SearchFilter) ([]SearchResult, error) {
	s.filter = f
	return s.results, s.err
}

var _ retrieval.Searcher = (*Searcher)(nil)

func TestSearcher_MapsResults(t *testing.T) {
	store := &stubVectorStore{results: []SearchResult{
		{Document: Document{ID: "a#0", Content: "alpha", Metadata: DocumentMetadata{DocumentID: "a", Title: "A"}}, Similarity: 0.8},
		{Document: Document{ID: "b#0", Content: "beta", Metadata: DocumentMetadata{DocumentID: "b", Title: "B"}}, Similarity: 0.2},
		{Document: Document{ID: "raw", Content: "gamma"}, Similarity: 0.6},
	}}
	s := NewSearcher(store)

	got, err := s.Search(context.Background(), retrieval.SearchQuery{
		Requester: "alice", Query: "q", Limit: 5, ScopeID: "backend", MinScore: 0.5,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results above min score, got %d", len(got))
	}
	if got[0].DocumentID != "a" || got[0].Title != "A" || got[0].Source != retrieval.SourceSemantic {
		t.Errorf("unexpected first result: %+v", got[0])
	}
	if got[1].DocumentID != "raw" {
		t.Errorf("expected chunk id fallback, got %q", got[1].DocumentID)
	}
	if store.filter == nil || store.filter.Requester != "alice" || store.filter.ScopeID != "backend" {
		t.Errorf("filter not forwarded: %+v", store.filter)
	}
}

func TestSearcher_PropagatesError(t *testing.T) {
	s := NewSearcher(&stubVectorStore{err: errors.New("boom")})
	if _, err := s.Search(context.Background(), retrieval.SearchQuery{Query: "q"}); err == nil {
		t.Fatal("expected error")
	}
}
