package vectordb

import (
	"context"

	"github.com/ziadkadry99/ctxpack/internal/retrieval"
)

// Searcher adapts a VectorStore to the retrieval search channel.
type Searcher struct {
	store VectorStore
}

// NewSearcher creates a semantic Searcher over store.
func NewSearcher(store VectorStore) *Searcher {
	return &Searcher{store: store}
}

// Search implements retrieval.Searcher. Results below q.MinScore are
// dropped; the aggregator keeps the best chunk per document.
func (s *Searcher) Search(ctx context.Context, q retrieval.SearchQuery) ([]retrieval.SearchResult, error) {
	hits, err := s.store.Search(ctx, q.Query, q.Limit, &SearchFilter{
		ScopeID:   q.ScopeID,
		Requester: q.Requester,
	})
	if err != nil {
		return nil, err
	}

	out := make([]retrieval.SearchResult, 0, len(hits))
	for _, h := range hits {
		score := float64(h.Similarity)
		if score < q.MinScore {
			continue
		}
		docID := h.Document.Metadata.DocumentID
		if docID == "" {
			docID = h.Document.ID
		}
		out = append(out, retrieval.SearchResult{
			DocumentID: docID,
			Title:      h.Document.Metadata.Title,
			Content:    h.Document.Content,
			Snippet:    retrieval.MakeSnippet(h.Document.Content),
			Score:      score,
			Source:     retrieval.SourceSemantic,
		})
	}
	return out, nil
}
