package retrieval

import (
	"context"
	"errors"
)

// Source identifies which retrieval channel produced a chunk.
type Source string

const (
	SourceDirect   Source = "direct"
	SourceProject  Source = "project"
	SourceSemantic Source = "semantic"
	SourceKeyword  Source = "keyword"
)

const (
	// DirectScore is the fixed relevance of explicitly requested documents.
	DirectScore = 1.0
	// ProjectScore is the fixed relevance of documents pulled in by scope,
	// regardless of how well they match the query.
	ProjectScore = 0.9

	DefaultLimit    = 10
	DefaultMinScore = 0.4

	// SnippetLength is the number of runes kept in a chunk snippet.
	SnippetLength = 200
)

// ErrInvalidRequest is returned for malformed retrieval parameters.
var ErrInvalidRequest = errors.New("invalid retrieval request")

// Document is what the document store returns.
type Document struct {
	ID      string
	Title   string
	Content string
	ScopeID string
}

// Chunk is a single document's content considered for inclusion in a prompt.
type Chunk struct {
	DocumentID string  `json:"document_id"`
	Title      string  `json:"title"`
	Content    string  `json:"content"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	Source     Source  `json:"source"`
}

// Request carries the optional retrieval parameters.
type Request struct {
	DocumentIDs []string `json:"document_ids,omitempty"`
	ScopeID     string   `json:"scope_id,omitempty"`
	// Limit caps the number of returned chunks. Zero means the aggregator's
	// default, DefaultLimit unless WithDefaults changed it.
	Limit int `json:"limit,omitempty"`
	// MinScore filters the search channel only. Nil means the aggregator's
	// default.
	MinScore *float64 `json:"min_score,omitempty"`
}

// SearchQuery is passed to a Searcher.
type SearchQuery struct {
	Requester string
	Query     string
	Limit     int
	ScopeID   string
	MinScore  float64
}

// SearchResult is one ranked hit from a Searcher. Source is optional; an
// empty value is treated as SourceSemantic.
type SearchResult struct {
	DocumentID string
	Title      string
	Content    string
	Snippet    string
	Score      float64
	Source     Source
}

// DocumentStore resolves documents on behalf of a requester.
type DocumentStore interface {
	// GetDocument returns nil and no error when the document does not exist
	// or is not visible to the requester.
	GetDocument(ctx context.Context, id, requester string) (*Document, error)

	// ListDocumentsByScope returns every document in the given scope.
	ListDocumentsByScope(ctx context.Context, requester, scopeID string) ([]Document, error)
}

// Searcher ranks documents against a free-text query.
type Searcher interface {
	Search(ctx context.Context, q SearchQuery) ([]SearchResult, error)
}

// Float returns a pointer to v, for Request.MinScore.
func Float(v float64) *float64 { return &v }

// MakeSnippet returns the first SnippetLength runes of content.
func MakeSnippet(content string) string {
	runes := []rune(content)
	if len(runes) <= SnippetLength {
		return content
	}
	return string(runes[:SnippetLength]) + "..."
}
