package vectordb

import "time"

// Document is one embedded chunk of a stored document.
type Document struct {
	ID       string
	Content  string
	Metadata DocumentMetadata
}

// DocumentMetadata links an embedded chunk back to its document.
type DocumentMetadata struct {
	// DocumentID is the document store id the chunk belongs to.
	DocumentID  string
	Title       string
	ScopeID     string
	Owner       string
	// Path groups the chunks of one source so DeleteByPath can replace them
	// together: an absolute file key or "document:<id>".
	Path        string
	ContentHash string
	LastUpdated time.Time
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document   Document
	Similarity float32
}

// SearchFilter narrows search results. Owner visibility is applied when
// Requester is set: documents with an empty owner or owned by Requester.
type SearchFilter struct {
	ScopeID   string
	Path      string
	Requester string
}
