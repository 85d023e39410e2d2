package indexer

import "time"

// Options controls a single indexing run over a directory.
type Options struct {
	RootDir string
	Include []string
	Exclude []string
	// ScopeID and Owner are stamped on every document indexed by the run.
	ScopeID string
	Owner   string
	// ChunkTokens caps the size of each chunk written to the semantic index.
	ChunkTokens int
	Concurrency int
	// Force re-indexes files whose content hash is unchanged.
	Force bool
}

// Result summarizes the outcome of an indexing run.
type Result struct {
	Indexed  int
	Skipped  int
	Removed  int
	Chunks   int
	Errors   []error
	Duration time.Duration
}
