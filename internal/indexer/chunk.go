package indexer

import (
	"fmt"
	"strings"
	"time"

	"github.com/ziadkadry99/ctxpack/internal/docstore"
	"github.com/ziadkadry99/ctxpack/internal/tokens"
	"github.com/ziadkadry99/ctxpack/internal/vectordb"
)

// DefaultChunkTokens is used when Options.ChunkTokens is zero.
const DefaultChunkTokens = 512

// SplitContent splits content into chunks of at most maxTokens estimated
// tokens. Splits happen at line boundaries, preferring a blank line or a
// markdown heading once a chunk is at least half full. A single line longer
// than the limit becomes its own chunk.
func SplitContent(content string, maxTokens int) []string {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	maxChars := maxTokens * tokens.CharsPerToken
	if len(content) <= maxChars {
		if strings.TrimSpace(content) == "" {
			return nil
		}
		return []string{content}
	}

	lines := strings.Split(content, "\n")
	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunk := strings.Join(current, "\n")
		if strings.TrimSpace(chunk) != "" {
			chunks = append(chunks, chunk)
		}
		current = nil
		currentLen = 0
	}

	for _, line := range lines {
		lineLen := len(line) + 1
		boundary := strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#")
		if currentLen+lineLen > maxChars || (boundary && currentLen >= maxChars/2) {
			flush()
		}
		current = append(current, line)
		currentLen += lineLen
	}
	flush()
	return chunks
}

// ChunkDocument converts a stored document into vector index entries. pathKey
// is recorded as the chunk path so the entries can be replaced as a group.
func ChunkDocument(d docstore.Document, pathKey, contentHash string, maxTokens int) []vectordb.Document {
	parts := SplitContent(d.Content, maxTokens)
	now := time.Now()
	docs := make([]vectordb.Document, 0, len(parts))
	for i, part := range parts {
		docs = append(docs, vectordb.Document{
			ID:      fmt.Sprintf("%s#%d", d.ID, i),
			Content: part,
			Metadata: vectordb.DocumentMetadata{
				DocumentID:  d.ID,
				Title:       d.Title,
				ScopeID:     d.ScopeID,
				Owner:       d.Owner,
				Path:        pathKey,
				ContentHash: contentHash,
				LastUpdated: now,
			},
		})
	}
	return docs
}
