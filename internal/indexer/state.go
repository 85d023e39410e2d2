package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const stateFile = "index-state.json"

// IndexState tracks which files have been indexed, their content hashes and
// the document each produced. Keys are walker.PathKey values so that several
// roots can share one data directory.
type IndexState struct {
	FileHashes map[string]string `json:"file_hashes"`
	// Documents maps a key to the id of the document stored for it.
	Documents   map[string]string `json:"documents,omitempty"`
	LastUpdated time.Time         `json:"last_updated"`
}

// LoadState reads the index state from dir. A missing file yields an empty
// state.
func LoadState(dir string) (*IndexState, error) {
	data, err := os.ReadFile(filepath.Join(dir, stateFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &IndexState{FileHashes: make(map[string]string), Documents: make(map[string]string)}, nil
		}
		return nil, err
	}

	var state IndexState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if state.FileHashes == nil {
		state.FileHashes = make(map[string]string)
	}
	if state.Documents == nil {
		state.Documents = make(map[string]string)
	}
	return &state, nil
}

// Save writes the index state to dir.
func (s *IndexState) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	s.LastUpdated = time.Now()
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, stateFile), data, 0o644)
}

// IsFileChanged returns true if the file's content hash differs from the stored hash.
func (s *IndexState) IsFileChanged(key, contentHash string) bool {
	stored, ok := s.FileHashes[key]
	if !ok {
		return true
	}
	return stored != contentHash
}

// Under returns the keys recorded beneath root, mapped to their root-relative
// paths.
func (s *IndexState) Under(root string) map[string]string {
	prefix := strings.TrimSuffix(filepath.ToSlash(root), "/") + "/"
	out := make(map[string]string)
	for key := range s.FileHashes {
		if rel, ok := strings.CutPrefix(key, prefix); ok {
			out[key] = rel
		}
	}
	return out
}

// record marks key as indexed with the given hash and document id.
func (s *IndexState) record(key, hash, documentID string) {
	s.FileHashes[key] = hash
	s.Documents[key] = documentID
}

// forget drops key from the state.
func (s *IndexState) forget(key string) {
	delete(s.FileHashes, key)
	delete(s.Documents, key)
}
