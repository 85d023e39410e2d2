// Package walker discovers the document files beneath a corpus root.
package walker

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxFileSize is the maximum document size to index (4 MB).
const DefaultMaxFileSize int64 = 4 << 20

// sniffLen is how much of a file is inspected for NUL bytes.
const sniffLen = 512

// FileInfo describes a document found under a corpus root.
type FileInfo struct {
	Path    string // Absolute path on disk.
	RelPath string // Slash-separated path relative to the root.
	// Key identifies the file across every root sharing one index. It is the
	// absolute slash-separated path, see PathKey.
	Key         string
	Size        int64
	Format      Format
	ContentHash string // SHA-256 hex digest of the content.
	ModTime     time.Time
}

// WalkerConfig controls Walk.
type WalkerConfig struct {
	RootDir string
	Include []string // Glob patterns; when set, only matching files are kept.
	Exclude []string // Glob patterns; matching files are dropped.
	// Formats lists the accepted document formats. Empty means
	// DocumentFormats, so source code and other files are never indexed
	// unless asked for with FormatOther.
	Formats     []Format
	MaxFileSize int64 // 0 uses DefaultMaxFileSize.
}

// PathKey joins an absolute root and a relative path into the key used to
// track a file in the index.
func PathKey(root, relPath string) string {
	return strings.TrimSuffix(filepath.ToSlash(root), "/") + "/" + relPath
}

// Walk returns every document under config.RootDir that passes the format,
// size, .gitignore and include/exclude rules. Unreadable entries and binary
// files are skipped silently.
func Walk(config WalkerConfig) ([]FileInfo, error) {
	root, err := filepath.Abs(config.RootDir)
	if err != nil {
		return nil, fmt.Errorf("walker: resolve root: %w", err)
	}
	maxSize := config.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	rules := newFilter(root, config)

	var files []FileInfo
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil || path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if rules.skipDir(rel, d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		format := DetectFormat(d.Name())
		if !rules.accept(rel, format) {
			return nil
		}

		info, err := d.Info()
		if err != nil || info.Size() > maxSize {
			return nil
		}
		hash, ok := readDocument(path)
		if !ok {
			return nil
		}

		files = append(files, FileInfo{
			Path:        path,
			RelPath:     rel,
			Key:         PathKey(root, rel),
			Size:        info.Size(),
			Format:      format,
			ContentHash: hash,
			ModTime:     info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walker: traversal: %w", err)
	}
	return files, nil
}

// readDocument hashes the file at path. It reports false when the file cannot
// be read or looks binary.
func readDocument(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if bytes.IndexByte(data[:min(len(data), sniffLen)], 0) >= 0 {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}
