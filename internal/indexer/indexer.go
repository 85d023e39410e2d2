// Package indexer ingests a directory of documents into the document store
// and, when one is configured, the semantic index.
package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/ctxpack/internal/docstore"
	"github.com/ziadkadry99/ctxpack/internal/progress"
	"github.com/ziadkadry99/ctxpack/internal/vectordb"
	"github.com/ziadkadry99/ctxpack/internal/walker"
)

// Deps holds the collaborators of an Indexer.
type Deps struct {
	Store *docstore.Store
	// Vectors is optional. Without it only the document store is written
	// and retrieval falls back to keyword search.
	Vectors vectordb.VectorStore
	// IndexDir is where Vectors is persisted after each run.
	IndexDir string
	// StateDir holds the per-file content hashes used to skip unchanged files.
	StateDir string
	Reporter progress.Reporter
	Log      logrus.FieldLogger
	// ChunkTokens applies to documents written through PutDocument.
	ChunkTokens int
}

// Indexer writes documents to the store and keeps the semantic index in step.
type Indexer struct {
	store       *docstore.Store
	vectors     vectordb.VectorStore
	indexDir    string
	stateDir    string
	reporter    progress.Reporter
	log         logrus.FieldLogger
	chunkTokens int

	// mu serializes runs so state and index persistence never interleave.
	mu sync.Mutex
}

// New creates an Indexer.
func New(d Deps) *Indexer {
	ix := &Indexer{
		store:       d.Store,
		vectors:     d.Vectors,
		indexDir:    d.IndexDir,
		stateDir:    d.StateDir,
		reporter:    d.Reporter,
		log:         d.Log,
		chunkTokens: d.ChunkTokens,
	}
	if ix.reporter == nil {
		ix.reporter = progress.Nop{}
	}
	if ix.log == nil {
		ix.log = logrus.StandardLogger()
	}
	return ix
}

// DocumentID returns the stable id of the document indexed from relPath
// within scopeID.
func DocumentID(scopeID, relPath string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("ctxpack:"+scopeID+":"+relPath)).String()
}

// IndexDir walks opts.RootDir and indexes every new or changed file. Files
// that were indexed before but no longer exist are removed from the store
// and the semantic index. A failure on one file is recorded in the result
// and does not stop the run.
func (ix *Indexer) IndexDir(ctx context.Context, opts Options) (*Result, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()
	root, err := filepath.Abs(opts.RootDir)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}

	files, err := walker.Walk(walker.WalkerConfig{
		RootDir: root,
		Include: opts.Include,
		Exclude: opts.Exclude,
	})
	if err != nil {
		return nil, err
	}

	state, err := LoadState(ix.stateDir)
	if err != nil {
		return nil, fmt.Errorf("loading index state: %w", err)
	}

	result := &Result{}
	present := make(map[string]bool, len(files))
	var changed []job
	for _, f := range files {
		present[f.Key] = true
		if opts.Force || state.IsFileChanged(f.Key, f.ContentHash) {
			changed = append(changed, job{file: f, previousID: state.Documents[f.Key]})
		} else {
			result.Skipped++
		}
	}

	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	ix.reporter.Start(len(changed))
	var (
		mu        sync.Mutex
		processed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for _, j := range changed {
		f := j.file
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			id, chunks, err := ix.indexFile(gctx, opts, j)

			mu.Lock()
			defer mu.Unlock()
			processed++
			ix.reporter.Update(processed, f.RelPath)
			if err != nil {
				ix.log.WithError(err).WithField("path", f.RelPath).Warn("indexing file failed")
				result.Errors = append(result.Errors, fmt.Errorf("%s: %w", f.RelPath, err))
				return nil
			}
			result.Indexed++
			result.Chunks += chunks
			state.record(f.Key, f.ContentHash, id)
			return nil
		})
	}
	err = g.Wait()
	ix.reporter.Finish()
	if err != nil {
		return nil, err
	}

	for key, rel := range state.Under(root) {
		if present[key] {
			continue
		}
		id := state.Documents[key]
		if id == "" {
			id = DocumentID(opts.ScopeID, rel)
		}
		if err := ix.remove(ctx, key, id); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", rel, err))
			continue
		}
		state.forget(key)
		result.Removed++
	}

	if err := state.Save(ix.stateDir); err != nil {
		return nil, fmt.Errorf("saving index state: %w", err)
	}
	if err := ix.persist(ctx); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	ix.log.WithFields(logrus.Fields{
		"root":     root,
		"indexed":  result.Indexed,
		"skipped":  result.Skipped,
		"removed":  result.Removed,
		"chunks":   result.Chunks,
		"errors":   len(result.Errors),
		"duration": result.Duration.String(),
	}).Info("index run complete")
	return result, nil
}

// job is a file to index together with the document id it produced on the
// previous run, if any.
type job struct {
	file       walker.FileInfo
	previousID string
}

func (ix *Indexer) indexFile(ctx context.Context, opts Options, j job) (string, int, error) {
	f := j.file
	content, err := os.ReadFile(f.Path)
	if err != nil {
		return "", 0, fmt.Errorf("reading file: %w", err)
	}

	doc := docstore.Document{
		ID:      DocumentID(opts.ScopeID, f.RelPath),
		Title:   ExtractTitle(content, f.Format, f.RelPath),
		Content: string(content),
		ScopeID: opts.ScopeID,
		Owner:   opts.Owner,
		Path:    f.RelPath,
	}
	if _, err := ix.store.PutDocument(ctx, doc); err != nil {
		return "", 0, err
	}
	// A changed scope gives the file a new id; drop the row stored under the old one.
	if j.previousID != "" && j.previousID != doc.ID {
		if _, err := ix.store.DeleteDocument(ctx, j.previousID); err != nil {
			return "", 0, err
		}
	}
	n, err := ix.writeChunks(ctx, doc, f.Key, f.ContentHash, opts.ChunkTokens)
	return doc.ID, n, err
}

// writeChunks replaces the semantic index entries grouped under pathKey.
func (ix *Indexer) writeChunks(ctx context.Context, doc docstore.Document, pathKey, hash string, chunkTokens int) (int, error) {
	if ix.vectors == nil {
		return 0, nil
	}
	if err := ix.vectors.DeleteByPath(ctx, pathKey); err != nil {
		return 0, fmt.Errorf("clearing stale chunks: %w", err)
	}
	chunks := ChunkDocument(doc, pathKey, hash, chunkTokens)
	if len(chunks) == 0 {
		return 0, nil
	}
	if err := ix.vectors.AddDocuments(ctx, chunks); err != nil {
		return 0, fmt.Errorf("embedding chunks: %w", err)
	}
	return len(chunks), nil
}

// remove deletes the document stored for a vanished file and the chunks
// grouped under its key.
func (ix *Indexer) remove(ctx context.Context, key, documentID string) error {
	if _, err := ix.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if ix.vectors != nil {
		if err := ix.vectors.DeleteByPath(ctx, key); err != nil {
			return fmt.Errorf("removing chunks: %w", err)
		}
	}
	ix.log.WithFields(logrus.Fields{"key": key, "document_id": documentID}).Debug("removed deleted document")
	return nil
}

func (ix *Indexer) persist(ctx context.Context) error {
	if ix.vectors == nil || ix.indexDir == "" {
		return nil
	}
	if err := ix.vectors.Persist(ctx, ix.indexDir); err != nil {
		return fmt.Errorf("persisting semantic index: %w", err)
	}
	return nil
}

// PutDocument stores d and indexes its content for semantic search. Its
// chunks are grouped in the index by document id, apart from indexed files.
func (ix *Indexer) PutDocument(ctx context.Context, d docstore.Document) (*docstore.Document, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	stored, err := ix.store.PutDocument(ctx, d)
	if err != nil {
		return nil, err
	}

	if _, err := ix.writeChunks(ctx, *stored, "document:"+stored.ID, "", ix.chunkTokens); err != nil {
		return nil, err
	}
	if err := ix.persist(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}
