package indexer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ziadkadry99/ctxpack/internal/walker"
)

// DefaultDebounce is the quiet period used when a Watcher is created with
// a zero debounce.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-indexes a directory whenever files beneath it change. Bursts of
// events are coalesced into one run after a quiet period.
type Watcher struct {
	ix       *Indexer
	opts     Options
	debounce time.Duration
	fs       *fsnotify.Watcher

	// OnRun, when set, receives the outcome of every re-index run.
	OnRun func(*Result, error)
}

// NewWatcher starts watching opts.RootDir and its subdirectories. Events
// are delivered once Run is called.
func (ix *Indexer) NewWatcher(opts Options, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	w := &Watcher{ix: ix, opts: opts, debounce: debounce, fs: fw}
	if err := w.addTree(opts.RootDir); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && walker.IsExcludedDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// ownsPath reports whether path lies in a directory the indexer writes to,
// so that its own output never triggers another run.
func (ix *Indexer) ownsPath(path string) bool {
	if p, err := filepath.Abs(path); err == nil {
		path = p
	}
	for _, dir := range []string{ix.stateDir, ix.indexDir} {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(abs, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Run processes file events until ctx is cancelled, then releases the
// watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
				continue
			}
			if w.ix.ownsPath(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.ix.log.WithError(err).Warn("watching new directory failed")
					}
				}
			}
			w.ix.log.WithField("path", ev.Name).Debug("change detected")
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.ix.log.WithError(err).Warn("watcher error")
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			res, err := w.ix.IndexDir(ctx, w.opts)
			if err != nil {
				w.ix.log.WithError(err).Error("re-index failed")
			}
			if w.OnRun != nil {
				w.OnRun(res, err)
			}
		}
	}
}
