package index

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/schemaview/internal/checksum"
	"github.com/starford/schemaview/internal/storage"
)

// settleDelay is how long the watcher waits after the last event before
// applying pending changes. Editors often save a schema in several writes.
const settleDelay = 150 * time.Millisecond

// EventCallback is called after a watcher-driven index change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

type watcher struct {
	db     *DB
	store  storage.Provider
	root   string
	logger *slog.Logger
	cb     EventCallback
	fsw    *fsnotify.Watcher

	pending   map[string]struct{}
	reconcile bool
	timer     *time.Timer
}

// Watch starts an fsnotify watcher on the schema root and processes file
// changes until ctx is cancelled. Events are coalesced per path: once a
// path has been quiet for settleDelay its current state on disk is
// compared with the index and cb (if non-nil) is told what changed.
// Writes that leave the content unchanged are not reported.
//
// New directories created at runtime are added to the watch list. Renames
// trigger a reconciliation pass that also picks up files moved in from
// outside the watched tree.
func Watch(ctx context.Context, db *DB, store storage.Provider, root string, logger *slog.Logger, cb EventCallback) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fsw.Close()

	if err := addDirsRecursive(fsw, root); err != nil {
		return err
	}

	w := &watcher{
		db:      db,
		store:   store,
		root:    root,
		logger:  logger,
		cb:      cb,
		fsw:     fsw,
		pending: make(map[string]struct{}),
	}
	logger.Info("watcher: started", slog.String("root", root))

	var settled <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if w.timer != nil {
				w.timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-settled:
			settled = nil
			w.flush()

		case ev, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if w.handle(ev) {
				settled = w.arm()
			}

		case watchErr, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// handle records ev and reports whether anything became pending.
func (w *watcher) handle(ev fsnotify.Event) bool {
	if ev.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(ev.Name), ".") {
				return false
			}
			if err := addDirsRecursive(w.fsw, ev.Name); err != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", ev.Name),
					slog.String("error", err.Error()))
			}
			return w.markDir(ev.Name)
		}
	}

	rel, ok := w.rel(ev.Name)
	if !ok {
		return false
	}
	w.pending[rel] = struct{}{}
	if ev.Op&fsnotify.Rename != 0 {
		// fsnotify reports only the old name; the new one arrives as a
		// Create when it stays inside a watched directory.
		w.reconcile = true
	}
	return true
}

// markDir queues every schema file already inside a new directory.
func (w *watcher) markDir(dir string) bool {
	found := false
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.rel(path); ok {
			w.pending[rel] = struct{}{}
			found = true
		}
		return nil
	})
	return found
}

func (w *watcher) rel(abs string) (string, bool) {
	if !storage.IsSchemaFile(abs) {
		return "", false
	}
	rel, err := filepath.Rel(w.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *watcher) arm() <-chan time.Time {
	if w.timer == nil {
		w.timer = time.NewTimer(settleDelay)
	} else {
		w.timer.Stop()
		w.timer.Reset(settleDelay)
	}
	return w.timer.C
}

// flush applies every pending path in sorted order.
func (w *watcher) flush() {
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	w.pending = make(map[string]struct{})

	for _, p := range paths {
		w.apply(p)
	}
	if w.reconcile {
		w.reconcile = false
		reconcile(w.db, w.store, w.logger, w.cb)
	}
}

// apply brings the index entry for rel in line with the file on disk.
func (w *watcher) apply(rel string) {
	indexed, err := w.db.GetChecksum(rel)
	if err != nil {
		w.logger.Warn("watcher: checksum lookup failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	data, err := w.store.Read(rel)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if indexed == "" {
			return
		}
		if err := w.db.DeleteSchema(rel); err != nil {
			w.logger.Warn("watcher: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			return
		}
		w.notify("deleted", rel)
		return
	case err != nil:
		w.logger.Warn("watcher: read failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}

	if checksum.Sum(data) == indexed {
		return
	}
	if err := IndexFile(w.db, rel, data, time.Now().UTC()); err != nil {
		w.logger.Warn("watcher: index failed", slog.String("path", rel), slog.String("error", err.Error()))
		return
	}
	if indexed == "" {
		w.notify("created", rel)
	} else {
		w.notify("updated", rel)
	}
}

func (w *watcher) notify(kind, rel string) {
	w.logger.Debug("watcher: "+kind, slog.String("path", rel))
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// reconcile does a lightweight sync using batch lookups: index entries
// without a file on disk are removed and changed or unindexed files are
// indexed.
func reconcile(db *DB, store storage.Provider, logger *slog.Logger, cb EventCallback) {
	checksums, err := db.AllChecksums()
	if err != nil {
		logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := store.List("")
	if err != nil {
		logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}
	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := db.DeleteSchema(p); err == nil {
			logger.Debug("reconcile: removed stale", slog.String("path", p))
			if cb != nil {
				cb("deleted", p)
			}
		}
	}

	for _, m := range metas {
		old, known := checksums[m.Path]
		if known && old == m.Checksum {
			continue
		}
		data, err := store.Read(m.Path)
		if err != nil {
			continue
		}
		if err := IndexFile(db, m.Path, data, m.UpdatedAt); err != nil {
			continue
		}
		kind := "created"
		if known {
			kind = "updated"
		}
		logger.Debug("reconcile: indexed", slog.String("path", m.Path), slog.String("op", kind))
		if cb != nil {
			cb(kind, m.Path)
		}
	}
}

// addDirsRecursive adds root and all its non-hidden subdirectories to the
// watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
