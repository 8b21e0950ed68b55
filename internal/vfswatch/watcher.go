// Package vfswatch invalidates the vfs package's cached Node tree whenever
// the underlying pack directory changes on disk — most notably, after a GC
// sweep rewrites or removes pack files.
package vfswatch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relaypack/bupcask/internal/vfs"
)

const debounceTime = 100 * time.Millisecond

// Watcher watches one repository's pack directory and releases root's
// cached children whenever a file in it other than a .lock or .tmp file is
// created, written, removed, or renamed — the generalization of the teacher's working-tree watcher to
// "watch for GC-driven structural changes" instead of "watch for new
// commits."
type Watcher struct {
	root    *vfs.Root
	packDir string
	logger  *slog.Logger

	fsw       *fsnotify.Watcher
	wg        sync.WaitGroup
	onRelease func()
}

// New constructs a Watcher for root's repository, watching packDir (a
// DiskStore's PackDir()). logger may be nil, in which case a discard logger
// is used.
func New(root *vfs.Root, packDir string, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Watcher{root: root, packDir: packDir, logger: logger}
}

// SetOnRelease registers a callback invoked just after a pack directory
// change releases the cached Node tree — the monitor server uses this to
// broadcast a VFSInvalidated event to connected clients.
func (w *Watcher) SetOnRelease(fn func()) {
	w.onRelease = fn
}

// Start begins watching and returns once the watch is established; events
// are handled on a background goroutine until ctx is done or Close is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.packDir); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.watchLoop(ctx)

	w.logger.Info("watching pack directory for changes", "dir", w.packDir)
	return nil
}

// Close stops the watch and waits for the background goroutine to exit.
func (w *Watcher) Close() error {
	if w.fsw == nil {
		return nil
	}
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()

	var debounceTimer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if shouldIgnoreEvent(event) {
				continue
			}
			w.logger.Debug("pack directory change detected", "file", filepath.Base(event.Name), "op", event.Op.String())

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceTime, func() {
				if ctx.Err() != nil {
					return
				}
				w.root.Release()
				w.logger.Info("released cached VFS nodes after pack directory change")
				if w.onRelease != nil {
					w.onRelease()
				}
			})

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("pack directory watch error", "err", err)
		}
	}
}

// shouldIgnoreEvent keeps create, write, remove, and rename events for any
// file in the pack directory (packs and indices among them) and drops the
// rest. Lock and temp files (written transiently by PackWriter and GC) are
// never a signal that the visible structure changed.
func shouldIgnoreEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}
	base := filepath.Base(event.Name)
	if strings.HasSuffix(base, ".lock") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	return false
}
