// Package watcher reports debounced file changes below a root directory.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
)

// DefaultInterval is the quiet period before a batch is emitted.
const DefaultInterval = 500 * time.Millisecond

// IgnoreChecker decides which paths are not worth a rerun.
type IgnoreChecker interface {
	ShouldIgnoreDir(absolutePath string) bool
	ShouldIgnore(absolutePath string) bool
}

// Watcher watches every non-ignored directory below rootDir.
type Watcher struct {
	fsWatcher     *fsnotify.Watcher
	debouncer     *Debouncer
	ignoreChecker IgnoreChecker
	rootDir       string
	logger        *pterm.Logger
}

// NewWatcher registers rootDir and its non-ignored subdirectories.
func NewWatcher(rootDir string, ignoreChecker IgnoreChecker, interval time.Duration, logger *pterm.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	w := &Watcher{
		fsWatcher:     fsWatcher,
		debouncer:     NewDebouncer(interval),
		ignoreChecker: ignoreChecker,
		rootDir:       rootDir,
		logger:        logger,
	}

	err = filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if path != rootDir && ignoreChecker.ShouldIgnoreDir(path) {
			return filepath.SkipDir
		}
		if watchErr := fsWatcher.Add(path); watchErr != nil {
			w.logger.Warn("failed to watch directory", w.logger.Args("path", path, "error", watchErr))
		}
		return nil
	})
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}
	return w, nil
}

// Events receives debounced batches.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.Output()
}

// Start forwards fsnotify events until ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", w.logger.Args("error", err))
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if w.ignoreChecker.ShouldIgnoreDir(path) {
				return
			}
			if err := w.fsWatcher.Add(path); err != nil {
				w.logger.Warn("failed to watch new directory", w.logger.Args("path", path, "error", err))
			}
			// A new directory changes its parent's fingerprint.
			w.debouncer.Add(path, OpCreate)
			return
		}
	}

	if w.ignoreChecker.ShouldIgnore(path) {
		return
	}

	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		return
	}
	w.logger.Trace("file changed", w.logger.Args("path", path, "op", op.String()))
	w.debouncer.Add(path, op)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	w.debouncer.Stop()
	return w.fsWatcher.Close()
}
