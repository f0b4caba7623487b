// Package watch reports changed module files for clients that do not send
// workspace/didChangeWatchedFiles.
//
// Events are collected until the directory has been quiet for the debounce
// window, then delivered as one batch of file URIs, each URI once, in the
// order it first changed.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"arendls/internal/workspace"
)

// ModuleExt is the extension of watched files.
const ModuleExt = ".ard"

// Handler receives a batch of changed file URIs.
type Handler func(ctx context.Context, uris []string)

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore holds base names or glob patterns of files and directories to
	// skip.
	Ignore []string
	Log    *zap.Logger
}

// Watcher watches library directories recursively.
type Watcher struct {
	fs       *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignore   []string
	log      *zap.Logger

	mu    sync.Mutex
	roots map[string]struct{}
}

// New creates a watcher. Nothing is watched until Add.
func New(handler Handler, opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		fs:       fw,
		handler:  handler,
		debounce: debounce,
		ignore:   opts.Ignore,
		log:      log,
		roots:    make(map[string]struct{}),
	}, nil
}

// Add watches root and every directory below it. Adding a root twice is a
// no-op.
func (w *Watcher) Add(root string) error {
	root = filepath.Clean(root)
	w.mu.Lock()
	if _, ok := w.roots[root]; ok {
		w.mu.Unlock()
		return nil
	}
	w.roots[root] = struct{}{}
	w.mu.Unlock()
	return w.addTree(root)
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watch %s: %w", root, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignore {
		if base == pattern {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// Run delivers batches until ctx is done, then closes the watcher. Pending
// changes are dropped on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var (
		batch  []string
		seen   = make(map[string]struct{})
		timer  *time.Timer
		timerC <-chan time.Time
	)
	flush := func() {
		if len(batch) > 0 {
			w.log.Debug("module files changed", zap.Strings("uris", batch))
			w.handler(ctx, batch)
		}
		batch = nil
		seen = make(map[string]struct{})
		timer, timerC = nil, nil
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			uri, ok := w.accept(ev)
			if !ok {
				continue
			}
			if _, dup := seen[uri]; !dup {
				seen[uri] = struct{}{}
				batch = append(batch, uri)
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("file watcher error", zap.Error(err))
		case <-timerC:
			flush()
		}
	}
}

// accept filters an event down to a changed module file. New directories
// are watched as they appear.
func (w *Watcher) accept(ev fsnotify.Event) (string, bool) {
	if w.ignored(ev.Name) {
		return "", false
	}
	if ev.Has(fsnotify.Create) && filepath.Ext(ev.Name) != ModuleExt {
		if err := w.addTree(ev.Name); err != nil {
			w.log.Debug("not watching new path", zap.String("path", ev.Name), zap.Error(err))
		}
		return "", false
	}
	if filepath.Ext(ev.Name) != ModuleExt || ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return "", false
	}
	return workspace.FromPath(ev.Name), true
}
