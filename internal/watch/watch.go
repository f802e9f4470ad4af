// Package watch re-runs an execution when files under its script source roots
// change. Events are coalesced over a quiet window so that saving several
// files triggers a single run.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet window used when none is configured.
const DefaultDebounce = 200 * time.Millisecond

// Watcher watches directory trees recursively.
type Watcher struct {
	fs       *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	roots    []string
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet window before a batch of changes is flushed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New creates a Watcher. Call Close when done.
func New(opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create watcher: %w", err)
	}
	w := &Watcher{fs: fw, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = slog.New(slog.DiscardHandler)
	}
	return w, nil
}

// Close releases the underlying watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// AddRoot watches root and every directory below it. A missing root is
// logged and ignored, matching discovery.
func (w *Watcher) AddRoot(root string) error {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		w.logger.Warn("watch root is not a directory, ignoring", "root", root)
		return nil
	}
	w.roots = append(w.roots, root)
	return w.addTree(root)
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch: add %s: %w", path, err)
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
}

// Roots returns the roots being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// Run blocks until ctx is done, calling onChange with the sorted, distinct
// paths that changed during each quiet window. onChange runs on the Run
// goroutine, so changes arriving while it runs are batched for the next call.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, paths []string)) error {
	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addTree(ev.Name); err != nil {
						w.logger.Warn("watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			pending[ev.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			sort.Strings(paths)
			clear(pending)
			w.logger.Info("changes detected", "count", len(paths))
			onChange(ctx, paths)
		}
	}
}

// relevant drops chmod-only events and hidden files such as editor swap files.
func relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}
