package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sabers-go/sabers/internal/dispatcher"
)

// dirWatcher turns filesystem activity below root into dispatcher events.
// A path is dispatched once it has been quiet for settle, so maps still
// being copied are not read half written.
type dirWatcher struct {
	fsw      *fsnotify.Watcher
	root     string
	settle   time.Duration
	dispatch func(dispatcher.Event) (any, error)

	pending map[string]time.Time
}

func newDirWatcher(root string, settle time.Duration, dispatch func(dispatcher.Event) (any, error)) (*dirWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}
	return &dirWatcher{
		fsw:      fsw,
		root:     filepath.Clean(root),
		settle:   settle,
		dispatch: dispatch,
		pending:  make(map[string]time.Time),
	}, nil
}

// Run handles events until ctx is done, then closes the watcher.
func (w *dirWatcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	tick := time.NewTicker(max(w.settle/4, 10*time.Millisecond))
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			Logger.Error("Watcher error", "error", err)
		case now := <-tick.C:
			w.flush(now)
		}
	}
}

func (w *dirWatcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	entry := w.topLevel(event.Name)
	if entry == "" {
		return
	}

	// map directories are filled after they are created
	if event.Has(fsnotify.Create) && event.Name == entry {
		if info, err := os.Stat(entry); err == nil && info.IsDir() {
			if err := w.fsw.Add(entry); err != nil {
				Logger.Warn("Failed to watch map directory", "path", entry, "error", err)
			}
		}
	}
	w.pending[entry] = time.Now()
}

// topLevel maps a path below root to its direct child of root.
func (w *dirWatcher) topLevel(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return ""
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	return filepath.Join(w.root, first)
}

func (w *dirWatcher) flush(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.settle {
			continue
		}
		delete(w.pending, path)

		command, ok := classify(path)
		if !ok {
			Logger.Debug("Ignoring path", "path", path)
			continue
		}
		if _, err := w.dispatch(dispatcher.Event{Command: command, Path: path}); err != nil {
			Logger.Error("Failed to queue path", "path", path, "error", err)
		}
	}
}
