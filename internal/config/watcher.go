package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay coalesces rapid successive writes (editors that write via a
// temp-file-then-rename, or repeated saves) into a single reload signal.
const debounceDelay = 100 * time.Millisecond

// Watcher watches a set of files for changes and signals a debounced
// channel on each, generalized to more than one watched file so a single
// Watcher can cover both ApprovalAllowlistPath and the approval policy file
// named when config_hot_reload is enabled.
type Watcher struct {
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	closed  bool
}

// NewWatcher builds an idle Watcher. Call Watch to start it.
func NewWatcher(logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{logger: logger.With("component", "config_watcher")}
}

// Watch watches the directories containing each of paths (fsnotify on some
// platforms cannot watch a bare file across a rename/recreate cycle) and
// returns a debounced channel that receives a value after any of them
// changes. The channel is closed when ctx is canceled or Close is called.
func (w *Watcher) Watch(ctx context.Context, paths []string) (<-chan struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("config: watcher is closed")
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("config: no paths to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: create file watcher: %w", err)
	}
	w.watcher = fsw

	watchedFiles := make(map[string]bool, len(paths))
	addedDirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("config: resolve %q: %w", p, err)
		}
		watchedFiles[abs] = true
		dir := filepath.Dir(abs)
		if addedDirs[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("config: watch directory %q: %w", dir, err)
		}
		addedDirs[dir] = true
	}

	ch := make(chan struct{}, 1)
	go w.loop(ctx, fsw, watchedFiles, ch)
	w.logger.Info("watching config files for changes", "paths", paths)
	return ch, nil
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, watchedFiles map[string]bool, ch chan<- struct{}) {
	defer close(ch)
	defer fsw.Close()

	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watchedFiles[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(debounceDelay, func() {
				select {
				case ch <- struct{}{}:
				default:
				}
			})

		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.watcher != nil {
		err := w.watcher.Close()
		w.watcher = nil
		return err
	}
	return nil
}
