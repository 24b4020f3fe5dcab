// Package watch reports changes to DSL scripts under a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// ChangeFunc receives the absolute paths of the scripts that changed during
// one debounce window, sorted.
type ChangeFunc func(ctx context.Context, paths []string)

// Config holds watcher configuration.
type Config struct {
	// Root is the directory watched recursively (required)
	Root string
	// Ext selects the files reported; defaults to ".groovy"
	Ext string
	// Debounce defaults to DefaultDebounce
	Debounce time.Duration
	// OnChange is called after each debounce window (required)
	OnChange ChangeFunc
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Watcher debounces file system events into batches of changed scripts.
type Watcher struct {
	root     string
	ext      string
	debounce time.Duration
	onChange ChangeFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
}

// New creates a watcher. Nothing is watched until Run.
func New(cfg Config) *Watcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ext := cfg.Ext
	if ext == "" {
		ext = ".groovy"
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		root:     cfg.Root,
		ext:      ext,
		debounce: debounce,
		onChange: cfg.OnChange,
		logger:   logger,
		pending:  make(map[string]struct{}),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	if w.onChange == nil {
		return errors.New("watch: OnChange is required")
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := addRecursive(fw, w.root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.root, err)
	}
	w.logger.Info("watching scripts", slog.String("dir", w.root))

	defer w.stopTimer()
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, event.Name); err != nil {
				w.logger.Warn("failed to watch new directory", slog.String("dir", event.Name), slog.String("error", err.Error()))
			}
			return
		}
	}
	if filepath.Ext(event.Name) != w.ext {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 || ctx.Err() != nil {
		return
	}
	sort.Strings(paths)
	w.logger.Debug("scripts changed", slog.Int("count", len(paths)))
	w.onChange(ctx, paths)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}

// addRecursive adds dir and all subdirectories, skipping hidden ones.
func addRecursive(fw *fsnotify.Watcher, dir string) error {
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
		return fw.Add(path)
	})
}
