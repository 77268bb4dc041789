// Package watcher re-triggers selection when files under the source or test
// roots change.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with one debounced batch at a time. Batches never
// overlap: the next one is delivered after the handler returns.
type ChangeHandler func(ctx context.Context, events []Event)

// Config contains watcher configuration
type Config struct {
	Roots          []string      `json:"roots"`
	Debounce       time.Duration `json:"debounce"`
	IgnorePatterns []string      `json:"ignorePatterns"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		Debounce: 500 * time.Millisecond,
		IgnorePatterns: []string{
			"**/*.log",
			"**/*.tmp",
			"**/*.swp",
			"**/*~",
			"**/.git/**",
			"**/node_modules/**",
			"**/.retrospec/**",
		},
	}
}

// Watcher watches the configured roots recursively.
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler

	fs      *fsnotify.Watcher
	batch   *BatchDebouncer
	batches chan []Event

	mu      sync.Mutex
	watched map[string]struct{}
}

// New creates a watcher. Run must be called to start it.
func New(config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	if len(config.Roots) == 0 {
		return nil, fmt.Errorf("watcher: no roots to watch")
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultConfig().Debounce
	}
	for _, p := range config.IgnorePatterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("watcher: invalid ignore pattern %q", p)
		}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	w := &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		fs:      fw,
		batches: make(chan []Event, 1),
		watched: make(map[string]struct{}),
	}
	w.batch = NewBatchDebouncer(config.Debounce, w.deliver)
	return w, nil
}

// Run watches until ctx is cancelled, calling the handler for each batch.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()
	defer w.batch.Cancel()

	for _, root := range w.config.Roots {
		if err := w.addRecursive(root); err != nil {
			return err
		}
	}
	w.logger.Info("watching for changes", "roots", strings.Join(w.config.Roots, ","), "debounce", w.config.Debounce.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case events := <-w.batches:
			w.logger.Debug("changes detected", "events", len(events))
			if w.handler != nil {
				w.handler(ctx, events)
			}
		}
	}
}

// deliver hands a batch to Run, merging with one still waiting.
func (w *Watcher) deliver(events []Event) {
	for {
		select {
		case w.batches <- events:
			return
		default:
		}
		select {
		case pending := <-w.batches:
			events = Dedupe(append(pending, events...))
		default:
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if w.IsIgnored(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				w.logger.Warn("cannot watch new directory", "path", ev.Name, "error", err)
			}
		}
	}
	w.batch.Add(Event{Type: convertOp(ev.Op), Path: ev.Name, Timestamp: time.Now()})
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("watcher: %w", err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.IsIgnored(path) {
			return filepath.SkipDir
		}

		w.mu.Lock()
		_, seen := w.watched[path]
		w.mu.Unlock()
		if seen {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watcher: add %s: %w", path, err)
		}
		w.mu.Lock()
		w.watched[path] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// IsIgnored checks if a path matches ignore patterns. Patterns are matched
// against the path relative to the watch root that contains it.
func (w *Watcher) IsIgnored(path string) bool {
	rel := filepath.ToSlash(w.relative(path))
	for _, pattern := range w.config.IgnorePatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		// Directory patterns also cover the directory itself.
		if dir, found := strings.CutSuffix(pattern, "/**"); found {
			if ok, _ := doublestar.Match(dir, rel); ok {
				return true
			}
		}
	}
	return false
}

func (w *Watcher) relative(path string) string {
	for _, root := range w.config.Roots {
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	return path
}

// WatchedDirs returns the number of directories registered with the OS.
func (w *Watcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

func convertOp(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate
	case op.Has(fsnotify.Remove):
		return EventDelete
	case op.Has(fsnotify.Rename):
		return EventRename
	default:
		return EventModify
	}
}
