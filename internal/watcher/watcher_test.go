package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"retrospec/internal/slogutil"
)

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		eventType EventType
		want      string
	}{
		{EventCreate, "create"},
		{EventModify, "modify"},
		{EventDelete, "delete"},
		{EventRename, "rename"},
		{EventType(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.eventType.String()
			if got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Debounce != 500*time.Millisecond {
		t.Errorf("Debounce = %v, want 500ms", config.Debounce)
	}
	found := false
	for _, p := range config.IgnorePatterns {
		if p == "**/.retrospec/**" {
			found = true
		}
	}
	if !found {
		t.Error("IgnorePatterns should contain the retrospec data directory")
	}
}

func TestNewRequiresRoots(t *testing.T) {
	if _, err := New(DefaultConfig(), slogutil.NewDiscardLogger(), nil); err == nil {
		t.Error("New() without roots should fail")
	}
}

func TestNewRejectsBadPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Roots = []string{t.TempDir()}
	cfg.IgnorePatterns = []string{"[unclosed"}
	if _, err := New(cfg, slogutil.NewDiscardLogger(), nil); err == nil {
		t.Error("New() with an invalid pattern should fail")
	}
}

func TestWatcherIsIgnored(t *testing.T) {
	root := t.TempDir()
	cfg := DefaultConfig()
	cfg.Roots = []string{root}
	w, err := New(cfg, slogutil.NewDiscardLogger(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.fs.Close()

	tests := []struct {
		path string
		want bool
	}{
		{"src/app.js", false},
		{"debug.log", true},
		{"src/deep/file.tmp", true},
		{"node_modules", true},
		{"node_modules/lib/index.js", true},
		{".git/HEAD", true},
		{".retrospec/snapshot.json", true},
		{"src/app.js~", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := w.IsIgnored(filepath.Join(root, filepath.FromSlash(tt.path)))
			if got != tt.want {
				t.Errorf("IsIgnored(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestDedupe(t *testing.T) {
	now := time.Now()
	got := Dedupe([]Event{
		{Type: EventCreate, Path: "b.js", Timestamp: now},
		{Type: EventModify, Path: "a.js", Timestamp: now},
		{Type: EventModify, Path: "b.js", Timestamp: now.Add(time.Millisecond)},
	})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Path != "a.js" || got[1].Path != "b.js" {
		t.Errorf("order = %v", got)
	}
	if got[1].Type != EventModify {
		t.Errorf("b.js type = %v, want latest (modify)", got[1].Type)
	}
}

func TestBatchDebouncerAdd(t *testing.T) {
	var mu sync.Mutex
	var batches [][]Event
	b := NewBatchDebouncer(30*time.Millisecond, func(events []Event) {
		mu.Lock()
		batches = append(batches, events)
		mu.Unlock()
	})

	b.Add(Event{Path: "a.js", Timestamp: time.Now()})
	b.Add(Event{Path: "b.js", Timestamp: time.Now()})
	b.Add(Event{Path: "a.js", Timestamp: time.Now()})

	if n := b.EventCount(); n != 3 {
		t.Errorf("EventCount() = %d, want 3", n)
	}

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(batches) != 1 {
		t.Fatalf("emitted %d batches, want 1", len(batches))
	}
	if len(batches[0]) != 2 {
		t.Errorf("batch size = %d, want 2 after dedupe", len(batches[0]))
	}
}

func TestBatchDebouncerCancel(t *testing.T) {
	emitted := false
	b := NewBatchDebouncer(20*time.Millisecond, func([]Event) { emitted = true })
	b.Add(Event{Path: "a.js"})
	b.Cancel()
	time.Sleep(60 * time.Millisecond)

	if emitted {
		t.Error("Cancel() should drop pending events")
	}
	if b.EventCount() != 0 {
		t.Error("EventCount() should be 0 after Cancel()")
	}
}

func TestBatchDebouncerFlush(t *testing.T) {
	var got []Event
	b := NewBatchDebouncer(time.Hour, func(events []Event) { got = events })
	b.Add(Event{Path: "a.js"})
	b.Flush()

	if len(got) != 1 {
		t.Errorf("Flush() emitted %d events, want 1", len(got))
	}
}

func TestBatchDebouncerNoEmitWithNoEvents(t *testing.T) {
	called := false
	b := NewBatchDebouncer(time.Millisecond, func([]Event) { called = true })
	b.Flush()
	if called {
		t.Error("Flush() with no events should not emit")
	}
}

func TestWatcherRun(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Roots = []string{root}
	cfg.Debounce = 20 * time.Millisecond

	got := make(chan []Event, 4)
	w, err := New(cfg, slogutil.NewDiscardLogger(), func(_ context.Context, events []Event) {
		got <- events
	})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Wait for the initial directories to be registered.
	deadline := time.Now().Add(2 * time.Second)
	for w.WatchedDirs() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := os.WriteFile(filepath.Join(root, "src", "app.js"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "ignored.log"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case events := <-got:
		for _, e := range events {
			if filepath.Base(e.Path) == "ignored.log" {
				t.Errorf("ignored file delivered: %v", e)
			}
		}
		if len(events) == 0 || filepath.Base(events[0].Path) != "app.js" {
			t.Errorf("events = %v, want app.js", events)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no change batch delivered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}
