package watcher

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

// collector gathers delivered batches for assertions.
type collector struct {
	mu      sync.Mutex
	batches [][]Event
	errs    []error
	signal  chan struct{}
}

func newCollector() *collector {
	return &collector{signal: make(chan struct{}, 64)}
}

func (c *collector) handle(events []Event) {
	c.mu.Lock()
	c.batches = append(c.batches, events)
	c.mu.Unlock()
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *collector) handleErr(err error) {
	c.mu.Lock()
	c.errs = append(c.errs, err)
	c.mu.Unlock()
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

func (c *collector) events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.errs...)
}

func (c *collector) waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatal("timeout waiting for watcher")
		}
	}
}

func hasEvent(events []Event, name string, typ EventType) bool {
	for _, e := range events {
		if filepath.Base(e.Path) == name && e.Type&typ != 0 {
			return true
		}
	}
	return false
}

func TestWatcherEvents(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCollector()

	w, err := New(c.handle, WithDebounceDuration(30*time.Millisecond))
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Close()

	if err := w.Add(tmpDir); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}

	testFile := filepath.Join(tmpDir, "eth0.json")
	if err := os.WriteFile(testFile, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, func() bool { return hasEvent(c.events(), "eth0.json", Create) })

	if err := os.Remove(testFile); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, func() bool { return hasEvent(c.events(), "eth0.json", Remove) })
}

func TestWatcherIgnorePaths(t *testing.T) {
	tmpDir := t.TempDir()
	c := newCollector()

	w, err := New(c.handle,
		WithDebounceDuration(30*time.Millisecond),
		WithIgnorePaths([]string{"*.tmp"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add(tmpDir); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(tmpDir, "partial.tmp"), []byte("x"), 0o644)
	os.WriteFile(filepath.Join(tmpDir, "done.yaml"), []byte("x"), 0o644)
	c.waitFor(t, func() bool { return hasEvent(c.events(), "done.yaml", Create) })

	if hasEvent(c.events(), "partial.tmp", All) {
		t.Errorf("ignored file reported: %+v", c.events())
	}
}

func TestWatcherRecursive(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "workloads")
	if err := os.Mkdir(subDir, 0o755); err != nil {
		t.Fatal(err)
	}
	c := newCollector()

	w, err := New(c.handle, WithRecursive(true), WithDebounceDuration(30*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add(tmpDir); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(subDir, "app.yaml"), []byte("x"), 0o644)
	c.waitFor(t, func() bool { return hasEvent(c.events(), "app.yaml", Create|Write) })
}

func TestWatcherOverflow(t *testing.T) {
	c := newCollector()
	w, err := New(c.handle, WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	w.mu.Lock()
	w.pending = append(w.pending, Event{Path: "/a", Type: Write}, Event{Path: "/b", Type: Create})
	w.mu.Unlock()

	w.handleError(fsnotify.ErrEventOverflow)
	// Events after the overflow are covered by the resync.
	w.handleEvent(fsnotify.Event{Name: "/c", Op: fsnotify.Write})

	c.waitFor(t, func() bool { return len(c.events()) > 0 })

	got := c.events()
	if len(got) != 1 || got[0].Type != Overflow || got[0].Path != "" {
		t.Errorf("overflow batch = %+v, want single Overflow event", got)
	}
	if len(c.errors()) != 0 {
		t.Errorf("overflow reported as error: %v", c.errors())
	}
}

func TestWatcherRootRemoved(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "status")
	if err := os.Mkdir(root, 0o755); err != nil {
		t.Fatal(err)
	}
	c := newCollector()

	w, err := New(c.handle, WithErrorHandler(c.handleErr), WithDebounceDuration(20*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		t.Fatal(err)
	}

	if err := os.RemoveAll(root); err != nil {
		t.Fatal(err)
	}
	c.waitFor(t, func() bool {
		for _, err := range c.errors() {
			if errors.Is(err, ErrRootRemoved) && errors.Is(err, os.ErrNotExist) {
				return true
			}
		}
		return false
	})
	if len(w.Roots()) != 0 {
		t.Errorf("Roots() = %v after removal, want none", w.Roots())
	}
}

func TestWatcherClose(t *testing.T) {
	w, err := New(func(events []Event) {})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() again failed: %v", err)
	}
	if err := w.Add(t.TempDir()); err != ErrClosed {
		t.Errorf("Add() after close = %v, want %v", err, ErrClosed)
	}
}

func TestWatcherNonExistentPath(t *testing.T) {
	w, err := New(func(events []Event) {})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer w.Close()

	if err := w.Add("/nonexistent/path/that/does/not/exist"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Add() = %v, want ErrNotExist", err)
	}
}

func TestWatcherPollingCreateWriteRemove(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "cert.pem")
	c := newCollector()

	w, err := New(c.handle,
		WithPolling(true),
		WithPollInterval(20*time.Millisecond),
		WithDebounceDuration(20*time.Millisecond),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if !w.Polling() {
		t.Fatal("Polling() = false with WithPolling(true)")
	}
	if err := w.Add(tmpDir); err != nil {
		t.Fatal(err)
	}

	os.WriteFile(file, []byte("a"), 0o644)
	c.waitFor(t, func() bool { return hasEvent(c.events(), "cert.pem", Create) })

	os.WriteFile(file, []byte("longer"), 0o644)
	c.waitFor(t, func() bool { return hasEvent(c.events(), "cert.pem", Write) })

	os.Remove(file)
	c.waitFor(t, func() bool { return hasEvent(c.events(), "cert.pem", Remove) })
}

func TestWatcherPollingRootRemoved(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "certs")
	os.Mkdir(root, 0o755)
	c := newCollector()

	w, err := New(c.handle,
		WithPolling(true),
		WithPollInterval(20*time.Millisecond),
		WithErrorHandler(c.handleErr),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()
	if err := w.Add(root); err != nil {
		t.Fatal(err)
	}

	os.RemoveAll(root)
	c.waitFor(t, func() bool {
		for _, err := range c.errors() {
			if errors.Is(err, ErrRootRemoved) {
				return true
			}
		}
		return false
	})
}

func TestEventTypeString(t *testing.T) {
	tests := []struct {
		typ  EventType
		want string
	}{
		{0, "none"},
		{Create, "create"},
		{Create | Write, "create|write"},
		{Overflow, "overflow"},
	}
	for _, tt := range tests {
		if got := tt.typ.String(); got != tt.want {
			t.Errorf("EventType(%d).String() = %q, want %q", tt.typ, got, tt.want)
		}
	}
	if !Rename.Gone() || !Remove.Gone() || Write.Gone() {
		t.Error("Gone() misclassifies events")
	}
}

func TestEventTypeFromFsnotify(t *testing.T) {
	tests := []struct {
		op   fsnotify.Op
		want EventType
	}{
		{fsnotify.Create, Create},
		{fsnotify.Write, Write},
		{fsnotify.Remove, Remove},
		{fsnotify.Rename, Rename},
		{fsnotify.Chmod, Chmod},
		{fsnotify.Create | fsnotify.Write, Create | Write},
	}
	for _, tt := range tests {
		if got := eventTypeFromFsnotify(tt.op); got != tt.want {
			t.Errorf("eventTypeFromFsnotify(%v) = %v, want %v", tt.op, got, tt.want)
		}
	}
}
