// Package watcher reports filesystem changes under a set of roots, batching
// bursts with a debouncer and signalling queue overflows so callers can
// re-read from scratch.
package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrClosed is returned when operations are called on a closed Watcher.
var ErrClosed = errors.New("watcher: watcher is closed")

// ErrRootRemoved is reported when a watched root disappears.
var ErrRootRemoved = errors.New("watcher: watched root removed")

// DefaultPollInterval is used when falling back to polling.
const DefaultPollInterval = time.Second

// EventType represents the type of file system event.
type EventType uint32

const (
	// Create is triggered when a file or directory is created.
	Create EventType = 1 << iota
	// Write is triggered when a file is modified.
	Write
	// Remove is triggered when a file or directory is removed.
	Remove
	// Rename is triggered when a file or directory is renamed.
	Rename
	// Chmod is triggered when file permissions change.
	Chmod
	// Overflow means the kernel queue dropped events; Path is empty and
	// every earlier event in the batch is discarded.
	Overflow
	// All events.
	All = Create | Write | Remove | Rename | Chmod | Overflow
)

func (t EventType) String() string {
	var parts []string
	for _, n := range []struct {
		bit  EventType
		name string
	}{{Create, "create"}, {Write, "write"}, {Remove, "remove"}, {Rename, "rename"}, {Chmod, "chmod"}, {Overflow, "overflow"}} {
		if t&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Gone reports whether the path no longer exists at its old name.
func (t EventType) Gone() bool {
	return t&(Remove|Rename) != 0
}

// Event represents a file system event.
type Event struct {
	// Path is the absolute path to the file or directory.
	Path string
	// Type is the type of event.
	Type EventType
	// IsDir is true if the event is for a directory.
	IsDir bool
}

func eventTypeFromFsnotify(op fsnotify.Op) EventType {
	var t EventType
	if op.Has(fsnotify.Create) {
		t |= Create
	}
	if op.Has(fsnotify.Write) {
		t |= Write
	}
	if op.Has(fsnotify.Remove) {
		t |= Remove
	}
	if op.Has(fsnotify.Rename) {
		t |= Rename
	}
	if op.Has(fsnotify.Chmod) {
		t |= Chmod
	}
	return t
}

// Handler receives a debounced batch of events.
type Handler func(events []Event)

// ErrorHandler is called when a watch error occurs.
type ErrorHandler func(err error)

// fileMeta stores file metadata for poll-based change detection.
type fileMeta struct {
	ModTime time.Time
	Size    int64
	Mode    os.FileMode
	IsDir   bool
}

// Watcher watches files and directories for changes.
type Watcher struct {
	fsWatcher    *fsnotify.Watcher
	debouncer    *Debouncer
	handler      Handler
	errorHandler ErrorHandler
	eventFilter  EventType
	recursive    bool
	ignore       []string

	pollMode     bool
	forcePoll    bool
	pollInterval time.Duration
	snapshots    map[string]fileMeta
	closeCh      chan struct{}

	mu       sync.Mutex
	roots    map[string]bool // paths passed to Add
	watched  map[string]bool // every path registered with fsnotify
	pending  []Event
	overflow bool
	closed   bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets the debounce duration for coalescing events.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debouncer = NewDebouncer(d)
		}
	}
}

// WithEventFilter sets which event types to watch.
func WithEventFilter(filter EventType) Option {
	return func(w *Watcher) {
		w.eventFilter = filter
	}
}

// WithRecursive enables recursive watching of directories.
func WithRecursive(recursive bool) Option {
	return func(w *Watcher) {
		w.recursive = recursive
	}
}

// WithIgnorePaths sets name patterns to ignore.
func WithIgnorePaths(patterns []string) Option {
	return func(w *Watcher) {
		w.ignore = patterns
	}
}

// WithErrorHandler sets the error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(w *Watcher) {
		w.errorHandler = handler
	}
}

// WithPollInterval sets the polling interval used in polling mode.
func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.pollInterval = d
		}
	}
}

// WithPolling forces polling mode.
func WithPolling(force bool) Option {
	return func(w *Watcher) {
		w.forcePoll = force
	}
}

// New creates a Watcher. When fsnotify cannot be initialised (for example
// the inotify instance limit is reached) it falls back to polling.
func New(handler Handler, opts ...Option) (*Watcher, error) {
	w := &Watcher{
		debouncer:    NewDebouncer(DefaultDebounceDuration),
		handler:      handler,
		eventFilter:  All,
		pollInterval: DefaultPollInterval,
		roots:        make(map[string]bool),
		watched:      make(map[string]bool),
		closeCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if !w.forcePoll {
		fsWatcher, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsWatcher = fsWatcher
			go w.run()
			return w, nil
		}
		w.reportError(fmt.Errorf("fsnotify unavailable, using polling fallback: %w", err))
	}

	w.pollMode = true
	w.snapshots = make(map[string]fileMeta)
	go w.runPoll()
	return w, nil
}

// Polling reports whether the watcher fell back to polling.
func (w *Watcher) Polling() bool {
	return w.pollMode
}

// Add watches path. Directories are watched for changes to their entries,
// recursively when enabled.
func (w *Watcher) Add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if w.roots[absPath] {
		return nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return err
	}

	if w.pollMode {
		entries, err := entriesForPath(absPath, info, w.recursive, w.isIgnored)
		if err != nil {
			return err
		}
		for p, meta := range entries {
			w.snapshots[p] = meta
		}
	} else if info.IsDir() && w.recursive {
		if err := w.addRecursive(absPath); err != nil {
			return err
		}
	} else {
		if err := w.fsWatcher.Add(absPath); err != nil {
			return err
		}
		w.watched[absPath] = true
	}

	w.roots[absPath] = true
	return nil
}

// Roots returns the paths passed to Add.
func (w *Watcher) Roots() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]string, 0, len(w.roots))
	for p := range w.roots {
		out = append(out, p)
	}
	return out
}

// Close stops the watcher and releases resources. Pending events are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.debouncer.Cancel()
	close(w.closeCh)
	w.mu.Unlock()

	if w.pollMode {
		return nil
	}
	return w.fsWatcher.Close()
}

func (w *Watcher) isIgnored(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range w.ignore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (w *Watcher) reportError(err error) {
	if w.errorHandler != nil {
		w.errorHandler(err)
	}
}

// addRecursive must be called with w.mu held.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			w.reportError(fmt.Errorf("walking %s: %w", path, err))
			return filepath.SkipDir
		}
		if !d.IsDir() || w.watched[path] {
			return nil
		}
		if path != root && w.isIgnored(path) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			if path == root {
				return err
			}
			w.reportError(fmt.Errorf("watching %s: %w", path, err))
			return nil
		}
		w.watched[path] = true
		return nil
	})
}

// run processes events from fsnotify.
func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.handleError(err)
		}
	}
}

func (w *Watcher) handleError(err error) {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		w.queueOverflow()
		return
	}
	w.reportError(err)
}

// queueOverflow replaces everything pending with one Overflow event.
func (w *Watcher) queueOverflow() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.overflow = true
	w.pending = nil
	w.mu.Unlock()
	w.schedule()
}

func (w *Watcher) handleEvent(fsEvent fsnotify.Event) {
	eventType := eventTypeFromFsnotify(fsEvent.Op)
	if eventType&w.eventFilter == 0 || w.isIgnored(fsEvent.Name) {
		return
	}

	isDir := false
	if info, err := os.Stat(fsEvent.Name); err == nil {
		isDir = info.IsDir()
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}

	var addErr error
	if w.recursive && isDir && eventType&Create != 0 && !w.watched[fsEvent.Name] {
		if addErr = w.fsWatcher.Add(fsEvent.Name); addErr == nil {
			w.watched[fsEvent.Name] = true
		}
	}

	rootGone := false
	if eventType.Gone() {
		delete(w.watched, fsEvent.Name)
		if w.roots[fsEvent.Name] {
			delete(w.roots, fsEvent.Name)
			rootGone = true
		}
	}

	if !w.overflow {
		w.pending = append(w.pending, Event{Path: fsEvent.Name, Type: eventType, IsDir: isDir})
	}
	w.mu.Unlock()

	if addErr != nil {
		w.reportError(fmt.Errorf("watching %s: %w", fsEvent.Name, addErr))
	}
	if rootGone {
		w.reportError(fmt.Errorf("%w: %s: %w", ErrRootRemoved, fsEvent.Name, os.ErrNotExist))
	}
	w.schedule()
}

// schedule arms the debouncer to deliver whatever is pending.
func (w *Watcher) schedule() {
	w.debouncer.Trigger(func() {
		w.mu.Lock()
		if w.closed {
			w.mu.Unlock()
			return
		}
		batch := w.pending
		if w.overflow {
			batch = []Event{{Type: Overflow}}
		}
		w.pending = nil
		w.overflow = false
		w.mu.Unlock()

		if len(batch) > 0 && w.handler != nil {
			w.handler(batch)
		}
	})
}

// runPoll scans watched roots periodically when fsnotify is unavailable.
func (w *Watcher) runPoll() {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.pollOnce()
		case <-w.closeCh:
			return
		}
	}
}

// pollOnce diffs the filesystem against the last scan.
func (w *Watcher) pollOnce() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	roots := make([]string, 0, len(w.roots))
	for p := range w.roots {
		roots = append(roots, p)
	}
	w.mu.Unlock()

	current := make(map[string]fileMeta)
	var missing []string
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				missing = append(missing, root)
			} else {
				w.reportError(err)
			}
			continue
		}
		entries, err := entriesForPath(root, info, w.recursive, w.isIgnored)
		if err != nil {
			w.reportError(err)
			continue
		}
		for p, meta := range entries {
			current[p] = meta
		}
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}

	var events []Event
	for path, meta := range current {
		prev, ok := w.snapshots[path]
		w.snapshots[path] = meta
		if !ok {
			events = append(events, Event{Path: path, Type: Create, IsDir: meta.IsDir})
			continue
		}
		var t EventType
		if meta.ModTime != prev.ModTime || meta.Size != prev.Size {
			t |= Write
		}
		if meta.Mode != prev.Mode {
			t |= Chmod
		}
		if t != 0 {
			events = append(events, Event{Path: path, Type: t, IsDir: meta.IsDir})
		}
	}
	for path, prev := range w.snapshots {
		if _, ok := current[path]; ok || !isPathUnderRoots(path, roots) {
			continue
		}
		events = append(events, Event{Path: path, Type: Remove, IsDir: prev.IsDir})
		delete(w.snapshots, path)
	}
	for _, root := range missing {
		delete(w.roots, root)
	}

	filtered := events[:0]
	for _, ev := range events {
		if ev.Type&w.eventFilter != 0 {
			filtered = append(filtered, ev)
		}
	}
	if !w.overflow {
		w.pending = append(w.pending, filtered...)
	}
	w.mu.Unlock()

	for _, root := range missing {
		w.reportError(fmt.Errorf("%w: %s: %w", ErrRootRemoved, root, os.ErrNotExist))
	}
	if len(filtered) > 0 {
		w.schedule()
	}
}

// isPathUnderRoots checks if path is under any of the provided roots.
func isPathUnderRoots(path string, roots []string) bool {
	for _, root := range roots {
		if path == root || strings.HasPrefix(path, root+string(os.PathSeparator)) {
			return true
		}
	}
	return false
}

// entriesForPath returns metadata for root and, for directories, its
// children (all descendants when recursive).
func entriesForPath(root string, info os.FileInfo, recursive bool, isIgnored func(string) bool) (map[string]fileMeta, error) {
	entries := make(map[string]fileMeta)
	add := func(path string, fi os.FileInfo) {
		entries[path] = fileMeta{ModTime: fi.ModTime(), Size: fi.Size(), Mode: fi.Mode(), IsDir: fi.IsDir()}
	}

	add(root, info)
	if !info.IsDir() {
		return entries, nil
	}

	if recursive {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == root {
				return nil
			}
			if isIgnored(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			fi, statErr := d.Info()
			if statErr != nil {
				return statErr
			}
			add(path, fi)
			return nil
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	}

	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	for _, d := range dirEntries {
		path := filepath.Join(root, d.Name())
		if isIgnored(path) {
			continue
		}
		fi, statErr := d.Info()
		if statErr != nil {
			if os.IsNotExist(statErr) {
				continue
			}
			return nil, statErr
		}
		add(path, fi)
	}
	return entries, nil
}
