// Package statusfiles watches the status and certificate directories and
// turns file changes into source events.
package statusfiles

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/config"
	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/source/statusdoc"
	"github.com/Dicklesworthstone/edgemon/internal/watcher"
)

// Name is the source name used for ownership and health.
const Name = "status"

// Kinds are the entity kinds this source owns.
var Kinds = []model.Kind{model.KindInterface, model.KindWorkload, model.KindCertificate}

// Source reads status documents and certificates.
type Source struct {
	dirs         []string
	recursive    bool
	ignore       []string
	debounce     time.Duration
	forcePoll    bool
	pollInterval time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithDebounce sets the watcher batching window.
func WithDebounce(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithPolling forces the polling watcher with the given interval.
func WithPolling(interval time.Duration) Option {
	return func(s *Source) {
		s.forcePoll = true
		s.pollInterval = interval
	}
}

// New creates a source over the configured status and certificate directories.
func New(cfg config.SourcesConfig, opts ...Option) *Source {
	s := &Source{
		recursive: cfg.Recursive,
		ignore:    cfg.Ignore,
		debounce:  watcher.DefaultDebounceDuration,
	}
	s.dirs = append(s.dirs, cfg.StatusDirs...)
	s.dirs = append(s.dirs, cfg.CertDirs...)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name implements resilience.Source.
func (s *Source) Name() string { return Name }

// Dirs returns the watched directories.
func (s *Source) Dirs() []string { return s.dirs }

// Run emits a full resync, then one event per changed file until ctx is
// cancelled. A watched directory that disappears ends the run with an error.
func (s *Source) Run(ctx context.Context, emit events.Emitter) error {
	batches := make(chan []watcher.Event, 16)
	fatal := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	opts := []watcher.Option{
		watcher.WithRecursive(s.recursive),
		watcher.WithIgnorePaths(s.ignore),
		watcher.WithDebounceDuration(s.debounce),
		watcher.WithEventFilter(watcher.Create | watcher.Write | watcher.Remove | watcher.Rename | watcher.Overflow),
		watcher.WithErrorHandler(func(err error) {
			if errors.Is(err, watcher.ErrRootRemoved) {
				select {
				case fatal <- err:
				default:
				}
				return
			}
			log.Printf("[statusfiles] watch error: %v", err)
		}),
	}
	if s.forcePoll {
		opts = append(opts, watcher.WithPolling(true), watcher.WithPollInterval(s.pollInterval))
	}

	w, err := watcher.New(func(evs []watcher.Event) {
		select {
		case batches <- evs:
		case <-done:
		}
	}, opts...)
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	for _, dir := range s.dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	if w.Polling() {
		log.Printf("[statusfiles] polling %d directories", len(s.dirs))
	}

	s.resync(emit)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case batch := <-batches:
			s.handle(batch, emit)
		}
	}
}

// handle turns one watcher batch into events. An overflow discards the batch
// and re-reads everything.
func (s *Source) handle(batch []watcher.Event, emit events.Emitter) {
	for _, ev := range batch {
		if ev.Type&watcher.Overflow != 0 {
			log.Printf("[statusfiles] %v, resyncing", model.ErrNotificationOverflow)
			s.report(emit, model.SourceResyncing)
			s.resync(emit)
			s.report(emit, model.SourceOK)
			return
		}
	}

	rescan := false
	for _, ev := range batch {
		if ev.IsDir {
			// Files inside a new or vanished directory produce no events of
			// their own.
			rescan = true
			continue
		}
		s.file(ev.Path, emit)
	}
	if rescan {
		s.resync(emit)
	}
}

// file emits the current state of one path.
func (s *Source) file(path string, emit events.Emitter) {
	if statusdoc.FormatFor(path) == statusdoc.FormatUnknown {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			emit(events.Removed(Name, path))
			return
		}
		emit(events.Malformed(Name, path, model.Classify(err)))
		return
	}
	items, ok := s.decode(path, data, emit)
	if !ok {
		return
	}
	emit(events.Document(Name, path, items))
}

// decode reports every invalid record and returns the valid rest. ok is
// false when the document as a whole could not be read.
func (s *Source) decode(path string, data []byte, emit events.Emitter) ([]events.Item, bool) {
	items, err := statusdoc.Decode(path, data)
	var skipped statusdoc.RecordErrors
	switch {
	case errors.As(err, &skipped):
		for _, e := range skipped {
			emit(events.Malformed(Name, path, e))
		}
	case err != nil:
		emit(events.Malformed(Name, path, err))
		return nil, false
	}
	return items, true
}

// resync reads every directory from scratch. Files that fail to decode are
// reported and contribute nothing; invalid records are reported and skipped.
func (s *Source) resync(emit events.Emitter) {
	var items []events.Item
	for _, path := range s.scan() {
		data, err := os.ReadFile(path)
		if err != nil {
			emit(events.Malformed(Name, path, model.Classify(err)))
			continue
		}
		decoded, ok := s.decode(path, data, emit)
		if !ok {
			continue
		}
		items = append(items, decoded...)
	}
	emit(events.Resync(Name, Kinds, items))
}

// scan lists the decodable files under every directory in a stable order.
func (s *Source) scan() []string {
	var paths []string
	for _, dir := range s.dirs {
		err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if path == dir {
				return nil
			}
			if s.ignored(path) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if !s.recursive {
					return filepath.SkipDir
				}
				return nil
			}
			if statusdoc.FormatFor(path) != statusdoc.FormatUnknown {
				paths = append(paths, path)
			}
			return nil
		})
		if err != nil {
			log.Printf("[statusfiles] scanning %s: %v", dir, err)
		}
	}
	sort.Strings(paths)
	return paths
}

func (s *Source) ignored(path string) bool {
	name := filepath.Base(path)
	for _, pattern := range s.ignore {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

func (s *Source) report(emit events.Emitter, state model.SourceState) {
	emit(events.State(model.SourceHealth{Name: Name, State: state, Since: time.Now()}))
}
