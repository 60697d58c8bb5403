// Package store owns the canonical device state. All mutation goes through
// Commit; readers receive immutable, versioned snapshots.
package store

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/ringbuf"
)

// Store is a single-writer, multi-reader entity store.
type Store struct {
	mu   sync.Mutex // serialises writers
	cur  atomic.Pointer[Snapshot]
	ring *ringbuf.Ring[model.Diagnostic]
	now  func() time.Time

	subMu   sync.Mutex
	subs    map[int]chan uint64
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the commit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store at version 0 whose diagnostic history holds at
// most ringCapacity records.
func New(ringCapacity int, opts ...Option) *Store {
	s := &Store{
		ring: ringbuf.New[model.Diagnostic](ringCapacity),
		now:  time.Now,
		subs: make(map[int]chan uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	empty := &Snapshot{at: s.now()}
	for i := range empty.kinds {
		empty.kinds[i] = map[string]*model.Entity{}
	}
	s.cur.Store(empty)
	return s
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Version returns the current version.
func (s *Store) Version() uint64 {
	return s.cur.Load().version
}

// RingCapacity returns the fixed diagnostic history size.
func (s *Store) RingCapacity() int {
	return s.ring.Cap()
}

// Apply commits a single delta.
func (s *Store) Apply(d model.Delta) (uint64, error) {
	return s.Commit([]model.Delta{d})
}

// Commit applies deltas in order as one atomic step and returns the resulting
// version. A batch that changes nothing leaves the version unchanged. Deltas
// with malformed payloads are skipped and reported as ErrMalformedPayload;
// the rest of the batch still applies.
func (s *Store) Commit(deltas []model.Delta) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.cur.Load()
	next := &Snapshot{
		kinds:       old.kinds,
		diagnostics: old.diagnostics,
		diagTotal:   old.diagTotal,
	}
	var cloned [model.NumKinds]bool
	var errs []error
	changed, diagChanged := false, false
	now := s.now()

	for _, d := range deltas {
		if err := check(d); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s %s from %s: %v", model.ErrMalformedPayload, d.Op, d.Ref(), d.Source, err))
			continue
		}

		if d.Kind == model.KindDiagnostic {
			if d.Op == model.OpUpsert {
				s.ring.Push(d.Payload.(model.Diagnostic))
				diagChanged = true
			}
			continue
		}

		m := next.kinds[d.Kind]
		prev, exists := m[d.Key]

		switch d.Op {
		case model.OpUpsert:
			if exists && prev.Source == d.Source && reflect.DeepEqual(prev.Payload, d.Payload) {
				continue
			}
			e := &model.Entity{
				Kind:     d.Kind,
				Key:      d.Key,
				Source:   d.Source,
				Payload:  d.Payload,
				Revision: 1,
				Updated:  now,
			}
			if exists {
				e.Previous = prev.Payload
				e.Revision = prev.Revision + 1
			}
			if !cloned[d.Kind] {
				m = clone(m)
				next.kinds[d.Kind] = m
				cloned[d.Kind] = true
			}
			m[d.Key] = e
		case model.OpRemove:
			if !exists {
				continue
			}
			if !cloned[d.Kind] {
				m = clone(m)
				next.kinds[d.Kind] = m
				cloned[d.Kind] = true
			}
			delete(m, d.Key)
		}
		changed = true
	}

	if diagChanged {
		next.diagnostics = s.ring.Items()
		next.diagTotal = s.ring.Total()
		changed = true
	}

	if !changed {
		return old.version, errors.Join(errs...)
	}

	next.version = old.version + 1
	next.at = now
	s.cur.Store(next)
	s.notify(next.version)

	return next.version, errors.Join(errs...)
}

// check rejects deltas the store cannot apply.
func check(d model.Delta) error {
	if !d.Kind.Valid() {
		return errors.New("unknown kind")
	}
	if d.Key == "" {
		return errors.New("empty key")
	}
	switch d.Op {
	case model.OpRemove:
		return nil
	case model.OpUpsert:
	default:
		return fmt.Errorf("unknown op %d", d.Op)
	}
	if d.Payload == nil {
		return errors.New("missing payload")
	}
	if d.Payload.Kind() != d.Kind {
		return fmt.Errorf("payload kind %s does not match %s", d.Payload.Kind(), d.Kind)
	}
	return d.Payload.Validate()
}

func clone(m map[string]*model.Entity) map[string]*model.Entity {
	out := make(map[string]*model.Entity, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Subscribe registers for change notifications. The channel holds at most
// one pending version; bursts of commits collapse into a single wakeup, so
// consumers should always read Snapshot rather than trust the value. The
// returned function unsubscribes and closes the channel.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	ch := make(chan uint64, 1)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Store) notify(version uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- version:
		default:
			// A wakeup is already pending.
		}
	}
}
