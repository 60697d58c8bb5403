package store

import (
	"sort"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Snapshot is an immutable view of every entity at one version. Entities
// returned from a Snapshot are copies; the snapshot itself never changes.
type Snapshot struct {
	version     uint64
	at          time.Time
	kinds       [model.NumKinds]map[string]*model.Entity
	diagnostics []model.Diagnostic
	diagTotal   uint64
}

// Version is the commit counter this view reflects.
func (s *Snapshot) Version() uint64 { return s.version }

// At is when the commit happened.
func (s *Snapshot) At() time.Time { return s.at }

// Get returns one entity.
func (s *Snapshot) Get(ref model.Ref) (model.Entity, bool) {
	if !ref.Kind.Valid() {
		return model.Entity{}, false
	}
	e, ok := s.kinds[ref.Kind][ref.Key]
	if !ok {
		return model.Entity{}, false
	}
	return *e, true
}

// Len returns the number of live entities of a kind. Diagnostics report the
// history length.
func (s *Snapshot) Len(kind model.Kind) int {
	if kind == model.KindDiagnostic {
		return len(s.diagnostics)
	}
	if !kind.Valid() {
		return 0
	}
	return len(s.kinds[kind])
}

// List returns every entity of a kind sorted by key.
func (s *Snapshot) List(kind model.Kind) []model.Entity {
	if !kind.Valid() {
		return nil
	}
	m := s.kinds[kind]
	out := make([]model.Entity, 0, len(m))
	for _, e := range m {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Owned returns the entities of a kind last written by source.
func (s *Snapshot) Owned(source string, kind model.Kind) map[string]model.Entity {
	out := make(map[string]model.Entity)
	if !kind.Valid() {
		return out
	}
	for k, e := range s.kinds[kind] {
		if e.Source == source {
			out[k] = *e
		}
	}
	return out
}

// Diagnostics returns the diagnostic history, oldest first. The slice is
// shared with other readers and must not be modified.
func (s *Snapshot) Diagnostics() []model.Diagnostic {
	return s.diagnostics
}

// DiagnosticTotal counts every diagnostic ever committed, including evicted ones.
func (s *Snapshot) DiagnosticTotal() uint64 { return s.diagTotal }

// Sources returns the health of every source watcher, sorted by name.
func (s *Snapshot) Sources() []model.SourceHealth {
	list := s.List(model.KindSource)
	out := make([]model.SourceHealth, 0, len(list))
	for _, e := range list {
		if h, ok := e.Payload.(model.SourceHealth); ok {
			out = append(out, h)
		}
	}
	return out
}
