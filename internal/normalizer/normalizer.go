// Package normalizer turns raw source events into store deltas. It keys
// every entity canonically, coalesces bursts for the same entity into one
// delta, and reconciles full re-reads against the current snapshot.
package normalizer

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/store"
)

// DefaultDebounce is the coalescing window.
const DefaultDebounce = 50 * time.Millisecond

// Store is the part of the state store the normalizer writes to.
type Store interface {
	Commit(deltas []model.Delta) (uint64, error)
	Snapshot() *store.Snapshot
}

// Normalizer is the sole writer of the store. Its methods are not safe for
// concurrent use; Run owns it once started.
type Normalizer struct {
	store    Store
	debounce time.Duration
	now      func() time.Time

	// paths maps source -> path -> refs that path contributed.
	paths map[string]map[string][]model.Ref

	pending []model.Delta
	slot    map[model.Ref]int // index into pending for keyed entities

	monitorSeq uint64
}

// New creates a normalizer writing to st. A non-positive debounce commits
// after every event.
func New(st Store, debounce time.Duration) *Normalizer {
	return &Normalizer{
		store:    st,
		debounce: debounce,
		now:      time.Now,
		paths:    make(map[string]map[string][]model.Ref),
		slot:     make(map[model.Ref]int),
	}
}

// Canonical returns the store key for a payload. Keys depend only on the
// payload, never on file names or arrival order.
func Canonical(p model.Payload) string {
	switch v := p.(type) {
	case model.Interface:
		return v.Name
	case model.Workload:
		return strings.ToLower(v.ID)
	case model.Certificate:
		return v.Fingerprint
	case model.Diagnostic:
		return v.Key()
	case model.SourceHealth:
		return v.Name
	default:
		return ""
	}
}

// refOf returns the canonical ref of an item, falling back to the key the
// source supplied. A scoped item is keyed "scope/key".
func refOf(it events.Item) (model.Ref, bool) {
	if it.Payload == nil {
		return model.Ref{}, false
	}
	key := Canonical(it.Payload)
	if key == "" {
		key = it.Key
	}
	if key == "" {
		return model.Ref{}, false
	}
	if it.Scope != "" {
		key = it.Scope + "/" + key
	}
	return model.Ref{Kind: it.Payload.Kind(), Key: key}, true
}

// Translate maps one event onto deltas and updates the path bookkeeping.
// Resync events need the current snapshot and are handled by Reconcile.
func (n *Normalizer) Translate(ev events.Event) []model.Delta {
	at := ev.Time
	if at.IsZero() {
		at = n.now()
	}

	switch ev.Type {
	case events.TypeDocument:
		return n.document(ev, at)

	case events.TypeRemoved:
		var deltas []model.Delta
		for _, ref := range n.paths[ev.Source][ev.Path] {
			if !n.contributedElsewhere(ev.Source, ev.Path, ref) {
				deltas = append(deltas, model.Remove(ev.Source, ref, at))
			}
		}
		delete(n.paths[ev.Source], ev.Path)
		return deltas

	case events.TypeDiagnostic:
		if ev.Diagnostic == nil {
			return nil
		}
		d := *ev.Diagnostic
		if d.Origin == model.OriginMonitor {
			d.Seq = n.nextMonitorSeq()
		}
		if d.Time.IsZero() {
			d.Time = at
		}
		return []model.Delta{model.Upsert(ev.Source, d.Key(), d, at)}

	case events.TypeMalformed:
		log.Printf("[normalizer] %s: %v", ev.Source, ev.Err)
		return []model.Delta{n.monitorDiag(ev.Source, model.SevErr, fmt.Sprintf("%s: %v", ev.Source, ev.Err), at)}

	case events.TypeSourceState:
		if ev.Health == nil {
			return nil
		}
		h := *ev.Health
		return []model.Delta{model.Upsert(ev.Source, Canonical(h), h, at)}

	default:
		return nil
	}
}

func (n *Normalizer) document(ev events.Event, at time.Time) []model.Delta {
	deltas := make([]model.Delta, 0, len(ev.Items))
	fresh := make(map[model.Ref]bool, len(ev.Items))
	refs := make([]model.Ref, 0, len(ev.Items))

	for _, it := range ev.Items {
		ref, ok := refOf(it)
		if !ok {
			continue
		}
		if !fresh[ref] {
			refs = append(refs, ref)
		}
		fresh[ref] = true
		deltas = append(deltas, model.Upsert(ev.Source, ref.Key, it.Payload, at))
	}

	for _, ref := range n.paths[ev.Source][ev.Path] {
		if !fresh[ref] && !n.contributedElsewhere(ev.Source, ev.Path, ref) {
			deltas = append(deltas, model.Remove(ev.Source, ref, at))
		}
	}

	if n.paths[ev.Source] == nil {
		n.paths[ev.Source] = make(map[string][]model.Ref)
	}
	n.paths[ev.Source][ev.Path] = refs
	return deltas
}

func (n *Normalizer) contributedElsewhere(source, path string, ref model.Ref) bool {
	for p, refs := range n.paths[source] {
		if p == path {
			continue
		}
		for _, r := range refs {
			if r == ref {
				return true
			}
		}
	}
	return false
}

func (n *Normalizer) nextMonitorSeq() uint64 {
	seq := n.monitorSeq
	n.monitorSeq++
	return seq
}

func (n *Normalizer) monitorDiag(source string, sev model.Severity, msg string, at time.Time) model.Delta {
	d := model.Diagnostic{
		Seq:      n.nextMonitorSeq(),
		Origin:   model.OriginMonitor,
		Severity: sev,
		Time:     at,
		Message:  msg,
	}
	return model.Upsert(source, d.Key(), d, at)
}

// Handle queues the deltas for ev. Resync events discard what is pending for
// the kinds their source owns and commit the reconciliation immediately.
func (n *Normalizer) Handle(ev events.Event) {
	if ev.Type == events.TypeResync {
		n.resync(ev)
		return
	}
	for _, d := range n.Translate(ev) {
		n.queue(d)
	}
}

// queue adds d to the pending batch. A later delta for an already pending
// entity replaces it in place, so N updates become one. Diagnostics are
// records, not state, and are never merged.
func (n *Normalizer) queue(d model.Delta) {
	if d.Kind == model.KindDiagnostic {
		n.pending = append(n.pending, d)
		return
	}
	ref := d.Ref()
	if i, ok := n.slot[ref]; ok {
		n.pending[i] = d
		return
	}
	n.slot[ref] = len(n.pending)
	n.pending = append(n.pending, d)
}

// Pending returns the number of queued deltas.
func (n *Normalizer) Pending() int { return len(n.pending) }

func (n *Normalizer) resync(ev events.Event) {
	scoped := make(map[model.Kind]bool, len(ev.Kinds))
	for _, k := range ev.Kinds {
		scoped[k] = true
	}
	kept := n.pending[:0]
	for _, d := range n.pending {
		if d.Source != ev.Source || !scoped[d.Kind] {
			kept = append(kept, d)
		}
	}
	n.pending = kept
	n.reindex()

	byPath := make(map[string][]model.Ref)
	for _, it := range ev.Items {
		if ref, ok := refOf(it); ok && it.Path != "" {
			byPath[it.Path] = append(byPath[it.Path], ref)
		}
	}
	n.paths[ev.Source] = byPath

	at := ev.Time
	if at.IsZero() {
		at = n.now()
	}
	deltas := Reconcile(n.store.Snapshot(), ev.Source, ev.Kinds, ev.Items, at)
	if len(deltas) > 0 {
		log.Printf("[normalizer] resync %s: %d changes", ev.Source, len(deltas))
	}
	n.commit(deltas)
}

func (n *Normalizer) reindex() {
	clear(n.slot)
	for i, d := range n.pending {
		if d.Kind != model.KindDiagnostic {
			n.slot[d.Ref()] = i
		}
	}
}

// Flush commits everything pending as one batch.
func (n *Normalizer) Flush() {
	if len(n.pending) == 0 {
		return
	}
	batch := n.pending
	n.pending = nil
	clear(n.slot)
	n.commit(batch)
}

// commit writes a batch and turns store rejections into diagnostics.
func (n *Normalizer) commit(batch []model.Delta) {
	if len(batch) == 0 {
		return
	}
	_, err := n.store.Commit(batch)
	if err == nil {
		return
	}

	errs := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	}
	at := n.now()
	diags := make([]model.Delta, 0, len(errs))
	for _, e := range errs {
		log.Printf("[normalizer] rejected: %v", e)
		diags = append(diags, n.monitorDiag("normalizer", model.SevErr, e.Error(), at))
	}
	if _, err := n.store.Commit(diags); err != nil {
		log.Printf("[normalizer] recording rejections: %v", err)
	}
}

// Run consumes events until ctx is cancelled or in is closed, committing
// coalesced batches when the debounce window expires. Pending deltas are
// flushed before it returns.
func (n *Normalizer) Run(ctx context.Context, in <-chan events.Event) error {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			n.Flush()
			return nil

		case ev, ok := <-in:
			if !ok {
				n.Flush()
				return nil
			}
			n.Handle(ev)
			switch {
			case n.Pending() == 0:
			case n.debounce <= 0:
				n.Flush()
			case fire == nil:
				// The window opens on the first pending delta and is not
				// extended by later ones.
				if timer == nil {
					timer = time.NewTimer(n.debounce)
				} else {
					timer.Reset(n.debounce)
				}
				fire = timer.C
			}

		case <-fire:
			fire = nil
			n.Flush()
		}
	}
}
