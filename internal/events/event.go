// Package events defines the raw events source watchers produce before the
// normalizer turns them into deltas.
package events

import (
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/model"
)

// Type represents the type of a raw source event.
type Type string

const (
	// TypeDocument carries every item currently found in one file.
	TypeDocument Type = "document"
	// TypeRemoved reports that a file disappeared.
	TypeRemoved Type = "removed"
	// TypeResync carries the complete state of a source after a full re-read.
	TypeResync Type = "resync"
	// TypeDiagnostic carries one parsed log record.
	TypeDiagnostic Type = "diagnostic"
	// TypeMalformed reports a record or file that could not be decoded.
	TypeMalformed Type = "malformed"
	// TypeSourceState reports a supervisor state change.
	TypeSourceState Type = "source_state"
)

// Item is one decoded entity with its source-specific identifier.
type Item struct {
	Path string
	Key  string
	// Scope prefixes the store key. Sources reporting the same kind under
	// overlapping names set distinct scopes so they never share an entity.
	Scope   string
	Payload model.Payload
}

// Event is a single raw source event.
type Event struct {
	Time   time.Time
	Type   Type
	Source string

	// Path is the file a document, removal or malformed record came from.
	Path string

	// Items holds decoded entities for document and resync events.
	Items []Item

	// Kinds scopes a resync to the entity kinds the source owns.
	Kinds []model.Kind

	Diagnostic *model.Diagnostic
	Health     *model.SourceHealth

	// Err is the decode failure for malformed events.
	Err error
}

// Emitter delivers events to the normalizer.
type Emitter func(Event)

// Document builds a document event.
func Document(source, path string, items []Item) Event {
	return Event{Time: time.Now(), Type: TypeDocument, Source: source, Path: path, Items: items}
}

// Removed builds a removal event.
func Removed(source, path string) Event {
	return Event{Time: time.Now(), Type: TypeRemoved, Source: source, Path: path}
}

// Resync builds a full-state event.
func Resync(source string, kinds []model.Kind, items []Item) Event {
	return Event{Time: time.Now(), Type: TypeResync, Source: source, Kinds: kinds, Items: items}
}

// Malformed builds a decode failure event.
func Malformed(source, path string, err error) Event {
	return Event{Time: time.Now(), Type: TypeMalformed, Source: source, Path: path, Err: err}
}

// Diag builds a diagnostic event.
func Diag(source string, d model.Diagnostic) Event {
	return Event{Time: time.Now(), Type: TypeDiagnostic, Source: source, Diagnostic: &d}
}

// State builds a source health event.
func State(h model.SourceHealth) Event {
	return Event{Time: time.Now(), Type: TypeSourceState, Source: h.Name, Health: &h}
}

// Chan returns an emitter that sends into ch, giving up when done closes.
func Chan(ch chan<- Event, done <-chan struct{}) Emitter {
	return func(ev Event) {
		select {
		case ch <- ev:
		case <-done:
		}
	}
}
