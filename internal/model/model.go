// Package model defines the canonical device entities and the deltas that
// mutate them.
package model

import (
	"fmt"
	"time"
)

// Kind identifies an entity type.
type Kind uint8

const (
	KindInterface Kind = iota
	KindWorkload
	KindCertificate
	KindDiagnostic
	KindSource

	// NumKinds is the number of entity kinds.
	NumKinds = int(KindSource) + 1
)

// Kinds lists every entity kind in display order.
var Kinds = [NumKinds]Kind{KindInterface, KindWorkload, KindCertificate, KindDiagnostic, KindSource}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindWorkload:
		return "workload"
	case KindCertificate:
		return "certificate"
	case KindDiagnostic:
		return "diagnostic"
	case KindSource:
		return "source"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return int(k) < NumKinds
}

// Op is the delta operation.
type Op uint8

const (
	OpUpsert Op = iota
	OpRemove
)

func (o Op) String() string {
	if o == OpRemove {
		return "remove"
	}
	return "upsert"
}

// Ref addresses one entity.
type Ref struct {
	Kind Kind
	Key  string
}

func (r Ref) String() string {
	return r.Kind.String() + "/" + r.Key
}

// Payload is implemented by every entity variant.
type Payload interface {
	Kind() Kind
	Validate() error
}

// Delta is a single change to one entity.
type Delta struct {
	Op         Op
	Kind       Kind
	Key        string
	Source     string
	Payload    Payload
	SourceTime time.Time
}

// Ref returns the entity the delta targets.
func (d Delta) Ref() Ref {
	return Ref{Kind: d.Kind, Key: d.Key}
}

// Upsert builds an upsert delta for p.
func Upsert(source, key string, p Payload, at time.Time) Delta {
	return Delta{Op: OpUpsert, Kind: p.Kind(), Key: key, Source: source, Payload: p, SourceTime: at}
}

// Remove builds a remove delta.
func Remove(source string, ref Ref, at time.Time) Delta {
	return Delta{Op: OpRemove, Kind: ref.Kind, Key: ref.Key, Source: source, SourceTime: at}
}

// Entity is one live, keyed object in a snapshot.
type Entity struct {
	Kind     Kind
	Key      string
	Source   string
	Payload  Payload
	Previous Payload // payload replaced by the last update, nil after create
	Revision uint64  // 1 on create, +1 per changing upsert
	Updated  time.Time
}

// Ref returns the entity address.
func (e *Entity) Ref() Ref {
	return Ref{Kind: e.Kind, Key: e.Key}
}
