package normalizer

import (
	"reflect"
	"sort"
	"time"

	"github.com/Dicklesworthstone/edgemon/internal/events"
	"github.com/Dicklesworthstone/edgemon/internal/model"
	"github.com/Dicklesworthstone/edgemon/internal/store"
)

// Reconcile compares a full re-read of source against snap and returns the
// deltas that make the store match it: upserts for new or changed entities
// and removes for entities the source owns that the re-read no longer has.
// Only kinds listed in kinds are considered. Applying the result yields the
// same state as reading the source from scratch into an empty store.
func Reconcile(snap *store.Snapshot, source string, kinds []model.Kind, items []events.Item, at time.Time) []model.Delta {
	scoped := make(map[model.Kind]bool, len(kinds))
	for _, k := range kinds {
		scoped[k] = true
	}

	fresh := make(map[model.Ref]model.Payload, len(items))
	var order []model.Ref
	for _, it := range items {
		ref, ok := refOf(it)
		if !ok || !scoped[ref.Kind] {
			continue
		}
		if _, seen := fresh[ref]; !seen {
			order = append(order, ref)
		}
		fresh[ref] = it.Payload
	}

	var deltas []model.Delta
	for _, ref := range order {
		p := fresh[ref]
		if e, ok := snap.Get(ref); ok && e.Source == source && reflect.DeepEqual(e.Payload, p) {
			continue
		}
		deltas = append(deltas, model.Upsert(source, ref.Key, p, at))
	}

	for _, kind := range kinds {
		owned := snap.Owned(source, kind)
		keys := make([]string, 0, len(owned))
		for key := range owned {
			if _, ok := fresh[model.Ref{Kind: kind, Key: key}]; !ok {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		for _, key := range keys {
			deltas = append(deltas, model.Remove(source, model.Ref{Kind: kind, Key: key}, at))
		}
	}
	return deltas
}
