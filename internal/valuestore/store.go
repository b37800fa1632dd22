package valuestore

import (
	"fmt"
	"sort"

	"github.com/blackcoderx/oasforge/internal/specmodel"
)

// Store is a case-sensitive mapping from dotted key to ValueSlot, owned
// by a single OperationFlow and never shared across flows (spec.md §5).
type Store struct {
	slots map[string]ValueSlot
}

// New builds an empty store.
func New() *Store {
	return &Store{slots: map[string]ValueSlot{}}
}

// Set assigns a raw value, classifying it into a ValueSlot.
func (s *Store) Set(key string, raw any) {
	s.slots[key] = ParseSlot(raw)
}

// SetSlot assigns an already-classified slot.
func (s *Store) SetSlot(key string, slot ValueSlot) {
	s.slots[key] = slot
}

// Delete removes a single key.
func (s *Store) Delete(key string) {
	delete(s.slots, key)
}

// Has reports whether a key is present.
func (s *Store) Has(key string) bool {
	_, ok := s.slots[key]
	return ok
}

// Keys returns every key currently in the store, sorted for determinism.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.slots))
	for k := range s.slots {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Slot returns the raw ValueSlot for a key.
func (s *Store) Slot(key string) (ValueSlot, bool) {
	v, ok := s.slots[key]
	return v, ok
}

// Placeholder returns the placeholder() view of spec.md §4.2: original
// template text for Dependent/Composite slots, or the literal value.
func (s *Store) Placeholder(key string) (any, bool) {
	slot, ok := s.slots[key]
	if !ok {
		return nil, false
	}
	if slot.Kind == Literal {
		return slot.Value, true
	}
	return slot.Template, true
}

// PlaceholderMap returns the placeholder() view of every key in the
// store, the shape the oracle's negative-scenario and materialization
// templates consume as "baseline values with placeholders preserved".
func (s *Store) PlaceholderMap() map[string]any {
	out := make(map[string]any, len(s.slots))
	for _, k := range s.Keys() {
		v, _ := s.Placeholder(k)
		out[k] = v
	}
	return out
}

// ErrUnresolved is the DependencyUnresolved error kind of spec.md §7: a
// ValueSlot references a key missing at build time.
type ErrUnresolved struct {
	Key         string
	MissingRefs []string
}

func (e *ErrUnresolved) Error() string {
	return fmt.Sprintf("value store: key %q references unresolved key(s) %v", e.Key, e.MissingRefs)
}

// Resolved returns the resolved() view of spec.md §4.2: every
// Dependent/Composite entry replaced by its evaluated value, looking up
// references against the store itself. Returns ErrUnresolved on the
// first reference that cannot be satisfied.
func (s *Store) Resolved() (map[string]any, error) {
	cache := map[string]any{}
	resolving := map[string]bool{}

	var resolveKey func(key string) (any, bool, []string)
	resolveKey = func(key string) (any, bool, []string) {
		if v, ok := cache[key]; ok {
			return v, true, nil
		}
		slot, ok := s.slots[key]
		if !ok {
			return nil, false, nil
		}
		if resolving[key] {
			return nil, false, []string{key}
		}
		resolving[key] = true
		defer delete(resolving, key)

		v, missing, ok := slot.Resolve(func(k string) (any, bool) {
			rv, rok, _ := resolveKey(k)
			return rv, rok
		})
		if !ok {
			return nil, false, missing
		}
		cache[key] = v
		return v, true, nil
	}

	out := make(map[string]any, len(s.slots))
	for _, key := range s.Keys() {
		v, ok, missing := resolveKey(key)
		if !ok {
			return nil, &ErrUnresolved{Key: key, MissingRefs: missing}
		}
		out[key] = v
	}
	return out, nil
}

// Override applies an overlay in the caller's stated iteration order,
// implementing the four merge rules of spec.md §4.2 verbatim. The
// overlay is an ordered slice of OverridePair values because order
// matters for "__undefined" vs. prefix-replace interactions.
func (s *Store) Override(overlay []OverridePair) {
	for _, pair := range overlay {
		s.applyOne(pair.Key, pair.RawValue)
	}
}

// OverridePair is one entry of an ordered overlay.
type OverridePair struct {
	Key      string
	RawValue any
}

func (s *Store) applyOne(key string, raw any) {
	if str, ok := raw.(string); ok && str == Undefined {
		// Rule 1: remove key and every key with prefix key. or key[
		for _, k := range s.Keys() {
			if specmodel.DottedKeyHasPrefix(k, key) {
				delete(s.slots, k)
			}
		}
		return
	}

	if _, exists := s.slots[key]; exists {
		// Rule 2: exact key exists in base -> replace.
		s.Set(key, raw)
		return
	}

	hasDescendant := false
	for _, k := range s.Keys() {
		if k != key && specmodel.DottedKeyHasPrefix(k, key) {
			hasDescendant = true
			break
		}
	}
	if hasDescendant {
		// Rule 3: base has keys nested under `key` -> remove them all,
		// then insert `key`.
		for _, k := range s.Keys() {
			if k != key && specmodel.DottedKeyHasPrefix(k, key) {
				delete(s.slots, k)
			}
		}
		s.Set(key, raw)
		return
	}

	// Rule 4: plain insert.
	s.Set(key, raw)
}

// Clone returns a deep-enough copy of the store (slots are value types,
// so a shallow map copy suffices) for scenario materialization, which
// must overlay onto a fresh copy of the baseline without mutating it.
func (s *Store) Clone() *Store {
	clone := New()
	for k, v := range s.slots {
		clone.slots[k] = v
	}
	return clone
}
