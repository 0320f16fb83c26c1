// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package hostconfig

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"sync"

	"github.com/tidwall/jsonc"
)

// Change describes one mutation of a Store. Deleted is true when the
// key was removed, in which case Value is nil.
type Change struct {
	Key     string
	Value   any
	Deleted bool
}

// Store is a concurrency-safe key/value view of host configuration.
type Store struct {
	mutex     sync.RWMutex
	values    map[string]any
	listeners []func(Change)
}

// New returns a Store holding a copy of values. A nil map yields an
// empty store.
func New(values map[string]any) *Store {
	store := &Store{values: make(map[string]any, len(values))}
	maps.Copy(store.values, values)
	return store
}

// Parse strips JSONC comments and trailing commas from data and
// decodes the top-level object into a Store.
func Parse(data []byte) (*Store, error) {
	var values map[string]any
	if err := json.Unmarshal(jsonc.ToJSON(data), &values); err != nil {
		return nil, fmt.Errorf("parsing host config: %w", err)
	}
	return New(values), nil
}

// Load reads and parses a JSONC host configuration file.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	store, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return store, nil
}

// Get returns the value for key and whether it is present.
func (s *Store) Get(key string) (any, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	value, ok := s.values[key]
	return value, ok
}

// Set stores value under key and notifies listeners.
func (s *Store) Set(key string, value any) {
	s.mutex.Lock()
	s.values[key] = value
	listeners := s.listeners
	s.mutex.Unlock()

	notify(listeners, Change{Key: key, Value: value})
}

// Delete removes key. Listeners are notified only if the key existed.
func (s *Store) Delete(key string) {
	s.mutex.Lock()
	_, existed := s.values[key]
	delete(s.values, key)
	listeners := s.listeners
	s.mutex.Unlock()

	if existed {
		notify(listeners, Change{Key: key, Deleted: true})
	}
}

// Snapshot returns a shallow copy of the current values.
func (s *Store) Snapshot() map[string]any {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return maps.Clone(s.values)
}

// OnChange registers a listener called after every Set and effective
// Delete. Listeners run synchronously on the mutating goroutine.
func (s *Store) OnChange(listener func(Change)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.listeners = append(s.listeners, listener)
}

func notify(listeners []func(Change), change Change) {
	for _, listener := range listeners {
		listener(change)
	}
}
