// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package util

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrUnknownName is returned by Lookup when nothing matches.
	ErrUnknownName = errors.New("unknown name")

	// ErrAmbiguousName is returned by Lookup when a prefix matches several entries.
	ErrAmbiguousName = errors.New("ambiguous name")
)

// StringRegistry is a thread-safe registry for string-keyed values with
// sorted key retrieval and unique-prefix lookup.
type StringRegistry[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// NewStringRegistry creates a new empty registry.
func NewStringRegistry[V any]() *StringRegistry[V] {
	return &StringRegistry[V]{items: make(map[string]V)}
}

// Set stores a value by key if the key doesn't exist.
// Returns false if the key already existed (value not updated).
func (r *StringRegistry[V]) Set(key string, value V) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[key]; exists {
		return false
	}
	r.items[key] = value
	return true
}

// Get retrieves a value by exact key.
func (r *StringRegistry[V]) Get(key string) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[key]
	return v, ok
}

// Lookup resolves name to a value. An exact key wins; otherwise name must
// be a prefix of exactly one key.
func (r *StringRegistry[V]) Lookup(name string) (string, V, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var zero V
	if v, ok := r.items[name]; ok {
		return name, v, nil
	}
	if name == "" {
		return "", zero, ErrUnknownName
	}

	var matches []string
	for k := range r.items {
		if strings.HasPrefix(k, name) {
			matches = append(matches, k)
		}
	}
	switch len(matches) {
	case 0:
		return "", zero, fmt.Errorf("%w: %s", ErrUnknownName, name)
	case 1:
		return matches[0], r.items[matches[0]], nil
	}
	sort.Strings(matches)
	return "", zero, fmt.Errorf("%w: %s matches %s", ErrAmbiguousName, name, strings.Join(matches, ", "))
}

// Keys returns all keys, sorted alphabetically.
func (r *StringRegistry[V]) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sortedKeys()
}

// Values returns all values, sorted by key.
func (r *StringRegistry[V]) Values() []V {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := r.sortedKeys()
	values := make([]V, 0, len(keys))
	for _, k := range keys {
		values = append(values, r.items[k])
	}
	return values
}

// Len returns the number of entries.
func (r *StringRegistry[V]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

func (r *StringRegistry[V]) sortedKeys() []string {
	keys := make([]string, 0, len(r.items))
	for k := range r.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
