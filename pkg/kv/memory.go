package kv

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Memory is a Store kept entirely in process memory. Values are copied
// on the way in and out, so callers can keep mutating their slices.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k := key.encode()
	m.mu.RLock()
	v, ok := m.data[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k := key.encode()
	m.mu.Lock()
	m.data[k] = slices.Clone(value)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k := key.encode()
	m.mu.Lock()
	delete(m.data, k)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	p := listPrefix(prefix)

	// Snapshot the matching pairs under the read lock; iteration then
	// runs without holding it.
	type pair struct {
		key string
		val []byte
	}
	m.mu.RLock()
	var matched []pair
	for k, v := range m.data {
		if p == "" || strings.HasPrefix(k, p) {
			matched = append(matched, pair{k, slices.Clone(v)})
		}
	}
	m.mu.RUnlock()
	slices.SortFunc(matched, func(a, b pair) int {
		return strings.Compare(a.key, b.key)
	})

	return func(yield func(Entry, error) bool) {
		for _, e := range matched {
			if !yield(Entry{Key: parseKey(e.key), Value: e.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	// Encode outside the lock so a bad key panics before any write.
	ks := make([]string, len(entries))
	for i, e := range entries {
		ks[i] = e.Key.encode()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		m.data[ks[i]] = slices.Clone(e.Value)
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	ks := make([]string, len(keys))
	for i, key := range keys {
		ks[i] = key.encode()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range ks {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
