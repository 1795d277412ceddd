// Package kv is the session persistence layer: a key-value store with
// hierarchical, '/'-joined keys such as "session/<id>/log/<seq>".
//
// Two implementations exist: a BadgerDB-backed store for durable session
// history and an in-memory store for tests and throwaway runs. Both list
// subtrees in lexicographic key order, which the session log exploits by
// zero-padding its sequence segments.
package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Sep joins key segments in the encoded form.
const Sep = '/'

// Key is a hierarchical path of segments. Segments must be non-empty
// and must not contain [Sep]; keys are always program-built, so a
// violation panics.
type Key []string

// Child returns a new key with segs appended. The receiver is never
// modified.
func (k Key) Child(segs ...string) Key {
	out := make(Key, 0, len(k)+len(segs))
	out = append(out, k...)
	return append(out, segs...)
}

// String returns the encoded '/'-joined form.
func (k Key) String() string { return k.encode() }

func (k Key) encode() string {
	for _, seg := range k {
		if seg == "" {
			panic("kv: empty key segment")
		}
		if strings.IndexByte(seg, Sep) >= 0 {
			panic(fmt.Sprintf("kv: key segment %q contains separator", seg))
		}
	}
	return strings.Join(k, string(Sep))
}

func parseKey(s string) Key {
	return Key(strings.Split(s, string(Sep)))
}

// listPrefix bounds a subtree listing: the encoded prefix plus a
// trailing separator, so "session/ab" never matches "session/abc".
// An empty prefix matches everything.
func listPrefix(prefix Key) string {
	if len(prefix) == 0 {
		return ""
	}
	return prefix.encode() + string(Sep)
}

// Entry is one key-value pair, as listed and batch-written.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-shaped keys. Implementations are
// safe for concurrent use.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates the subtree strictly below prefix in lexicographic
	// order of encoded keys. An empty prefix lists the whole store.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple entries.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	// Close releases any resources held by the store.
	Close() error
}
