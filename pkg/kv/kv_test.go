package kv_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/planloom/planloom/pkg/kv"
)

func newTestStore(t *testing.T) kv.Store {
	t.Helper()
	s := kv.NewMemory()
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGetSetDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := kv.Key{"session", "a1", "meta"}
	val := []byte("hello")

	_, err := s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, key, val); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(val) {
		t.Fatalf("Get = %q, want %q", got, val)
	}

	val2 := []byte("world")
	if err := s.Set(ctx, key, val2); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if string(got) != string(val2) {
		t.Fatalf("Get = %q, want %q", got, val2)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = s.Get(ctx, key)
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key must not error.
	if err := s.Delete(ctx, kv.Key{"no", "such", "key"}); err != nil {
		t.Fatalf("Delete non-existent: %v", err)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []kv.Entry{
		{Key: kv.Key{"session", "a1", "log", "0001"}, Value: []byte("m1")},
		{Key: kv.Key{"session", "a1", "log", "0002"}, Value: []byte("m2")},
		{Key: kv.Key{"session", "a1", "checkpoint"}, Value: []byte("c")},
		{Key: kv.Key{"session", "b2", "log", "0001"}, Value: []byte("x")},
		{Key: kv.Key{"export", "a1"}, Value: []byte("e")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}

	// One session's log, in sequence order.
	var got []string
	for entry, err := range s.List(ctx, kv.Key{"session", "a1", "log"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String()+"="+string(entry.Value))
	}
	want := []string{
		"session/a1/log/0001=m1",
		"session/a1/log/0002=m2",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("List session/a1/log = %v, want %v", got, want)
	}

	// Whole session subtree.
	got = nil
	for entry, err := range s.List(ctx, kv.Key{"session", "a1"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
	}
	if len(got) != 3 {
		t.Fatalf("List session/a1: got %d entries, want 3: %v", len(got), got)
	}

	// Empty prefix lists everything.
	got = nil
	for entry, err := range s.List(ctx, nil) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
	}
	if len(got) != 5 {
		t.Fatalf("List all: got %d entries, want 5: %v", len(got), got)
	}
}

func TestListPrefixBoundary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	// "ab" must not match "abc/2", only "ab/*".
	entries := []kv.Entry{
		{Key: kv.Key{"ab", "1"}, Value: []byte("yes")},
		{Key: kv.Key{"abc", "2"}, Value: []byte("no")},
		{Key: kv.Key{"ab", "3"}, Value: []byte("yes")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}

	var got []string
	for entry, err := range s.List(ctx, kv.Key{"ab"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
	}
	want := []string{"ab/1", "ab/3"}
	if !slices.Equal(got, want) {
		t.Fatalf("List ab = %v, want %v", got, want)
	}
}

func TestListEarlyStop(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []kv.Entry{
		{Key: kv.Key{"s", "1"}, Value: []byte("a")},
		{Key: kv.Key{"s", "2"}, Value: []byte("b")},
		{Key: kv.Key{"s", "3"}, Value: []byte("c")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}

	var got []string
	for entry, err := range s.List(ctx, kv.Key{"s"}) {
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got = append(got, entry.Key.String())
		if len(got) == 2 {
			break
		}
	}
	if !slices.Equal(got, []string{"s/1", "s/2"}) {
		t.Fatalf("List = %v", got)
	}
}

func TestBatchSetBatchDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	entries := []kv.Entry{
		{Key: kv.Key{"a", "1"}, Value: []byte("v1")},
		{Key: kv.Key{"a", "2"}, Value: []byte("v2")},
		{Key: kv.Key{"a", "3"}, Value: []byte("v3")},
	}
	if err := s.BatchSet(ctx, entries); err != nil {
		t.Fatalf("BatchSet: %v", err)
	}

	for _, e := range entries {
		got, err := s.Get(ctx, e.Key)
		if err != nil {
			t.Fatalf("Get %v: %v", e.Key, err)
		}
		if string(got) != string(e.Value) {
			t.Fatalf("Get %v = %q, want %q", e.Key, got, e.Value)
		}
	}

	if err := s.BatchDelete(ctx, []kv.Key{{"a", "1"}, {"a", "2"}}); err != nil {
		t.Fatalf("BatchDelete: %v", err)
	}

	_, err := s.Get(ctx, kv.Key{"a", "1"})
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a/1, got %v", err)
	}
	_, err = s.Get(ctx, kv.Key{"a", "2"})
	if !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for a/2, got %v", err)
	}
	got, err := s.Get(ctx, kv.Key{"a", "3"})
	if err != nil {
		t.Fatalf("Get a/3: %v", err)
	}
	if string(got) != "v3" {
		t.Fatalf("Get a/3 = %q, want %q", got, "v3")
	}
}

func TestValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	key := kv.Key{"iso", "test"}
	original := []byte("original")

	if err := s.Set(ctx, key, original); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Mutating the caller's slice must not reach the store.
	original[0] = 'X'

	got, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0] != 'o' {
		t.Fatal("store value was mutated via original slice")
	}

	// Nor mutating the returned slice.
	got[0] = 'Y'
	got2, _ := s.Get(ctx, key)
	if got2[0] != 'o' {
		t.Fatal("store value was mutated via returned slice")
	}
}

func TestKeyChild(t *testing.T) {
	base := kv.Key{"session", "a1"}
	log := base.Child("log", "0001")

	if log.String() != "session/a1/log/0001" {
		t.Fatalf("Child = %q", log.String())
	}
	if base.String() != "session/a1" {
		t.Fatalf("receiver changed: %q", base.String())
	}

	// Two children off the same base must not share tails.
	other := base.Child("checkpoint")
	if log.String() != "session/a1/log/0001" || other.String() != "session/a1/checkpoint" {
		t.Fatalf("children overlap: %q / %q", log, other)
	}
}

func TestKeySegmentValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, key := range []kv.Key{
		{"bad/seg", "x"},
		{"", "x"},
	} {
		func() {
			defer func() {
				r := recover()
				if r == nil {
					t.Fatalf("key %v: expected panic", key)
				}
				msg, ok := r.(string)
				if !ok || !strings.Contains(msg, "segment") {
					t.Fatalf("key %v: unexpected panic: %v", key, r)
				}
			}()
			_ = s.Set(ctx, key, []byte("v"))
		}()
	}
}
