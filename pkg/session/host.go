package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/planloom/planloom/pkg/kv"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotFound is returned when a session ID is unknown.
var ErrNotFound = errors.New("session: not found")

// meta is the stored per-session record behind [Info].
type meta struct {
	CreatedAt int64 `msgpack:"created_at"`
	UpdatedAt int64 `msgpack:"updated_at"`
}

// Info describes one session for listings.
type Info struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Host manages sessions over a shared KV store. It is safe for
// concurrent use.
type Host struct {
	store kv.Store
}

// NewHost creates a Host. The store is required.
func NewHost(store kv.Store) *Host {
	if store == nil {
		panic("session: store is required")
	}
	return &Host{store: store}
}

// Create starts a new session with a random UUID.
func (h *Host) Create(ctx context.Context) (*Session, error) {
	id := uuid.NewString()
	ts := nowNano()
	data, err := msgpack.Marshal(meta{CreatedAt: ts, UpdatedAt: ts})
	if err != nil {
		return nil, fmt.Errorf("session: encode meta: %w", err)
	}
	if err := h.store.Set(ctx, metaKey(id), data); err != nil {
		return nil, err
	}
	return &Session{store: h.store, id: id}, nil
}

// Open returns an existing session. Unknown IDs yield [ErrNotFound].
func (h *Host) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, errors.New("session: empty id")
	}
	if _, err := h.store.Get(ctx, metaKey(id)); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &Session{store: h.store, id: id}, nil
}

// List returns all sessions, most recently updated first.
func (h *Host) List(ctx context.Context) ([]Info, error) {
	var infos []Info
	for entry, err := range h.store.List(ctx, kv.Key{root}) {
		if err != nil {
			return nil, err
		}
		if len(entry.Key) != 3 || entry.Key[2] != "meta" {
			continue
		}
		var m meta
		if err := msgpack.Unmarshal(entry.Value, &m); err != nil {
			continue
		}
		infos = append(infos, Info{
			ID:        entry.Key[1],
			CreatedAt: time.Unix(0, m.CreatedAt),
			UpdatedAt: time.Unix(0, m.UpdatedAt),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})
	return infos, nil
}

// Delete removes a session and all its data. Unknown IDs yield
// [ErrNotFound].
func (h *Host) Delete(ctx context.Context, id string) error {
	if _, err := h.store.Get(ctx, metaKey(id)); err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return err
	}
	var keys []kv.Key
	for entry, err := range h.store.List(ctx, kv.Key{root, id}) {
		if err != nil {
			return err
		}
		keys = append(keys, entry.Key)
	}
	return h.store.BatchDelete(ctx, keys)
}
