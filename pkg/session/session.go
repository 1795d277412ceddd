// Package session persists coaching sessions: the message log of every
// turn plus per-module checkpoints of accumulated state and phase.
//
// A [Host] manages sessions over a shared [kv.Store]. Messages and
// checkpoints are msgpack-encoded and keyed by zero-padded monotonic
// nanosecond timestamps, so prefix listings come back in chronological
// order. [Session.Resume] returns the checkpoint that seeds the next
// turn; [Session.Revert] rolls the log and the checkpoints back to the
// last user message for a regenerate flow.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/planloom/planloom/pkg/heuristics"
	"github.com/planloom/planloom/pkg/kv"
	"github.com/planloom/planloom/pkg/planstate"
	"github.com/vmihailenco/msgpack/v5"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is one conversation turn in the session log. Model messages
// store the full transcript, markers included, so a replayed session
// shows exactly what streamed.
type Message struct {
	Role Role   `json:"role" msgpack:"role"`
	Text string `json:"text,omitempty" msgpack:"text,omitempty"`

	// Module is the coaching module the message belongs to.
	Module string `json:"module,omitempty" msgpack:"module,omitempty"`

	// Timestamp is the Unix nanosecond time the message was appended.
	Timestamp int64 `json:"ts" msgpack:"ts"`

	// Findings are heuristic annotations on a user message.
	Findings []heuristics.Finding `json:"findings,omitempty" msgpack:"findings,omitempty"`
}

// Checkpoint is the per-module engine snapshot written after a turn.
type Checkpoint struct {
	State         planstate.State `json:"state" msgpack:"state"`
	Phase         string          `json:"phase" msgpack:"phase"`
	PhaseComplete bool            `json:"phase_complete" msgpack:"phase_complete"`

	// UpdatedAt is the Unix nanosecond time the checkpoint was taken.
	UpdatedAt int64 `json:"updated_at" msgpack:"updated_at"`
}

// Session is one coaching session. Obtain instances from a [Host].
type Session struct {
	store kv.Store
	id    string
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Append stores a message in the session log. A zero Timestamp is
// filled with the current time. User messages set the revert point.
func (s *Session) Append(ctx context.Context, msg Message) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = nowNano()
	}
	data, err := msgpack.Marshal(msg)
	if err != nil {
		return fmt.Errorf("session: encode message: %w", err)
	}
	if err := s.store.Set(ctx, logKey(s.id, msg.Timestamp), data); err != nil {
		return err
	}
	if msg.Role == RoleUser {
		ts := strconv.FormatInt(msg.Timestamp, 10)
		return s.store.Set(ctx, revertKey(s.id), []byte(ts))
	}
	return nil
}

// Messages returns the full log in chronological order. Entries that
// fail to decode are skipped.
func (s *Session) Messages(ctx context.Context) ([]Message, error) {
	var msgs []Message
	for entry, err := range s.store.List(ctx, logPrefix(s.id)) {
		if err != nil {
			return nil, err
		}
		var msg Message
		if err := msgpack.Unmarshal(entry.Value, &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Recent returns the n most recent messages, oldest first.
func (s *Session) Recent(ctx context.Context, n int) ([]Message, error) {
	if n <= 0 {
		return nil, nil
	}
	all, err := s.Messages(ctx)
	if err != nil {
		return nil, err
	}
	if len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

// SaveCheckpoint appends a checkpoint for the module and bumps the
// session's updated time. A zero UpdatedAt is filled with the current
// time.
func (s *Session) SaveCheckpoint(ctx context.Context, module string, cp Checkpoint) error {
	if module == "" {
		return errors.New("session: empty module id")
	}
	if cp.UpdatedAt == 0 {
		cp.UpdatedAt = nowNano()
	}
	data, err := msgpack.Marshal(cp)
	if err != nil {
		return fmt.Errorf("session: encode checkpoint: %w", err)
	}
	if err := s.store.Set(ctx, checkpointKey(s.id, module, cp.UpdatedAt), data); err != nil {
		return err
	}
	return s.touchMeta(ctx, cp.UpdatedAt)
}

// Resume returns the latest checkpoint for the module, or nil when the
// module has none yet.
func (s *Session) Resume(ctx context.Context, module string) (*Checkpoint, error) {
	var last []byte
	for entry, err := range s.store.List(ctx, checkpointPrefix(s.id, module)) {
		if err != nil {
			return nil, err
		}
		last = entry.Value
	}
	if last == nil {
		return nil, nil
	}
	var cp Checkpoint
	if err := msgpack.Unmarshal(last, &cp); err != nil {
		return nil, fmt.Errorf("session: decode checkpoint: %w", err)
	}
	return &cp, nil
}

// Modules returns the IDs of all modules with at least one checkpoint,
// sorted.
func (s *Session) Modules(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var mods []string
	for entry, err := range s.store.List(ctx, kv.Key{root, s.id, "checkpoint"}) {
		if err != nil {
			return nil, err
		}
		if len(entry.Key) != 5 {
			continue
		}
		if m := entry.Key[3]; !seen[m] {
			seen[m] = true
			mods = append(mods, m)
		}
	}
	slices.Sort(mods)
	return mods, nil
}

// Revert deletes the last user message, everything after it, and every
// checkpoint taken since. The next Resume then returns the state from
// before that message. Reverting a session without user messages is a
// no-op.
func (s *Session) Revert(ctx context.Context) error {
	data, err := s.store.Get(ctx, revertKey(s.id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	revertTS, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("session: bad revert point: %w", err)
	}

	var toDelete []kv.Key
	for _, prefix := range []kv.Key{logPrefix(s.id), {root, s.id, "checkpoint"}} {
		for entry, err := range s.store.List(ctx, prefix) {
			if err != nil {
				return err
			}
			if ts, ok := keyTS(entry.Key); ok && ts >= revertTS {
				toDelete = append(toDelete, entry.Key)
			}
		}
	}
	if len(toDelete) > 0 {
		if err := s.store.BatchDelete(ctx, toDelete); err != nil {
			return err
		}
	}

	// Move the revert point back to the previous user message.
	var latestUser int64
	for entry, err := range s.store.List(ctx, logPrefix(s.id)) {
		if err != nil {
			return err
		}
		var msg Message
		if err := msgpack.Unmarshal(entry.Value, &msg); err != nil {
			continue
		}
		if msg.Role == RoleUser && msg.Timestamp > latestUser {
			latestUser = msg.Timestamp
		}
	}
	if latestUser > 0 {
		ts := strconv.FormatInt(latestUser, 10)
		return s.store.Set(ctx, revertKey(s.id), []byte(ts))
	}
	return s.store.Delete(ctx, revertKey(s.id))
}

func (s *Session) touchMeta(ctx context.Context, ts int64) error {
	var m meta
	data, err := s.store.Get(ctx, metaKey(s.id))
	switch {
	case errors.Is(err, kv.ErrNotFound):
		m = meta{CreatedAt: ts}
	case err != nil:
		return err
	default:
		if err := msgpack.Unmarshal(data, &m); err != nil {
			m = meta{CreatedAt: ts}
		}
	}
	m.UpdatedAt = ts
	out, err := msgpack.Marshal(m)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, metaKey(s.id), out)
}
