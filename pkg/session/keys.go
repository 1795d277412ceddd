package session

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/planloom/planloom/pkg/kv"
)

// KV key layout for the session package.
//
//	session/{id}/meta                      → msgpack meta
//	session/{id}/log/{ts}                  → msgpack Message
//	session/{id}/checkpoint/{module}/{ts}  → msgpack Checkpoint
//	session/{id}/revert                    → decimal nanosecond string
//
// {ts} segments are nanosecond timestamps zero-padded to 20 digits, so
// the store's lexicographic listing is chronological. Checkpoints keep
// their history; Resume reads the newest entry and Revert deletes the
// tail.

// root is the top key segment all session data lives under.
const root = "session"

func metaKey(id string) kv.Key {
	return kv.Key{root, id, "meta"}
}

func logKey(id string, ts int64) kv.Key {
	return kv.Key{root, id, "log", tsSegment(ts)}
}

func logPrefix(id string) kv.Key {
	return kv.Key{root, id, "log"}
}

func checkpointKey(id, module string, ts int64) kv.Key {
	return kv.Key{root, id, "checkpoint", module, tsSegment(ts)}
}

func checkpointPrefix(id, module string) kv.Key {
	return kv.Key{root, id, "checkpoint", module}
}

func revertKey(id string) kv.Key {
	return kv.Key{root, id, "revert"}
}

func tsSegment(ts int64) string {
	return fmt.Sprintf("%020d", ts)
}

// keyTS extracts the timestamp from a key's last segment.
func keyTS(k kv.Key) (int64, bool) {
	if len(k) == 0 {
		return 0, false
	}
	ts, err := strconv.ParseInt(k[len(k)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// lastNano tracks the most recently returned timestamp so keys never
// collide when messages arrive within the same wall-clock nanosecond.
var lastNano atomic.Int64

// nowNano returns a monotonically increasing Unix nanosecond timestamp.
// A variable so tests can inject a deterministic clock.
var nowNano = func() int64 {
	now := time.Now().UnixNano()
	for {
		old := lastNano.Load()
		next := now
		if next <= old {
			next = old + 1
		}
		if lastNano.CompareAndSwap(old, next) {
			return next
		}
	}
}
