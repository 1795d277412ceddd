package planstate

import (
	"strings"

	"github.com/planloom/planloom/pkg/fragment"
)

// identifierKeys are the field names that mark a list entry as
// identity-bearing, in lookup priority order. A list merges by identifier
// only when every entry on both sides is a mapping carrying a non-empty
// value under the same key.
var identifierKeys = [...]string{"id", "name"}

// Merge deep-merges a fragment into the previous state and returns the new
// state. Neither input is modified; the result shares no mutable nodes with
// either.
//
// Per-node rules, applied depth-first:
//   - scalar over scalar: a non-empty incoming scalar replaces the prior
//     value; an empty or absent one is ignored, the prior value stays.
//   - list over list: identity-bearing lists merge by identifier (matching
//     entries are deep-merged in place, new entries append in incoming
//     order, entries absent from the fragment are never dropped). Plain
//     lists are replaced wholesale; an empty incoming list is ignored.
//   - mapping over mapping: recurse field by field; fields only present in
//     the prior state are retained.
//   - type mismatch: the incoming value wins and replaces the subtree. The
//     assistant is correcting an earlier structural mistake, not corrupting
//     state.
//
// Merging the same fragment twice yields the same state as merging it once.
func Merge(prev State, frag fragment.Fragment) State {
	out := make(State, len(prev)+len(frag))
	for k, v := range prev {
		out[k] = cloneValue(v)
	}
	mergeMap(out, frag)
	return out
}

func mergeMap(dst map[string]any, in map[string]any) {
	for k, iv := range in {
		pv, ok := dst[k]
		if !ok {
			if !isEmpty(iv) {
				dst[k] = cloneValue(iv)
			}
			continue
		}
		dst[k] = mergeValue(pv, iv)
	}
}

// mergeValue merges one incoming node over the prior node. The prior node
// is owned by the new state (already cloned); incoming nodes are cloned
// before adoption.
func mergeValue(prev, in any) any {
	switch iv := in.(type) {
	case map[string]any:
		pm, ok := prev.(map[string]any)
		if !ok {
			return cloneValue(iv)
		}
		mergeMap(pm, iv)
		return pm
	case []any:
		if len(iv) == 0 {
			return prev
		}
		pl, ok := prev.([]any)
		if !ok {
			return cloneSlice(iv)
		}
		return mergeList(pl, iv)
	case nil:
		return prev
	case string:
		if strings.TrimSpace(iv) == "" {
			return prev
		}
		return iv
	default:
		// Numbers and booleans are always deliberate; 0 and false are
		// values, not absences.
		return in
	}
}

func mergeList(prev, in []any) []any {
	key, ok := identityKey(prev, in)
	if !ok {
		return cloneSlice(in)
	}

	out := make([]any, len(prev))
	index := make(map[any]int, len(prev))
	for i, e := range prev {
		out[i] = e // already owned by the new state
		id, _ := entryID(e, key)
		index[id] = i
	}
	for _, e := range in {
		id, _ := entryID(e, key)
		if j, hit := index[id]; hit {
			out[j] = mergeValue(out[j], e)
			continue
		}
		out = append(out, cloneValue(e))
		index[id] = len(out) - 1
	}
	return out
}

// identityKey picks the identifier field shared by every entry of both
// lists. Lists that mix shapes or miss the identifier on any entry merge as
// plain value lists instead.
func identityKey(prev, in []any) (string, bool) {
	if len(prev) == 0 {
		return "", false
	}
	for _, key := range identifierKeys {
		if listKeyed(prev, key) && listKeyed(in, key) {
			return key, true
		}
	}
	return "", false
}

func listKeyed(l []any, key string) bool {
	for _, e := range l {
		if _, ok := entryID(e, key); !ok {
			return false
		}
	}
	return true
}

// entryID extracts a comparable identifier value from a list entry.
func entryID(e any, key string) (any, bool) {
	m, ok := e.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, false
		}
		return t, true
	case float64, bool:
		return t, true
	default:
		return nil, false
	}
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	default:
		return false
	}
}
