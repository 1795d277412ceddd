// Package planstate holds the accumulated structured-data tree for one
// workshop module and implements the non-destructive deep merge that folds
// decoded fragments into it.
//
// The tree is schema-light: map[string]any / []any / scalar nodes exactly as
// encoding/json decodes them. New optional fields in a module's payload
// schema therefore need no changes here. The merge engine is the only writer;
// every other component receives deep-copied snapshots.
package planstate

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// State is the accumulated structured-data tree for one (session, module)
// pair. A nil State is a valid empty state.
type State map[string]any

// Clone returns a deep copy of the state. Callers outside the merge engine
// get clones, never the live tree.
func (s State) Clone() State {
	if s == nil {
		return nil
	}
	return State(cloneMap(s))
}

// Query runs a jq expression against the state and returns the first
// result. Used for ad-hoc inspection; completeness predicates compile their
// expressions once at module load instead.
func (s State) Query(expr string) (any, error) {
	q, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("planstate: invalid query %q: %w", expr, err)
	}
	iter := q.Run(map[string]any(s))
	v, ok := iter.Next()
	if !ok {
		return nil, fmt.Errorf("planstate: query %q returned no result", expr)
	}
	if err, ok := v.(error); ok {
		return nil, fmt.Errorf("planstate: query %q: %w", expr, err)
	}
	return v, nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneSlice(l []any) []any {
	out := make([]any, len(l))
	for i, v := range l {
		out[i] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		return cloneSlice(t)
	default:
		return t
	}
}
