// Package fragment decodes the structured payload of one closed data block.
//
// Payloads are JSON objects, but the producer is a language model: blocks
// close on truncated boundaries, strings go unterminated, commas trail.
// [Parse] therefore tries strict decoding first and falls back to a lenient
// repair pass (jsonrepair) before giving up. A parse failure is never fatal
// to the turn; callers log the [DecodeFailure] and skip the block.
//
// Two well-known metadata fields ride inside the payload: [PhaseField]
// carries the assistant's self-reported phase marker and
// [PhaseCompleteField] the phase-complete flag. Both are consumed by the
// turn engine and stripped before merging, so they never appear in
// accumulated state.
package fragment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Well-known, case-sensitive metadata fields inside a payload.
const (
	PhaseField         = "phase"
	PhaseCompleteField = "phase_complete"
)

// Fragment is a partial structured-data tree decoded from one block.
// Leaves are strings, float64 numbers, and bools; internal nodes are
// map[string]any and []any, exactly as encoding/json produces them.
type Fragment map[string]any

// Reason classifies why a payload could not be decoded.
type Reason string

const (
	// ReasonEmpty means the payload was empty or whitespace only.
	ReasonEmpty Reason = "empty"

	// ReasonSyntax means strict decoding failed with a non-repairable
	// error class.
	ReasonSyntax Reason = "syntax"

	// ReasonRepairFailed means the lenient repair pass could not produce
	// valid JSON either.
	ReasonRepairFailed Reason = "repair_failed"

	// ReasonNotObject means the payload decoded to something other than
	// an object.
	ReasonNotObject Reason = "not_object"
)

// DecodeFailure reports a payload that could not be decoded even after the
// repair pass. It carries the raw text so operators can inspect what the
// assistant actually emitted.
type DecodeFailure struct {
	Raw    string
	Reason Reason
	Err    error
}

func (e *DecodeFailure) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fragment: decode failed (%s)", e.Reason)
	}
	return fmt.Sprintf("fragment: decode failed (%s): %v", e.Reason, e.Err)
}

func (e *DecodeFailure) Unwrap() error { return e.Err }

// Parse decodes a block payload into a Fragment.
//
// Strict JSON decoding is attempted first. On a syntax error the payload is
// run through jsonrepair (closes unterminated strings and brackets, trims
// trailing garbage) and decoded again. Failures are returned as a
// *DecodeFailure.
func Parse(raw string) (Fragment, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, &DecodeFailure{Raw: raw, Reason: ReasonEmpty}
	}

	var v any
	err := json.Unmarshal([]byte(trimmed), &v)
	if err != nil {
		if _, ok := err.(*json.SyntaxError); !ok {
			return nil, &DecodeFailure{Raw: raw, Reason: ReasonSyntax, Err: err}
		}
		fixed, rerr := jsonrepair.JSONRepair(trimmed)
		if rerr != nil {
			return nil, &DecodeFailure{Raw: raw, Reason: ReasonRepairFailed, Err: rerr}
		}
		if err := json.Unmarshal([]byte(fixed), &v); err != nil {
			return nil, &DecodeFailure{Raw: raw, Reason: ReasonRepairFailed, Err: err}
		}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeFailure{Raw: raw, Reason: ReasonNotObject}
	}
	return Fragment(obj), nil
}

// PhaseMarker returns the raw phase marker from the metadata field.
// The second return is false when the field is absent, not a string, or
// blank. The marker is untrusted free text; normalization happens in the
// phase machine, not here.
func (f Fragment) PhaseMarker() (string, bool) {
	v, ok := f[PhaseField]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, true
}

// PhaseComplete reports the phase-complete flag. Absent or non-boolean
// values read as false.
func (f Fragment) PhaseComplete() bool {
	v, ok := f[PhaseCompleteField]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// StripMeta returns a copy of the fragment without the metadata fields.
// Nested values are shared with the receiver; the merge engine never
// mutates its inputs, so sharing is safe.
func (f Fragment) StripMeta() Fragment {
	out := make(Fragment, len(f))
	for k, v := range f {
		if k == PhaseField || k == PhaseCompleteField {
			continue
		}
		out[k] = v
	}
	return out
}

// Clone returns a deep copy of the fragment.
func (f Fragment) Clone() Fragment {
	if f == nil {
		return nil
	}
	return Fragment(cloneMap(f))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}
