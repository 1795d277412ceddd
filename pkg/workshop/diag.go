package workshop

import "fmt"

// DiagnosticKind classifies non-fatal turn anomalies.
type DiagnosticKind string

const (
	// DiagDecodeFailure marks a closed block whose payload would not decode.
	DiagDecodeFailure DiagnosticKind = "decode_failure"
	// DiagUnknownMarker marks a phase marker no phase or synonym matches.
	DiagUnknownMarker DiagnosticKind = "unknown_marker"
	// DiagRejectedJump marks a forward jump vetoed by an incomplete phase.
	DiagRejectedJump DiagnosticKind = "rejected_jump"
)

// Diagnostic is a non-fatal anomaly observed during a turn. Diagnostics
// ride along with the turn results and never stop processing.
type Diagnostic struct {
	Kind   DiagnosticKind `json:"kind"`
	Module string         `json:"module"`
	Phase  string         `json:"phase"`         // phase held when the anomaly occurred
	Raw    string         `json:"raw,omitempty"` // offending payload or marker text
	Reason string         `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s", d.Kind, d.Reason)
}
