package workshop

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/planloom/planloom/pkg/blockstream"
	"github.com/planloom/planloom/pkg/fragment"
	"github.com/planloom/planloom/pkg/planstate"
)

// Turn orchestrates one assistant response: chunks stream in, closed
// blocks are decoded and merged into the accumulated state, and phase
// markers run through the transition machine. Per-block failures become
// diagnostics; only the transport can end a turn with an error.
//
// A Turn is single-threaded. Replaying the same chunk sequence over the
// same seed state reproduces the same final state and phase.
type Turn struct {
	mod     *Module
	machine *Machine
	ex      *blockstream.Extractor
	st      planstate.State
	claimed bool // latest fragment claimed the active phase complete
	diags   []Diagnostic
	done    bool
}

// FeedResult reports the effects of a single chunk.
type FeedResult struct {
	// Transcript is the full text streamed so far, markers included.
	Transcript string
	// Merges holds one entry per closed block that decoded and merged.
	Merges []Merge
	// Diagnostics holds anomalies this chunk surfaced.
	Diagnostics []Diagnostic
}

// Merge is the snapshot taken after one block was merged.
type Merge struct {
	State         planstate.State `json:"state"`
	Phase         string          `json:"phase"`
	PhaseComplete bool            `json:"phase_complete"`
}

// TurnResult is the final snapshot of a finished or aborted turn.
type TurnResult struct {
	Transcript    string
	State         planstate.State
	Phase         string
	PhaseComplete bool
	Diagnostics   []Diagnostic
	Err           error // transport error on abort, else nil
}

// TurnOption configures NewTurn.
type TurnOption func(*turnConfig)

type turnConfig struct {
	st      planstate.State
	phase   string
	markers blockstream.Markers
}

// WithState seeds the turn with checkpointed state.
func WithState(st planstate.State) TurnOption {
	return func(c *turnConfig) { c.st = st }
}

// WithPhase seeds the turn with a checkpointed phase.
func WithPhase(phase string) TurnOption {
	return func(c *turnConfig) { c.phase = phase }
}

// WithMarkers overrides the block markers for this turn.
func WithMarkers(m blockstream.Markers) TurnOption {
	return func(c *turnConfig) { c.markers = m }
}

// NewTurn starts a turn for the module. Without options it begins on the
// module's first phase with empty state and the default markers.
func NewTurn(mod *Module, opts ...TurnOption) (*Turn, error) {
	cfg := &turnConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	machine, err := NewMachine(mod, cfg.phase)
	if err != nil {
		return nil, err
	}
	return &Turn{
		mod:     mod,
		machine: machine,
		ex:      blockstream.New(cfg.markers),
		st:      cfg.st.Clone(),
	}, nil
}

// Feed consumes one chunk of model output and reports what it completed:
// the transcript so far, one Merge per closed block that decoded, one
// Diagnostic per anomaly. Feeding a finished turn is a no-op.
func (t *Turn) Feed(chunk string) *FeedResult {
	res := &FeedResult{}
	if !t.done {
		for _, b := range t.ex.Feed(chunk) {
			t.apply(b, res)
		}
	}
	res.Transcript = t.ex.Transcript()
	return res
}

func (t *Turn) apply(b blockstream.Block, res *FeedResult) {
	fr, err := fragment.Parse(b.Payload)
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, t.diag(Diagnostic{
			Kind:   DiagDecodeFailure,
			Raw:    b.Payload,
			Reason: err.Error(),
		}))
		return
	}

	marker, hasMarker := fr.PhaseMarker()
	t.st = planstate.Merge(t.st, fr.StripMeta())

	if hasMarker {
		tr := t.machine.Advance(marker, t.st)
		switch {
		case !tr.Known:
			res.Diagnostics = append(res.Diagnostics, t.diag(Diagnostic{
				Kind:   DiagUnknownMarker,
				Raw:    marker,
				Reason: fmt.Sprintf("marker %q matches no phase of module %q", marker, t.mod.ID),
			}))
		case !tr.Applied:
			res.Diagnostics = append(res.Diagnostics, t.diag(Diagnostic{
				Kind:   DiagRejectedJump,
				Raw:    marker,
				Reason: fmt.Sprintf("jump %s -> %s skips incomplete phase %q", tr.From, tr.Target, tr.Blocked),
			}))
		case tr.To != tr.From:
			t.claimed = false
		}
	}
	if fr.PhaseComplete() {
		t.claimed = true
	}

	res.Merges = append(res.Merges, Merge{
		State:         t.st.Clone(),
		Phase:         t.machine.Current(),
		PhaseComplete: t.phaseComplete(),
	})
}

func (t *Turn) diag(d Diagnostic) Diagnostic {
	d.Module = t.mod.ID
	d.Phase = t.machine.Current()
	t.diags = append(t.diags, d)
	slog.Warn("workshop: turn diagnostic",
		"kind", d.Kind, "module", d.Module, "phase", d.Phase, "reason", d.Reason)
	return d
}

// phaseComplete derives the reported completeness of the active phase:
// the predicate decides when the phase has one, otherwise the latest
// fragment's phase_complete claim while the phase is held.
func (t *Turn) phaseComplete() bool {
	p, _ := t.mod.Phase(t.machine.Current())
	if p != nil && p.CompleteWhen != nil {
		return t.machine.Complete(t.st)
	}
	return t.claimed
}

// Finish marks the end of the stream and returns the final snapshot.
// An unclosed trailing block is discarded; its text stays in the
// transcript.
func (t *Turn) Finish() *TurnResult {
	return t.finish(nil)
}

// Abort ends the turn on a transport error. Everything merged before
// the abort is retained.
func (t *Turn) Abort(err error) *TurnResult {
	return t.finish(err)
}

func (t *Turn) finish(err error) *TurnResult {
	if !t.done {
		t.done = true
		if t.ex.Open() {
			slog.Debug("workshop: discarding unclosed block", "module", t.mod.ID)
		}
	}
	return &TurnResult{
		Transcript:    t.ex.Transcript(),
		State:         t.st.Clone(),
		Phase:         t.machine.Current(),
		PhaseComplete: t.phaseComplete(),
		Diagnostics:   slices.Clone(t.diags),
		Err:           err,
	}
}

// Transcript returns the full text streamed so far.
func (t *Turn) Transcript() string { return t.ex.Transcript() }

// State returns a snapshot of the accumulated state.
func (t *Turn) State() planstate.State { return t.st.Clone() }

// Phase returns the active phase.
func (t *Turn) Phase() string { return t.machine.Current() }

// Module returns the module this turn runs.
func (t *Turn) Module() *Module { return t.mod }

// Diagnostics returns all diagnostics recorded so far.
func (t *Turn) Diagnostics() []Diagnostic { return slices.Clone(t.diags) }
