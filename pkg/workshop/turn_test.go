package workshop_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/planloom/planloom/pkg/blockstream"
	"github.com/planloom/planloom/pkg/workshop"
)

var testMarkers = blockstream.Markers{Open: "<block>", Close: "</block>"}

func newTurn(t *testing.T, opts ...workshop.TurnOption) *workshop.Turn {
	t.Helper()
	turn, err := workshop.NewTurn(mustModule(t, gatedYAML), append(opts, workshop.WithMarkers(testMarkers))...)
	if err != nil {
		t.Fatalf("NewTurn: %v", err)
	}
	return turn
}

func TestTurnBlockMerge(t *testing.T) {
	turn := newTurn(t)

	res := turn.Feed("Hallo")
	if res.Transcript != "Hallo" || len(res.Merges) != 0 {
		t.Fatalf("after first chunk: %+v", res)
	}

	res = turn.Feed(`<block>{"a": "one"}</block>Welt`)
	if len(res.Merges) != 1 {
		t.Fatalf("Merges = %v", res.Merges)
	}
	if want := `Hallo<block>{"a": "one"}</block>Welt`; res.Transcript != want {
		t.Fatalf("Transcript = %q, want %q", res.Transcript, want)
	}

	got := turn.Finish()
	if got.Err != nil {
		t.Fatalf("Err = %v", got.Err)
	}
	if !reflect.DeepEqual(got.State, state(t, `{"a": "one"}`)) {
		t.Fatalf("State = %v", got.State)
	}
	if got.Phase != "p1" {
		t.Fatalf("Phase = %q", got.Phase)
	}
}

func TestTurnMarkerSplitAcrossChunks(t *testing.T) {
	turn := newTurn(t)

	var merges int
	for _, chunk := range []string{"ok <blo", `ck>{"a": "x"}</bl`, "ock> done"} {
		merges += len(turn.Feed(chunk).Merges)
	}
	if merges != 1 {
		t.Fatalf("merges = %d, want 1", merges)
	}
	got := turn.Finish()
	if !reflect.DeepEqual(got.State, state(t, `{"a": "x"}`)) {
		t.Fatalf("State = %v", got.State)
	}
	if want := `ok <block>{"a": "x"}</block> done`; got.Transcript != want {
		t.Fatalf("Transcript = %q", got.Transcript)
	}
}

func TestTurnSingleStepAdvance(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"phase": "p2", "a": "set"}</block>`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	if turn.Phase() != "p2" {
		t.Fatalf("Phase = %q", turn.Phase())
	}
	// Metadata fields never reach the state.
	if !reflect.DeepEqual(turn.State(), state(t, `{"a": "set"}`)) {
		t.Fatalf("State = %v", turn.State())
	}
}

func TestTurnUnknownMarkerHoldsPhase(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"phase": "xyz"}</block>`)

	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != workshop.DiagUnknownMarker {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	d := res.Diagnostics[0]
	if d.Raw != "xyz" || d.Module != "gated" || d.Phase != "p1" {
		t.Fatalf("diagnostic = %+v", d)
	}
	if turn.Phase() != "p1" {
		t.Fatalf("Phase = %q, want p1", turn.Phase())
	}
	if len(turn.State()) != 0 {
		t.Fatalf("State = %v, want empty", turn.State())
	}
}

func TestTurnRejectedJumpKeepsData(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"phase": "p4", "idea": "solar kiosk"}</block>`)

	if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != workshop.DiagRejectedJump {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	if turn.Phase() != "p1" {
		t.Fatalf("Phase = %q, rejection must hold the phase", turn.Phase())
	}
	// The payload outlives the rejected transition.
	if !reflect.DeepEqual(turn.State(), state(t, `{"idea": "solar kiosk"}`)) {
		t.Fatalf("State = %v", turn.State())
	}
}

func TestTurnJumpAfterCompletion(t *testing.T) {
	turn := newTurn(t)
	turn.Feed(`<block>{"a": "done", "b": "done"}</block>`)
	res := turn.Feed(`<block>{"phase": "last"}</block>`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	if turn.Phase() != "p4" {
		t.Fatalf("Phase = %q, want p4", turn.Phase())
	}
}

func TestTurnJumpGateSeesSameBlock(t *testing.T) {
	// The gating data and the jump arrive in one block: the merge runs
	// first, so the skipped phases are already complete when checked.
	turn := newTurn(t)
	res := turn.Feed(`<block>{"phase": "p4", "a": "done", "b": "done"}</block>`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	if turn.Phase() != "p4" {
		t.Fatalf("Phase = %q", turn.Phase())
	}
}

func TestTurnDecodeFailure(t *testing.T) {
	turn := newTurn(t)

	for _, payload := range []string{"", "[1, 2]"} {
		res := turn.Feed("<block>" + payload + "</block>")
		if len(res.Diagnostics) != 1 || res.Diagnostics[0].Kind != workshop.DiagDecodeFailure {
			t.Fatalf("payload %q: Diagnostics = %v", payload, res.Diagnostics)
		}
		if res.Diagnostics[0].Raw != payload {
			t.Fatalf("Raw = %q, want %q", res.Diagnostics[0].Raw, payload)
		}
	}
	if len(turn.State()) != 0 {
		t.Fatalf("State = %v", turn.State())
	}
	if got := turn.Finish(); len(got.Diagnostics) != 2 {
		t.Fatalf("final Diagnostics = %v", got.Diagnostics)
	}
}

func TestTurnRepairedPayloadMerges(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"a": "fix",}</block>`)
	if len(res.Diagnostics) != 0 {
		t.Fatalf("Diagnostics = %v", res.Diagnostics)
	}
	if !reflect.DeepEqual(turn.State(), state(t, `{"a": "fix"}`)) {
		t.Fatalf("State = %v", turn.State())
	}
}

func TestTurnIdentifierListConvergence(t *testing.T) {
	turn := newTurn(t)
	turn.Feed(`<block>{"items": [{"id": 1, "name": "A"}]}</block>`)
	turn.Feed(`<block>{"items": [{"id": 1, "name": "A2"}, {"id": 2, "name": "B"}]}</block>`)

	want := state(t, `{"items": [{"id": 1, "name": "A2"}, {"id": 2, "name": "B"}]}`)
	if got := turn.State(); !reflect.DeepEqual(got, want) {
		t.Fatalf("State = %v, want %v", got, want)
	}
}

func TestTurnUnclosedBlockDiscarded(t *testing.T) {
	turn := newTurn(t)
	turn.Feed(`so far <block>{"a": "lost`)
	got := turn.Finish()

	if len(got.State) != 0 {
		t.Fatalf("State = %v, unclosed block must not merge", got.State)
	}
	if want := `so far <block>{"a": "lost`; got.Transcript != want {
		t.Fatalf("Transcript = %q", got.Transcript)
	}
}

func TestTurnFeedAfterFinish(t *testing.T) {
	turn := newTurn(t)
	turn.Feed(`<block>{"a": "x"}</block>`)
	turn.Finish()

	res := turn.Feed(`<block>{"a": "late"}</block>`)
	if len(res.Merges) != 0 {
		t.Fatalf("Merges = %v after finish", res.Merges)
	}
	if !reflect.DeepEqual(turn.State(), state(t, `{"a": "x"}`)) {
		t.Fatalf("State = %v", turn.State())
	}
}

func TestTurnAbortKeepsData(t *testing.T) {
	turn := newTurn(t)
	turn.Feed(`<block>{"a": "kept"}</block>`)

	cause := errors.New("connection reset")
	got := turn.Abort(cause)
	if !errors.Is(got.Err, cause) {
		t.Fatalf("Err = %v", got.Err)
	}
	if !reflect.DeepEqual(got.State, state(t, `{"a": "kept"}`)) {
		t.Fatalf("State = %v", got.State)
	}
}

func TestTurnSeededResume(t *testing.T) {
	seed := state(t, `{"a": "done", "risks": [{"id": 1, "note": "old"}]}`)
	turn := newTurn(t, workshop.WithState(seed), workshop.WithPhase("p2"))

	if turn.Phase() != "p2" {
		t.Fatalf("Phase = %q", turn.Phase())
	}
	turn.Feed(`<block>{"risks": [{"id": 2, "note": "new"}]}</block>`)

	want := state(t, `{"a": "done", "risks": [{"id": 1, "note": "old"}, {"id": 2, "note": "new"}]}`)
	if got := turn.State(); !reflect.DeepEqual(got, want) {
		t.Fatalf("State = %v", got)
	}
	// The caller's seed stays untouched.
	if !reflect.DeepEqual(seed, state(t, `{"a": "done", "risks": [{"id": 1, "note": "old"}]}`)) {
		t.Fatalf("seed mutated: %v", seed)
	}
}

func TestTurnPhaseCompleteClaim(t *testing.T) {
	// Predicate-less phases report the model's own claim.
	doc := `
id: open
title: Open
phases:
  - name: q1
  - name: q2
`
	turn, err := workshop.NewTurn(mustModule(t, doc), workshop.WithMarkers(testMarkers))
	if err != nil {
		t.Fatalf("NewTurn: %v", err)
	}

	res := turn.Feed(`<block>{"a": "x"}</block>`)
	if res.Merges[0].PhaseComplete {
		t.Fatal("complete without a claim")
	}

	res = turn.Feed(`<block>{"phase_complete": true}</block>`)
	if !res.Merges[0].PhaseComplete {
		t.Fatal("claim not reported")
	}

	// An applied phase change resets the claim.
	res = turn.Feed(`<block>{"phase": "q2"}</block>`)
	if res.Merges[0].PhaseComplete {
		t.Fatal("claim survived the phase change")
	}

	res = turn.Feed(`<block>{"phase_complete": true}</block>`)
	if !res.Merges[0].PhaseComplete {
		t.Fatal("fresh claim not reported")
	}
}

func TestTurnPhaseCompletePredicateWins(t *testing.T) {
	turn := newTurn(t, workshop.WithPhase("p2"))

	// p2's predicate overrules the bare claim.
	res := turn.Feed(`<block>{"phase_complete": true}</block>`)
	if res.Merges[0].PhaseComplete {
		t.Fatal("claim overrode an unsatisfied predicate")
	}

	res = turn.Feed(`<block>{"a": "filled"}</block>`)
	if !res.Merges[0].PhaseComplete {
		t.Fatal("satisfied predicate not reported")
	}
}

func TestTurnMergeSnapshotsIndependent(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"profile": {"city": "Berlin"}}</block>`)

	snap := res.Merges[0].State
	snap["profile"].(map[string]any)["city"] = "tampered"

	if got := turn.State(); got["profile"].(map[string]any)["city"] != "Berlin" {
		t.Fatalf("turn state shares nodes with snapshot: %v", got)
	}
}

func TestTurnMultipleBlocksPerChunk(t *testing.T) {
	turn := newTurn(t)
	res := turn.Feed(`<block>{"a": "1"}</block> mid <block>{"b": "2"}</block>`)
	if len(res.Merges) != 2 {
		t.Fatalf("Merges = %d, want 2", len(res.Merges))
	}
	if !reflect.DeepEqual(turn.State(), state(t, `{"a": "1", "b": "2"}`)) {
		t.Fatalf("State = %v", turn.State())
	}
}
