package genkit_test

import (
	"errors"
	"testing"

	"github.com/planloom/planloom/pkg/genkit"
)

func TestStreamDeliversChunks(t *testing.T) {
	sb := genkit.NewStreamBuilder(8)
	if err := sb.Add(
		&genkit.MessageChunk{Role: genkit.RoleModel, Text: "Hal"},
		&genkit.MessageChunk{Role: genkit.RoleModel, Text: "lo"},
	); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sb.Done(genkit.Usage{PromptTokenCount: 10, GeneratedTokenCount: 2}); err != nil {
		t.Fatalf("Done: %v", err)
	}

	stream := sb.Stream()
	var got string
	for {
		chunk, err := stream.Next()
		if err != nil {
			if !errors.Is(err, genkit.ErrDone) {
				t.Fatalf("Next: %v", err)
			}
			var st *genkit.State
			if !errors.As(err, &st) {
				t.Fatalf("terminal error is %T, want *State", err)
			}
			if st.Status() != genkit.StatusDone {
				t.Fatalf("Status = %v, want done", st.Status())
			}
			if st.Usage().GeneratedTokenCount != 2 {
				t.Fatalf("Usage = %+v", st.Usage())
			}
			break
		}
		got += chunk.Text
	}
	if got != "Hallo" {
		t.Fatalf("text = %q, want Hallo", got)
	}
}

func TestStreamTruncated(t *testing.T) {
	sb := genkit.NewStreamBuilder(1)
	if err := sb.Truncated(genkit.Usage{}); err != nil {
		t.Fatalf("Truncated: %v", err)
	}

	_, err := sb.Stream().Next()
	if err == nil || errors.Is(err, genkit.ErrDone) {
		t.Fatalf("Next = %v, want truncation error", err)
	}
	var st *genkit.State
	if !errors.As(err, &st) || st.Status() != genkit.StatusTruncated {
		t.Fatalf("terminal state = %v", err)
	}
}

func TestStreamBlocked(t *testing.T) {
	sb := genkit.NewStreamBuilder(1)
	if err := sb.Blocked(genkit.Usage{}, "safety"); err != nil {
		t.Fatalf("Blocked: %v", err)
	}

	_, err := sb.Stream().Next()
	var st *genkit.State
	if !errors.As(err, &st) || st.Status() != genkit.StatusBlocked {
		t.Fatalf("terminal state = %v", err)
	}
}

func TestStreamAbort(t *testing.T) {
	sb := genkit.NewStreamBuilder(8)
	cause := errors.New("connection reset")
	if err := sb.Abort(cause); err != nil {
		t.Fatalf("Abort: %v", err)
	}

	_, err := sb.Stream().Next()
	if !errors.Is(err, cause) {
		t.Fatalf("Next = %v, want %v", err, cause)
	}
}

func TestStreamTerminalErrorRepeats(t *testing.T) {
	sb := genkit.NewStreamBuilder(1)
	if err := sb.Done(genkit.Usage{}); err != nil {
		t.Fatalf("Done: %v", err)
	}

	stream := sb.Stream()
	if _, err := stream.Next(); !errors.Is(err, genkit.ErrDone) {
		t.Fatalf("first Next = %v", err)
	}
	if _, err := stream.Next(); !errors.Is(err, genkit.ErrDone) {
		t.Fatalf("second Next = %v", err)
	}
}

func TestAddAfterCloseFails(t *testing.T) {
	sb := genkit.NewStreamBuilder(1)
	stream := sb.Stream()
	if err := stream.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sb.Add(&genkit.MessageChunk{Role: genkit.RoleModel, Text: "x"}); err == nil {
		t.Fatal("Add succeeded on a closed stream")
	}
}

func TestQueuedChunksDrainBeforeClose(t *testing.T) {
	sb := genkit.NewStreamBuilder(8)
	if err := sb.Add(&genkit.MessageChunk{Role: genkit.RoleModel, Text: "x"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := sb.Done(genkit.Usage{}); err != nil {
		t.Fatalf("Done: %v", err)
	}

	stream := sb.Stream()
	chunk, err := stream.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if chunk.Text != "x" {
		t.Fatalf("chunk = %q", chunk.Text)
	}
	if _, err := stream.Next(); !errors.Is(err, genkit.ErrDone) {
		t.Fatalf("Next = %v, want done", err)
	}
}
