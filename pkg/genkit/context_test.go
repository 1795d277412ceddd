package genkit_test

import (
	"testing"

	"github.com/planloom/planloom/pkg/genkit"
)

func collectPrompts(mctx genkit.ModelContext) []*genkit.Prompt {
	var out []*genkit.Prompt
	for p := range mctx.Prompts() {
		out = append(out, p)
	}
	return out
}

func collectMessages(mctx genkit.ModelContext) []*genkit.Message {
	var out []*genkit.Message
	for m := range mctx.Messages() {
		out = append(out, m)
	}
	return out
}

func TestBuilderMergesPrompts(t *testing.T) {
	mcb := &genkit.ModelContextBuilder{}
	mcb.PromptText("coach", "first")
	mcb.PromptText("coach", "second")
	mcb.PromptText("rules", "third")

	prompts := collectPrompts(mcb.Build())
	if len(prompts) != 2 {
		t.Fatalf("prompts = %d, want 2", len(prompts))
	}
	if prompts[0].Text != "first\nsecond" {
		t.Fatalf("merged prompt = %q", prompts[0].Text)
	}
	if prompts[1].Name != "rules" {
		t.Fatalf("second prompt name = %q", prompts[1].Name)
	}
}

func TestBuilderMergesMessages(t *testing.T) {
	mcb := &genkit.ModelContextBuilder{}
	mcb.UserText("", "Hallo")
	mcb.ModelText("", "Wie ")
	mcb.ModelText("", "gehts?")
	mcb.UserText("", "Gut.")

	msgs := collectMessages(mcb.Build())
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[1].Role != genkit.RoleModel || msgs[1].Text != "Wie gehts?" {
		t.Fatalf("merged model message = %+v", msgs[1])
	}
}

func TestModelContexts(t *testing.T) {
	a := &genkit.ModelContextBuilder{}
	a.PromptText("system", "be helpful")
	b := &genkit.ModelContextBuilder{
		Params: &genkit.ModelParams{Temperature: 0.5},
	}
	b.UserText("", "hi")

	combined := genkit.ModelContexts(a.Build(), b.Build())

	if got := len(collectPrompts(combined)); got != 1 {
		t.Fatalf("prompts = %d, want 1", got)
	}
	if got := len(collectMessages(combined)); got != 1 {
		t.Fatalf("messages = %d, want 1", got)
	}
	if p := combined.Params(); p == nil || p.Temperature != 0.5 {
		t.Fatalf("params = %+v", p)
	}
}
