package genkit

import "iter"

var (
	_ ModelContext = (*modelContext)(nil)
	_ ModelContext = (MultiModelContext)(nil)
)

// ModelContext supplies prompt segments, conversation history and
// generation params to a backend.
type ModelContext interface {
	Prompts() iter.Seq[*Prompt]
	Messages() iter.Seq[*Message]

	Params() *ModelParams
}

// ModelContextBuilder assembles a ModelContext.
type ModelContextBuilder struct {
	Prompts  []*Prompt
	Messages []*Message

	Params *ModelParams
}

func (mcb *ModelContextBuilder) Build() ModelContext {
	return &modelContext{
		prompts:  mcb.Prompts,
		messages: mcb.Messages,
		params:   mcb.Params,
	}
}

func (mcb *ModelContextBuilder) lastPrompt() (*Prompt, bool) {
	if len(mcb.Prompts) == 0 {
		return nil, false
	}
	return mcb.Prompts[len(mcb.Prompts)-1], true
}

// AddPrompt appends a prompt segment, merging it into the previous one
// when the names match.
func (mcb *ModelContextBuilder) AddPrompt(prompt *Prompt) {
	if p, ok := mcb.lastPrompt(); ok && p.Name == prompt.Name {
		if p.Text != "" {
			p.Text += "\n" + prompt.Text
		} else {
			p.Text = prompt.Text
		}
		return
	}
	mcb.Prompts = append(mcb.Prompts, prompt)
}

func (mcb *ModelContextBuilder) lastMessage() (*Message, bool) {
	if len(mcb.Messages) == 0 {
		return nil, false
	}
	return mcb.Messages[len(mcb.Messages)-1], true
}

// AddMessage appends a message, concatenating it onto the previous one
// when role and name match. Streamed reply pieces collapse into one
// entry this way.
func (mcb *ModelContextBuilder) AddMessage(msg *Message) {
	if m, ok := mcb.lastMessage(); ok && m.Role == msg.Role && m.Name == msg.Name {
		m.Text += msg.Text
		return
	}
	mcb.Messages = append(mcb.Messages, msg)
}

func (mcb *ModelContextBuilder) PromptText(name, text string) {
	mcb.AddPrompt(&Prompt{
		Name: name,
		Text: text,
	})
}

func (mcb *ModelContextBuilder) UserText(name, text string) {
	mcb.AddMessage(&Message{
		Role: RoleUser,
		Name: name,
		Text: text,
	})
}

func (mcb *ModelContextBuilder) ModelText(name, text string) {
	mcb.AddMessage(&Message{
		Role: RoleModel,
		Name: name,
		Text: text,
	})
}

type modelContext struct {
	prompts  []*Prompt
	messages []*Message

	params *ModelParams
}

func (mctx *modelContext) Prompts() iter.Seq[*Prompt] {
	return func(yield func(*Prompt) bool) {
		for _, prompt := range mctx.prompts {
			if !yield(prompt) {
				return
			}
		}
	}
}

func (mctx *modelContext) Messages() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for _, message := range mctx.messages {
			if !yield(message) {
				return
			}
		}
	}
}

func (mctx *modelContext) Params() *ModelParams {
	return mctx.params
}

// MultiModelContext chains contexts; prompts and messages concatenate
// in order, params come from the first context that has any.
type MultiModelContext []ModelContext

func ModelContexts(ctxs ...ModelContext) MultiModelContext {
	return MultiModelContext(ctxs)
}

func (mctx MultiModelContext) Prompts() iter.Seq[*Prompt] {
	return func(yield func(*Prompt) bool) {
		for _, ctx := range mctx {
			for prompt := range ctx.Prompts() {
				if !yield(prompt) {
					return
				}
			}
		}
	}
}

func (mctx MultiModelContext) Messages() iter.Seq[*Message] {
	return func(yield func(*Message) bool) {
		for _, ctx := range mctx {
			for message := range ctx.Messages() {
				if !yield(message) {
					return
				}
			}
		}
	}
}

func (mctx MultiModelContext) Params() *ModelParams {
	for _, ctx := range mctx {
		if ctx.Params() != nil {
			return ctx.Params()
		}
	}
	return nil
}
