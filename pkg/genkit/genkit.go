// Package genkit streams model generations for the coaching engine.
// It adapts chat-completion style APIs to one Stream interface the turn
// engine drains, with terminal status carried as a *State error.
package genkit

import (
	"context"

	"github.com/goccy/go-yaml"
)

// Stream yields generated chunks until a terminal error. A normally
// finished stream returns an error matching ErrDone; truncation,
// blocking and transport failures arrive as *State errors too.
type Stream interface {
	Next() (*MessageChunk, error)
	Close() error
	CloseWithError(error) error
}

// Generator produces generation streams. The string argument is the
// model URI the request was routed with; implementations bound to a
// fixed model may ignore it.
type Generator interface {
	GenerateStream(context.Context, string, ModelContext) (Stream, error)
}

// ModelParams tunes a generation request.
type ModelParams struct {
	MaxTokens        int     `json:"max_tokens,omitzero" yaml:"max_tokens,omitempty"`
	FrequencyPenalty float32 `json:"frequency_penalty,omitzero" yaml:"frequency_penalty,omitempty"`
	Temperature      float32 `json:"temperature,omitzero" yaml:"temperature,omitempty"`
	TopP             float32 `json:"top_p,omitzero" yaml:"top_p,omitempty"`
	PresencePenalty  float32 `json:"presence_penalty,omitzero" yaml:"presence_penalty,omitempty"`
	TopK             float32 `json:"top_k,omitzero" yaml:"top_k,omitempty"`
}

// Usage accumulates token counts for one generation.
type Usage struct {
	// Number of tokens in the prompt, cached content included.
	PromptTokenCount int64

	// Number of tokens served from cached content.
	CachedContentTokenCount int64

	// Number of tokens generated.
	GeneratedTokenCount int64
}

func (u Usage) String() string {
	b, _ := yaml.Marshal(map[string]map[string]any{
		"Usage": {
			"Prompt":    u.PromptTokenCount,
			"Cached":    u.CachedContentTokenCount,
			"Generated": u.GeneratedTokenCount,
		},
	})
	return string(b)
}
