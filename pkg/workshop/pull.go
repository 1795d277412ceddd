package workshop

import (
	"errors"

	"github.com/planloom/planloom/pkg/genkit"
)

// PullOption configures Pull.
type PullOption func(*pullConfig)

type pullConfig struct {
	observe func(chunk string, res *FeedResult)
}

// WithObserver registers a callback invoked after every fed chunk,
// for live display of transcript and merge effects.
func WithObserver(fn func(chunk string, res *FeedResult)) PullOption {
	return func(c *pullConfig) { c.observe = fn }
}

// Pull drains a model stream into the turn. Text chunks feed the turn,
// a done signal finishes it, any other stream error aborts it with the
// merged data retained. The stream is closed before Pull returns.
func Pull(stream genkit.Stream, turn *Turn, opts ...PullOption) (*TurnResult, error) {
	cfg := &pullConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	defer stream.Close()

	for {
		chunk, err := stream.Next()
		if err != nil {
			if errors.Is(err, genkit.ErrDone) {
				return turn.Finish(), nil
			}
			return turn.Abort(err), err
		}
		if chunk == nil || chunk.Text == "" {
			continue
		}
		res := turn.Feed(chunk.Text)
		if cfg.observe != nil {
			cfg.observe(chunk.Text, res)
		}
	}
}
