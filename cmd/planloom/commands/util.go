package commands

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/planloom/planloom/pkg/cli"
	"github.com/planloom/planloom/pkg/genkit"
	"github.com/planloom/planloom/pkg/planstate"
	"github.com/planloom/planloom/pkg/workshop"
)

// captureStream keeps the terminal state of a generation so the status
// line can report token usage after the turn.
type captureStream struct {
	genkit.Stream
	state *genkit.State
}

func (s *captureStream) Next() (*genkit.MessageChunk, error) {
	chunk, err := s.Stream.Next()
	if err != nil {
		var st *genkit.State
		if errors.As(err, &st) {
			s.state = st
		}
	}
	return chunk, err
}

// phaseLabel names a phase for the rule banner. An empty phase means
// the module's first.
func phaseLabel(mod *workshop.Module, phase string) string {
	if phase == "" && len(mod.Phases) > 0 {
		phase = mod.Phases[0].Name
	}
	if p, ok := mod.Phase(phase); ok && p.Title != "" {
		return p.Title
	}
	return phase
}

// stateLines renders a compact one-line-per-key view of the state.
func stateLines(st planstate.State) []string {
	lines := make([]string, 0, len(st))
	for _, k := range slices.Sorted(maps.Keys(st)) {
		switch v := st[k].(type) {
		case []any:
			lines = append(lines, fmt.Sprintf("%s: %d item(s)", k, len(v)))
		case map[string]any:
			lines = append(lines, fmt.Sprintf("%s: %d field(s)", k, len(v)))
		default:
			lines = append(lines, cli.Truncate(fmt.Sprintf("%s: %v", k, v), 72))
		}
	}
	return lines
}

// turnStatus builds the status line shown after a turn.
func turnStatus(elapsed time.Duration, term *genkit.State) string {
	status := cli.FormatDuration(elapsed)
	if term != nil {
		u := term.Usage()
		status += " · " + cli.FormatTokens(u.PromptTokenCount, u.GeneratedTokenCount)
	}
	return status
}
