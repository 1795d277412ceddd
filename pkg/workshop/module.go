// Package workshop runs coaching modules: ordered phase flows the
// assistant walks a founder through, with marker-delimited data blocks
// merged into an accumulated plan state and phase transitions validated
// against per-phase completeness predicates.
package workshop

import (
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/goccy/go-yaml"
)

// Phase is one step of a module's coaching flow.
type Phase struct {
	// Name is the canonical phase identifier used in markers and checkpoints.
	Name string `json:"name" yaml:"name"`

	// Title is a human-readable label for display.
	Title string `json:"title,omitempty" yaml:"title,omitempty"`

	// Guidance steers the assistant while this phase is active.
	Guidance string `json:"guidance,omitempty" yaml:"guidance,omitempty"`

	// CompleteWhen is a jq predicate over the accumulated state.
	// A phase without a predicate is complete by definition.
	CompleteWhen *JQExpr `json:"complete_when,omitempty" yaml:"complete_when,omitempty"`
}

// Module describes one coaching module: an ordered phase flow plus the
// prompt material the assistant needs to run it.
type Module struct {
	ID    string `json:"id" yaml:"id"`
	Title string `json:"title" yaml:"title"`

	// Prompt is the module-specific body of the system prompt,
	// a text/template rendered with the same data as the outer prompt.
	Prompt string `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	Phases []Phase `json:"phases" yaml:"phases"`

	// Synonyms maps alternative marker spellings to canonical phase
	// names. Lookup folds case, surrounding space and separators.
	Synonyms map[string]string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
}

// nameRe constrains module and phase identifiers.
var nameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseModuleYAML parses and validates a Module from YAML bytes.
func ParseModuleYAML(data []byte) (*Module, error) {
	var m Module
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural rules: identifier shapes, phase ordering
// constraints, synonym targets and the prompt template syntax.
func (m *Module) Validate() error {
	if m == nil {
		return fmt.Errorf("module is nil")
	}
	if !nameRe.MatchString(m.ID) {
		return fmt.Errorf("invalid module id %q", m.ID)
	}
	if len(m.Phases) == 0 {
		return fmt.Errorf("module %q has no phases", m.ID)
	}

	seen := make(map[string]struct{}, len(m.Phases))
	for i, p := range m.Phases {
		if !nameRe.MatchString(p.Name) {
			return fmt.Errorf("module %q: phase[%d] has invalid name %q", m.ID, i, p.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("module %q: duplicate phase %q", m.ID, p.Name)
		}
		seen[p.Name] = struct{}{}
	}

	folded := make(map[string]string, len(m.Synonyms))
	for raw, target := range m.Synonyms {
		key := foldMarker(raw)
		if key == "" {
			return fmt.Errorf("module %q: empty synonym key", m.ID)
		}
		if _, ok := seen[key]; ok {
			return fmt.Errorf("module %q: synonym %q duplicates a phase name", m.ID, raw)
		}
		if prev, ok := folded[key]; ok && prev != target {
			return fmt.Errorf("module %q: synonyms %q fold together with different targets", m.ID, raw)
		}
		if _, ok := seen[target]; !ok {
			return fmt.Errorf("module %q: synonym %q points to unknown phase %q", m.ID, raw, target)
		}
		folded[key] = target
	}

	if m.Prompt != "" {
		if _, err := template.New(m.ID).Parse(m.Prompt); err != nil {
			return fmt.Errorf("module %q: prompt template: %w", m.ID, err)
		}
	}
	return nil
}

// PhaseIndex returns the position of the named phase, or -1.
func (m *Module) PhaseIndex(name string) int {
	for i, p := range m.Phases {
		if p.Name == name {
			return i
		}
	}
	return -1
}

// Phase returns the named phase definition.
func (m *Module) Phase(name string) (*Phase, bool) {
	if i := m.PhaseIndex(name); i >= 0 {
		return &m.Phases[i], true
	}
	return nil, false
}

// PhaseNames returns the phase names in flow order.
func (m *Module) PhaseNames() []string {
	names := make([]string, len(m.Phases))
	for i, p := range m.Phases {
		names[i] = p.Name
	}
	return names
}

// foldMarker normalizes a marker for lookup: lower case, trimmed,
// internal space and hyphen runs collapsed to single underscores.
func foldMarker(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	sep := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '-' || r == '_' {
			sep = true
			continue
		}
		if sep && b.Len() > 0 {
			b.WriteByte('_')
		}
		sep = false
		b.WriteRune(r)
	}
	return b.String()
}
