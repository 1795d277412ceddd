package workshop

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/planloom/planloom/pkg/blockstream"
	"github.com/planloom/planloom/pkg/planstate"
	"gopkg.in/yaml.v3"

	_ "embed"
)

//go:embed prompt.gotmpl
var promptTpl string

var promptScaffold = template.Must(template.New("prompt").Parse(promptTpl))

type promptPhase struct {
	Name    string
	Title   string
	Current bool
}

// promptData is the data structure passed to the prompt templates.
type promptData struct {
	Module   *Module
	Body     string // rendered module prompt
	Phases   []promptPhase
	Current  string
	Guidance string
	State    string // YAML-rendered accumulated state
	Open     string
	Close    string
}

// SystemPrompt renders the system prompt for a turn: the module's own
// prompt body, the phase flow with the current position, the block
// format contract and the accumulated state.
func SystemPrompt(mod *Module, current string, st planstate.State, markers blockstream.Markers) (string, error) {
	if mod == nil {
		return "", fmt.Errorf("workshop: module is nil")
	}
	if current == "" {
		if len(mod.Phases) == 0 {
			return "", fmt.Errorf("workshop: module %q has no phases", mod.ID)
		}
		current = mod.Phases[0].Name
	}
	cp, ok := mod.Phase(current)
	if !ok {
		return "", fmt.Errorf("workshop: module %q has no phase %q", mod.ID, current)
	}
	if markers.Open == "" || markers.Close == "" {
		markers = blockstream.Default
	}

	data := &promptData{
		Module:   mod,
		Current:  current,
		Guidance: cp.Guidance,
		Open:     markers.Open,
		Close:    markers.Close,
	}
	for _, p := range mod.Phases {
		data.Phases = append(data.Phases, promptPhase{
			Name:    p.Name,
			Title:   p.Title,
			Current: p.Name == current,
		})
	}
	if len(st) > 0 {
		rendered, err := yaml.Marshal(map[string]any(st))
		if err != nil {
			return "", fmt.Errorf("workshop: render state: %w", err)
		}
		data.State = string(rendered)
	}

	if mod.Prompt != "" {
		body, err := template.New(mod.ID).Parse(mod.Prompt)
		if err != nil {
			return "", fmt.Errorf("workshop: module %q prompt: %w", mod.ID, err)
		}
		var buf bytes.Buffer
		if err := body.Execute(&buf, data); err != nil {
			return "", fmt.Errorf("workshop: module %q prompt: %w", mod.ID, err)
		}
		data.Body = buf.String()
	}

	var buf bytes.Buffer
	if err := promptScaffold.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("workshop: render prompt: %w", err)
	}
	return buf.String(), nil
}
