package workshop

import (
	"fmt"
	"strings"

	"github.com/planloom/planloom/pkg/planstate"
)

// Machine validates phase transitions for one module.
//
// Phases form an ordered flow. Moving backward or holding still is always
// admissible, as is advancing a single step. Jumping further forward is
// admissible only when every skipped phase is complete against the
// accumulated state.
type Machine struct {
	mod     *Module
	lookup  map[string]string // folded marker -> canonical phase name
	current int
}

// Transition records the outcome of a single phase-change attempt.
type Transition struct {
	Raw     string   // marker text as received
	From    string   // phase before the attempt
	To      string   // phase after the attempt
	Target  string   // normalized target, empty when the marker is unknown
	Known   bool     // marker resolved to a declared phase
	Applied bool     // machine ended up on Target
	Skipped []string // phases stepped over by an applied forward jump
	Blocked string   // first incomplete phase that vetoed a forward jump
}

// NewMachine builds a machine for the module, positioned on current.
// An empty current selects the module's first phase.
func NewMachine(mod *Module, current string) (*Machine, error) {
	if mod == nil {
		return nil, fmt.Errorf("workshop: module is nil")
	}
	if err := mod.Validate(); err != nil {
		return nil, fmt.Errorf("workshop: %w", err)
	}

	lookup := make(map[string]string, len(mod.Phases)+len(mod.Synonyms))
	for _, p := range mod.Phases {
		lookup[foldMarker(p.Name)] = p.Name
	}
	for raw, target := range mod.Synonyms {
		lookup[foldMarker(raw)] = target
	}

	m := &Machine{mod: mod, lookup: lookup}
	if current != "" {
		idx := mod.PhaseIndex(current)
		if idx < 0 {
			return nil, fmt.Errorf("workshop: module %q has no phase %q", mod.ID, current)
		}
		m.current = idx
	}
	return m, nil
}

// Module returns the module this machine validates for.
func (m *Machine) Module() *Module { return m.mod }

// Current returns the canonical name of the active phase.
func (m *Machine) Current() string { return m.mod.Phases[m.current].Name }

// Normalize resolves a raw marker to a canonical phase name: exact name
// match first, then the folded synonym table. The second value reports
// whether the marker resolved at all.
func (m *Machine) Normalize(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	if m.mod.PhaseIndex(raw) >= 0 {
		return raw, true
	}
	if name, ok := m.lookup[foldMarker(raw)]; ok {
		return name, true
	}
	return "", false
}

// Check reports whether a transition to the canonical target phase would
// be admissible given the state. It never changes the machine.
func (m *Machine) Check(target string, st planstate.State) Transition {
	t := Transition{Raw: target, From: m.Current(), To: m.Current()}
	to := m.mod.PhaseIndex(target)
	if to < 0 {
		return t
	}
	t.Known = true
	t.Target = target

	from := m.current
	if to <= from+1 {
		t.Applied = true
		t.To = target
		return t
	}
	for i := from + 1; i < to; i++ {
		p := &m.mod.Phases[i]
		if !phaseComplete(p, st) {
			t.Blocked = p.Name
			return t
		}
		t.Skipped = append(t.Skipped, p.Name)
	}
	t.Applied = true
	t.To = target
	return t
}

// Advance normalizes a raw marker and applies the resulting transition.
// Unknown markers and rejected jumps leave the machine where it is.
func (m *Machine) Advance(raw string, st planstate.State) Transition {
	target, ok := m.Normalize(raw)
	if !ok {
		return Transition{Raw: raw, From: m.Current(), To: m.Current()}
	}
	t := m.Check(target, st)
	t.Raw = raw
	if t.Applied {
		m.current = m.mod.PhaseIndex(t.To)
	}
	return t
}

// Complete reports whether the active phase's completeness predicate
// holds against the state.
func (m *Machine) Complete(st planstate.State) bool {
	return phaseComplete(&m.mod.Phases[m.current], st)
}

func phaseComplete(p *Phase, st planstate.State) bool {
	if p.CompleteWhen == nil {
		return true
	}
	return p.CompleteWhen.EvalBool(map[string]any(st))
}
