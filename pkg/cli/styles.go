package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the palette of the chat surface.
type Theme struct {
	Primary lipgloss.Color // coach output
	Accent  lipgloss.Color // phase banners, captured state
	Warn    lipgloss.Color // heuristic findings
	Err     lipgloss.Color // errors
	Dim     lipgloss.Color // rules, diagnostics, help
}

// DefaultTheme is the default planloom palette.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#7dd3fc"),
	Accent:  lipgloss.Color("#a7f3d0"),
	Warn:    lipgloss.Color("#fbbf24"),
	Err:     lipgloss.Color("#f87171"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Coach   lipgloss.Style
	Prompt  lipgloss.Style
	Banner  lipgloss.Style
	Rule    lipgloss.Style
	State   lipgloss.Style
	Finding lipgloss.Style
	Dim     lipgloss.Style
	Err     lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Coach:   lipgloss.NewStyle().Foreground(t.Primary),
		Prompt:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Banner:  lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Rule:    lipgloss.NewStyle().Foreground(t.Dim),
		State:   lipgloss.NewStyle().Foreground(t.Accent),
		Finding: lipgloss.NewStyle().Foreground(t.Warn),
		Dim:     lipgloss.NewStyle().Foreground(t.Dim),
		Err:     lipgloss.NewStyle().Bold(true).Foreground(t.Err),
	}
}

// PhaseRule renders a labelled horizontal rule, used as the phase
// banner between turns.
func (s Styles) PhaseRule(label string, width int) string {
	if width <= 0 {
		width = 72
	}
	text := s.Banner.Render(label)
	pad := max(0, width-lipgloss.Width(text)-4)
	return s.Rule.Render("──") + " " + text + " " + s.Rule.Render(strings.Repeat("─", pad))
}

// Truncate cuts a string to the given display width, handling
// multi-byte characters correctly.
func Truncate(str string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(str) <= width {
		return str
	}
	runes := []rune(str)
	current := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if current+w > width-1 {
			return string(runes[:i]) + "…"
		}
		current += w
	}
	return str
}
