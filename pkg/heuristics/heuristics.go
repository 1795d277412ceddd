// Package heuristics flags coaching-relevant wording in user messages:
// anxious self-talk and unrealistic business expectations.
//
// Rules are regular expressions grouped by category, loaded from YAML.
// A default rule set ships embedded; callers can parse and combine their
// own. Findings are advisory only: they annotate the conversation for
// display and session history but never influence the accumulated plan
// state.
package heuristics

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/goccy/go-yaml"
)

// Category groups rules by what they detect.
type Category string

const (
	// CategoryAnxiety flags fear and self-doubt phrasings.
	CategoryAnxiety Category = "anxiety"

	// CategoryUnrealistic flags overconfident market and profit claims.
	CategoryUnrealistic Category = "unrealistic"
)

// Pattern is a regular expression compiled once at decode time.
type Pattern struct {
	Expr string
	Re   *regexp.Regexp
}

func (p *Pattern) UnmarshalYAML(b []byte) error {
	var s string
	if err := yaml.Unmarshal(b, &s); err != nil {
		return err
	}
	return p.compile(s)
}

func (p *Pattern) MarshalYAML() (any, error) {
	return p.Expr, nil
}

func (p *Pattern) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return p.compile(s)
}

func (p *Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Expr)
}

func (p *Pattern) compile(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("heuristics: empty pattern")
	}
	re, err := regexp.Compile(s)
	if err != nil {
		return fmt.Errorf("heuristics: pattern %q: %w", s, err)
	}
	p.Expr, p.Re = s, re
	return nil
}

// Rule is one detection rule. Category may be left empty in a rule file
// that declares a file-level category.
type Rule struct {
	ID       string   `yaml:"id" json:"id"`
	Category Category `yaml:"category,omitempty" json:"category"`
	Pattern  Pattern  `yaml:"pattern" json:"pattern"`

	// Hint is a coaching suggestion surfaced alongside the finding.
	Hint string `yaml:"hint,omitempty" json:"hint,omitempty"`
}

// Finding is one rule match inside a scanned text. Start and End are
// byte offsets into the text.
type Finding struct {
	Rule     string   `json:"rule" msgpack:"rule"`
	Category Category `json:"category" msgpack:"category"`
	Match    string   `json:"match" msgpack:"match"`
	Start    int      `json:"start" msgpack:"start"`
	End      int      `json:"end" msgpack:"end"`
	Hint     string   `json:"hint,omitempty" msgpack:"hint,omitempty"`
}

// ruleFile is the YAML shape of one rule file.
type ruleFile struct {
	Category Category `yaml:"category,omitempty"`
	Rules    []Rule   `yaml:"rules"`
}

// ParseRules decodes one YAML rule file. A file-level category applies
// to every rule that does not set its own.
func ParseRules(b []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("heuristics: parse rules: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Category == "" {
			r.Category = f.Category
		}
		if r.ID == "" {
			return nil, fmt.Errorf("heuristics: rule %d has no id", i)
		}
		if r.Category == "" {
			return nil, fmt.Errorf("heuristics: rule %q has no category", r.ID)
		}
		if r.Pattern.Re == nil {
			return nil, fmt.Errorf("heuristics: rule %q has no pattern", r.ID)
		}
	}
	return f.Rules, nil
}

// Classifier scans text against a fixed rule set. It is immutable after
// construction and safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier. Rule IDs must be unique across the
// whole set.
func NewClassifier(rules []Rule) (*Classifier, error) {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.ID] {
			return nil, fmt.Errorf("heuristics: duplicate rule id %q", r.ID)
		}
		seen[r.ID] = true
		if r.Pattern.Re == nil {
			return nil, fmt.Errorf("heuristics: rule %q has no compiled pattern", r.ID)
		}
	}
	return &Classifier{rules: rules}, nil
}

// Rules returns the classifier's rule set.
func (c *Classifier) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Scan runs every rule over the text and returns all matches, ordered
// by position. Overlapping findings from different rules are all kept.
func (c *Classifier) Scan(text string) []Finding {
	if text == "" {
		return nil
	}
	var out []Finding
	for _, r := range c.rules {
		for _, span := range r.Pattern.Re.FindAllStringIndex(text, -1) {
			out = append(out, Finding{
				Rule:     r.ID,
				Category: r.Category,
				Match:    text[span[0]:span[1]],
				Start:    span[0],
				End:      span[1],
				Hint:     r.Hint,
			})
		}
	}
	slices.SortStableFunc(out, func(a, b Finding) int {
		if a.Start != b.Start {
			return a.Start - b.Start
		}
		return a.End - b.End
	})
	return out
}
