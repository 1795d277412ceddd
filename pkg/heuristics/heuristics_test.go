package heuristics_test

import (
	"strings"
	"testing"

	"github.com/planloom/planloom/pkg/heuristics"
)

func ruleIDs(fs []heuristics.Finding) []string {
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.Rule
	}
	return ids
}

func TestScanDefaults(t *testing.T) {
	cases := []struct {
		text     string
		rule     string
		category heuristics.Category
	}{
		{"Ich habe Angst, dass das nicht reicht.", "fear_statement", heuristics.CategoryAnxiety},
		{"I'm so afraid of the numbers part.", "fear_statement", heuristics.CategoryAnxiety},
		{"Ich schaffe das nie ohne Hilfe.", "self_doubt", heuristics.CategoryAnxiety},
		{"Honestly I don't know where to start.", "overwhelm", heuristics.CategoryAnxiety},
		{"Was, wenn alles schiefgeht im ersten Jahr?", "failure_fixation", heuristics.CategoryAnxiety},
		{"Wir holen uns 100 % vom Markt im ersten Jahr.", "total_market_capture", heuristics.CategoryUnrealistic},
		{"Es gibt keine Konkurrenz für unsere Idee.", "no_competition", heuristics.CategoryUnrealistic},
		{"The product will be profitable from day one.", "instant_profit", heuristics.CategoryUnrealistic},
		{"Jeder ist unser Kunde, wirklich jeder.", "everyone_customer", heuristics.CategoryUnrealistic},
		{"Das Produkt verkauft sich von selbst.", "effortless_growth", heuristics.CategoryUnrealistic},
	}
	for _, c := range cases {
		fs := heuristics.Scan(c.text)
		found := false
		for _, f := range fs {
			if f.Rule == c.rule && f.Category == c.category {
				found = true
			}
		}
		if !found {
			t.Errorf("%q: rules = %v, want %s", c.text, ruleIDs(fs), c.rule)
		}
	}
}

func TestScanNeutralText(t *testing.T) {
	for _, text := range []string{
		"Mein Laden soll Fahrräder in Lindenthal reparieren.",
		"We expect around forty customers per week after six months.",
		"",
	} {
		if fs := heuristics.Scan(text); len(fs) != 0 {
			t.Errorf("%q: unexpected findings %v", text, ruleIDs(fs))
		}
	}
}

func TestFindingSpans(t *testing.T) {
	text := "Zuerst: ich habe Angst vor dem Anfang."
	fs := heuristics.Scan(text)
	if len(fs) != 1 {
		t.Fatalf("findings = %v", fs)
	}
	f := fs[0]
	if f.Match != text[f.Start:f.End] {
		t.Fatalf("Match %q != span %q", f.Match, text[f.Start:f.End])
	}
	if !strings.Contains(strings.ToLower(f.Match), "angst") {
		t.Fatalf("Match = %q", f.Match)
	}
	if f.Hint == "" {
		t.Fatal("finding without hint")
	}
}

func TestScanOrdersByPosition(t *testing.T) {
	text := "Es gibt keine Konkurrenz und ich habe Angst trotzdem."
	fs := heuristics.Scan(text)
	if len(fs) < 2 {
		t.Fatalf("findings = %v", fs)
	}
	for i := 1; i < len(fs); i++ {
		if fs[i].Start < fs[i-1].Start {
			t.Fatalf("findings out of order: %v", fs)
		}
	}
}

func TestParseRules(t *testing.T) {
	rules, err := heuristics.ParseRules([]byte(`
category: anxiety
rules:
  - id: custom
    pattern: '(?i)test me'
    hint: just a test
`))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if len(rules) != 1 || rules[0].Category != heuristics.CategoryAnxiety {
		t.Fatalf("rules = %+v", rules)
	}

	c, err := heuristics.NewClassifier(rules)
	if err != nil {
		t.Fatalf("NewClassifier: %v", err)
	}
	if fs := c.Scan("please TEST me now"); len(fs) != 1 || fs[0].Rule != "custom" {
		t.Fatalf("Scan = %v", fs)
	}
}

func TestParseRulesRejects(t *testing.T) {
	cases := map[string]string{
		"bad pattern": "rules:\n  - id: x\n    category: anxiety\n    pattern: '(unclosed'\n",
		"no id":       "category: anxiety\nrules:\n  - pattern: 'x'\n",
		"no category": "rules:\n  - id: x\n    pattern: 'x'\n",
	}
	for name, doc := range cases {
		if _, err := heuristics.ParseRules([]byte(doc)); err == nil {
			t.Errorf("%s: accepted invalid rules", name)
		}
	}
}

func TestNewClassifierRejectsDuplicates(t *testing.T) {
	rules, err := heuristics.ParseRules([]byte(`
category: anxiety
rules:
  - id: dup
    pattern: 'a'
  - id: dup
    pattern: 'b'
`))
	if err != nil {
		t.Fatalf("ParseRules: %v", err)
	}
	if _, err := heuristics.NewClassifier(rules); err == nil {
		t.Fatal("duplicate rule ids accepted")
	}
}

func TestDefaultCoversBothCategories(t *testing.T) {
	var anx, unreal bool
	for _, r := range heuristics.Default().Rules() {
		switch r.Category {
		case heuristics.CategoryAnxiety:
			anx = true
		case heuristics.CategoryUnrealistic:
			unreal = true
		}
	}
	if !anx || !unreal {
		t.Fatalf("default rules missing a category: anxiety=%v unrealistic=%v", anx, unreal)
	}
}
