package fragment_test

import (
	"errors"
	"testing"

	"github.com/planloom/planloom/pkg/fragment"
)

func mustParse(t *testing.T, raw string) fragment.Fragment {
	t.Helper()
	f, err := fragment.Parse(raw)
	if err != nil {
		t.Fatalf("Parse(%q): %v", raw, err)
	}
	return f
}

func TestParseStrict(t *testing.T) {
	f := mustParse(t, `{"name":"Anna","employees":3,"remote":true}`)

	if f["name"] != "Anna" {
		t.Fatalf("name = %v", f["name"])
	}
	if f["employees"] != float64(3) {
		t.Fatalf("employees = %v (%T)", f["employees"], f["employees"])
	}
	if f["remote"] != true {
		t.Fatalf("remote = %v", f["remote"])
	}
}

func TestParseTrailingComma(t *testing.T) {
	f := mustParse(t, `{"a":1,"b":2,}`)
	if f["a"] != float64(1) || f["b"] != float64(2) {
		t.Fatalf("fragment = %v", f)
	}
}

func TestParseTruncated(t *testing.T) {
	// Block closed mid-value; the repair pass must recover the complete
	// pairs that precede the truncation.
	f := mustParse(t, `{"idea":"coffee cart","phase":"intro","budget`)
	if f["idea"] != "coffee cart" {
		t.Fatalf("idea = %v", f["idea"])
	}
	if f["phase"] != "intro" {
		t.Fatalf("phase = %v", f["phase"])
	}
}

func TestParseUnterminatedString(t *testing.T) {
	f := mustParse(t, `{"summary":"we sell coff`)
	v, ok := f["summary"].(string)
	if !ok {
		t.Fatalf("summary = %v (%T), want string", f["summary"], f["summary"])
	}
	if v == "" {
		t.Fatal("summary recovered empty")
	}
}

func TestParseEmpty(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\t"} {
		_, err := fragment.Parse(raw)
		var df *fragment.DecodeFailure
		if !errors.As(err, &df) {
			t.Fatalf("Parse(%q) err = %v, want DecodeFailure", raw, err)
		}
		if df.Reason != fragment.ReasonEmpty {
			t.Fatalf("Parse(%q) reason = %s, want %s", raw, df.Reason, fragment.ReasonEmpty)
		}
	}
}

func TestParseNotObject(t *testing.T) {
	for _, raw := range []string{`[1,2,3]`, `"hello"`, `42`, `true`} {
		_, err := fragment.Parse(raw)
		var df *fragment.DecodeFailure
		if !errors.As(err, &df) {
			t.Fatalf("Parse(%q) err = %v, want DecodeFailure", raw, err)
		}
		if df.Reason != fragment.ReasonNotObject {
			t.Fatalf("Parse(%q) reason = %s, want %s", raw, df.Reason, fragment.ReasonNotObject)
		}
		if df.Raw != raw {
			t.Fatalf("Raw = %q, want %q", df.Raw, raw)
		}
	}
}

func TestPhaseMarker(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{`{"phase":"intro"}`, "intro", true},
		{`{"phase":"  idea "}`, "idea", true},
		{`{"phase":""}`, "", false},
		{`{"phase":7}`, "", false},
		{`{"a":1}`, "", false},
	}
	for _, tt := range tests {
		f := mustParse(t, tt.raw)
		got, ok := f.PhaseMarker()
		if got != tt.want || ok != tt.ok {
			t.Fatalf("PhaseMarker(%s) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPhaseComplete(t *testing.T) {
	if !mustParse(t, `{"phase_complete":true}`).PhaseComplete() {
		t.Fatal("PhaseComplete = false, want true")
	}
	if mustParse(t, `{"phase_complete":false}`).PhaseComplete() {
		t.Fatal("PhaseComplete = true, want false")
	}
	if mustParse(t, `{"phase_complete":"yes"}`).PhaseComplete() {
		t.Fatal("PhaseComplete = true for non-bool value")
	}
	if mustParse(t, `{"a":1}`).PhaseComplete() {
		t.Fatal("PhaseComplete = true for absent field")
	}
}

func TestStripMeta(t *testing.T) {
	f := mustParse(t, `{"phase":"intro","phase_complete":true,"idea":"x"}`)

	s := f.StripMeta()
	if _, ok := s[fragment.PhaseField]; ok {
		t.Fatal("StripMeta kept phase field")
	}
	if _, ok := s[fragment.PhaseCompleteField]; ok {
		t.Fatal("StripMeta kept phase_complete field")
	}
	if s["idea"] != "x" {
		t.Fatalf("idea = %v", s["idea"])
	}
	// Original untouched.
	if _, ok := f[fragment.PhaseField]; !ok {
		t.Fatal("StripMeta mutated the receiver")
	}
}

func TestClone(t *testing.T) {
	f := mustParse(t, `{"nested":{"a":1},"list":[{"id":1}]}`)
	c := f.Clone()

	c["nested"].(map[string]any)["a"] = float64(9)
	c["list"].([]any)[0].(map[string]any)["id"] = float64(9)

	if f["nested"].(map[string]any)["a"] != float64(1) {
		t.Fatal("Clone shares nested map")
	}
	if f["list"].([]any)[0].(map[string]any)["id"] != float64(1) {
		t.Fatal("Clone shares nested list")
	}
}
