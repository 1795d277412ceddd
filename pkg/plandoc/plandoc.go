// Package plandoc assembles the business plan document for a session
// from the states its modules have accumulated, renders it as markdown
// and validates it against a derived JSON Schema before export.
package plandoc

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/planloom/planloom/pkg/planstate"
)

// Doc is the assembled plan document for one session.
type Doc struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Exported  string    `json:"exported"`
	Sections  []Section `json:"sections"`
}

// Section is one module's contribution to the plan.
type Section struct {
	Module   string  `json:"module"`
	Title    string  `json:"title"`
	Phase    string  `json:"phase,omitempty"`
	Complete bool    `json:"complete"`
	Entries  []Entry `json:"entries,omitempty"`
}

// Entry is one captured value, flattened for rendering. Either Text or
// Items is set.
type Entry struct {
	Label string   `json:"label"`
	Text  string   `json:"text,omitempty"`
	Items []string `json:"items,omitempty"`
}

// ModuleState is one module's latest checkpoint fed into Assemble.
type ModuleState struct {
	Module   string
	Title    string
	Phase    string
	Complete bool
	State    planstate.State
}

// Assemble builds the plan document from the module states, keeping
// their order. The document title picks up the captured business idea
// when one of the modules stored it.
func Assemble(sessionID string, exported time.Time, states []ModuleState) Doc {
	doc := Doc{
		SessionID: sessionID,
		Title:     "Business Plan",
		Exported:  exported.Format("2006-01-02"),
	}
	for _, ms := range states {
		if idea, ok := ms.State["idea"].(string); ok && idea != "" && doc.Title == "Business Plan" {
			doc.Title = "Business Plan: " + idea
		}
		title := ms.Title
		if title == "" {
			title = label(ms.Module)
		}
		doc.Sections = append(doc.Sections, Section{
			Module:   ms.Module,
			Title:    title,
			Phase:    ms.Phase,
			Complete: ms.Complete,
			Entries:  entries(ms.State),
		})
	}
	return doc
}

// entries flattens a module state into labelled entries, keys sorted
// for stable output.
func entries(state planstate.State) []Entry {
	var out []Entry
	for _, k := range slices.Sorted(maps.Keys(state)) {
		out = append(out, flatten(label(k), state[k])...)
	}
	return out
}

func flatten(lbl string, v any) []Entry {
	switch v := v.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []Entry{{Label: lbl, Text: v}}
	case bool:
		return []Entry{{Label: lbl, Text: strconv.FormatBool(v)}}
	case float64:
		return []Entry{{Label: lbl, Text: formatNumber(v)}}
	case []any:
		items := make([]string, 0, len(v))
		for _, el := range v {
			if s := item(el); s != "" {
				items = append(items, s)
			}
		}
		if len(items) == 0 {
			return nil
		}
		return []Entry{{Label: lbl, Items: items}}
	case map[string]any:
		var out []Entry
		for _, k := range slices.Sorted(maps.Keys(v)) {
			out = append(out, flatten(lbl+" / "+label(k), v[k])...)
		}
		return out
	default:
		return []Entry{{Label: lbl, Text: fmt.Sprint(v)}}
	}
}

// item renders one list element on a single line. Named entries lead
// with their name and carry the remaining fields in parentheses.
func item(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return scalar(v)
	}
	var lead, leadKey string
	for _, k := range []string{"name", "title", "label", "id"} {
		if s := scalar(m[k]); s != "" {
			lead, leadKey = s, k
			break
		}
	}
	var rest []string
	for _, k := range slices.Sorted(maps.Keys(m)) {
		if k == leadKey || k == "id" {
			continue
		}
		if s := scalar(m[k]); s != "" {
			rest = append(rest, k+": "+s)
		}
	}
	switch {
	case lead == "" && len(rest) == 0:
		return ""
	case lead == "":
		return strings.Join(rest, ", ")
	case len(rest) == 0:
		return lead
	default:
		return lead + " (" + strings.Join(rest, ", ") + ")"
	}
}

func scalar(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return formatNumber(v)
	case bool:
		return strconv.FormatBool(v)
	case nil, map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// label turns a state key into a display label.
func label(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
