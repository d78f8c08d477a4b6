// Package repair turns raw provider text into typed payloads. It never
// returns an error: unusable input yields a placeholder.
package repair

import (
	"encoding/json"
	"strings"

	"sitegen/internal/site"
)

// MaxSections bounds how many sections are taken from one page response.
const MaxSections = 10

// Method records which step produced a Result.
type Method string

const (
	MethodStrict      Method = "strict"
	MethodExtracted   Method = "extracted"
	MethodDocument    Method = "document"
	MethodPlaceholder Method = "placeholder"
)

// Result is a parsed header/footer block or page.
type Result struct {
	Markup      string
	Stylesheet  string
	Sections    []site.Section
	Method      Method
	Placeholder bool
}

// ParseBlock extracts {markup, stylesheet} from a header or footer response.
func ParseBlock(text string) Result {
	s := StripReasoning(text)
	if r, ok := strictBlock(s); ok {
		return r
	}
	if markup, css, ok := extractBlock(s); ok {
		return Result{Markup: markup, Stylesheet: css, Method: MethodExtracted}
	}
	if markup, css, ok := fromDocument(s); ok {
		return Result{Markup: markup, Stylesheet: css, Method: MethodDocument}
	}
	return blockPlaceholder()
}

// ParsePage extracts the ordered section list from a page response.
func ParsePage(text string) Result {
	s := StripReasoning(text)
	if r, ok := strictPage(s); ok {
		return r
	}
	if sections := extractSections(s); len(sections) > 0 {
		return Result{Sections: sections, Method: MethodExtracted}
	}
	if markup, css, ok := fromDocument(s); ok {
		return Result{
			Sections: []site.Section{{Reference: "content", Markup: markup, Stylesheet: css}},
			Method:   MethodDocument,
		}
	}
	return pagePlaceholder()
}

func strictBlock(s string) (Result, bool) {
	v, ok := decodeOutermost(s)
	if !ok {
		return Result{}, false
	}
	if err := blockSchema.Validate(v); err != nil {
		return Result{}, false
	}
	m := v.(map[string]any)
	return Result{
		Markup:     firstString(m, "html", "markup"),
		Stylesheet: firstString(m, "css", "stylesheet"),
		Method:     MethodStrict,
	}, true
}

func strictPage(s string) (Result, bool) {
	v, ok := decodeOutermost(s)
	if !ok {
		return Result{}, false
	}
	if arr, isArr := v.([]any); isArr {
		v = map[string]any{"sections": arr}
	}
	if err := pageSchema.Validate(v); err != nil {
		return Result{}, false
	}
	items := v.(map[string]any)["sections"].([]any)
	out := make([]site.Section, 0, min(len(items), MaxSections))
	for i, it := range items {
		if i == MaxSections {
			break
		}
		m := it.(map[string]any)
		out = append(out, site.Section{
			Reference:  firstString(m, "reference", "id", "type", "name"),
			Markup:     firstString(m, "html", "markup"),
			Stylesheet: firstString(m, "css", "stylesheet"),
		})
	}
	return Result{Sections: out, Method: MethodStrict}, true
}

func decodeOutermost(s string) (any, bool) {
	raw, ok := outermostJSON(s)
	if !ok {
		return nil, false
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	return v, true
}

// outermostJSON returns the first balanced JSON object or array in s.
func outermostJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	end, ok := closingIndex(s, start)
	if !ok {
		return "", false
	}
	return s[start : end+1], true
}

// closingIndex returns the index of the bracket closing the one at open,
// skipping JSON strings.
func closingIndex(s string, open int) (int, bool) {
	depth := 0
	inStr, esc := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inStr {
			switch {
			case esc:
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

const (
	placeholderMarkup     = `<div class="placeholder"><p>Content coming soon.</p></div>`
	placeholderStylesheet = `.placeholder { padding: 2rem; text-align: center; }`
)

func blockPlaceholder() Result {
	return Result{
		Markup:      placeholderMarkup,
		Stylesheet:  placeholderStylesheet,
		Method:      MethodPlaceholder,
		Placeholder: true,
	}
}

func pagePlaceholder() Result {
	r := blockPlaceholder()
	r.Sections = []site.Section{{Reference: "placeholder", Markup: r.Markup, Stylesheet: r.Stylesheet}}
	return r
}
