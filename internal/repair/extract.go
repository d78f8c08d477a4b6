package repair

import (
	"encoding/json"
	"regexp"
	"strings"

	"sitegen/internal/site"
)

// jsonString matches a complete JSON string literal body, allowing escapes.
const jsonString = `"((?:[^"\\]|\\.)*)"`

var (
	markupField    = regexp.MustCompile(`"(?:html|markup)"\s*:\s*` + jsonString)
	stylesField    = regexp.MustCompile(`"(?:css|stylesheet)"\s*:\s*` + jsonString)
	referenceField = regexp.MustCompile(`"(?:reference|id|type|name)"\s*:\s*` + jsonString)

	styleTag = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
	bodyTag  = regexp.MustCompile(`(?is)<body[^>]*>(.*?)(?:</body>|$)`)
	headTag  = regexp.MustCompile(`(?is)<head[^>]*>.*?</head>`)
	docTags  = regexp.MustCompile(`(?is)<!doctype[^>]*>|</?html[^>]*>`)
	anyTag   = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
)

// unescape resolves JSON string escapes; invalid sequences are handled by hand.
func unescape(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err == nil {
		return out
	}
	r := strings.NewReplacer(`\"`, `"`, `\n`, "\n", `\t`, "\t", `\r`, "\r", `\/`, "/", `\\`, `\`)
	return r.Replace(s)
}

func extractBlock(s string) (string, string, bool) {
	m := markupField.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	markup := unescape(m[1])
	if strings.TrimSpace(markup) == "" {
		return "", "", false
	}
	css := ""
	if c := stylesField.FindStringSubmatch(s); c != nil {
		css = unescape(c[1])
	}
	return markup, css, true
}

// extractSections scans per-section objects. Each markup field anchors a
// section; its reference and stylesheet are searched only inside the object
// enclosing that field, found with a string-aware brace scan.
func extractSections(s string) []site.Section {
	locs := markupField.FindAllStringSubmatchIndex(s, MaxSections)
	if len(locs) == 0 {
		return nil
	}
	at := make([]int, len(locs))
	for i, loc := range locs {
		at[i] = loc[0]
	}
	objects := enclosingObjects(s, at)

	out := make([]site.Section, 0, len(locs))
	for i, loc := range locs {
		markup := unescape(s[loc[2]:loc[3]])
		if strings.TrimSpace(markup) == "" {
			continue
		}
		lo, hi := 0, len(s)
		if open := objects[i]; open >= 0 {
			lo = open
			if end, ok := closingIndex(s, open); ok {
				hi = end + 1
			}
		}
		if i > 0 {
			lo = max(lo, locs[i-1][1])
		}
		if i+1 < len(locs) {
			next := locs[i+1][0]
			if o := objects[i+1]; o > loc[1] && o < next {
				next = o
			}
			hi = min(hi, next)
		}
		hi = max(hi, loc[1])
		before, after := s[lo:loc[0]], s[loc[1]:hi]

		sec := site.Section{Markup: markup}
		if refs := referenceField.FindAllStringSubmatch(before, -1); len(refs) > 0 {
			sec.Reference = unescape(refs[len(refs)-1][1])
		} else if ref := referenceField.FindStringSubmatch(after); ref != nil {
			sec.Reference = unescape(ref[1])
		}
		if c := stylesField.FindStringSubmatch(after); c != nil {
			sec.Stylesheet = unescape(c[1])
		} else if cs := stylesField.FindAllStringSubmatch(before, -1); len(cs) > 0 {
			sec.Stylesheet = unescape(cs[len(cs)-1][1])
		}
		out = append(out, sec)
	}
	return out
}

// enclosingObjects returns, for each ascending offset in at, the index of
// the innermost '{' still open there, or -1. Scanning starts at the first
// bracket so quotes in leading prose are ignored.
func enclosingObjects(s string, at []int) []int {
	out := make([]int, len(at))
	for i := range out {
		out[i] = -1
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return out
	}
	var stack []int
	inStr, esc := false, false
	k := 0
	for i := start; i < len(s) && k < len(at); i++ {
		for k < len(at) && at[k] <= i {
			out[k] = innermostObject(s, stack)
			k++
		}
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
			stack = append(stack, i)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return out
}

func innermostObject(s string, stack []int) int {
	for j := len(stack) - 1; j >= 0; j-- {
		if s[stack[j]] == '{' {
			return stack[j]
		}
	}
	return -1
}

// fromDocument accepts a bare HTML answer: style text becomes the stylesheet
// and the body (or everything outside head/style) becomes the markup.
func fromDocument(s string) (string, string, bool) {
	if !anyTag.MatchString(s) || strings.HasPrefix(strings.TrimSpace(s), "{") {
		return "", "", false
	}
	var css []string
	for _, m := range styleTag.FindAllStringSubmatch(s, -1) {
		css = append(css, strings.TrimSpace(m[1]))
	}
	markup := s
	if m := bodyTag.FindStringSubmatch(s); m != nil {
		markup = m[1]
	} else {
		markup = headTag.ReplaceAllString(markup, "")
		markup = docTags.ReplaceAllString(markup, "")
	}
	markup = strings.TrimSpace(styleTag.ReplaceAllString(markup, ""))
	if !anyTag.MatchString(markup) {
		return "", "", false
	}
	return markup, strings.Join(css, "\n"), true
}
