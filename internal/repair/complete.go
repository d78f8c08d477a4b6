package repair

import (
	"regexp"
	"strings"

	"sitegen/internal/llmclient"
)

// tagImbalanceLimit is how many more opening than closing tags markup may
// have before it counts as truncated.
const tagImbalanceLimit = 2

var (
	openTag    = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9-]*)\b[^<>]*?(/?)>`)
	closeTag   = regexp.MustCompile(`</[a-zA-Z][a-zA-Z0-9-]*\s*>`)
	rawTextTag = regexp.MustCompile(`(?is)<(script|style)\b[^>]*>.*?</(?:script|style)\s*>`)
	comment    = regexp.MustCompile(`(?s)<!--.*?-->`)
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// IsVoid reports whether name is an HTML void element.
func IsVoid(name string) bool { return voidElements[strings.ToLower(name)] }

// IsIncomplete reports whether text looks truncated.
func IsIncomplete(text string, ct llmclient.ContentType) bool {
	t := strings.TrimSpace(text)
	if t == "" {
		return true
	}
	if ct == llmclient.ContentJSON || t[0] == '{' || t[0] == '[' {
		if !jsonBalanced(StripReasoning(t)) {
			return true
		}
		return truncatedTail(t, true)
	}
	opens, closes := countTags(t)
	if opens-closes > tagImbalanceLimit {
		return true
	}
	return truncatedTail(t, false)
}

// countTags returns the number of non-void opening tags and closing tags.
func countTags(s string) (int, int) {
	s = rawTextTag.ReplaceAllString(comment.ReplaceAllString(s, ""), "")
	opens := 0
	for _, m := range openTag.FindAllStringSubmatch(s, -1) {
		if m[2] == "/" || IsVoid(m[1]) {
			continue
		}
		opens++
	}
	return opens, len(closeTag.FindAllStringIndex(s, -1))
}

func jsonBalanced(s string) bool {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return false
	}
	var stack []byte
	inStr, esc := false, false
	for i := start; i < len(s); i++ {
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
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return !inStr && len(stack) == 0
}

func truncatedTail(t string, jsonShaped bool) bool {
	if strings.HasSuffix(t, "...") || strings.HasSuffix(t, "…") {
		return true
	}
	switch t[len(t)-1] {
	case '{', '[', '(', ',', ':':
		return true
	}
	if jsonShaped {
		return false
	}
	if strings.LastIndexByte(t, '<') > strings.LastIndexByte(t, '>') {
		return true
	}
	if i := strings.LastIndex(t, "<!--"); i >= 0 && !strings.Contains(t[i+4:], "-->") {
		return true
	}
	last := t
	if i := strings.LastIndexByte(t, '\n'); i >= 0 {
		last = t[i+1:]
	}
	if tag := strings.LastIndexByte(last, '<'); tag >= 0 {
		inner := last[tag:]
		if strings.Count(inner, `"`)%2 == 1 {
			return true
		}
	}
	return false
}
