package fixer

import "strings"

// nested at-rules whose blocks contain ordinary style rules
var nestedAtRules = map[string]bool{
	"media": true, "supports": true, "container": true, "layer": true, "document": true,
}

// ScopeCSS prefixes every top-level selector with .scope so the rules only
// apply inside an element carrying that class. Rules inside @media and
// @supports are scoped too; @keyframes, @font-face, @import and @charset
// are left untouched.
func ScopeCSS(css, scope string) string {
	scope = strings.TrimPrefix(strings.TrimSpace(scope), ".")
	if scope == "" {
		return css
	}
	if cut := openTail(css); cut >= 0 {
		css = css[:cut]
	}
	return scopeRules(css, "."+scope)
}

// openTail returns the offset of a string or comment that is still open at
// the end of css, or -1. Closing a block after it would put the brace inside.
func openTail(css string) int {
	for i := 0; i < len(css); {
		switch {
		case css[i] == '"' || css[i] == '\'':
			end, closed := scanString(css, i)
			if !closed {
				return i
			}
			i = end
		case strings.HasPrefix(css[i:], "/*"):
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				return i
			}
			i += end + 4
		default:
			i++
		}
	}
	return -1
}

func scopeRules(css, prefix string) string {
	var b strings.Builder
	b.Grow(len(css) + len(css)/4)
	i := 0
	for i < len(css) {
		// Comments and whitespace between rules are copied verbatim.
		if strings.HasPrefix(css[i:], "/*") {
			end := strings.Index(css[i+2:], "*/")
			if end < 0 {
				b.WriteString(css[i:])
				break
			}
			b.WriteString(css[i : i+2+end+2])
			i += 2 + end + 2
			continue
		}
		if c := css[i]; c == ' ' || c == '\n' || c == '\t' || c == '\r' || c == '\f' {
			b.WriteByte(c)
			i++
			continue
		}
		if css[i] == '}' {
			// stray closing brace
			i++
			continue
		}

		stop := scanUntil(css, i, "{;")
		if stop >= len(css) {
			// trailing prelude without a block
			b.WriteString(css[i:])
			break
		}
		prelude := css[i:stop]
		if css[stop] == ';' {
			b.WriteString(css[i : stop+1])
			i = stop + 1
			continue
		}

		body, next, closing := css[stop+1:], len(css), "}"
		if end, open := matchBrace(css, stop); end < len(css) {
			body, next = css[stop+1:end], end+1
		} else {
			// Blocks nested in an unterminated body are closed as well.
			closing = strings.Repeat("}", open)
		}

		trimmed := strings.TrimSpace(prelude)
		switch {
		case strings.HasPrefix(trimmed, "@"):
			if nestedAtRules[atRuleName(trimmed)] {
				b.WriteString(prelude + "{" + scopeRules(body, prefix) + "}")
			} else {
				b.WriteString(prelude + "{" + body + closing)
			}
		case trimmed == "":
			b.WriteString(prelude + "{" + body + closing)
		default:
			lead := prelude[:len(prelude)-len(strings.TrimLeft(prelude, " \t\r\n\f"))]
			trail := prelude[len(strings.TrimRight(prelude, " \t\r\n\f")):]
			b.WriteString(lead + scopeSelectorList(trimmed, prefix) + trail + "{" + body + closing)
		}
		i = next
	}
	return b.String()
}

func atRuleName(prelude string) string {
	name := strings.TrimPrefix(prelude, "@")
	if i := strings.IndexAny(name, " \t\r\n({"); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	// vendor prefixed keyframes etc.
	if strings.HasPrefix(name, "-") {
		if j := strings.IndexByte(name[1:], '-'); j >= 0 {
			name = name[j+2:]
		}
	}
	return name
}

// scanUntil returns the index of the first byte in stops at i or later that
// is outside strings, comments and parentheses, or len(s).
func scanUntil(s string, i int, stops string) int {
	depth := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = skipString(s, i)
			continue
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s)
			}
			i += end + 4
			continue
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			if depth > 0 {
				depth--
			}
		case depth == 0 && strings.IndexByte(stops, c) >= 0:
			return i
		}
		i++
	}
	return len(s)
}

// matchBrace returns the index of the '}' closing the '{' at open. When the
// input ends first it returns len(s) and the number of blocks left open.
func matchBrace(s string, open int) (int, int) {
	depth := 0
	for i := open; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			i = skipString(s, i)
			continue
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return len(s), depth
			}
			i += end + 4
			continue
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i, 0
			}
		}
		i++
	}
	return len(s), depth
}

func skipString(s string, i int) int {
	end, _ := scanString(s, i)
	return end
}

// scanString returns the offset just past the string starting at i and
// whether its closing quote was found.
func scanString(s string, i int) (int, bool) {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j + 1, true
		}
	}
	return len(s), false
}

func scopeSelectorList(list, prefix string) string {
	parts := splitSelectors(list)
	for i, p := range parts {
		parts[i] = scopeSelector(strings.TrimSpace(p), prefix)
	}
	return strings.Join(parts, ", ")
}

func splitSelectors(list string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case '"', '\'':
			i = skipString(list, i) - 1
		case ',':
			if depth == 0 {
				parts = append(parts, list[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, list[last:])
}

func scopeSelector(sel, prefix string) string {
	if sel == "" {
		return sel
	}
	if strings.HasPrefix(sel, prefix) {
		rest := sel[len(prefix):]
		if rest == "" || !isIdentByte(rest[0]) {
			return sel
		}
	}
	// html, body and :root become the scope element itself.
	rest, stripped := sel, false
	for {
		n := rootPrefixLen(rest)
		if n == 0 {
			break
		}
		rest, stripped = rest[n:], true
		next := strings.TrimLeft(rest, " >")
		if rootPrefixLen(next) == 0 {
			break
		}
		rest = next
	}
	if stripped {
		return prefix + rest
	}
	return prefix + " " + sel
}

func rootPrefixLen(sel string) int {
	low := strings.ToLower(sel)
	for _, r := range []string{":root", "html", "body"} {
		if strings.HasPrefix(low, r) && (len(sel) == len(r) || !isIdentByte(sel[len(r)])) {
			return len(r)
		}
	}
	return 0
}

func isIdentByte(c byte) bool {
	return c == '-' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
