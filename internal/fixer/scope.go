package fixer

import (
	"regexp"
	"strings"
)

// EnsureScope wraps markup in <div class="scope"> unless its first element
// already carries the scope class.
func EnsureScope(markup, scope string) string {
	scope = strings.TrimPrefix(strings.TrimSpace(scope), ".")
	if scope == "" {
		return markup
	}
	re := regexp.MustCompile(`^\s*<[a-zA-Z][a-zA-Z0-9-]*\s[^>]*\bclass\s*=\s*["']?(?:[^"'>]*\s)?` + regexp.QuoteMeta(scope) + `(?:["'\s>]|$)`)
	if re.MatchString(markup) {
		return markup
	}
	return `<div class="` + scope + `">` + markup + `</div>`
}

// SectionScope is the class used to scope one page section.
func SectionScope(reference string) string {
	return "section-" + reference
}
