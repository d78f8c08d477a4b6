// Package fixer patches structural defects in generated markup and
// stylesheets. Every function is idempotent.
package fixer

import (
	"html"
	"io"
	"strings"

	nethtml "golang.org/x/net/html"
)

// PlaceholderImage replaces empty or missing image sources.
const PlaceholderImage = "https://placehold.co/800x450?text=Image"

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// FixMarkup closes unmatched tags, drops stray end tags, fills empty image
// sources and link targets, and wraps list items placed directly in <nav>.
func FixMarkup(s string) string {
	if lt := strings.LastIndexByte(s, '<'); lt > strings.LastIndexByte(s, '>') {
		s = s[:lt]
	}

	var b strings.Builder
	b.Grow(len(s) + 64)
	var stack []string

	z := nethtml.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == nethtml.ErrorToken {
			if z.Err() != io.EOF {
				b.Write(z.Raw())
			}
			break
		}
		raw := string(z.Raw())
		switch tt {
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			out := fixTag(z, tag, hasAttr, raw, tt == nethtml.SelfClosingTagToken)
			if tag == "li" && len(stack) > 0 && stack[len(stack)-1] == "nav" {
				b.WriteString("<ul>")
				stack = append(stack, "ul")
			}
			b.WriteString(out)
			if tt == nethtml.StartTagToken && !voidElements[tag] {
				stack = append(stack, tag)
			}
		case nethtml.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			idx := lastIndex(stack, tag)
			if idx < 0 {
				continue
			}
			for i := len(stack) - 1; i > idx; i-- {
				b.WriteString("</" + stack[i] + ">")
			}
			stack = stack[:idx]
			b.WriteString(raw)
		case nethtml.CommentToken:
			// A comment cut off by the end of input would swallow the
			// closing tags written after it.
			if openComment(raw) {
				break
			}
			b.WriteString(raw)
		default:
			b.WriteString(raw)
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteString("</" + stack[i] + ">")
	}
	return b.String()
}

type attr struct{ key, val string }

// fixTag returns raw unless an img/a tag needs its src/href repaired.
func fixTag(z *nethtml.Tokenizer, tag string, hasAttr bool, raw string, selfClosing bool) string {
	var fixKey, fixVal string
	switch tag {
	case "img":
		fixKey, fixVal = "src", PlaceholderImage
	case "a":
		fixKey, fixVal = "href", "#"
	default:
		return raw
	}

	var attrs []attr
	for hasAttr {
		var k, v []byte
		k, v, hasAttr = z.TagAttr()
		attrs = append(attrs, attr{string(k), string(v)})
	}
	found, bad := false, false
	for i, a := range attrs {
		if a.key != fixKey {
			continue
		}
		found = true
		if needsFix(tag, a.val) {
			attrs[i].val = fixVal
			bad = true
		}
	}
	if found && !bad {
		return raw
	}
	if !found {
		attrs = append(attrs, attr{fixKey, fixVal})
	}

	var b strings.Builder
	b.WriteString("<" + tag)
	for _, a := range attrs {
		b.WriteString(" " + a.key + `="` + html.EscapeString(a.val) + `"`)
	}
	if selfClosing {
		b.WriteString(" />")
	} else {
		b.WriteString(">")
	}
	return b.String()
}

func needsFix(tag, val string) bool {
	v := strings.TrimSpace(val)
	if v == "" {
		return true
	}
	return tag == "a" && strings.HasPrefix(strings.ToLower(v), "javascript:")
}

// openComment reports whether raw, a comment token, ran into the end of
// input without its terminator.
func openComment(raw string) bool {
	if body, ok := strings.CutPrefix(raw, "<!--"); ok {
		switch body {
		case ">", "->":
			return false
		}
		return !strings.HasSuffix(body, "-->") && !strings.HasSuffix(body, "--!>")
	}
	return !strings.HasSuffix(raw, ">")
}

func lastIndex(stack []string, tag string) int {
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == tag {
			return i
		}
	}
	return -1
}
