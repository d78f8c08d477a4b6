package repair

import (
	"regexp"
	"strings"
)

var (
	reasoningBlock = regexp.MustCompile(`(?is)<(think|thinking|reasoning)>.*?</(?:think|thinking|reasoning)>`)
	reasoningOpen  = regexp.MustCompile(`(?is)^\s*<(think|thinking|reasoning)>`)
	reasoningClose = regexp.MustCompile(`(?is)</(think|thinking|reasoning)>`)
	fenceLine      = regexp.MustCompile("(?m)^[ \t]*```[a-zA-Z0-9_-]*[ \t]*$\n?")
)

// StripReasoning removes scratch-pad blocks and markdown fences that models
// echo around the payload.
func StripReasoning(text string) string {
	s := reasoningBlock.ReplaceAllString(text, "")

	// A closing tag without its opener: everything before it is reasoning.
	if loc := reasoningClose.FindStringIndex(s); loc != nil {
		s = s[loc[1]:]
	}
	// An opener that never closes: drop up to the payload start.
	if loc := reasoningOpen.FindStringIndex(s); loc != nil {
		rest := s[loc[1]:]
		if i := strings.IndexAny(rest, "{["); i >= 0 {
			s = rest[i:]
		} else if i := strings.Index(rest, "\n\n"); i >= 0 {
			s = rest[i+2:]
		} else {
			s = ""
		}
	}
	s = stripFences(s)
	return strings.TrimSpace(s)
}

func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	s = fenceLine.ReplaceAllString(s, "")
	// Inline fences such as ```json{...}```.
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimLeft(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	return strings.TrimSuffix(s, "```")
}
