package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"sitegen/internal/site"
)

const systemPrompt = `You are a senior web designer writing production HTML and CSS for small business websites.
Reply with a single JSON object and nothing else. Do not wrap it in markdown fences.`

const promptHeader = `Design the site-wide header for the business described in INPUT.
It must contain the business name and a navigation menu linking every page.`

const promptFooter = `Design the site-wide footer for the business described in INPUT.
It must contain the contact details and social links that are present in INPUT.`

const promptPage = `Write the page named in INPUT for the business described in INPUT.
Produce exactly the sections listed in INPUT.sections, in that order.`

type promptField struct {
	Name        string
	Type        string
	Description string
}

type promptSpec struct {
	Purpose      string
	Input        any
	OutputFields []promptField
	Rules        []string
	OutputFormat string
}

var blockFields = []promptField{
	{Name: "html", Type: "string", Description: "the element markup, no <html>, <head> or <body>"},
	{Name: "css", Type: "string", Description: "the stylesheet for that markup"},
}

var pageFields = []promptField{
	{Name: "sections", Type: "array", Description: "one object per requested section"},
	{Name: "sections[].reference", Type: "string", Description: "the section type from INPUT.sections"},
	{Name: "sections[].html", Type: "string", Description: "the section markup"},
	{Name: "sections[].css", Type: "string", Description: "the section stylesheet"},
}

var commonRules = []string{
	"Use the theme colors and font from INPUT.theme.",
	"Every <img> needs a non-empty src and alt; every <a> needs a non-empty href.",
	"Close every tag you open.",
	"Escape double quotes and newlines inside JSON strings.",
	"Do not invent contact details that are not in INPUT.",
}

type promptInput struct {
	Business    string        `json:"business"`
	Tagline     string        `json:"tagline,omitempty"`
	Industry    string        `json:"industry,omitempty"`
	Description string        `json:"description,omitempty"`
	Audience    string        `json:"audience,omitempty"`
	Theme       site.Theme    `json:"theme"`
	Pages       []string      `json:"pages,omitempty"`
	Page        string        `json:"page,omitempty"`
	Sections    []string      `json:"sections,omitempty"`
	Contact     site.Contact  `json:"contact"`
	Social      []site.Social `json:"social,omitempty"`
	SinglePage  bool          `json:"single_page,omitempty"`
}

func newPromptInput(spec site.WebsiteSpec) promptInput {
	spec = spec.WithDefaults()
	return promptInput{
		Business:    spec.BusinessName,
		Tagline:     spec.Tagline,
		Industry:    spec.Industry,
		Description: spec.Description,
		Audience:    spec.Audience,
		Theme:       spec.Theme,
		Pages:       spec.PagesToGenerate(),
		Contact:     spec.Contact,
		Social:      spec.Social,
		SinglePage:  spec.Mode == site.ModeSingle,
	}
}

// buildPrompt renders the prompt for req. For pages it also returns the
// section types the prompt asks for.
func buildPrompt(req site.Request) (string, []string, error) {
	in := newPromptInput(req.Spec)
	ps := promptSpec{Rules: commonRules, OutputFormat: `{"html": "...", "css": "..."}`, OutputFields: blockFields}
	var sections []string
	switch req.Stage {
	case site.StageHeader:
		ps.Purpose = promptHeader
		if in.SinglePage {
			ps.Rules = append(ps.Rules[:len(ps.Rules):len(ps.Rules)], "Navigation links are in-page anchors such as #about.")
		} else {
			ps.Rules = append(ps.Rules[:len(ps.Rules):len(ps.Rules)], "Navigation links point to /<page-slug>.")
		}
	case site.StageFooter:
		ps.Purpose = promptFooter
	case site.StagePage:
		sections = site.SectionTypesFor(req.Spec, req.Page)
		in.Page = req.Page
		in.Sections = sections
		ps.Purpose = promptPage
		ps.OutputFields = pageFields
		ps.OutputFormat = `{"sections": [{"reference": "hero", "html": "...", "css": "..."}]}`
	default:
		return "", nil, fmt.Errorf("unknown stage %q", req.Stage)
	}
	ps.Input = in
	prompt, err := renderPrompt(ps)
	return prompt, sections, err
}

func renderPrompt(spec promptSpec) (string, error) {
	if strings.TrimSpace(spec.Purpose) == "" {
		return "", fmt.Errorf("prompt purpose is empty")
	}
	input, err := json.MarshalIndent(spec.Input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt input: %w", err)
	}
	var buf bytes.Buffer
	writeSection(&buf, "PURPOSE", spec.Purpose)
	writeSection(&buf, "INPUT", string(input))
	writeSection(&buf, "OUTPUT", formatFields(spec.OutputFields))
	writeSection(&buf, "RULES", formatList(spec.Rules))
	writeSection(&buf, "OUTPUT_FORMAT", spec.OutputFormat)
	return strings.TrimSpace(buf.String()) + "\n", nil
}

func formatFields(fields []promptField) string {
	var buf strings.Builder
	for _, f := range fields {
		if f.Description != "" {
			fmt.Fprintf(&buf, "- %s (%s): %s\n", f.Name, f.Type, f.Description)
		} else {
			fmt.Fprintf(&buf, "- %s (%s)\n", f.Name, f.Type)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func formatList(items []string) string {
	var buf strings.Builder
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			fmt.Fprintf(&buf, "- %s\n", item)
		}
	}
	return strings.TrimRight(buf.String(), "\n")
}

func writeSection(buf *bytes.Buffer, title, body string) {
	if strings.TrimSpace(body) == "" {
		return
	}
	buf.WriteString("[")
	buf.WriteString(title)
	buf.WriteString("]\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
}
