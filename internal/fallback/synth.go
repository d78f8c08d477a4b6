// Package fallback renders deterministic header, footer and section
// templates used when generation gives up. It never fails and never
// touches the network.
package fallback

import (
	"bytes"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"sitegen/internal/fixer"
	"sitegen/internal/site"
)

const (
	HeaderScope = "site-header"
	FooterScope = "site-footer"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

type link struct {
	Label, Href string
}

type data struct {
	Name        string
	Tagline     string
	Industry    string
	Audience    string
	Description template.HTML
	Email       string
	Phone       string
	Address     string
	Social      []link
	Nav         []link
	Page        string
	Scope       string
	Image       string
}

func newData(spec site.WebsiteSpec, page string) data {
	spec = spec.WithDefaults()
	d := data{
		Name:     strings.TrimSpace(spec.BusinessName),
		Tagline:  strings.TrimSpace(spec.Tagline),
		Industry: strings.TrimSpace(spec.Industry),
		Audience: strings.TrimSpace(spec.Audience),
		Email:    strings.TrimSpace(spec.Contact.Email),
		Phone:    strings.TrimSpace(spec.Contact.Phone),
		Address:  strings.TrimSpace(spec.Contact.Address),
		Page:     page,
		Image:    fixer.PlaceholderImage,
	}
	if d.Name == "" {
		d.Name = "Our Business"
	}
	if d.Tagline == "" {
		d.Tagline = "Welcome to " + d.Name
	}
	d.Description = renderDescription(spec.Description, d.Name)
	for _, s := range spec.Social {
		if strings.TrimSpace(s.URL) == "" {
			continue
		}
		label := strings.TrimSpace(s.Network)
		if label == "" {
			label = s.URL
		}
		d.Social = append(d.Social, link{Label: label, Href: s.URL})
	}
	for _, p := range spec.PagesToGenerate() {
		href := "/" + site.Slug(p)
		if spec.Mode == site.ModeSingle {
			href = "#top"
		}
		d.Nav = append(d.Nav, link{Label: p, Href: href})
	}
	return d
}

func renderDescription(md, name string) template.HTML {
	md = strings.TrimSpace(md)
	if md == "" {
		return template.HTML("<p>" + template.HTMLEscapeString(name) + " is here to help. Get in touch to learn more.</p>")
	}
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(md) + "</p>")
	}
	return template.HTML(fixer.FixMarkup(strings.TrimSpace(buf.String())))
}

// Header renders the site header.
func Header(spec site.WebsiteSpec) site.Artifact {
	d := newData(spec, "")
	d.Scope = HeaderScope
	return site.Artifact{
		Stage:      site.StageHeader,
		Markup:     render("header", d),
		Stylesheet: headerCSS(spec.WithDefaults().Theme),
		Fallback:   true,
	}
}

// Footer renders the site footer.
func Footer(spec site.WebsiteSpec) site.Artifact {
	d := newData(spec, "")
	d.Scope = FooterScope
	return site.Artifact{
		Stage:      site.StageFooter,
		Markup:     render("footer", d),
		Stylesheet: footerCSS(spec.WithDefaults().Theme),
		Fallback:   true,
	}
}

// Section renders one section of a page. Unknown types render as content.
func Section(spec site.WebsiteSpec, page, sectionType string) site.Section {
	ref := site.Slug(sectionType)
	if templates.Lookup("section-"+ref) == nil {
		ref = site.SectionContent
	}
	d := newData(spec, page)
	d.Scope = fixer.SectionScope(ref)
	return site.Section{
		Reference:  ref,
		Markup:     render("section-"+ref, d),
		Stylesheet: sectionCSS(ref, spec.WithDefaults().Theme),
	}
}

// Page renders every section the catalog lists for page.
func Page(spec site.WebsiteSpec, page string) site.Artifact {
	types := site.SectionTypesFor(spec, page)
	sections := make([]site.Section, 0, len(types))
	for _, t := range types {
		sections = append(sections, Section(spec, page, t))
	}
	return site.Artifact{Stage: site.StagePage, Page: page, Sections: sections, Fallback: true}
}

// For returns the fallback artifact for a request.
func For(req site.Request) site.Artifact {
	switch req.Stage {
	case site.StageHeader:
		return Header(req.Spec)
	case site.StageFooter:
		return Footer(req.Spec)
	default:
		return Page(req.Spec, req.Page)
	}
}

var blankLines = regexp.MustCompile(`\n\s*\n`)

func render(name string, d data) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, d); err != nil {
		buf.Reset()
		buf.WriteString(`<div class="` + template.HTMLEscapeString(d.Scope) + `"><p>` + template.HTMLEscapeString(d.Name) + `</p></div>`)
	}
	out := blankLines.ReplaceAllString(strings.TrimSpace(buf.String()), "\n")
	return fixer.FixMarkup(out)
}
