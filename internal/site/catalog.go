package site

import "strings"

// Section types known to the prompts and the fallback templates.
const (
	SectionHero         = "hero"
	SectionAbout        = "about"
	SectionServices     = "services"
	SectionFeatures     = "features"
	SectionTestimonials = "testimonials"
	SectionCTA          = "cta"
	SectionContact      = "contact"
	SectionMap          = "map"
	SectionNewsletter   = "newsletter"
	SectionTeam         = "team"
	SectionGallery      = "gallery"
	SectionFAQ          = "faq"
	SectionContent      = "content"
)

// SectionTypesFor returns the ordered section layout for a page.
func SectionTypesFor(spec WebsiteSpec, page string) []string {
	var out []string
	switch Slug(page) {
	case "home", "index", "start", "landing":
		out = []string{SectionHero, SectionAbout, SectionServices, SectionTestimonials, SectionCTA}
		if spec.Features.Slider {
			out = append([]string{SectionGallery}, out...)
		}
	case "about", "about-us", "our-story":
		out = []string{SectionAbout, SectionTeam, SectionCTA}
	case "services", "products", "offerings", "pricing":
		out = []string{SectionServices, SectionFeatures, SectionFAQ}
	case "contact", "contact-us":
		out = []string{SectionContact}
		if spec.Features.Map {
			out = append(out, SectionMap)
		}
	case "gallery", "portfolio", "work":
		out = []string{SectionGallery, SectionCTA}
	case "faq":
		out = []string{SectionFAQ, SectionContact}
	default:
		out = []string{SectionContent, SectionCTA}
	}
	if spec.Features.Newsletter && (spec.Mode == ModeSingle || isHome(page)) {
		out = append(out, SectionNewsletter)
	}
	return out
}

func isHome(page string) bool {
	switch strings.ToLower(strings.TrimSpace(page)) {
	case "home", "index", "start", "landing":
		return true
	}
	return false
}
