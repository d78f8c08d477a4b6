package pipeline

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sitegen/internal/site"
)

const maxImageCandidates = 2

var imageKeywords = []string{"hero", "about", "intro", "banner", "welcome"}

// tagImagery flags up to two hero or about sections without an image as
// candidates for an illustrative picture. Sections that cannot be parsed
// are skipped.
func tagImagery(spec site.WebsiteSpec, sections []site.Section) []site.Section {
	query := strings.Join(strings.Fields(spec.Industry+" "+spec.BusinessName), " ")
	out := make([]site.Section, len(sections))
	copy(out, sections)
	tagged := 0
	for i := range out {
		if tagged == maxImageCandidates {
			break
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(out[i].Markup))
		if err != nil {
			continue
		}
		if doc.Find("img").Length() > 0 {
			continue
		}
		if !imageLike(out[i].Reference, doc) {
			continue
		}
		out[i].ImageCandidate = true
		out[i].ImageQuery = query
		tagged++
	}
	return out
}

func imageLike(reference string, doc *goquery.Document) bool {
	if hasKeyword(reference) {
		return true
	}
	found := false
	doc.Find("[class], [id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		found = hasKeyword(class) || hasKeyword(id)
		return !found
	})
	return found
}

func hasKeyword(s string) bool {
	s = strings.ToLower(s)
	for _, k := range imageKeywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
