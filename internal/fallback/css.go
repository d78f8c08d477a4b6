package fallback

import (
	"fmt"
	"regexp"
	"strings"

	"sitegen/internal/fixer"
	"sitegen/internal/site"
)

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

type palette struct {
	Primary, Secondary, Accent, Font string
}

func paletteOf(t site.Theme) palette {
	def := site.WebsiteSpec{}.WithDefaults().Theme
	pick := func(v, d string) string {
		if hexColor.MatchString(v) {
			return v
		}
		return d
	}
	font := strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\\':
			return -1
		}
		return r
	}, t.Font)
	if strings.TrimSpace(font) == "" {
		font = def.Font
	}
	return palette{
		Primary:   pick(t.PrimaryColor, def.PrimaryColor),
		Secondary: pick(t.SecondaryColor, def.SecondaryColor),
		Accent:    pick(t.AccentColor, def.AccentColor),
		Font:      font,
	}
}

func headerCSS(t site.Theme) string {
	p := paletteOf(t)
	s := "." + HeaderScope
	return fmt.Sprintf(`%[1]s { display: flex; align-items: center; justify-content: space-between; padding: 1rem 2rem; background: %[2]s; color: #fff; font-family: %[4]s; }
%[1]s a { color: #fff; text-decoration: none; }
%[1]s ul { display: flex; gap: 1.5rem; list-style: none; margin: 0; padding: 0; }
%[1]s a:hover { color: %[3]s; }`, s, p.Primary, p.Accent, p.Font)
}

func footerCSS(t site.Theme) string {
	p := paletteOf(t)
	s := "." + FooterScope
	return fmt.Sprintf(`%[1]s { padding: 2rem; background: %[2]s; color: #fff; font-family: %[4]s; }
%[1]s ul { list-style: none; padding: 0; }
%[1]s a { color: %[3]s; }
%[1]s .site-footer__legal { opacity: 0.8; font-size: 0.875rem; }`, s, p.Primary, p.Accent, p.Font)
}

func sectionCSS(ref string, t site.Theme) string {
	p := paletteOf(t)
	s := "." + fixer.SectionScope(ref)
	base := fmt.Sprintf(`%[1]s section { padding: 3rem 2rem; font-family: %[4]s; background: %[2]s; }
%[1]s h1, %[1]s h2 { color: %[3]s; }
%[1]s .button { display: inline-block; padding: 0.75rem 1.5rem; background: %[5]s; color: #fff; border-radius: 4px; text-decoration: none; }
%[1]s .cards { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 1.5rem; list-style: none; padding: 0; }
%[1]s img { max-width: 100%%; height: auto; }`, s, p.Secondary, p.Primary, p.Font, p.Accent)
	switch ref {
	case site.SectionHero:
		base += fmt.Sprintf("\n%[1]s .hero { text-align: center; padding: 5rem 2rem; background: %[2]s; color: #fff; }\n%[1]s .hero h1 { color: #fff; font-size: 2.5rem; }", s, p.Primary)
	case site.SectionGallery:
		base += fmt.Sprintf("\n%[1]s .gallery__grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 1rem; }", s)
	case site.SectionNewsletter:
		base += fmt.Sprintf("\n%[1]s .newsletter__form { display: flex; gap: 0.5rem; }", s)
	}
	return base
}
