package site

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Mode selects between a single landing page and a multi-page site.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeMulti  Mode = "multi"
)

// WebsiteSpec is the immutable input describing the site to generate.
// It is owned by the caller; the pipeline only reads it.
type WebsiteSpec struct {
	ID           string   `json:"id" yaml:"id"`
	BusinessName string   `json:"business_name" yaml:"business_name"`
	Tagline      string   `json:"tagline,omitempty" yaml:"tagline"`
	Industry     string   `json:"industry,omitempty" yaml:"industry"`
	Description  string   `json:"description,omitempty" yaml:"description"`
	Audience     string   `json:"audience,omitempty" yaml:"audience"`
	Theme        Theme    `json:"theme" yaml:"theme"`
	Mode         Mode     `json:"mode,omitempty" yaml:"mode"`
	Pages        []string `json:"pages" yaml:"pages"`
	Features     Features `json:"features" yaml:"features"`
	Contact      Contact  `json:"contact" yaml:"contact"`
	Social       []Social `json:"social,omitempty" yaml:"social"`
}

type Theme struct {
	PrimaryColor   string `json:"primary_color,omitempty" yaml:"primary_color"`
	SecondaryColor string `json:"secondary_color,omitempty" yaml:"secondary_color"`
	AccentColor    string `json:"accent_color,omitempty" yaml:"accent_color"`
	Font           string `json:"font,omitempty" yaml:"font"`
}

type Features struct {
	Newsletter bool `json:"newsletter,omitempty" yaml:"newsletter"`
	Map        bool `json:"map,omitempty" yaml:"map"`
	Slider     bool `json:"slider,omitempty" yaml:"slider"`
}

type Contact struct {
	Email   string `json:"email,omitempty" yaml:"email"`
	Phone   string `json:"phone,omitempty" yaml:"phone"`
	Address string `json:"address,omitempty" yaml:"address"`
}

type Social struct {
	Network string `json:"network" yaml:"network"`
	URL     string `json:"url" yaml:"url"`
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate reports malformed specs before a run is started.
func (s WebsiteSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.ID, validation.Required, validation.Length(1, 128)),
		validation.Field(&s.BusinessName, validation.Required, validation.Length(1, 160)),
		validation.Field(&s.Mode, validation.In(ModeSingle, ModeMulti)),
		validation.Field(&s.Pages, validation.Required, validation.Each(validation.Required, validation.Length(1, 80)), validation.By(distinctSlugs)),
		validation.Field(&s.Theme),
		validation.Field(&s.Contact),
		validation.Field(&s.Social),
	)
}

func (t Theme) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.PrimaryColor, validation.Match(hexColor)),
		validation.Field(&t.SecondaryColor, validation.Match(hexColor)),
		validation.Field(&t.AccentColor, validation.Match(hexColor)),
	)
}

func (c Contact) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Email, is.EmailFormat),
	)
}

func (s Social) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Network, validation.Required),
		validation.Field(&s.URL, validation.Required, is.URL),
	)
}

// PagesToGenerate returns the ordered page list honoring single-page mode.
func (s WebsiteSpec) PagesToGenerate() []string {
	out := make([]string, 0, len(s.Pages))
	for _, p := range s.Pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, strings.TrimSpace(p))
		if s.Mode == ModeSingle {
			break
		}
	}
	return out
}

// WithDefaults fills theme values the templates and prompts rely on.
func (s WebsiteSpec) WithDefaults() WebsiteSpec {
	if s.Mode == "" {
		s.Mode = ModeMulti
	}
	if s.Theme.PrimaryColor == "" {
		s.Theme.PrimaryColor = "#1f3a5f"
	}
	if s.Theme.SecondaryColor == "" {
		s.Theme.SecondaryColor = "#f4f6f8"
	}
	if s.Theme.AccentColor == "" {
		s.Theme.AccentColor = "#e07a24"
	}
	if s.Theme.Font == "" {
		s.Theme.Font = "Helvetica, Arial, sans-serif"
	}
	return s
}

// distinctSlugs rejects page lists where two names share a storage path.
func distinctSlugs(value any) error {
	pages, _ := value.([]string)
	seen := make(map[string]string, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		slug := Slug(p)
		if prev, ok := seen[slug]; ok {
			return fmt.Errorf("pages %q and %q both map to %q", prev, p, slug)
		}
		seen[slug] = p
	}
	return nil
}

// Slug turns a page name or section reference into a stable identifier.
// Letters and digits of any script are kept; every other run becomes "-".
func Slug(name string) string {
	var b strings.Builder
	gap := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			gap = true
			continue
		}
		if gap && b.Len() > 0 {
			b.WriteByte('-')
		}
		gap = false
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return "page"
	}
	return b.String()
}
