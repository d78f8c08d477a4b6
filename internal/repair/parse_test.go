package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBlockStrict(t *testing.T) {
	r := ParseBlock("Sure! Here it is:\n```json\n{\"html\": \"<header>Hi</header>\", \"css\": \"header{color:red}\"}\n```")
	assert.Equal(t, MethodStrict, r.Method)
	assert.Equal(t, "<header>Hi</header>", r.Markup)
	assert.Equal(t, "header{color:red}", r.Stylesheet)
	assert.False(t, r.Placeholder)

	r = ParseBlock(`{"markup": "<footer>x</footer>", "stylesheet": "footer{}"}`)
	assert.Equal(t, MethodStrict, r.Method)
	assert.Equal(t, "<footer>x</footer>", r.Markup)
	assert.Equal(t, "footer{}", r.Stylesheet)
}

func TestParseBlockStripsReasoning(t *testing.T) {
	text := "<think>The user wants a header {maybe}.</think>\n{\"html\":\"<header></header>\",\"css\":\"\"}"
	r := ParseBlock(text)
	assert.Equal(t, MethodStrict, r.Method)
	assert.Equal(t, "<header></header>", r.Markup)
}

func TestParseBlockExtractsEscapedFields(t *testing.T) {
	// The trailing comma makes this invalid JSON.
	text := `{"html": "<div class=\"hero\">\n\t<p>Say \"hi\" \\ bye</p>\n</div>", "css": ".hero {\n\tcolor: #fff;\n}",
}`
	r := ParseBlock(text)
	require.Equal(t, MethodExtracted, r.Method)
	assert.Equal(t, "<div class=\"hero\">\n\t<p>Say \"hi\" \\ bye</p>\n</div>", r.Markup)
	assert.Equal(t, ".hero {\n\tcolor: #fff;\n}", r.Stylesheet)
}

func TestParseBlockDocument(t *testing.T) {
	text := "<!DOCTYPE html><html><head><style>nav{display:flex}</style></head><body><nav>Menu</nav></body></html>"
	r := ParseBlock(text)
	assert.Equal(t, MethodDocument, r.Method)
	assert.Equal(t, "<nav>Menu</nav>", r.Markup)
	assert.Equal(t, "nav{display:flex}", r.Stylesheet)
}

func TestParsePlaceholderOnGarbage(t *testing.T) {
	for _, in := range []string{"", "I cannot help with that.", "{{{{", `{"title": 3}`, "<think>never ends"} {
		b := ParseBlock(in)
		assert.True(t, b.Placeholder, "block %q", in)
		assert.NotEmpty(t, b.Markup)
		assert.NotEmpty(t, b.Stylesheet)

		p := ParsePage(in)
		assert.True(t, p.Placeholder, "page %q", in)
		require.Len(t, p.Sections, 1)
		assert.NotEmpty(t, p.Sections[0].Markup)
		assert.NotEmpty(t, p.Sections[0].Stylesheet)
	}
}

func TestParsePageStrict(t *testing.T) {
	text := `{"sections": [
		{"reference": "hero", "html": "<section>A</section>", "css": ".a{}"},
		{"id": "about", "markup": "<section>B</section>", "stylesheet": ".b{}"}
	]}`
	r := ParsePage(text)
	require.Equal(t, MethodStrict, r.Method)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, "hero", r.Sections[0].Reference)
	assert.Equal(t, "about", r.Sections[1].Reference)
	assert.Equal(t, ".b{}", r.Sections[1].Stylesheet)

	r = ParsePage(`[{"reference":"x","html":"<p>x</p>"}]`)
	assert.Equal(t, MethodStrict, r.Method)
	assert.Len(t, r.Sections, 1)
}

func TestParsePageExtractionCapsSections(t *testing.T) {
	text := `{"sections": [`
	for i := 0; i < 14; i++ {
		text += `{"reference": "s", "html": "<p>\"q\"</p>", "css": "p{}"},`
	}
	// Missing closing brackets: strict parsing fails.
	r := ParsePage(text)
	require.Equal(t, MethodExtracted, r.Method)
	assert.Len(t, r.Sections, MaxSections)
	assert.Equal(t, `<p>"q"</p>`, r.Sections[0].Markup)
	assert.Equal(t, "p{}", r.Sections[9].Stylesheet)
}

func TestParsePageExtractionPairsFields(t *testing.T) {
	text := `sections: {"reference":"hero","html":"<h1>Hi</h1>","css":"h1{}"} {"html":"<p>About</p>","reference":"about"`
	r := ParsePage(text)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, "hero", r.Sections[0].Reference)
	assert.Equal(t, "h1{}", r.Sections[0].Stylesheet)
	assert.Equal(t, "about", r.Sections[1].Reference)
	assert.Equal(t, "", r.Sections[1].Stylesheet)

	text = `[{"html":"<p>A</p>","reference":"a","css":"p{}"},{"html":"<p>B</p>","reference":"b"}`
	r = ParsePage(text)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, "a", r.Sections[0].Reference)
	assert.Equal(t, "b", r.Sections[1].Reference)
	assert.Equal(t, "", r.Sections[1].Stylesheet)

	// Stylesheet listed before markup, braces inside the CSS, missing comma.
	text = `[{"reference":"hero","css":".h{color:red}","html":"<div class=\"h\">A\n</div>"} {"reference":"about","css":".a{color:blue}","html":"<p>B</p>"}]`
	r = ParsePage(text)
	require.Equal(t, MethodExtracted, r.Method)
	require.Len(t, r.Sections, 2)
	assert.Equal(t, "hero", r.Sections[0].Reference)
	assert.Equal(t, ".h{color:red}", r.Sections[0].Stylesheet)
	assert.Equal(t, "<div class=\"h\">A\n</div>", r.Sections[0].Markup)
	assert.Equal(t, "about", r.Sections[1].Reference)
	assert.Equal(t, ".a{color:blue}", r.Sections[1].Stylesheet)
	assert.Equal(t, "<p>B</p>", r.Sections[1].Markup)
}

func TestStripReasoning(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripReasoning("<thinking>plan</thinking>```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, StripReasoning("<reasoning>unterminated plan {\"a\":1}"))
	assert.Equal(t, `{"a":1}`, StripReasoning("stray notes</think>{\"a\":1}"))
	assert.Equal(t, "<p>x</p>", StripReasoning("  <p>x</p> "))
}
