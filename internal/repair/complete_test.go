package repair

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"sitegen/internal/llmclient"
)

func TestIsIncompleteTagThreshold(t *testing.T) {
	fiveTwo := `<div><p><span><em><b>x</b></em>`
	fiveFour := `<div><p><span><em><b>x</b></em></span></p>`
	assert.True(t, IsIncomplete(fiveTwo, llmclient.ContentMarkup))
	assert.False(t, IsIncomplete(fiveFour, llmclient.ContentMarkup))
}

func TestIsIncompleteIgnoresVoidAndRawText(t *testing.T) {
	s := `<div><img src="a.png"><br><hr/><input type="text"><style>a<b{}</style></div>`
	assert.False(t, IsIncomplete(s, llmclient.ContentMarkup))
}

func TestIsIncompleteJSON(t *testing.T) {
	cases := map[string]bool{
		`{"html":"<p>x</p>","css":"p{}"}`:       false,
		`{"html":"<p>x</p>","css":"p{`:          true,
		`{"sections":[{"html":"}"}]}`:           false,
		`{"sections":[{"html":"a"}`:             true,
		"```json\n{\"html\":\"<p>x</p>\"}\n```": false,
		`{"a":[1,2}`:                            true,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsIncomplete(in, llmclient.ContentJSON), in)
	}
}

func TestIsIncompleteTruncationSignatures(t *testing.T) {
	cases := map[string]bool{
		"":                                               true,
		"<p>And then...":                                 true,
		`<p>Hello</p><a href="/x`:                        true,
		"<p>Hello</p>\n<div class=":                      true,
		"<section><h2>Menu</h2>":                         false,
		"<ul><li>one</li></ul><p>Done.":                  false,
		"<section><h2>Hi</h2><!-- hero <br> image":       true,
		"<section><!-- note --><h2>Hi</h2></section>":    false,
		"<div><!-- <p><p><p><p> draft --><p>x</p></div>": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, IsIncomplete(in, llmclient.ContentMarkup), "%q", in)
	}
}

