package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Responder produces the raw text a FakeClient returns for one call.
type Responder func(ctx context.Context, prompt string, p Params) (string, error)

// FakeCall records one Generate invocation.
type FakeCall struct {
	Info   CallInfo
	Prompt string
	Params Params
}

// FakeClient returns scripted responses for offline runs and tests.
type FakeClient struct {
	respond Responder

	mu    sync.Mutex
	model string
	calls []FakeCall
}

// NewFakeClient uses DefaultFakeResponse when respond is nil.
func NewFakeClient(respond Responder) *FakeClient {
	if respond == nil {
		respond = DefaultFakeResponse
	}
	return &FakeClient{respond: respond, model: "fake-1"}
}

func (f *FakeClient) Name() string                        { return "fake" }
func (f *FakeClient) Close() error                        { return nil }
func (f *FakeClient) CheckReachable(context.Context) bool { return true }
func (f *FakeClient) ListModels(context.Context) []string { return []string{"fake-1", "fake-2"} }

func (f *FakeClient) Model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.model
}

func (f *FakeClient) SetModel(model string) {
	f.mu.Lock()
	f.model = model
	f.mu.Unlock()
}

func (f *FakeClient) Generate(ctx context.Context, prompt string, p Params) (RawOutput, error) {
	f.mu.Lock()
	f.calls = append(f.calls, FakeCall{Info: CallInfoFrom(ctx), Prompt: prompt, Params: p})
	model := f.model
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return RawOutput{}, classify(f.Name(), err)
	}
	start := time.Now()
	text, err := f.respond(ctx, prompt, p)
	if err != nil {
		return RawOutput{}, classify(f.Name(), err)
	}
	return newRawOutput(f.Name(), model, text, len(text)/4, start), nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeClient) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// DefaultFakeResponse returns a well-formed payload for the stage in ctx.
func DefaultFakeResponse(ctx context.Context, prompt string, _ Params) (string, error) {
	info := CallInfoFrom(ctx)
	if info.Completion {
		return "", nil
	}
	var obj any
	switch info.Stage {
	case "header":
		obj = map[string]string{
			"html": `<header class="site-header"><nav><ul><li><a href="/">Home</a></li></ul></nav></header>`,
			"css":  `.site-header { padding: 1rem; }`,
		}
	case "footer":
		obj = map[string]string{
			"html": `<footer class="site-footer"><p>Fake footer</p></footer>`,
			"css":  `.site-footer { padding: 1rem; }`,
		}
	case "page":
		refs := info.Sections
		if len(refs) == 0 {
			refs = []string{"content"}
		}
		sections := make([]map[string]string, 0, len(refs))
		for _, ref := range refs {
			sections = append(sections, map[string]string{
				"reference": ref,
				"html":      fmt.Sprintf(`<section><h2>%s</h2><p>%s</p></section>`, titleCase(ref), info.Page),
				"css":       "section { margin: 0 auto; }",
			})
		}
		obj = map[string]any{"sections": sections}
	default:
		return "{}", nil
	}
	b, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
