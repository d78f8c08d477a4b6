package llmclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
type GeminiClient struct {
	cli   *genai.Client
	quota *QuotaTracker

	mu    sync.RWMutex
	model string
}

// NewGeminiClient creates a Gemini API client. baseURL is only set in tests.
func NewGeminiClient(ctx context.Context, apiKey, baseURL, model string, cooldown time.Duration) (*GeminiClient, error) {
	cfg := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	return &GeminiClient{cli: cli, quota: NewQuotaTracker("gemini", cooldown), model: model}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }
func (g *GeminiClient) Close() error { return nil }
func (g *GeminiClient) Quota() Quota { return g.quota.Snapshot() }

func (g *GeminiClient) Model() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.model
}

func (g *GeminiClient) SetModel(model string) {
	g.mu.Lock()
	g.model = model
	g.mu.Unlock()
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string, p Params) (RawOutput, error) {
	if err := g.quota.Check(); err != nil {
		return RawOutput{}, err
	}
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	model := g.Model()
	cfg := &genai.GenerateContentConfig{StopSequences: p.Stop}
	if p.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*p.Temperature))
	}
	if p.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*p.TopP))
	}
	if p.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(p.MaxTokens)
	}
	if p.Structured {
		cfg.ResponseMIMEType = "application/json"
	}
	if p.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	start := time.Now()
	resp, err := g.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		cfg,
	)
	if err != nil {
		return RawOutput{}, g.convertErr(err)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return RawOutput{}, unexpected(g.Name(), "empty candidate")
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return newRawOutput(g.Name(), model, text, tokens, start), nil
}

func (g *GeminiClient) convertErr(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return classify(g.Name(), err)
	}
	kind := classifyStatus(apiErr.Code)
	if apiErr.Status == "RESOURCE_EXHAUSTED" {
		kind = KindQuotaExceeded
	}
	pErr := newError(g.Name(), kind, fmt.Errorf("%s: %s", apiErr.Status, apiErr.Message))
	pErr.Status = apiErr.Code
	if kind == KindQuotaExceeded {
		pErr.RetryAfter = time.Until(g.quota.Exhausted(0))
	}
	return pErr
}

func (g *GeminiClient) CheckReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := g.cli.Models.List(ctx, &genai.ListModelsConfig{PageSize: 1})
	return err == nil
}

func (g *GeminiClient) ListModels(ctx context.Context) []string {
	page, err := g.cli.Models.List(ctx, &genai.ListModelsConfig{})
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(page.Items))
	for _, m := range page.Items {
		if m == nil {
			continue
		}
		out = append(out, strings.TrimPrefix(m.Name, "models/"))
	}
	return out
}
