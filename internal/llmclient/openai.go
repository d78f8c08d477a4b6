package llmclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient calls a hosted OpenAI-compatible chat completions API.
type OpenAIClient struct {
	cli   openai.Client
	quota *QuotaTracker

	mu    sync.RWMutex
	model string
}

// NewOpenAIClient builds a client for baseURL (empty means the public API).
// SDK-level retries are disabled; the llm middleware and the retry controller own that.
func NewOpenAIClient(apiKey, baseURL, model string, cooldown time.Duration) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		cli:   openai.NewClient(opts...),
		quota: NewQuotaTracker("openai", cooldown),
		model: model,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }
func (c *OpenAIClient) Close() error { return nil }
func (c *OpenAIClient) Quota() Quota { return c.quota.Snapshot() }

func (c *OpenAIClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *OpenAIClient) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string, p Params) (RawOutput, error) {
	if err := c.quota.Check(); err != nil {
		return RawOutput{}, err
	}
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	model := c.Model()
	var msgs []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		msgs = append(msgs, openai.SystemMessage(p.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: msgs,
	}
	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}
	if p.TopP != nil {
		params.TopP = openai.Float(*p.TopP)
	}
	if p.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.MaxTokens))
	}
	if len(p.Stop) > 0 {
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: p.Stop}
	}
	if p.Structured {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
		}
	}

	start := time.Now()
	var httpResp *http.Response
	resp, err := c.cli.Chat.Completions.New(ctx, params, option.WithResponseInto(&httpResp))
	if httpResp != nil {
		if h, ok := ParseRateLimitHeaders(httpResp.Header, time.Now()); ok {
			c.quota.Observe(h)
		}
	}
	if err != nil {
		return RawOutput{}, c.convertErr(err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return RawOutput{}, unexpected(c.Name(), "empty completion")
	}
	text := resp.Choices[0].Message.Content
	return newRawOutput(c.Name(), model, text, int(resp.Usage.CompletionTokens), start), nil
}

func (c *OpenAIClient) convertErr(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return classify(c.Name(), err)
	}
	pErr := newError(c.Name(), classifyStatus(apiErr.StatusCode), fmt.Errorf("%s: %s", apiErr.Code, apiErr.Message))
	pErr.Status = apiErr.StatusCode
	if pErr.Kind == KindQuotaExceeded {
		var wait time.Duration
		if apiErr.Response != nil {
			if h, ok := ParseRateLimitHeaders(apiErr.Response.Header, time.Now()); ok {
				wait = h.NextWait()
			}
		}
		until := c.quota.Exhausted(wait)
		pErr.RetryAfter = time.Until(until)
	}
	return pErr
}

func (c *OpenAIClient) CheckReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := c.cli.Models.List(ctx)
	return err == nil
}

func (c *OpenAIClient) ListModels(ctx context.Context) []string {
	page, err := c.cli.Models.List(ctx)
	if err != nil || page == nil {
		return nil
	}
	out := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		out = append(out, m.ID)
	}
	return out
}
