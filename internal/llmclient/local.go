package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// LocalClient talks to an Ollama-compatible model server.
type LocalClient struct {
	http    *http.Client
	baseURL string

	mu    sync.RWMutex
	model string
}

func NewLocalClient(baseURL, model string) *LocalClient {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &LocalClient{
		// Per-call deadlines come from Params.Timeout.
		http:    &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
	}
}

func (c *LocalClient) Name() string { return "local" }
func (c *LocalClient) Close() error { return nil }

func (c *LocalClient) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

func (c *LocalClient) SetModel(model string) {
	c.mu.Lock()
	c.model = model
	c.mu.Unlock()
}

type localOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type localGenerateReq struct {
	Model   string       `json:"model"`
	Prompt  string       `json:"prompt"`
	System  string       `json:"system,omitempty"`
	Stream  bool         `json:"stream"`
	Format  string       `json:"format,omitempty"`
	Options localOptions `json:"options"`
}

type localGenerateResp struct {
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason"`
	EvalCount  int    `json:"eval_count"`
	Error      string `json:"error"`
}

type localTagsResp struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *LocalClient) Generate(ctx context.Context, prompt string, p Params) (RawOutput, error) {
	ctx, cancel := withTimeout(ctx, p.Timeout)
	defer cancel()

	model := c.Model()
	reqBody := localGenerateReq{
		Model:  model,
		Prompt: prompt,
		System: p.System,
		Stream: false,
		Options: localOptions{
			Temperature: p.Temperature,
			TopP:        p.TopP,
			NumPredict:  p.MaxTokens,
			Stop:        p.Stop,
		},
	}
	if p.Structured {
		reqBody.Format = "json"
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return RawOutput{}, newError(c.Name(), KindUnexpected, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(b))
	if err != nil {
		return RawOutput{}, newError(c.Name(), KindUnexpected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return RawOutput{}, classify(c.Name(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		pErr := newError(c.Name(), classifyStatus(resp.StatusCode),
			fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body))))
		pErr.Status = resp.StatusCode
		return RawOutput{}, pErr
	}
	var out localGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return RawOutput{}, classify(c.Name(), fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return RawOutput{}, unexpected(c.Name(), "server error: %s", out.Error)
	}
	if strings.TrimSpace(out.Response) == "" {
		return RawOutput{}, unexpected(c.Name(), "empty response")
	}
	return newRawOutput(c.Name(), model, out.Response, out.EvalCount, start), nil
}

func (c *LocalClient) tags(ctx context.Context) (*localTagsResp, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tags: status %s", resp.Status)
	}
	var out localTagsResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *LocalClient) CheckReachable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := c.tags(ctx)
	return err == nil
}

func (c *LocalClient) ListModels(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	out, err := c.tags(ctx)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(out.Models))
	for _, m := range out.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names
}
