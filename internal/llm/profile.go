package llm

import (
	"sync"

	"sitegen/internal/llmclient"
)

// Usage counts calls made through the façade since startup.
type Usage struct {
	Requests         int64 `json:"requests"`
	Errors           int64 `json:"errors"`
	QuotaErrors      int64 `json:"quota_errors"`
	CompletionPasses int64 `json:"completion_passes"`
	OutputTokens     int64 `json:"output_tokens"`
	OutputBytes      int64 `json:"output_bytes"`
}

// ProviderProfile is a snapshot of the active provider settings.
type ProviderProfile struct {
	Provider  string                                     `json:"provider"`
	Model     string                                     `json:"model"`
	Available []string                                   `json:"available"`
	Defaults  llmclient.Params                           `json:"defaults"`
	PerType   map[llmclient.ContentType]llmclient.Params `json:"per_type,omitempty"`
	Quota     *llmclient.Quota                           `json:"quota,omitempty"`
	Usage     Usage                                      `json:"usage"`
}

type usageCounter struct {
	mu sync.Mutex
	u  map[string]*Usage
}

func (c *usageCounter) record(provider string, fn func(*Usage)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.u == nil {
		c.u = make(map[string]*Usage)
	}
	u, ok := c.u[provider]
	if !ok {
		u = &Usage{}
		c.u[provider] = u
	}
	fn(u)
}

func (c *usageCounter) get(provider string) Usage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if u, ok := c.u[provider]; ok {
		return *u
	}
	return Usage{}
}
