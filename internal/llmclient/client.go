package llmclient

import (
	"context"
	"time"
)

// ContentType tells the façade and the repairer what shape a response should have.
type ContentType string

const (
	ContentJSON   ContentType = "json"
	ContentMarkup ContentType = "markup"
)

// Provider is implemented by every text-generation backend.
// Cross-cutting concerns (rate limiting, logging, transport retries) are
// applied by middleware in the llm package, not here.
type Provider interface {
	Name() string
	Model() string
	SetModel(model string)
	// CheckReachable probes the backend with a short timeout. It never errors.
	CheckReachable(ctx context.Context) bool
	// ListModels is best-effort and returns nil on failure.
	ListModels(ctx context.Context) []string
	// Generate returns *ProviderError on failure.
	Generate(ctx context.Context, prompt string, p Params) (RawOutput, error)
	Close() error
}

// QuotaReporter is implemented by hosted clients that track provider quota.
type QuotaReporter interface {
	Quota() Quota
}

// Params are the per-call generation parameters.
type Params struct {
	Temperature *float64      `yaml:"temperature" json:"temperature,omitempty"`
	TopP        *float64      `yaml:"top_p" json:"top_p,omitempty"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens,omitempty"`
	Stop        []string      `yaml:"stop" json:"stop,omitempty"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout,omitempty"`
	Structured  bool          `yaml:"structured" json:"structured,omitempty"`
	System      string        `yaml:"system" json:"system,omitempty"`
}

// Merge overlays the set fields of o onto p.
func (p Params) Merge(o Params) Params {
	if o.Temperature != nil {
		p.Temperature = o.Temperature
	}
	if o.TopP != nil {
		p.TopP = o.TopP
	}
	if o.MaxTokens > 0 {
		p.MaxTokens = o.MaxTokens
	}
	if len(o.Stop) > 0 {
		p.Stop = append([]string(nil), o.Stop...)
	}
	if o.Timeout > 0 {
		p.Timeout = o.Timeout
	}
	if o.Structured {
		p.Structured = true
	}
	if o.System != "" {
		p.System = o.System
	}
	return p
}

// Float returns a pointer for optional float params.
func Float(v float64) *float64 { return &v }

// RawOutput is the unprocessed provider response.
type RawOutput struct {
	Text         string        `json:"text"`
	Elapsed      time.Duration `json:"elapsed"`
	OutputTokens int           `json:"output_tokens"`
	Bytes        int           `json:"bytes"`
	Provider     string        `json:"provider"`
	Model        string        `json:"model"`
	// Completed is set when a completion pass was appended to Text.
	Completed bool `json:"completed,omitempty"`
}

func newRawOutput(provider, model, text string, tokens int, start time.Time) RawOutput {
	return RawOutput{
		Text:         text,
		Elapsed:      time.Since(start),
		OutputTokens: tokens,
		Bytes:        len(text),
		Provider:     provider,
		Model:        model,
	}
}

const probeTimeout = 3 * time.Second

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
