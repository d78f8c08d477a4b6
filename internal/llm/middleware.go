package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"sitegen/internal/llmclient"
	"sitegen/internal/retry"
)

// Middleware decorates a Provider with a cross-cutting concern.
type Middleware func(llmclient.Provider) llmclient.Provider

// Wrap applies middlewares in left-to-right order.
// Example: Wrap(inner, A, B) => A(B(inner))
func Wrap(inner llmclient.Provider, mws ...Middleware) llmclient.Provider {
	out := inner
	for i := len(mws) - 1; i >= 0; i-- {
		out = mws[i](out)
	}
	return out
}

// -------- Rate Limiting --------

// RateLimit limits request rate to rps. When the wrapped provider reports
// quota, the rate is lowered so the remaining requests last until the quota
// resets. If rps <= 0 the limiter is disabled.
func RateLimit(rps float64, burst int) Middleware {
	return func(next llmclient.Provider) llmclient.Provider {
		return &rateLimited{Provider: next, rl: newLimiter(rps, burst)}
	}
}

type rateLimited struct {
	llmclient.Provider
	rl *limiter
}

func (c *rateLimited) Unwrap() llmclient.Provider { return c.Provider }

func (c *rateLimited) Close() error {
	c.rl.Stop()
	return c.Provider.Close()
}

func (c *rateLimited) Generate(ctx context.Context, prompt string, p llmclient.Params) (llmclient.RawOutput, error) {
	if err := c.rl.Acquire(ctx); err != nil {
		return llmclient.RawOutput{}, &llmclient.ProviderError{Kind: llmclient.KindTimeout, Provider: c.Name(), Err: err}
	}
	out, err := c.Provider.Generate(ctx, prompt, p)
	if qr, ok := quotaReporter(c.Provider); ok {
		c.rl.pace(qr.Quota())
	}
	return out, err
}

type unwrapper interface {
	Unwrap() llmclient.Provider
}

// quotaReporter finds the quota source beneath any middleware.
func quotaReporter(p llmclient.Provider) (llmclient.QuotaReporter, bool) {
	for p != nil {
		if qr, ok := p.(llmclient.QuotaReporter); ok {
			return qr, true
		}
		u, ok := p.(unwrapper)
		if !ok {
			return nil, false
		}
		p = u.Unwrap()
	}
	return nil, false
}

// -------- Transport retry --------

// Retry retries network and timeout failures inside a single stage attempt.
// Quota and unexpected errors pass through untouched. Attempts <= 1 disables it.
func Retry(policy retry.Policy) Middleware {
	policy = policy.Normalize()
	return func(next llmclient.Provider) llmclient.Provider {
		if policy.Attempts <= 1 {
			return next
		}
		return &retrying{Provider: next, policy: policy}
	}
}

type retrying struct {
	llmclient.Provider
	policy retry.Policy
}

func (r *retrying) Unwrap() llmclient.Provider { return r.Provider }

func (r *retrying) Generate(ctx context.Context, prompt string, p llmclient.Params) (llmclient.RawOutput, error) {
	var last error
	for i := 1; i <= r.policy.Attempts; i++ {
		out, err := r.Provider.Generate(ctx, prompt, p)
		if err == nil {
			return out, nil
		}
		last = err
		var pErr *llmclient.ProviderError
		if !errors.As(err, &pErr) || !pErr.Transient() || i == r.policy.Attempts {
			break
		}
		t := time.NewTimer(r.policy.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return llmclient.RawOutput{}, last
		case <-t.C:
		}
	}
	return llmclient.RawOutput{}, last
}

// -------- Logging --------

// WithLogging logs every call with its stage, size and latency.
func WithLogging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next llmclient.Provider) llmclient.Provider {
		return &logging{Provider: next, log: logger}
	}
}

type logging struct {
	llmclient.Provider
	log *slog.Logger
}

func (l *logging) Unwrap() llmclient.Provider { return l.Provider }

func (l *logging) Generate(ctx context.Context, prompt string, p llmclient.Params) (llmclient.RawOutput, error) {
	info := llmclient.CallInfoFrom(ctx)
	attrs := []any{
		"run_id", info.RunID,
		"stage", info.Stage,
		"page", info.Page,
		"provider", l.Name(),
		"model", l.Model(),
		"prompt_bytes", len(prompt),
	}
	if info.Completion {
		attrs = append(attrs, "completion", true)
	}
	start := time.Now()
	out, err := l.Provider.Generate(ctx, prompt, p)
	attrs = append(attrs, "latency", time.Since(start))
	if err != nil {
		l.log.WarnContext(ctx, "llm call failed", append(attrs, "err", err)...)
		return out, err
	}
	l.log.DebugContext(ctx, "llm call", append(attrs, "bytes", out.Bytes, "tokens", out.OutputTokens)...)
	return out, nil
}
