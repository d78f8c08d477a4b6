package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"sitegen/internal/llmclient"
	"sitegen/internal/repair"
)

var ErrUnknownProvider = errors.New("unknown provider")

// completionShare is the fraction of the original token budget given to a
// completion pass.
const completionShare = 0.3

// Facade is the single generation entry point. It selects the active
// provider among those registered at construction.
type Facade struct {
	mu      sync.RWMutex
	raw     map[string]llmclient.Provider
	wrapped map[string]llmclient.Provider
	active  string

	defaults llmclient.Params
	perType  map[llmclient.ContentType]llmclient.Params

	models *expirable.LRU[string, []string]
	usage  usageCounter
	log    *slog.Logger
}

type Option func(*facadeOptions)

type facadeOptions struct {
	middlewares []Middleware
	defaults    llmclient.Params
	perType     map[llmclient.ContentType]llmclient.Params
	modelTTL    time.Duration
	logger      *slog.Logger
}

// WithMiddleware wraps every registered provider, in Wrap order.
func WithMiddleware(mws ...Middleware) Option {
	return func(o *facadeOptions) { o.middlewares = append(o.middlewares, mws...) }
}

func WithDefaults(p llmclient.Params) Option {
	return func(o *facadeOptions) { o.defaults = p }
}

// WithContentDefaults sets parameters merged between the global defaults
// and the caller's params for one content type.
func WithContentDefaults(ct llmclient.ContentType, p llmclient.Params) Option {
	return func(o *facadeOptions) { o.perType[ct] = p }
}

func WithModelCacheTTL(d time.Duration) Option {
	return func(o *facadeOptions) { o.modelTTL = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *facadeOptions) { o.logger = l }
}

// NewFacade registers providers by Name(). active selects the initial one;
// empty means the first provider.
func NewFacade(providers []llmclient.Provider, active string, opts ...Option) (*Facade, error) {
	if len(providers) == 0 {
		return nil, errors.New("llm: no providers configured")
	}
	o := facadeOptions{
		perType:  map[llmclient.ContentType]llmclient.Params{},
		modelTTL: 10 * time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	f := &Facade{
		raw:      make(map[string]llmclient.Provider, len(providers)),
		wrapped:  make(map[string]llmclient.Provider, len(providers)),
		defaults: o.defaults,
		perType:  o.perType,
		models:   expirable.NewLRU[string, []string](32, nil, o.modelTTL),
		log:      o.logger,
	}
	for _, p := range providers {
		name := p.Name()
		if _, dup := f.raw[name]; dup {
			return nil, fmt.Errorf("llm: provider %q registered twice", name)
		}
		f.raw[name] = p
		f.wrapped[name] = Wrap(p, o.middlewares...)
	}
	if active == "" {
		active = providers[0].Name()
	}
	if _, ok := f.raw[active]; !ok {
		return nil, fmt.Errorf("llm: %w: %s", ErrUnknownProvider, active)
	}
	f.active = active
	return f, nil
}

func (f *Facade) current() (string, llmclient.Provider) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.active, f.wrapped[f.active]
}

// SetProvider swaps the active provider.
func (f *Facade) SetProvider(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.raw[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	if f.active != name {
		f.log.Info("provider switched", "from", f.active, "to", name)
	}
	f.active = name
	return nil
}

// SetModel forwards to the active provider.
func (f *Facade) SetModel(model string) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	f.raw[f.active].SetModel(model)
}

// Select switches provider and model in one step, so a concurrent caller
// never sees the model applied to another provider. Empty arguments leave
// the current value unchanged.
func (f *Facade) Select(provider, model string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := f.active
	if provider != "" {
		if _, ok := f.raw[provider]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
		}
		name = provider
	}
	if name != f.active {
		f.log.Info("provider switched", "from", f.active, "to", name)
		f.active = name
	}
	if model != "" {
		f.raw[name].SetModel(model)
	}
	return nil
}

// Providers returns the registered provider names, sorted.
func (f *Facade) Providers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	names := make([]string, 0, len(f.raw))
	for n := range f.raw {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (f *Facade) CheckReachable(ctx context.Context) bool {
	_, p := f.current()
	return p.CheckReachable(ctx)
}

// ListModels returns the active provider's models, cached for a while.
func (f *Facade) ListModels(ctx context.Context) []string {
	name, p := f.current()
	if cached, ok := f.models.Get(name); ok {
		return cached
	}
	models := p.ListModels(ctx)
	if len(models) > 0 {
		f.models.Add(name, models)
	}
	return models
}

// Params returns the merged parameters a call would use.
func (f *Facade) Params(ct llmclient.ContentType, p llmclient.Params) llmclient.Params {
	f.mu.RLock()
	merged := f.defaults.Merge(f.perType[ct]).Merge(p)
	f.mu.RUnlock()
	if ct == llmclient.ContentJSON {
		merged.Structured = true
	}
	return merged
}

// Generate delegates to the active provider. Output that looks truncated
// gets exactly one completion pass; its result is appended and not checked again.
func (f *Facade) Generate(ctx context.Context, prompt string, ct llmclient.ContentType, p llmclient.Params) (llmclient.RawOutput, error) {
	name, client := f.current()
	params := f.Params(ct, p)

	out, err := client.Generate(ctx, prompt, params)
	f.record(name, out, err)
	if err != nil {
		return out, err
	}
	if !repair.IsIncomplete(out.Text, ct) {
		return out, nil
	}

	cparams := params
	cparams.Structured = false
	if params.MaxTokens > 0 {
		cparams.MaxTokens = int(float64(params.MaxTokens) * completionShare)
		if cparams.MaxTokens < 1 {
			cparams.MaxTokens = 1
		}
	}
	info := llmclient.CallInfoFrom(ctx)
	info.Completion = true
	cctx := llmclient.WithCallInfo(ctx, info)

	more, cerr := client.Generate(cctx, completionPrompt(prompt, out.Text), cparams)
	f.record(name, more, cerr)
	f.usage.record(name, func(u *Usage) { u.CompletionPasses++ })
	if cerr != nil {
		f.log.DebugContext(ctx, "completion pass failed", "provider", name, "stage", info.Stage, "err", cerr)
		return out, nil
	}
	out.Text += more.Text
	out.Bytes = len(out.Text)
	out.OutputTokens += more.OutputTokens
	out.Elapsed += more.Elapsed
	out.Completed = true
	return out, nil
}

func (f *Facade) record(name string, out llmclient.RawOutput, err error) {
	f.usage.record(name, func(u *Usage) {
		u.Requests++
		if err != nil {
			u.Errors++
			if errors.Is(err, llmclient.ErrQuotaExceeded) {
				u.QuotaErrors++
			}
			return
		}
		u.OutputTokens += int64(out.OutputTokens)
		u.OutputBytes += int64(out.Bytes)
	})
}

// Profile returns a snapshot of the active provider settings and counters.
func (f *Facade) Profile() ProviderProfile {
	f.mu.RLock()
	name := f.active
	raw := f.raw[name]
	perType := make(map[llmclient.ContentType]llmclient.Params, len(f.perType))
	for k, v := range f.perType {
		perType[k] = v
	}
	defaults := f.defaults
	f.mu.RUnlock()

	prof := ProviderProfile{
		Provider:  name,
		Model:     raw.Model(),
		Available: f.Providers(),
		Defaults:  defaults,
		PerType:   perType,
		Usage:     f.usage.get(name),
	}
	if qr, ok := raw.(llmclient.QuotaReporter); ok {
		q := qr.Quota()
		prof.Quota = &q
	}
	return prof
}

// Close closes every registered provider.
func (f *Facade) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var errs []error
	for _, p := range f.wrapped {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func completionPrompt(prompt, partial string) string {
	return prompt + "\n\n---\nYour previous answer was cut off. It ended with:\n\n" +
		tail(partial, 1500) +
		"\n\nContinue exactly where the text stops. Do not repeat anything already written " +
		"and do not add commentary; output only the missing remainder."
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
