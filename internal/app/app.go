// Package app wires configuration, providers, storage and the HTTP server
// into a runnable service.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"sitegen/internal/config"
	"sitegen/internal/llm"
	"sitegen/internal/llmclient"
	"sitegen/internal/pipeline"
	"sitegen/internal/progress"
	"sitegen/internal/retry"
	"sitegen/internal/server"
	"sitegen/internal/site"
	"sitegen/internal/store"
)

const defaultLocalModel = "llama3.1"

// transportRetry retries network failures inside one stage attempt.
var transportRetry = retry.Policy{Attempts: 2, InitialDelay: 500 * time.Millisecond, MaxDelay: 2 * time.Second, Multiplier: 2}

type App struct {
	Config       *config.Config
	Log          *slog.Logger
	Facade       *llm.Facade
	Orchestrator *pipeline.Orchestrator
	Documents    *store.Writer

	server  *server.Server
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	providers, err := NewProviders(ctx, cfg)
	if err != nil {
		return nil, err
	}
	facade, err := llm.NewFacade(providers, cfg.Provider.Name,
		llm.WithMiddleware(
			llm.WithLogging(log),
			llm.RateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
			llm.Retry(transportRetry),
		),
		llm.WithDefaults(cfg.Generation.Defaults),
		llm.WithModelCacheTTL(cfg.Provider.ModelCacheTTL),
		llm.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider: %w", err)
	}

	blobs, storeCloser, err := store.Open(cfg.Store, log)
	if err != nil {
		_ = facade.Close()
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}
	docs := store.NewWriter(blobs)

	orch := pipeline.New(facade, docs,
		pipeline.WithRetryPolicy(cfg.Retry),
		pipeline.WithStageParams(site.StageHeader, cfg.Generation.Header),
		pipeline.WithStageParams(site.StageFooter, cfg.Generation.Footer),
		pipeline.WithStageParams(site.StagePage, cfg.Generation.Page),
		pipeline.WithPageConcurrency(cfg.PageConcurrency),
		pipeline.WithProgress(progress.NewRegistry(cfg.ProgressRetention)),
		pipeline.WithLogger(log),
	)

	handler := server.NewHandler(orch, facade, docs, log)
	srv := server.New(cfg.Port, server.NewMux(handler, log), log)

	log.Info("sitegen ready",
		"provider", cfg.Provider.Name,
		"model", facade.Profile().Model,
		"store", cfg.Store.Kind,
		"page_concurrency", cfg.PageConcurrency,
	)
	return &App{
		Config:       cfg,
		Log:          log,
		Facade:       facade,
		Orchestrator: orch,
		Documents:    docs,
		server:       srv,
		closers:      []io.Closer{facade, storeCloser},
	}, nil
}

// NewProviders builds every provider the configuration can reach. The
// local backend needs no credentials and is always registered; hosted
// backends are registered when their API key is set.
func NewProviders(ctx context.Context, cfg *config.Config) ([]llmclient.Provider, error) {
	p := cfg.Provider
	active := strings.ToLower(strings.TrimSpace(p.Name))
	model := func(name, configured string) string {
		if name == active && strings.TrimSpace(p.Model) != "" {
			return p.Model
		}
		return configured
	}

	var out []llmclient.Provider
	if active == config.ProviderFake {
		fake := llmclient.NewFakeClient(nil)
		if m := model(config.ProviderFake, ""); m != "" {
			fake.SetModel(m)
		}
		out = append(out, fake)
	}
	out = append(out, llmclient.NewLocalClient(p.LocalURL, firstNonEmpty(model(config.ProviderLocal, ""), defaultLocalModel)))
	if strings.TrimSpace(p.OpenAI.APIKey) != "" {
		out = append(out, llmclient.NewOpenAIClient(p.OpenAI.APIKey, p.OpenAI.BaseURL,
			model(config.ProviderOpenAI, p.OpenAI.Model), p.QuotaCooldown))
	}
	if strings.TrimSpace(p.Gemini.APIKey) != "" {
		g, err := llmclient.NewGeminiClient(ctx, p.Gemini.APIKey, p.Gemini.BaseURL,
			model(config.ProviderGemini, p.Gemini.Model), p.QuotaCooldown)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

// Serve runs the HTTP server on an existing listener.
func (a *App) Serve(l net.Listener) error {
	return a.server.Serve(l)
}

// Shutdown stops accepting requests and releases providers and storage.
// Runs still in flight are abandoned.
func (a *App) Shutdown(ctx context.Context) error {
	errs := []error{a.server.Shutdown(ctx)}
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Close releases providers and storage without an HTTP server running.
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
