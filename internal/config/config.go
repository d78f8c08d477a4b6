package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sitegen/internal/llmclient"
	"sitegen/internal/retry"
	"sitegen/internal/store"
)

const configPathEnv = "SITEGEN_CONFIG"

const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderFake   = "fake"
)

type Config struct {
	Port      string `yaml:"port"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Provider   ProviderConfig   `yaml:"provider"`
	Generation GenerationConfig `yaml:"generation"`
	Retry      retry.Policy     `yaml:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Store      store.Config     `yaml:"store"`

	PageConcurrency   int           `yaml:"page_concurrency"`
	ProgressRetention time.Duration `yaml:"progress_retention"`
}

type ProviderConfig struct {
	Name          string        `yaml:"name"`
	Model         string        `yaml:"model"`
	LocalURL      string        `yaml:"local_url"`
	OpenAI        HostedConfig  `yaml:"openai"`
	Gemini        HostedConfig  `yaml:"gemini"`
	QuotaCooldown time.Duration `yaml:"quota_cooldown"`
	ModelCacheTTL time.Duration `yaml:"model_cache_ttl"`
}

type HostedConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// GenerationConfig holds the default call parameters and per-stage overrides.
type GenerationConfig struct {
	Defaults llmclient.Params `yaml:"defaults"`
	Header   llmclient.Params `yaml:"header"`
	Footer   llmclient.Params `yaml:"footer"`
	Page     llmclient.Params `yaml:"page"`
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Port:      ":8081",
		LogLevel:  "info",
		LogFormat: "text",
		Provider: ProviderConfig{
			Name:          ProviderLocal,
			LocalURL:      "http://localhost:11434",
			QuotaCooldown: time.Minute,
			ModelCacheTTL: 10 * time.Minute,
		},
		Generation: GenerationConfig{
			Defaults: llmclient.Params{Temperature: llmclient.Float(0.7), TopP: llmclient.Float(0.9), MaxTokens: 2048},
			Header:   llmclient.Params{Timeout: 60 * time.Second},
			Footer:   llmclient.Params{Timeout: 60 * time.Second},
			Page:     llmclient.Params{Timeout: 180 * time.Second, MaxTokens: 4096},
		},
		Retry:             retry.DefaultPolicy(),
		RateLimit:         RateLimitConfig{RPS: 1, Burst: 1},
		Store:             store.Config{Kind: store.KindMemory},
		PageConcurrency:   1,
		ProgressRetention: 10 * time.Minute,
	}
}

// Load reads .env, then the optional YAML file named by SITEGEN_CONFIG,
// then environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := strings.TrimSpace(os.Getenv(configPathEnv)); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Port = normalizePort(cfg.Port)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = firstNonEmpty(env("PORT"), c.Port)
	c.LogLevel = firstNonEmpty(env("LOG_LEVEL"), c.LogLevel)
	c.LogFormat = firstNonEmpty(env("LOG_FORMAT"), c.LogFormat)

	p := &c.Provider
	p.Name = strings.ToLower(firstNonEmpty(env("SITEGEN_PROVIDER"), p.Name))
	p.Model = firstNonEmpty(env("SITEGEN_MODEL"), p.Model)
	p.LocalURL = firstNonEmpty(env("LOCAL_LLM_URL"), p.LocalURL)
	p.OpenAI.APIKey = firstNonEmpty(env("OPENAI_API_KEY"), p.OpenAI.APIKey)
	p.OpenAI.BaseURL = firstNonEmpty(env("OPENAI_BASE_URL"), p.OpenAI.BaseURL)
	p.OpenAI.Model = firstNonEmpty(env("OPENAI_MODEL"), p.OpenAI.Model)
	p.Gemini.APIKey = firstNonEmpty(env("GEMINI_API_KEY"), p.Gemini.APIKey)
	p.Gemini.BaseURL = firstNonEmpty(env("GEMINI_BASE_URL"), p.Gemini.BaseURL)
	p.Gemini.Model = firstNonEmpty(env("GEMINI_MODEL"), p.Gemini.Model)

	var err error
	if c.RateLimit.RPS, err = envFloat("LLM_RPS", c.RateLimit.RPS); err != nil {
		return err
	}
	if c.RateLimit.Burst, err = envInt("LLM_BURST", c.RateLimit.Burst); err != nil {
		return err
	}
	if c.Retry.Attempts, err = envInt("RETRY_ATTEMPTS", c.Retry.Attempts); err != nil {
		return err
	}
	if c.Retry.InitialDelay, err = envDuration("RETRY_INITIAL_DELAY", c.Retry.InitialDelay); err != nil {
		return err
	}
	if c.Retry.MaxDelay, err = envDuration("RETRY_MAX_DELAY", c.Retry.MaxDelay); err != nil {
		return err
	}
	if c.Retry.Multiplier, err = envFloat("RETRY_MULTIPLIER", c.Retry.Multiplier); err != nil {
		return err
	}
	if c.PageConcurrency, err = envInt("PAGE_CONCURRENCY", c.PageConcurrency); err != nil {
		return err
	}

	s := &c.Store
	s.Kind = strings.ToLower(firstNonEmpty(env("STORE_KIND"), s.Kind))
	s.PostgresDSN = firstNonEmpty(env("STORE_PG_DSN"), env("DATABASE_URL"), s.PostgresDSN)
	s.S3.Endpoint = firstNonEmpty(env("ARTIFACT_S3_ENDPOINT"), s.S3.Endpoint)
	s.S3.Region = firstNonEmpty(env("ARTIFACT_S3_REGION"), s.S3.Region)
	s.S3.AccessKey = firstNonEmpty(env("ARTIFACT_S3_ACCESS_KEY"), env("MINIO_ROOT_USER"), s.S3.AccessKey)
	s.S3.SecretKey = firstNonEmpty(env("ARTIFACT_S3_SECRET_KEY"), env("MINIO_ROOT_PASSWORD"), s.S3.SecretKey)
	s.S3.Bucket = firstNonEmpty(env("ARTIFACT_S3_BUCKET"), s.S3.Bucket)
	if raw := env("ARTIFACT_S3_USE_SSL"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("ARTIFACT_S3_USE_SSL: %w", err)
		}
		s.S3.UseSSL = v
	}
	return nil
}

// Validate reports settings that would prevent the pipeline from starting.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Port, validation.Required),
		validation.Field(&c.LogFormat, validation.In("text", "json")),
		validation.Field(&c.Provider),
		validation.Field(&c.PageConcurrency, validation.Required, validation.Min(1)),
		validation.Field(&c.RateLimit),
		validation.Field(&c.Store, validation.By(validateStore)),
	)
}

func (p ProviderConfig) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.In(ProviderLocal, ProviderOpenAI, ProviderGemini, ProviderFake)),
		validation.Field(&p.OpenAI, validation.When(p.Name == ProviderOpenAI, validation.By(requireAPIKey("OPENAI_API_KEY")))),
		validation.Field(&p.Gemini, validation.When(p.Name == ProviderGemini, validation.By(requireAPIKey("GEMINI_API_KEY")))),
	)
}

func requireAPIKey(name string) validation.RuleFunc {
	return func(value any) error {
		h, _ := value.(HostedConfig)
		if strings.TrimSpace(h.APIKey) == "" {
			return fmt.Errorf("%s is required", name)
		}
		return nil
	}
}

func (r RateLimitConfig) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RPS, validation.Min(0.0)),
		validation.Field(&r.Burst, validation.Min(0)),
	)
}

func validateStore(value any) error {
	s, _ := value.(store.Config)
	switch s.Kind {
	case "", store.KindMemory:
		return nil
	case store.KindPostgres:
		if strings.TrimSpace(s.PostgresDSN) == "" {
			return fmt.Errorf("postgres store requires STORE_PG_DSN")
		}
		return nil
	case store.KindS3:
		if !s.S3.Complete() {
			return fmt.Errorf("s3 store requires endpoint, credentials and bucket")
		}
		return nil
	default:
		return fmt.Errorf("unknown store kind %q", s.Kind)
	}
}

func normalizePort(port string) string {
	port = strings.TrimSpace(port)
	if port != "" && !strings.Contains(port, ":") {
		return ":" + port
	}
	return port
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envInt(key string, def int) (int, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envFloat(key string, def float64) (float64, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := env(key)
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
