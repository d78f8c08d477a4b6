package store

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	KindMemory   = "memory"
	KindPostgres = "postgres"
	KindS3       = "s3"
)

type Config struct {
	Kind        string      `yaml:"kind"`
	PostgresDSN string      `yaml:"postgres_dsn"`
	S3          S3Config    `yaml:"s3"`
	Cache       CacheConfig `yaml:"cache"`
}

// Open builds the blob store named by cfg.Kind. Remote stores get a read
// cache in front. The returned closer is never nil.
func Open(cfg Config, log *slog.Logger) (BlobStore, io.Closer, error) {
	if log == nil {
		log = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "", KindMemory:
		log.Info("document store", "kind", KindMemory)
		return NewMemoryStore(), nopCloser{}, nil
	case KindPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, nopCloser{}, fmt.Errorf("postgres store requires a dsn")
		}
		pg, err := OpenPostgres(cfg.PostgresDSN)
		if err != nil {
			return nil, nopCloser{}, err
		}
		log.Info("document store", "kind", KindPostgres)
		return NewCachedStore(pg, cfg.Cache), pg, nil
	case KindS3:
		s3, err := NewS3Store(cfg.S3)
		if err != nil {
			return nil, nopCloser{}, err
		}
		log.Info("document store", "kind", KindS3, "bucket", cfg.S3.Bucket, "endpoint", cfg.S3.Endpoint)
		return NewCachedStore(s3, cfg.Cache), nopCloser{}, nil
	default:
		return nil, nopCloser{}, fmt.Errorf("unknown store kind %q", cfg.Kind)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
