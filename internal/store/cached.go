package store

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type CacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		TTL:        2 * time.Minute,
		MaxEntries: 2048,
	}
}

// CachedStore keeps recently read or written documents in memory in front
// of a remote store. Writes go through to the origin first.
type CachedStore struct {
	origin BlobStore
	docs   *expirable.LRU[string, []byte]
}

func NewCachedStore(origin BlobStore, cfg CacheConfig) *CachedStore {
	def := DefaultCacheConfig()
	if cfg.TTL <= 0 {
		cfg.TTL = def.TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	return &CachedStore{
		origin: origin,
		docs:   expirable.NewLRU[string, []byte](cfg.MaxEntries, nil, cfg.TTL),
	}
}

func (s *CachedStore) Put(ctx context.Context, websiteID, path string, content []byte) error {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return err
	}
	key := objectKey(websiteID, path)
	if err := s.origin.Put(ctx, websiteID, path, content); err != nil {
		s.docs.Remove(key)
		return err
	}
	s.docs.Add(key, append([]byte(nil), content...))
	return nil
}

func (s *CachedStore) Get(ctx context.Context, websiteID, path string) ([]byte, error) {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return nil, err
	}
	key := objectKey(websiteID, path)
	if raw, ok := s.docs.Get(key); ok {
		return append([]byte(nil), raw...), nil
	}
	raw, err := s.origin.Get(ctx, websiteID, path)
	if err != nil {
		return nil, err
	}
	s.docs.Add(key, append([]byte(nil), raw...))
	return raw, nil
}

// List always asks the origin; other writers may have added documents.
func (s *CachedStore) List(ctx context.Context, websiteID string) ([]string, error) {
	return s.origin.List(ctx, websiteID)
}
