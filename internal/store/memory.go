package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Put(_ context.Context, websiteID, path string, content []byte) error {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectKey(websiteID, path)] = append([]byte(nil), content...)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, websiteID, path string) ([]byte, error) {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.data[objectKey(websiteID, path)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), raw...), nil
}

func (s *MemoryStore) List(_ context.Context, websiteID string) ([]string, error) {
	websiteID = strings.TrimSpace(websiteID)
	if websiteID == "" {
		return nil, fmt.Errorf("website_id is required")
	}
	prefix := websiteID + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, 8)
	for key := range s.data {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out, nil
}
