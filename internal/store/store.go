package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// BlobStore persists opaque documents keyed by website ID and path.
type BlobStore interface {
	Put(ctx context.Context, websiteID, path string, content []byte) error
	Get(ctx context.Context, websiteID, path string) ([]byte, error)
	List(ctx context.Context, websiteID string) ([]string, error)
}

var ErrNotFound = errors.New("document not found")

func normalizeKey(websiteID, path string) (string, string, error) {
	websiteID = strings.TrimSpace(websiteID)
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if websiteID == "" {
		return "", "", fmt.Errorf("website_id is required")
	}
	if path == "" {
		return "", "", fmt.Errorf("path is required")
	}
	return websiteID, path, nil
}

func objectKey(websiteID, path string) string {
	return websiteID + "/" + path
}
