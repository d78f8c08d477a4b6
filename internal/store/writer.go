package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sitegen/internal/site"
)

const (
	HeaderPath = "header.json"
	FooterPath = "footer.json"
)

// PagePath is where a page document is stored.
func PagePath(name string) string {
	return "pages/" + site.Slug(name) + ".json"
}

// BlockDocument is the stored form of a header or footer.
type BlockDocument struct {
	Markup     string    `json:"markup"`
	Stylesheet string    `json:"stylesheet"`
	Fallback   bool      `json:"fallback,omitempty"`
	SavedAt    time.Time `json:"saved_at"`
}

// PageDocument is the stored form of a page.
type PageDocument struct {
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Sections []site.Section `json:"sections"`
	SavedAt  time.Time      `json:"saved_at"`
}

// Writer saves generated artifacts as JSON documents.
type Writer struct {
	blobs BlobStore
	now   func() time.Time
}

func NewWriter(blobs BlobStore) *Writer {
	return &Writer{blobs: blobs, now: time.Now}
}

func (w *Writer) SaveHeader(ctx context.Context, websiteID string, a site.Artifact) error {
	return w.putBlock(ctx, websiteID, HeaderPath, a)
}

func (w *Writer) SaveFooter(ctx context.Context, websiteID string, a site.Artifact) error {
	return w.putBlock(ctx, websiteID, FooterPath, a)
}

func (w *Writer) SavePage(ctx context.Context, websiteID, name string, sections []site.Section) error {
	doc := PageDocument{
		Name:     strings.TrimSpace(name),
		Slug:     site.Slug(name),
		Sections: sections,
		SavedAt:  w.now().UTC(),
	}
	if err := w.put(ctx, websiteID, PagePath(name), doc); err != nil {
		return fmt.Errorf("save page %s: %w", name, err)
	}
	return nil
}

// LoadPage reads a stored page document.
func (w *Writer) LoadPage(ctx context.Context, websiteID, name string) (PageDocument, error) {
	var doc PageDocument
	raw, err := w.blobs.Get(ctx, websiteID, PagePath(name))
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode page %s: %w", name, err)
	}
	return doc, nil
}

// LoadBlock reads a stored header or footer document.
func (w *Writer) LoadBlock(ctx context.Context, websiteID, path string) (BlockDocument, error) {
	var doc BlockDocument
	raw, err := w.blobs.Get(ctx, websiteID, path)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

// List returns every stored document path of a website.
func (w *Writer) List(ctx context.Context, websiteID string) ([]string, error) {
	return w.blobs.List(ctx, websiteID)
}

func (w *Writer) putBlock(ctx context.Context, websiteID, path string, a site.Artifact) error {
	doc := BlockDocument{
		Markup:     a.Markup,
		Stylesheet: a.Stylesheet,
		Fallback:   a.Fallback,
		SavedAt:    w.now().UTC(),
	}
	if err := w.put(ctx, websiteID, path, doc); err != nil {
		return fmt.Errorf("save %s: %w", a.Stage, err)
	}
	return nil
}

func (w *Writer) put(ctx context.Context, websiteID, path string, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return w.blobs.Put(ctx, websiteID, path, raw)
}
