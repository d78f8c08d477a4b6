package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitegen/internal/site"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, "w-1", "/pages/home.json", []byte("a")))
	require.NoError(t, s.Put(ctx, "w-1", "header.json", []byte("b")))
	require.NoError(t, s.Put(ctx, "w-2", "header.json", []byte("c")))

	got, err := s.Get(ctx, "w-1", "pages/home.json")
	require.NoError(t, err)
	assert.Equal(t, "a", string(got))

	got[0] = 'z'
	again, _ := s.Get(ctx, "w-1", "pages/home.json")
	assert.Equal(t, "a", string(again))

	paths, err := s.List(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"header.json", "pages/home.json"}, paths)

	_, err = s.Get(ctx, "w-1", "missing.json")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, s.Put(ctx, " ", "x", nil))
	assert.Error(t, s.Put(ctx, "w-1", "", nil))
}

func TestPostgresQueries(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	q, args, err := upsertQuery("w-1", "header.json", []byte("{}"), at)
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO site_documents (website_id,path,content,size,updated_at) VALUES ($1,$2,$3,$4,$5) "+
		"ON CONFLICT (website_id, path) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, updated_at = EXCLUDED.updated_at", q)
	assert.Equal(t, []any{"w-1", "header.json", []byte("{}"), int64(2), at}, args)

	q, args, err = getQuery("w-1", "header.json")
	require.NoError(t, err)
	assert.Equal(t, "SELECT content FROM site_documents WHERE path = $1 AND website_id = $2", q)
	assert.Equal(t, []any{"header.json", "w-1"}, args)

	q, args, err = listQuery("w-1")
	require.NoError(t, err)
	assert.Equal(t, "SELECT path FROM site_documents WHERE website_id = $1 ORDER BY path", q)
	assert.Equal(t, []any{"w-1"}, args)
}

func TestOpen(t *testing.T) {
	s, closer, err := Open(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	assert.NoError(t, closer.Close())

	_, _, err = Open(Config{Kind: KindPostgres}, nil)
	assert.Error(t, err)

	_, _, err = Open(Config{Kind: KindS3, S3: S3Config{Endpoint: "localhost:9000"}}, nil)
	assert.Error(t, err)

	_, _, err = Open(Config{Kind: "redis"}, nil)
	assert.Error(t, err)
}

func TestS3ConfigComplete(t *testing.T) {
	assert.False(t, S3Config{Endpoint: "x", Bucket: "b"}.Complete())
	assert.True(t, S3Config{Endpoint: "x", AccessKey: "a", SecretKey: "s", Bucket: "b"}.Complete())
}

func TestWriterSavesDocuments(t *testing.T) {
	ctx := context.Background()
	blobs := NewMemoryStore()
	w := NewWriter(blobs)
	w.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, w.SaveHeader(ctx, "w-1", site.Artifact{Stage: site.StageHeader, Markup: "<header></header>", Stylesheet: "h{}"}))
	require.NoError(t, w.SaveFooter(ctx, "w-1", site.Artifact{Stage: site.StageFooter, Markup: "<footer></footer>", Fallback: true}))
	require.NoError(t, w.SavePage(ctx, "w-1", "About Us", []site.Section{{Reference: "about", Markup: "<p>x</p>"}}))

	paths, err := w.List(ctx, "w-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"footer.json", "header.json", "pages/about-us.json"}, paths)

	footer, err := w.LoadBlock(ctx, "w-1", FooterPath)
	require.NoError(t, err)
	assert.True(t, footer.Fallback)
	assert.Equal(t, "<footer></footer>", footer.Markup)

	page, err := w.LoadPage(ctx, "w-1", "About Us")
	require.NoError(t, err)
	assert.Equal(t, "about-us", page.Slug)
	require.Len(t, page.Sections, 1)
	assert.Equal(t, "about", page.Sections[0].Reference)
}

type failingStore struct{ *MemoryStore }

func (*failingStore) Put(context.Context, string, string, []byte) error {
	return errors.New("disk full")
}

func TestWriterWrapsErrors(t *testing.T) {
	w := NewWriter(&failingStore{MemoryStore: NewMemoryStore()})
	err := w.SavePage(context.Background(), "w-1", "Home", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save page Home: disk full")

	err = w.SaveHeader(context.Background(), "w-1", site.Artifact{Stage: site.StageHeader})
	assert.EqualError(t, err, "save header: disk full")
}
