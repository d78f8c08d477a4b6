package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const documentsTable = "site_documents"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresStore keeps documents in a single table keyed by (website_id, path).
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
	now        func() time.Time
}

// OpenPostgres opens a pgx-backed database handle for dsn.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, now: time.Now}
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+documentsTable+` (
    website_id TEXT NOT NULL,
    path TEXT NOT NULL,
    content BYTEA NOT NULL DEFAULT ''::bytea,
    size BIGINT NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (website_id, path)
);
`)
	})
	return s.schemaErr
}

func upsertQuery(websiteID, path string, content []byte, at time.Time) (string, []any, error) {
	return psql.Insert(documentsTable).
		Columns("website_id", "path", "content", "size", "updated_at").
		Values(websiteID, path, content, int64(len(content)), at).
		Suffix("ON CONFLICT (website_id, path) DO UPDATE SET content = EXCLUDED.content, size = EXCLUDED.size, updated_at = EXCLUDED.updated_at").
		ToSql()
}

func getQuery(websiteID, path string) (string, []any, error) {
	return psql.Select("content").
		From(documentsTable).
		Where(sq.Eq{"website_id": websiteID, "path": path}).
		ToSql()
}

func listQuery(websiteID string) (string, []any, error) {
	return psql.Select("path").
		From(documentsTable).
		Where(sq.Eq{"website_id": websiteID}).
		OrderBy("path").
		ToSql()
}

func (s *PostgresStore) Put(ctx context.Context, websiteID, path string, content []byte) error {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	query, args, err := upsertQuery(websiteID, path, content, s.now())
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, websiteID, path string) ([]byte, error) {
	websiteID, path, err := normalizeKey(websiteID, path)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args, err := getQuery(websiteID, path)
	if err != nil {
		return nil, err
	}
	var content []byte
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return content, err
}

func (s *PostgresStore) List(ctx context.Context, websiteID string) ([]string, error) {
	websiteID = strings.TrimSpace(websiteID)
	if websiteID == "" {
		return nil, fmt.Errorf("website_id is required")
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	query, args, err := listQuery(websiteID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}
