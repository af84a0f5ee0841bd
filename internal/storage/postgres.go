package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS documents (
    collection TEXT        NOT NULL,
    key        TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    seq        BIGSERIAL,
    PRIMARY KEY (collection, key)
);
CREATE INDEX IF NOT EXISTS idx_documents_collection_updated
    ON documents (collection, updated_at DESC, seq DESC);
`

// PostgresStore is a DocumentStore on PostgreSQL. Documents are JSONB and
// timestamps come from the database server clock.
type PostgresStore struct {
	db *pgxpool.Pool
}

var _ DocumentStore = (*PostgresStore)(nil)

// OpenPostgres connects to dsn and creates the documents table if needed.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := NewPostgres(pool)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// EnsureSchema creates the documents table and index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating documents schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var (
		data      []byte
		updatedAt time.Time
	)
	err := s.db.QueryRow(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = $1 AND key = $2`,
		collection, key,
	).Scan(&data, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting %s/%s: %w", collection, key, err)
	}
	return Document{Collection: collection, Key: key, Data: json.RawMessage(data), UpdatedAt: updatedAt.UTC()}, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, key string, data json.RawMessage) (Document, error) {
	if err := validateAddress(collection, key); err != nil {
		return Document{}, err
	}
	if err := validateData(data); err != nil {
		return Document{}, err
	}
	var updatedAt time.Time
	err := s.db.QueryRow(ctx,
		`INSERT INTO documents (collection, key, data, updated_at) VALUES ($1, $2, $3::jsonb, now())
		 ON CONFLICT (collection, key) DO UPDATE
		 SET data = EXCLUDED.data, updated_at = now(), seq = nextval(pg_get_serial_sequence('documents', 'seq'))
		 RETURNING updated_at`,
		collection, key, string(data),
	).Scan(&updatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("setting %s/%s: %w", collection, key, err)
	}
	return Document{Collection: collection, Key: key, Data: data, UpdatedAt: updatedAt.UTC()}, nil
}

func (s *PostgresStore) Append(ctx context.Context, collection string, data json.RawMessage) (Document, error) {
	return s.Set(ctx, collection, uuid.New().String(), data)
}

func (s *PostgresStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT key, data, updated_at FROM documents WHERE collection = $1
		 ORDER BY updated_at DESC, seq DESC LIMIT $2`,
		collection, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var (
			key       string
			data      []byte
			updatedAt time.Time
		)
		if err := rows.Scan(&key, &data, &updatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, Document{Collection: collection, Key: key, Data: json.RawMessage(data), UpdatedAt: updatedAt.UTC()})
	}
	return docs, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, collection, key string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND key = $2`, collection, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
