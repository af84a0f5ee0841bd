package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout keeps sub-second precision so TTL comparisons stay exact and
// lexical order matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the embedded DocumentStore used by single-node deployments.
type SQLiteStore struct {
	db    *sql.DB
	clock Clock
}

var _ DocumentStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) brandflow.db in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database.
func OpenSQLite(dataDir string, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)

	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "brandflow.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// One connection: SQLite serializes writers anyway, and :memory: databases
	// are per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db, clock: o.clock}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate applies embedded SQL migrations that have not been recorded in
// schema_version, in filename order.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}
	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// Get returns the document stored under (collection, key).
func (s *SQLiteStore) Get(ctx context.Context, collection, key string) (Document, error) {
	var data, updatedAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT data, updated_at FROM documents WHERE collection = ? AND key = ?`,
		collection, key,
	).Scan(&data, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("getting %s/%s: %w", collection, key, err)
	}
	t, err := time.Parse(timeLayout, updatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing updated_at for %s/%s: %w", collection, key, err)
	}
	return Document{Collection: collection, Key: key, Data: json.RawMessage(data), UpdatedAt: t}, nil
}

// Set overwrites the document under (collection, key).
func (s *SQLiteStore) Set(ctx context.Context, collection, key string, data json.RawMessage) (Document, error) {
	if err := validateAddress(collection, key); err != nil {
		return Document{}, err
	}
	if err := validateData(data); err != nil {
		return Document{}, err
	}
	now := s.clock.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(collection, key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		collection, key, string(data), now.Format(timeLayout),
	)
	if err != nil {
		return Document{}, fmt.Errorf("setting %s/%s: %w", collection, key, err)
	}
	return Document{Collection: collection, Key: key, Data: data, UpdatedAt: now}, nil
}

// Append stores data under a new random key.
func (s *SQLiteStore) Append(ctx context.Context, collection string, data json.RawMessage) (Document, error) {
	return s.Set(ctx, collection, uuid.New().String(), data)
}

// List returns up to limit documents, newest first.
func (s *SQLiteStore) List(ctx context.Context, collection string, limit int) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, data, updated_at FROM documents WHERE collection = ?
		 ORDER BY updated_at DESC, rowid DESC LIMIT ?`,
		collection, normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var key, data, updatedAt string
		if err := rows.Scan(&key, &data, &updatedAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(timeLayout, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at for %s/%s: %w", collection, key, err)
		}
		docs = append(docs, Document{Collection: collection, Key: key, Data: json.RawMessage(data), UpdatedAt: t})
	}
	return docs, rows.Err()
}

// Delete removes the document under (collection, key).
func (s *SQLiteStore) Delete(ctx context.Context, collection, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key)
	if err != nil {
		return fmt.Errorf("deleting %s/%s: %w", collection, key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
