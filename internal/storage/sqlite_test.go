package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func openTestStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	s, err := OpenSQLite(":memory:", opts...)
	if err != nil {
		t.Fatalf("OpenSQLite(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	runContract(t, openTestStore(t))
}

// TestMigrationsIdempotent opens the same database twice and verifies no
// migration is re-applied.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
	if len(v1) == 0 || v1[0] != 1 {
		t.Errorf("applied migrations = %v, want [1 ...]", v1)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s1, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s1.Set(ctx, CollectionCache, "brand_acme_corp", json.RawMessage(`{"x":true}`)); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := OpenSQLite(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	doc, err := s2.Get(ctx, CollectionCache, "brand_acme_corp")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(doc.Data) != `{"x":true}` {
		t.Errorf("data = %s", doc.Data)
	}
}

// TestSQLiteTimestampPrecision verifies sub-second timestamps survive the
// text round trip.
func TestSQLiteTimestampPrecision(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	s := openTestStore(t, WithClock(&fakeClock{now: at}))
	ctx := context.Background()

	if _, err := s.Set(ctx, CollectionCache, "k", json.RawMessage(`{}`)); err != nil {
		t.Fatal(err)
	}
	doc, err := s.Get(ctx, CollectionCache, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !doc.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt = %v, want %v", doc.UpdatedAt, at)
	}
}
