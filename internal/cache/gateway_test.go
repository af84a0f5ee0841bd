package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandflow/brandflow/internal/storage"
)

type mockClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mockClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

type failingStore struct {
	storage.DocumentStore
	err error
}

func (f failingStore) Get(context.Context, string, string) (storage.Document, error) {
	return storage.Document{}, f.err
}

const week = 7 * 24 * time.Hour

func newTestGateway(t *testing.T) (*Gateway, *mockClock) {
	t.Helper()
	clock := &mockClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	store := storage.NewMemory(storage.WithClock(clock))
	return New(store, week, clock), clock
}

func TestLookupMiss(t *testing.T) {
	g, _ := newTestGateway(t)
	_, hit, err := g.Lookup(context.Background(), "brand_acme_corp")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestStoreThenLookup(t *testing.T) {
	g, clock := newTestGateway(t)
	ctx := context.Background()

	written, err := g.Store(ctx, "brand_acme_corp", map[string]string{"positioningStatement": "x"}, map[string]string{"companyName": "Acme Corp"})
	require.NoError(t, err)
	assert.Equal(t, clock.Now(), written.CachedAt)

	e, hit, err := g.Lookup(ctx, "brand_acme_corp")
	require.NoError(t, err)
	require.True(t, hit)
	assert.JSONEq(t, `{"positioningStatement":"x"}`, string(e.Payload))
	assert.JSONEq(t, `{"companyName":"Acme Corp"}`, string(e.Input))
}

func TestFreshnessBoundary(t *testing.T) {
	g, clock := newTestGateway(t)
	ctx := context.Background()
	written := clock.Now()

	_, err := g.Store(ctx, "brand_acme_corp", map[string]int{"v": 1}, nil)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		hit  bool
	}{
		{"just written", written, true},
		{"ttl minus 1ms", written.Add(week - time.Millisecond), true},
		{"exactly ttl", written.Add(week), false},
		{"ttl plus 1ms", written.Add(week + time.Millisecond), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock.Set(tt.at)
			_, hit, err := g.Lookup(ctx, "brand_acme_corp")
			require.NoError(t, err)
			assert.Equal(t, tt.hit, hit)
		})
	}
}

func TestStaleEntryNotDeleted(t *testing.T) {
	g, clock := newTestGateway(t)
	ctx := context.Background()
	start := clock.Now()

	_, err := g.Store(ctx, "k", map[string]int{"v": 1}, nil)
	require.NoError(t, err)

	clock.Set(start.Add(2 * week))
	_, hit, err := g.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)

	e, err := g.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, start, e.CachedAt)

	// The next store overwrites and refreshes the timestamp.
	_, err = g.Store(ctx, "k", map[string]int{"v": 2}, nil)
	require.NoError(t, err)
	e, hit, err = g.Lookup(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.JSONEq(t, `{"v":2}`, string(e.Payload))
}

func TestLookupReadError(t *testing.T) {
	boom := errors.New("connection reset")
	g := New(failingStore{err: boom}, week, nil)
	_, _, err := g.Lookup(context.Background(), "k")
	assert.ErrorIs(t, err, boom)
}

func TestPurge(t *testing.T) {
	g, _ := newTestGateway(t)
	ctx := context.Background()
	_, err := g.Store(ctx, "k", json.RawMessage(`{}`), nil)
	require.NoError(t, err)

	require.NoError(t, g.Purge(ctx, "k"))
	_, err = g.Get(ctx, "k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
