// Package cache implements the TTL cache in front of flow generation,
// stored as documents in the "cache" collection.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/brandflow/brandflow/internal/storage"
)

// Entry is a cached flow result. CachedAt is the store's write timestamp.
type Entry struct {
	Key      string          `json:"key"`
	Payload  json.RawMessage `json:"payload"`
	Input    json.RawMessage `json:"input,omitempty"`
	CachedAt time.Time       `json:"cachedAt"`
}

// Fresh reports whether the entry is younger than ttl at now. An entry whose
// age equals ttl exactly is stale.
func (e Entry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Before(e.CachedAt.Add(ttl))
}

type document struct {
	Payload json.RawMessage `json:"payload"`
	Input   json.RawMessage `json:"input,omitempty"`
}

// Gateway reads and writes cache entries for one flow.
//
// There is no locking between Lookup and Store: concurrent misses for the
// same key each regenerate and the last Store wins.
type Gateway struct {
	store storage.DocumentStore
	ttl   time.Duration
	clock storage.Clock
}

// New returns a Gateway with the given TTL. A nil clock means wall time.
func New(store storage.DocumentStore, ttl time.Duration, clock storage.Clock) *Gateway {
	if clock == nil {
		clock = storage.SystemClock{}
	}
	return &Gateway{store: store, ttl: ttl, clock: clock}
}

// TTL returns the freshness window.
func (g *Gateway) TTL() time.Duration { return g.ttl }

// Lookup returns the entry under key if it is fresh. Absent and stale
// entries both report a miss; stale entries are left in place.
func (g *Gateway) Lookup(ctx context.Context, key string) (Entry, bool, error) {
	e, err := g.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if !e.Fresh(g.clock.Now(), g.ttl) {
		return Entry{}, false, nil
	}
	return e, true, nil
}

// Get returns the entry under key regardless of age.
func (g *Gateway) Get(ctx context.Context, key string) (Entry, error) {
	doc, err := g.store.Get(ctx, storage.CollectionCache, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("reading cache entry %q: %w", key, err)
	}
	var d document
	if err := json.Unmarshal(doc.Data, &d); err != nil {
		return Entry{}, fmt.Errorf("decoding cache entry %q: %w", key, err)
	}
	return Entry{Key: key, Payload: d.Payload, Input: d.Input, CachedAt: doc.UpdatedAt}, nil
}

// Store overwrites the entry under key.
func (g *Gateway) Store(ctx context.Context, key string, payload, input any) (Entry, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return Entry{}, fmt.Errorf("encoding cache payload: %w", err)
	}
	var in json.RawMessage
	if input != nil {
		if in, err = json.Marshal(input); err != nil {
			return Entry{}, fmt.Errorf("encoding cache input: %w", err)
		}
	}
	data, err := json.Marshal(document{Payload: p, Input: in})
	if err != nil {
		return Entry{}, err
	}
	doc, err := g.store.Set(ctx, storage.CollectionCache, key, data)
	if err != nil {
		return Entry{}, fmt.Errorf("writing cache entry %q: %w", key, err)
	}
	return Entry{Key: key, Payload: p, Input: in, CachedAt: doc.UpdatedAt}, nil
}

// Purge removes the entry under key.
func (g *Gateway) Purge(ctx context.Context, key string) error {
	return g.store.Delete(ctx, storage.CollectionCache, key)
}
