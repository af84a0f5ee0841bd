package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Collections used by the flow runtime.
const (
	CollectionCache = "cache"
	CollectionFlows = "flows"
)

// Document is a JSON payload addressed by (collection, key). UpdatedAt is
// assigned by the store on every write.
type Document struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Data       json.RawMessage `json:"data"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DocumentStore is the key-value document store behind the cache gateway
// and the execution log. Set overwrites a single document atomically;
// Append stores data under a freshly generated key.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Set(ctx context.Context, collection, key string, data json.RawMessage) (Document, error)
	Append(ctx context.Context, collection string, data json.RawMessage) (Document, error)
	// List returns the newest documents of a collection first.
	List(ctx context.Context, collection string, limit int) ([]Document, error)
	Delete(ctx context.Context, collection, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// Clock supplies the write timestamp for stores that keep their own time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Option configures a store at construction.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock overrides the clock used to stamp documents. Stores backed by
// a database server ignore it and use the server clock.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

const defaultListLimit = 50

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

func validateAddress(collection, key string) error {
	if strings.TrimSpace(collection) == "" {
		return fmt.Errorf("collection must not be empty")
	}
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key must not be empty")
	}
	return nil
}

func validateData(data json.RawMessage) error {
	if !json.Valid(data) {
		return fmt.Errorf("document data is not valid JSON")
	}
	return nil
}
