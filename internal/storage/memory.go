package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process DocumentStore. It backs tests and the
// "memory" storage backend; contents are lost on exit.
type MemoryStore struct {
	mu    sync.RWMutex
	clock Clock
	seq   uint64
	docs  map[string]map[string]memoryDoc
}

type memoryDoc struct {
	Document
	seq uint64
}

var _ DocumentStore = (*MemoryStore)(nil)

// NewMemory returns an empty MemoryStore.
func NewMemory(opts ...Option) *MemoryStore {
	o := buildOptions(opts)
	return &MemoryStore{clock: o.clock, docs: make(map[string]map[string]memoryDoc)}
}

func (m *MemoryStore) Get(_ context.Context, collection, key string) (Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.docs[collection][key]
	if !ok {
		return Document{}, ErrNotFound
	}
	return copyDoc(d.Document), nil
}

func (m *MemoryStore) Set(_ context.Context, collection, key string, data json.RawMessage) (Document, error) {
	if err := validateAddress(collection, key); err != nil {
		return Document{}, err
	}
	if err := validateData(data); err != nil {
		return Document{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.docs[collection]
	if !ok {
		c = make(map[string]memoryDoc)
		m.docs[collection] = c
	}
	m.seq++
	doc := Document{
		Collection: collection,
		Key:        key,
		Data:       append(json.RawMessage(nil), data...),
		UpdatedAt:  m.clock.Now().UTC(),
	}
	c[key] = memoryDoc{Document: doc, seq: m.seq}
	return copyDoc(doc), nil
}

func (m *MemoryStore) Append(ctx context.Context, collection string, data json.RawMessage) (Document, error) {
	return m.Set(ctx, collection, uuid.New().String(), data)
}

func (m *MemoryStore) List(_ context.Context, collection string, limit int) ([]Document, error) {
	m.mu.RLock()
	all := make([]memoryDoc, 0, len(m.docs[collection]))
	for _, d := range m.docs[collection] {
		all = append(all, d)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].seq > all[j].seq
	})
	limit = normalizeLimit(limit)
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]Document, len(all))
	for i, d := range all {
		out[i] = copyDoc(d.Document)
	}
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[collection][key]; !ok {
		return ErrNotFound
	}
	delete(m.docs[collection], key)
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }

func copyDoc(d Document) Document {
	d.Data = append(json.RawMessage(nil), d.Data...)
	return d
}
