package api

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/engine"
	"github.com/brandflow/brandflow/internal/flow"
	"github.com/brandflow/brandflow/internal/storage"
)

// fakeEngine answers by the first prompt substring it matches.
type fakeEngine struct {
	mu      sync.Mutex
	answers map[string]string
	err     error
	calls   int
}

func (e *fakeEngine) Name() string { return "fake" }

func (e *fakeEngine) IsRunning(context.Context) bool { return true }

func (e *fakeEngine) Generate(_ context.Context, req engine.Request) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.err != nil {
		return "", e.err
	}
	for marker, answer := range e.answers {
		if strings.Contains(req.Prompt, marker) {
			return answer, nil
		}
	}
	return "", errors.New("fakeEngine: no answer for prompt")
}

func (e *fakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("loading catalog: %v", err)
	}
	cat.Competitors = []catalog.Competitor{{Name: "Globex"}}
	return cat
}

func newTestFlows(t *testing.T, eng engine.Engine) (*Flows, *catalog.Catalog, storage.DocumentStore) {
	t.Helper()
	cat := testCatalog(t)
	store := storage.NewMemory()
	flows := NewFlows(cat, "test-model", flow.Deps{Engine: eng, Store: store}, nil)
	return flows, cat, store
}
