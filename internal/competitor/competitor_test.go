package competitor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/engine"
	"github.com/brandflow/brandflow/internal/flow"
	"github.com/brandflow/brandflow/internal/scrape"
	"github.com/brandflow/brandflow/internal/storage"
)

var tracked = []catalog.Competitor{
	{Name: "Globex", URL: "https://globex.example/pricing"},
	{Name: "Initech"},
}

type stubEngine struct {
	mu      sync.Mutex
	text    string
	prompts []string
}

func (s *stubEngine) Name() string { return "stub" }

func (s *stubEngine) IsRunning(context.Context) bool { return true }

func (s *stubEngine) Generate(_ context.Context, req engine.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, req.Prompt)
	return s.text, nil
}

type stubFetcher struct {
	calls   int
	targets []scrape.Target
}

func (f *stubFetcher) FetchAll(_ context.Context, targets []scrape.Target) ([]scrape.Page, error) {
	f.calls++
	f.targets = targets
	pages := make([]scrape.Page, len(targets))
	for i, t := range targets {
		pages[i] = scrape.Page{Name: t.Name, URL: t.URL, Text: "Starter plan now $59/mo"}
	}
	return pages, nil
}

func newFlow(eng engine.Engine, fetcher PageFetcher, comps []catalog.Competitor) *flow.Flow[Input, Report] {
	return flow.New(Definition(comps, fetcher), flow.Settings{
		Enabled:         true,
		Temperature:     0.4,
		MaxOutputTokens: 2048,
		CacheTTL:        6 * time.Hour,
	}, flow.Deps{Engine: eng, Store: storage.NewMemory()})
}

func TestCacheKey(t *testing.T) {
	k, err := CacheKey(Input{})
	require.NoError(t, err)
	assert.Equal(t, "competitors_quick", k)

	k, err = CacheKey(Input{CheckType: CheckFull})
	require.NoError(t, err)
	assert.Equal(t, "competitors_full", k)

	k, err = CacheKey(Input{Competitors: []string{"Initech", " acme  Corp", "initech"}})
	require.NoError(t, err)
	assert.Equal(t, "competitors_quick_acme_corp,initech", k)

	same, err := CacheKey(Input{CheckType: CheckQuick, Competitors: []string{"ACME CORP", "Initech"}})
	require.NoError(t, err)
	assert.Equal(t, k, same)

	many := make([]string, maxCompetitors)
	for i := range many {
		many[i] = strings.Repeat("x", 30) + string(rune('a'+i))
	}
	long, err := CacheKey(Input{Competitors: many})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(long, "competitors_quick_"))
	assert.LessOrEqual(t, len(long), cache.MaxKeyLength)
}

func TestExplicitCompetitorsGetTheirOwnReport(t *testing.T) {
	eng := &stubEngine{text: `{"changes":[],"summary":"Nothing new.","actionRequired":false}`}
	f := newFlow(eng, nil, tracked)
	ctx := context.Background()

	_, err := f.Run(ctx, Input{Competitors: []string{"Globex"}})
	require.NoError(t, err)
	res, err := f.Run(ctx, Input{Competitors: []string{"Initech"}})
	require.NoError(t, err)
	assert.False(t, res.CacheHit)
	require.Len(t, eng.prompts, 2)
	assert.Contains(t, eng.prompts[1], "**Competitors:** Initech")

	res, err = f.Run(ctx, Input{Competitors: []string{"initech"}})
	require.NoError(t, err)
	assert.True(t, res.CacheHit)
	assert.Len(t, eng.prompts, 2)
}

func TestValidate(t *testing.T) {
	w := &watch{tracked: tracked}
	assert.NoError(t, w.validate(Input{}))
	assert.NoError(t, w.validate(Input{CheckType: CheckFull, Competitors: []string{"Hooli"}}))
	assert.Error(t, w.validate(Input{CheckType: "deep"}))
	assert.Error(t, w.validate(Input{Competitors: []string{" "}}))

	untracked := &watch{}
	err := untracked.validate(Input{})
	require.Error(t, err)
	assert.True(t, flow.IsValidation(err))
}

func TestQuickCheckUsesTrackedNamesWithoutFetching(t *testing.T) {
	eng := &stubEngine{text: `{"changes":[],"summary":"Quiet week.","actionRequired":false}`}
	fetcher := &stubFetcher{}
	res, err := newFlow(eng, fetcher, tracked).Run(context.Background(), Input{})
	require.NoError(t, err)

	assert.Equal(t, "Quiet week.", res.Output.Summary)
	assert.Zero(t, fetcher.calls)
	require.Len(t, eng.prompts, 1)
	assert.Contains(t, eng.prompts[0], "**Competitors:** Globex, Initech")
	assert.Contains(t, eng.prompts[0], "No page content is available")
}

func TestFullCheckFetchesTrackedPagesOnce(t *testing.T) {
	eng := &stubEngine{text: `{"changes":[{"competitor":"Globex","changeType":"Pricing","description":"Starter up to $59","severity":"HIGH"}],"summary":"Globex raised prices."}`}
	fetcher := &stubFetcher{}
	f := newFlow(eng, fetcher, tracked)

	res, err := f.Run(context.Background(), Input{CheckType: CheckFull})
	require.NoError(t, err)
	assert.Equal(t, []scrape.Target{{Name: "Globex", URL: "https://globex.example/pricing"}}, fetcher.targets)
	assert.Contains(t, eng.prompts[0], "Starter plan now $59/mo")

	require.Len(t, res.Output.Changes, 1)
	assert.Equal(t, "pricing", res.Output.Changes[0].ChangeType)
	assert.Equal(t, "high", res.Output.Changes[0].Severity)
	assert.True(t, res.Output.ActionRequired)

	again, err := f.Run(context.Background(), Input{CheckType: CheckFull})
	require.NoError(t, err)
	assert.True(t, again.CacheHit)
	assert.Equal(t, 1, fetcher.calls)
}

func TestFinalizeDropsUnknownChangeTypes(t *testing.T) {
	out := Report{Changes: []Change{
		{Competitor: "A", ChangeType: "rumor", Severity: "high"},
		{Competitor: "B", ChangeType: "design", Severity: "urgent"},
	}}
	Finalize(&out, Input{})
	require.Len(t, out.Changes, 1)
	assert.Equal(t, "B", out.Changes[0].Competitor)
	assert.Equal(t, "low", out.Changes[0].Severity)
	assert.False(t, out.ActionRequired)
}

func TestFallback(t *testing.T) {
	eng := &stubEngine{text: "The competitors look fine to me."}
	res, err := newFlow(eng, nil, tracked).Run(context.Background(), Input{CheckType: CheckFull})
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Empty(t, res.Output.Changes)
	assert.NotNil(t, res.Output.Changes)
	assert.False(t, res.Output.ActionRequired)
	assert.True(t, strings.HasPrefix(res.Output.Summary, "Competitor check could not be completed"))
	assert.Equal(t, flow.FallbackConfidence, res.Output.Confidence)
}
