// Package competitor is the competitor-watch flow. A quick check asks the
// model about the named competitors; a full check also fetches their
// tracked pages. Reports are cached per check type for six hours.
package competitor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/flow"
	"github.com/brandflow/brandflow/internal/scrape"
)

// Name is the flow name.
const Name = "competitor-watch"

// KeyPrefix prefixes cache keys: competitors_quick and competitors_full for
// the tracked list, competitors_quick_globex,initech for an explicit one.
const KeyPrefix = "competitors"

// Check types.
const (
	CheckQuick = "quick"
	CheckFull  = "full"
)

// Change severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const maxCompetitors = 20

// FallbackSummary is reported when the model output cannot be used.
const FallbackSummary = "Competitor check could not be completed. No changes were recorded."

var (
	changeTypes = map[string]bool{"pricing": true, "messaging": true, "features": true, "design": true, "content": true}
	severities  = map[string]bool{SeverityLow: true, SeverityMedium: true, SeverityHigh: true}
)

// Input selects the check. Competitors defaults to the tracked list.
type Input struct {
	CheckType   string   `json:"checkType,omitempty"`
	Competitors []string `json:"competitors,omitempty"`

	// Pages holds fetched page text for a full check.
	Pages []scrape.Page `json:"-"`
}

// Change is one detected competitor change.
type Change struct {
	Competitor  string `json:"competitor"`
	ChangeType  string `json:"changeType"`
	Description string `json:"description"`
	Severity    string `json:"severity"`
	DetectedAt  string `json:"detectedAt"`
}

// Report is the competitor-watch output.
type Report struct {
	Changes        []Change `json:"changes"`
	Summary        string   `json:"summary"`
	ActionRequired bool     `json:"actionRequired"`
	flow.Meta
}

// PageFetcher fetches competitor pages for full checks.
type PageFetcher interface {
	FetchAll(ctx context.Context, targets []scrape.Target) ([]scrape.Page, error)
}

type watch struct {
	tracked []catalog.Competitor
	fetcher PageFetcher
}

// Definition returns the competitor-watch definition over the tracked
// competitors. A nil fetcher turns full checks into quick ones.
func Definition(tracked []catalog.Competitor, fetcher PageFetcher) flow.Definition[Input, Report] {
	w := &watch{tracked: tracked, fetcher: fetcher}
	return flow.Definition[Input, Report]{
		Name:        Name,
		Validate:    w.validate,
		CacheKey:    CacheKey,
		Enrich:      w.enrich,
		BuildPrompt: BuildPrompt,
		Fallback:    Fallback,
		Finalize:    Finalize,
	}
}

func checkType(in Input) string {
	if in.CheckType == "" {
		return CheckQuick
	}
	return in.CheckType
}

func (w *watch) validate(in Input) error {
	switch in.CheckType {
	case "", CheckQuick, CheckFull:
	default:
		return flow.Invalid("checkType must be %q or %q, got %q", CheckQuick, CheckFull, in.CheckType)
	}
	if len(in.Competitors) > maxCompetitors {
		return flow.Invalid("at most %d competitors are allowed", maxCompetitors)
	}
	for i, c := range in.Competitors {
		if strings.TrimSpace(c) == "" {
			return flow.Invalid("competitors[%d] is empty", i)
		}
	}
	if len(in.Competitors) == 0 && len(w.tracked) == 0 {
		return flow.Invalid("no competitors given and none are tracked")
	}
	return nil
}

// CacheKey keys on the check type, plus the normalized competitor set when
// the caller names competitors. Sets too long for a readable key are keyed
// by digest.
func CacheKey(in Input) (string, error) {
	names := competitorSet(in.Competitors)
	if len(names) == 0 {
		return cache.Key(KeyPrefix, checkType(in))
	}
	key, err := cache.Key(KeyPrefix, checkType(in)+" "+strings.Join(names, ","))
	if err == nil {
		return key, nil
	}
	sum := sha256.Sum256([]byte(strings.Join(names, "\n")))
	return cache.Key(KeyPrefix, checkType(in)+" "+hex.EncodeToString(sum[:12]))
}

// competitorSet lowercases, collapses whitespace, sorts and dedupes names.
func competitorSet(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.Join(strings.Fields(strings.ToLower(n)), " "); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (w *watch) enrich(ctx context.Context, in Input) (Input, error) {
	in.CheckType = checkType(in)
	if len(in.Competitors) == 0 {
		for _, c := range w.tracked {
			in.Competitors = append(in.Competitors, c.Name)
		}
	}
	if in.CheckType != CheckFull || w.fetcher == nil {
		return in, nil
	}

	wanted := make(map[string]bool, len(in.Competitors))
	for _, c := range in.Competitors {
		wanted[strings.ToLower(strings.TrimSpace(c))] = true
	}
	var targets []scrape.Target
	for _, c := range w.tracked {
		if c.URL != "" && wanted[strings.ToLower(c.Name)] {
			targets = append(targets, scrape.Target{Name: c.Name, URL: c.URL})
		}
	}
	if len(targets) == 0 {
		return in, nil
	}
	pages, err := w.fetcher.FetchAll(ctx, targets)
	if err != nil {
		return in, fmt.Errorf("fetching competitor pages: %w", err)
	}
	in.Pages = pages
	return in, nil
}

// BuildPrompt asks for a JSON change report.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a competitive intelligence analyst for a B2B marketing team.\n\n")
	fmt.Fprintf(&b, "**Check Type:** %s\n", checkType(in))
	fmt.Fprintf(&b, "**Competitors:** %s\n", strings.Join(in.Competitors, ", "))

	var fetched int
	for _, p := range in.Pages {
		if p.Err != nil || p.Text == "" {
			continue
		}
		if fetched == 0 {
			b.WriteString("\nCurrent page content:\n")
		}
		fetched++
		fmt.Fprintf(&b, "\n--- %s (%s) ---\n%s\n", p.Name, p.URL, p.Text)
		if p.Truncated {
			b.WriteString("[truncated]\n")
		}
	}
	if fetched == 0 {
		b.WriteString("\nNo page content is available; report only changes you are confident about.\n")
	}

	b.WriteString(`
Identify notable changes in pricing, messaging, features, design or content. Respond with a JSON object with exactly this structure:
{
  "changes": [
    {"competitor": "Name", "changeType": "pricing|messaging|features|design|content", "description": "What changed", "severity": "low|medium|high", "detectedAt": "ISO-8601 timestamp"}
  ],
  "summary": "Two or three sentence overview",
  "actionRequired": false
}

Use an empty changes array when nothing notable changed. Return ONLY the JSON object, with no markdown fences or commentary.`)
	return b.String()
}

// Finalize drops changes with an unknown type, defaults unknown severities
// to low, and requires action whenever a high-severity change is present.
func Finalize(out *Report, _ Input) {
	kept := make([]Change, 0, len(out.Changes))
	for _, c := range out.Changes {
		c.ChangeType = strings.ToLower(strings.TrimSpace(c.ChangeType))
		if !changeTypes[c.ChangeType] {
			continue
		}
		c.Severity = strings.ToLower(strings.TrimSpace(c.Severity))
		if !severities[c.Severity] {
			c.Severity = SeverityLow
		}
		if c.Severity == SeverityHigh {
			out.ActionRequired = true
		}
		kept = append(kept, c)
	}
	out.Changes = kept
}

// Fallback reports no changes.
func Fallback(Input) Report {
	return Report{Changes: []Change{}, Summary: FallbackSummary}
}
