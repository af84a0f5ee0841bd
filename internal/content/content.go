// Package content is the content-drafter flow: platform-specific social and
// email drafts for a topic, generated on demand.
package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/brandflow/brandflow/internal/flow"
)

// Name is the flow name.
const Name = "content-drafter"

// Supported platforms.
const (
	LinkedIn  = "linkedin"
	Twitter   = "twitter"
	Email     = "email"
	Blog      = "blog"
	Instagram = "instagram"
)

// DefaultTone is used when the request leaves tone empty.
const DefaultTone = "professional"

const maxTopicLen = 500

// platformGuides hold the per-platform writing constraints given to the
// model.
var platformGuides = map[string]string{
	LinkedIn:  "LinkedIn post, up to 1300 characters, short paragraphs, 3-5 hashtags",
	Twitter:   "X/Twitter post, at most 280 characters including hashtags, 1-2 hashtags",
	Email:     "marketing email body with a subject line on the first line, no hashtags",
	Blog:      "blog post introduction of 2-3 paragraphs, no hashtags",
	Instagram: "Instagram caption, up to 2200 characters, 5-10 hashtags",
}

// Input asks for drafts on a topic.
type Input struct {
	Topic     string   `json:"topic"`
	Platforms []string `json:"platforms,omitempty"`
	Tone      string   `json:"tone,omitempty"`
}

// Draft is one platform's copy.
type Draft struct {
	Platform       string   `json:"platform"`
	Content        string   `json:"content"`
	Hashtags       []string `json:"hashtags"`
	CharacterCount int      `json:"characterCount"`
}

// Brief summarises the campaign the drafts belong to.
type Brief struct {
	Headline       string   `json:"headline"`
	KeyMessages    []string `json:"keyMessages"`
	TargetAudience string   `json:"targetAudience"`
	CallToAction   string   `json:"callToAction"`
}

// Drafts is the content-drafter output.
type Drafts struct {
	Drafts []Draft `json:"drafts"`
	Brief  Brief   `json:"brief"`
	flow.Meta
}

// Definition returns the content-drafter flow definition.
func Definition() flow.Definition[Input, Drafts] {
	return flow.Definition[Input, Drafts]{
		Name:        Name,
		Validate:    Validate,
		BuildPrompt: BuildPrompt,
		Fallback:    Fallback,
		Finalize:    Finalize,
	}
}

// Validate checks the topic and platform list.
func Validate(in Input) error {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return flow.Invalid("topic is required")
	}
	if utf8.RuneCountInString(topic) > maxTopicLen {
		return flow.Invalid("topic exceeds %d characters", maxTopicLen)
	}
	seen := make(map[string]bool, len(in.Platforms))
	for _, p := range in.Platforms {
		if _, ok := platformGuides[p]; !ok {
			return flow.Invalid("unsupported platform %q", p)
		}
		if seen[p] {
			return flow.Invalid("duplicate platform %q", p)
		}
		seen[p] = true
	}
	return nil
}

// platforms returns the requested platforms, defaulting to LinkedIn.
func (in Input) platforms() []string {
	if len(in.Platforms) == 0 {
		return []string{LinkedIn}
	}
	return in.Platforms
}

func (in Input) tone() string {
	if t := strings.TrimSpace(in.Tone); t != "" {
		return t
	}
	return DefaultTone
}

// BuildPrompt asks for one draft per platform plus a brief, as JSON.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a B2B content marketer. Write ready-to-publish drafts on the topic below.\n\n")
	fmt.Fprintf(&b, "**Topic:** %s\n", strings.TrimSpace(in.Topic))
	fmt.Fprintf(&b, "**Tone:** %s\n\n", in.tone())
	b.WriteString("Write exactly one draft for each platform:\n")
	for _, p := range in.platforms() {
		fmt.Fprintf(&b, "- %s: %s\n", p, platformGuides[p])
	}
	b.WriteString(`
Respond with a JSON object with exactly this structure:
{
  "drafts": [
    {"platform": "linkedin", "content": "Draft text", "hashtags": ["#tag"], "characterCount": 0}
  ],
  "brief": {
    "headline": "Campaign headline",
    "keyMessages": ["Message 1", "Message 2"],
    "targetAudience": "Who this is for",
    "callToAction": "What the reader should do"
  }
}

Hashtags go in the hashtags array, not in content. Return ONLY the JSON object, with no markdown fences or commentary.`)
	return b.String()
}

// Finalize drops drafts for platforms that were not requested and
// recomputes character counts, which models get wrong.
func Finalize(out *Drafts, in Input) {
	want := make(map[string]bool)
	for _, p := range in.platforms() {
		want[p] = true
	}
	kept := make([]Draft, 0, len(out.Drafts))
	for _, d := range out.Drafts {
		if !want[d.Platform] {
			continue
		}
		if d.Hashtags == nil {
			d.Hashtags = []string{}
		}
		d.CharacterCount = utf8.RuneCountInString(d.Content)
		kept = append(kept, d)
	}
	out.Drafts = kept
}

// Fallback writes a plain announcement per platform.
func Fallback(in Input) Drafts {
	topic := strings.TrimSpace(in.Topic)
	drafts := make([]Draft, 0, len(in.platforms()))
	for _, p := range in.platforms() {
		drafts = append(drafts, Draft{
			Platform: p,
			Content:  fmt.Sprintf("We have been thinking a lot about %s. More from our team soon.", topic),
			Hashtags: []string{},
		})
	}
	return Drafts{
		Drafts: drafts,
		Brief: Brief{
			Headline:     topic,
			KeyMessages:  []string{},
			CallToAction: "Learn More",
		},
	}
}
