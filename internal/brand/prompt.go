package brand

import (
	"strings"
)

const outputShape = `{
  "positioningStatement": "For [target audience] who [need], [company] is the [category] that [key benefit] because [reason to believe].",
  "valueProposition": "One-sentence value proposition",
  "brandPillars": [
    {"pillar": "Pillar name", "description": "What the pillar means", "proofPoints": ["Evidence 1", "Evidence 2", "Evidence 3"]}
  ],
  "targetPersonas": [
    {"name": "Persona name", "description": "Short description", "painPoints": ["Pain 1", "Pain 2"], "motivations": ["Motivation 1", "Motivation 2"]}
  ],
  "competitiveDifferentiators": ["Differentiator 1", "Differentiator 2", "Differentiator 3"],
  "messagingFramework": {
    "headline": "Main headline",
    "subheadline": "Supporting line",
    "keyMessages": ["Message 1", "Message 2", "Message 3"],
    "callToAction": "Primary call to action"
  },
  "toneOfVoice": {
    "attributes": ["Attribute 1", "Attribute 2", "Attribute 3"],
    "doExamples": ["Do this", "And this"],
    "dontExamples": ["Avoid this", "And this"]
  }
}`

// BuildPrompt renders the brand strategist prompt. Optional fields are
// included only when set.
func BuildPrompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a senior brand strategist. Produce a complete brand positioning for the company below.\n\n")

	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		b.WriteString("**")
		b.WriteString(label)
		b.WriteString(":** ")
		b.WriteString(strings.TrimSpace(value))
		b.WriteString("\n")
	}
	field("Company", in.CompanyName)
	field("Industry", in.Industry)
	field("Target Audience", in.TargetAudience)
	field("Current Positioning", in.CurrentPositioning)
	field("Competitors", joinNonEmpty(in.Competitors))
	field("Unique Strengths", joinNonEmpty(in.UniqueStrengths))
	field("Business Goals", in.BusinessGoals)

	b.WriteString("\nRespond with a JSON object with exactly this structure:\n")
	b.WriteString(outputShape)
	b.WriteString("\n\nInclude 3 brand pillars and 2-3 target personas; every list needs at least 2 items.\n")
	b.WriteString("Return ONLY the JSON object, with no markdown fences or commentary.")
	return b.String()
}

func joinNonEmpty(items []string) string {
	kept := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}
