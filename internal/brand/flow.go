// Package brand is the brand-positioning flow: a 7-day cached strategy
// document per company.
package brand

import (
	"fmt"
	"strings"

	"github.com/brandflow/brandflow/internal/cache"
	"github.com/brandflow/brandflow/internal/flow"
)

// Name is the flow name in the catalog, API and execution log.
const Name = "brand-positioning"

// KeyPrefix prefixes cache keys: "Acme Corp" is cached as "brand_acme_corp".
const KeyPrefix = "brand"

const maxFieldLen = 2000

// Definition returns the brand-positioning flow definition.
func Definition() flow.Definition[Input, Positioning] {
	return flow.Definition[Input, Positioning]{
		Name:        Name,
		Validate:    Validate,
		CacheKey:    CacheKey,
		BuildPrompt: BuildPrompt,
		Fallback:    Fallback,
	}
}

// Validate requires company, industry and audience.
func Validate(in Input) error {
	required := []struct{ name, value string }{
		{"companyName", in.CompanyName},
		{"industry", in.Industry},
		{"targetAudience", in.TargetAudience},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return flow.Invalid("%s is required", r.name)
		}
	}
	for name, v := range map[string]string{
		"companyName":        in.CompanyName,
		"industry":           in.Industry,
		"targetAudience":     in.TargetAudience,
		"currentPositioning": in.CurrentPositioning,
		"businessGoals":      in.BusinessGoals,
	} {
		if len(v) > maxFieldLen {
			return flow.Invalid("%s exceeds %d characters", name, maxFieldLen)
		}
	}
	return nil
}

// CacheKey keys on the company name only.
func CacheKey(in Input) (string, error) {
	return cache.Key(KeyPrefix, in.CompanyName)
}

// Fallback is the templated positioning used when the model output does not
// parse.
func Fallback(in Input) Positioning {
	return Positioning{
		PositioningStatement: fmt.Sprintf("For %s in the %s space, %s delivers exceptional value.",
			in.TargetAudience, in.Industry, in.CompanyName),
		ValueProposition: fmt.Sprintf("%s helps %s achieve their goals.", in.CompanyName, in.TargetAudience),
		BrandPillars: []Pillar{{
			Pillar:      "Quality",
			Description: "Commitment to excellence",
			ProofPoints: []string{"Industry expertise", "Proven results"},
		}},
		TargetPersonas: []Persona{{
			Name:        "Primary Buyer",
			Description: in.TargetAudience,
			PainPoints:  []string{"Needs better solutions"},
			Motivations: []string{"Business growth"},
		}},
		CompetitiveDifferentiators: []string{"Unique approach", "Expert team"},
		MessagingFramework: MessagingFramework{
			Headline:     fmt.Sprintf("%s: Your Partner in %s", in.CompanyName, in.Industry),
			Subheadline:  "Delivering results that matter",
			KeyMessages:  []string{"Trusted expertise", "Proven results"},
			CallToAction: "Get Started Today",
		},
		ToneOfVoice: ToneOfVoice{
			Attributes:   []string{"Professional", "Approachable", "Confident"},
			DoExamples:   []string{"Be clear and direct", "Show empathy"},
			DontExamples: []string{"Use jargon", "Be condescending"},
		},
	}
}
