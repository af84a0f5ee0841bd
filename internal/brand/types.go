package brand

import "github.com/brandflow/brandflow/internal/flow"

// Input describes the company to position.
type Input struct {
	CompanyName        string   `json:"companyName"`
	Industry           string   `json:"industry"`
	TargetAudience     string   `json:"targetAudience"`
	CurrentPositioning string   `json:"currentPositioning,omitempty"`
	Competitors        []string `json:"competitors,omitempty"`
	UniqueStrengths    []string `json:"uniqueStrengths,omitempty"`
	BusinessGoals      string   `json:"businessGoals,omitempty"`
}

// Pillar is one brand pillar with supporting evidence.
type Pillar struct {
	Pillar      string   `json:"pillar"`
	Description string   `json:"description"`
	ProofPoints []string `json:"proofPoints"`
}

// Persona is a target buyer persona.
type Persona struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PainPoints  []string `json:"painPoints"`
	Motivations []string `json:"motivations"`
}

// MessagingFramework is the headline hierarchy.
type MessagingFramework struct {
	Headline     string   `json:"headline"`
	Subheadline  string   `json:"subheadline"`
	KeyMessages  []string `json:"keyMessages"`
	CallToAction string   `json:"callToAction"`
}

// ToneOfVoice is the voice guide.
type ToneOfVoice struct {
	Attributes   []string `json:"attributes"`
	DoExamples   []string `json:"doExamples"`
	DontExamples []string `json:"dontExamples"`
}

// Positioning is the brand-positioning output.
type Positioning struct {
	PositioningStatement       string             `json:"positioningStatement"`
	ValueProposition           string             `json:"valueProposition"`
	BrandPillars               []Pillar           `json:"brandPillars"`
	TargetPersonas             []Persona          `json:"targetPersonas"`
	CompetitiveDifferentiators []string           `json:"competitiveDifferentiators"`
	MessagingFramework         MessagingFramework `json:"messagingFramework"`
	ToneOfVoice                ToneOfVoice        `json:"toneOfVoice"`
	flow.Meta
}
