package engine

// Request carries the prompt and the fixed sampling parameters of one flow.
type Request struct {
	Model           string
	Prompt          string
	Temperature     float32
	MaxOutputTokens int
	// JSON asks backends that support it to constrain output to JSON.
	JSON bool
}
