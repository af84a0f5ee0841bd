package api

import (
	"github.com/brandflow/brandflow/internal/brand"
	"github.com/brandflow/brandflow/internal/catalog"
	"github.com/brandflow/brandflow/internal/chatbot"
	"github.com/brandflow/brandflow/internal/competitor"
	"github.com/brandflow/brandflow/internal/content"
	"github.com/brandflow/brandflow/internal/flow"
)

// Flows are the runnable flows served over HTTP and MCP.
type Flows struct {
	Brand      *flow.Flow[brand.Input, brand.Positioning]
	Chatbot    *flow.Flow[chatbot.Input, chatbot.Reply]
	Content    *flow.Flow[content.Input, content.Drafts]
	Competitor *flow.Flow[competitor.Input, competitor.Report]
}

// NewFlows builds every flow from the catalog. fetcher may be nil, in which
// case full competitor checks skip page fetching.
func NewFlows(cat *catalog.Catalog, defaultModel string, deps flow.Deps, fetcher competitor.PageFetcher) *Flows {
	return &Flows{
		Brand:      flow.New(brand.Definition(), cat.Settings(brand.Name, defaultModel), deps),
		Chatbot:    flow.New(chatbot.Definition(), cat.Settings(chatbot.Name, defaultModel), deps),
		Content:    flow.New(content.Definition(), cat.Settings(content.Name, defaultModel), deps),
		Competitor: flow.New(competitor.Definition(cat.Competitors, fetcher), cat.Settings(competitor.Name, defaultModel), deps),
	}
}
