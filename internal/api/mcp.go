package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/brandflow/brandflow/internal/brand"
	"github.com/brandflow/brandflow/internal/chatbot"
	"github.com/brandflow/brandflow/internal/competitor"
	"github.com/brandflow/brandflow/internal/content"
	"github.com/brandflow/brandflow/internal/flow"
)

// NewMCPServer exposes the flows as MCP tools.
func NewMCPServer(flows *Flows, version string, logger *zap.Logger) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	s := server.NewMCPServer(
		"brandflow",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("brandflow: brand positioning, content drafts, competitor reports and an executive assistant, backed by a cached generation service."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("brand_positioning",
			mcp.WithDescription("Generate a brand positioning (statement, pillars, personas, messaging, tone) for a company. Results are cached per company for 7 days."),
			mcp.WithString("companyName", mcp.Description("Company name"), mcp.Required()),
			mcp.WithString("industry", mcp.Description("Industry or category"), mcp.Required()),
			mcp.WithString("targetAudience", mcp.Description("Primary audience"), mcp.Required()),
			mcp.WithString("currentPositioning", mcp.Description("How the company positions itself today")),
			mcp.WithArray("competitors", mcp.Description("Competitor names"), mcp.WithStringItems()),
			mcp.WithArray("uniqueStrengths", mcp.Description("Strengths to build on"), mcp.WithStringItems()),
			mcp.WithString("businessGoals", mcp.Description("Goals the positioning should support")),
		),
		mcpBrandPositioning(flows.Brand, logger),
	)

	s.AddTool(
		mcp.NewTool("chatbot_reply",
			mcp.WithDescription("Reply to a conversation as the executive assistant."),
			mcp.WithString("messages", mcp.Description("JSON array of {role, content} message objects"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional background for the assistant")),
		),
		mcpChatbotReply(flows.Chatbot, logger),
	)

	s.AddTool(
		mcp.NewTool("draft_content",
			mcp.WithDescription("Draft platform-specific posts and a content brief for a topic."),
			mcp.WithString("topic", mcp.Description("What to write about"), mcp.Required()),
			mcp.WithArray("platforms", mcp.Description("linkedin, twitter, email, blog, instagram (default linkedin)"), mcp.WithStringItems()),
			mcp.WithString("tone", mcp.Description("Writing tone (default professional)")),
		),
		mcpDraftContent(flows.Content, logger),
	)

	s.AddTool(
		mcp.NewTool("competitor_watch",
			mcp.WithDescription("Report notable competitor changes. Results are cached per check type for 6 hours."),
			mcp.WithString("checkType", mcp.Description("quick or full (default quick)"), mcp.Enum(competitor.CheckQuick, competitor.CheckFull)),
			mcp.WithArray("competitors", mcp.Description("Competitor names; defaults to the tracked list"), mcp.WithStringItems()),
		),
		mcpCompetitorWatch(flows.Competitor, logger),
	)

	return s
}

func mcpBrandPositioning(f *flow.Flow[brand.Input, brand.Positioning], logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := brand.Input{
			CompanyName:        req.GetString("companyName", ""),
			Industry:           req.GetString("industry", ""),
			TargetAudience:     req.GetString("targetAudience", ""),
			CurrentPositioning: req.GetString("currentPositioning", ""),
			Competitors:        req.GetStringSlice("competitors", nil),
			UniqueStrengths:    req.GetStringSlice("uniqueStrengths", nil),
			BusinessGoals:      req.GetString("businessGoals", ""),
		}
		return mcpRun(ctx, f, in, logger)
	}
}

func mcpChatbotReply(f *flow.Flow[chatbot.Input, chatbot.Reply], logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		messagesJSON, err := req.RequireString("messages")
		if err != nil {
			return mcpError("messages is required"), nil
		}
		var in chatbot.Input
		if err := json.Unmarshal([]byte(messagesJSON), &in.Messages); err != nil {
			return mcpError(fmt.Sprintf("invalid messages JSON: %v", err)), nil
		}
		in.Context = req.GetString("context", "")
		return mcpRun(ctx, f, in, logger)
	}
}

func mcpDraftContent(f *flow.Flow[content.Input, content.Drafts], logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := content.Input{
			Topic:     req.GetString("topic", ""),
			Platforms: req.GetStringSlice("platforms", nil),
			Tone:      req.GetString("tone", ""),
		}
		return mcpRun(ctx, f, in, logger)
	}
}

func mcpCompetitorWatch(f *flow.Flow[competitor.Input, competitor.Report], logger *zap.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in := competitor.Input{
			CheckType:   req.GetString("checkType", ""),
			Competitors: req.GetStringSlice("competitors", nil),
		}
		return mcpRun(ctx, f, in, logger)
	}
}

// mcpRun runs f and renders the output as JSON text. Flow failures are
// tool errors, not protocol errors.
func mcpRun[In, Out any](ctx context.Context, f *flow.Flow[In, Out], in In, logger *zap.Logger) (*mcp.CallToolResult, error) {
	res, err := f.Run(ctx, in)
	if err != nil {
		var ve *flow.ValidationError
		switch {
		case errors.As(err, &ve):
			return mcpError(ve.Err.Error()), nil
		case errors.Is(err, flow.ErrFlowDisabled):
			return mcpError(fmt.Sprintf("%s is disabled", f.Name())), nil
		default:
			logger.Warn("tool call failed", zap.String("flow", f.Name()), zap.Error(err))
			return mcpError(fmt.Sprintf("%s failed, please try again", f.Name())), nil
		}
	}
	b, err := json.Marshal(res.Output)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
