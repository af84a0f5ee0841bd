package api

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/brandflow/brandflow/internal/brand"
	"github.com/brandflow/brandflow/internal/chatbot"
	"github.com/brandflow/brandflow/internal/content"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_BrandPositioning(t *testing.T) {
	eng := &fakeEngine{answers: map[string]string{"brand strategist": `{"valueProposition":"Freight, solved."}`}}
	flows, _, _ := newTestFlows(t, eng)
	handler := mcpBrandPositioning(flows.Brand, nil)

	req := makeCallToolRequest("brand_positioning", map[string]interface{}{
		"companyName":    "Acme Corp",
		"industry":       "logistics",
		"targetAudience": "shippers",
		"competitors":    []interface{}{"Globex"},
	})
	result, err := handler(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	var out brand.Positioning
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if out.ValueProposition != "Freight, solved." {
		t.Fatalf("unexpected value proposition %q", out.ValueProposition)
	}
	if out.GeneratedAt == "" {
		t.Fatal("expected generatedAt to be set")
	}
}

func TestMCPTool_BrandPositioning_Validation(t *testing.T) {
	eng := &fakeEngine{}
	flows, _, _ := newTestFlows(t, eng)
	handler := mcpBrandPositioning(flows.Brand, nil)

	result, err := handler(context.Background(), makeCallToolRequest("brand_positioning", map[string]interface{}{
		"companyName": "Acme Corp",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if !strings.Contains(toolText(t, result), "industry is required") {
		t.Fatalf("unexpected message %q", toolText(t, result))
	}
	if eng.Calls() != 0 {
		t.Fatalf("engine called %d times for invalid input", eng.Calls())
	}
}

func TestMCPTool_ChatbotReply(t *testing.T) {
	eng := &fakeEngine{answers: map[string]string{"Prometheus AI": "Start with the renewals list."}}
	flows, _, _ := newTestFlows(t, eng)
	handler := mcpChatbotReply(flows.Chatbot, nil)

	result, err := handler(context.Background(), makeCallToolRequest("chatbot_reply", map[string]interface{}{
		"messages": `[{"role":"user","content":"Where do I start?"}]`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out chatbot.Reply
	if err := json.Unmarshal([]byte(toolText(t, result)), &out); err != nil {
		t.Fatalf("parsing result: %v", err)
	}
	if out.Reply != "Start with the renewals list." {
		t.Fatalf("unexpected reply %q", out.Reply)
	}
}

func TestMCPTool_ChatbotReply_BadJSON(t *testing.T) {
	flows, _, _ := newTestFlows(t, &fakeEngine{})
	handler := mcpChatbotReply(flows.Chatbot, nil)

	result, err := handler(context.Background(), makeCallToolRequest("chatbot_reply", map[string]interface{}{
		"messages": `not json`,
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error for invalid messages JSON")
	}
}

func TestMCPTool_DraftContent_UpstreamFailure(t *testing.T) {
	flows, _, _ := newTestFlows(t, &fakeEngine{err: errors.New("quota exceeded")})
	handler := mcpDraftContent(flows.Content, nil)

	result, err := handler(context.Background(), makeCallToolRequest("draft_content", map[string]interface{}{
		"topic":     "launch",
		"platforms": []interface{}{content.Twitter},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected tool error")
	}
	if strings.Contains(toolText(t, result), "quota") {
		t.Fatalf("upstream detail leaked: %q", toolText(t, result))
	}
}

func TestMCPTool_CompetitorWatch(t *testing.T) {
	eng := &fakeEngine{answers: map[string]string{"competitive intelligence": `{"changes":[],"summary":"Nothing new."}`}}
	flows, _, _ := newTestFlows(t, eng)
	handler := mcpCompetitorWatch(flows.Competitor, nil)

	for i := 0; i < 2; i++ {
		result, err := handler(context.Background(), makeCallToolRequest("competitor_watch", map[string]interface{}{}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected tool error: %s", toolText(t, result))
		}
	}
	if eng.Calls() != 1 {
		t.Fatalf("expected cached second call, engine called %d times", eng.Calls())
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	flows, _, _ := newTestFlows(t, &fakeEngine{})
	s := NewMCPServer(flows, "test", nil)
	tools := s.ListTools()
	for _, name := range []string{"brand_positioning", "chatbot_reply", "draft_content", "competitor_watch"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("tool %s not registered", name)
		}
	}
}
