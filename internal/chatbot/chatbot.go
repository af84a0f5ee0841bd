// Package chatbot is the executive-assistant flow. It answers one turn of a
// conversation in plain text and is never cached.
package chatbot

import (
	"errors"
	"strings"

	"github.com/brandflow/brandflow/internal/flow"
)

// Name is the flow name.
const Name = "chatbot"

// MaxMessages bounds the conversation sent per request.
const MaxMessages = 40

// CannedReply is returned when the model answers with nothing.
const CannedReply = "I can help. What are you trying to accomplish next?"

// Roles accepted in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

var errEmptyReply = errors.New("empty reply")

// Message is one conversation turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Input is the conversation so far; the last user message is the one to
// answer.
type Input struct {
	Messages []Message `json:"messages"`
	// Context is extra background from the caller, rendered with the
	// system messages.
	Context string `json:"context,omitempty"`
}

// Reply is the assistant's answer.
type Reply struct {
	Reply string `json:"reply"`
	flow.Meta
}

// Definition returns the chatbot flow definition.
func Definition() flow.Definition[Input, Reply] {
	return flow.Definition[Input, Reply]{
		Name:        Name,
		Validate:    Validate,
		BuildPrompt: BuildPrompt,
		Parse:       Parse,
		Fallback:    func(Input) Reply { return Reply{Reply: CannedReply} },
		AcceptEmpty: true,
	}
}

// Validate checks message count, roles and content.
func Validate(in Input) error {
	switch n := len(in.Messages); {
	case n == 0:
		return flow.Invalid("messages must not be empty")
	case n > MaxMessages:
		return flow.Invalid("at most %d messages are allowed, got %d", MaxMessages, n)
	}
	for i, m := range in.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return flow.Invalid("messages[%d]: unknown role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return flow.Invalid("messages[%d]: content is required", i)
		}
	}
	return nil
}

// BuildPrompt renders the conversation as a transcript. System messages are
// lifted into a context block ahead of the conversation.
func BuildPrompt(in Input) string {
	var system []string
	var convo strings.Builder
	for _, m := range in.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, strings.TrimSpace(m.Content))
		case RoleUser:
			convo.WriteString("User: ")
			convo.WriteString(strings.TrimSpace(m.Content))
			convo.WriteString("\n")
		case RoleAssistant:
			convo.WriteString("Assistant: ")
			convo.WriteString(strings.TrimSpace(m.Content))
			convo.WriteString("\n")
		}
	}

	if c := strings.TrimSpace(in.Context); c != "" {
		system = append(system, c)
	}

	var b strings.Builder
	b.WriteString("You are Prometheus AI, an executive assistant.\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Be concise and action-oriented.\n")
	b.WriteString("- If something is missing, ask 1 clarifying question.\n")
	b.WriteString("- Do not invent metrics; if unknown, say so.")
	if len(system) > 0 {
		b.WriteString("\n\nSystem context:\n")
		b.WriteString(strings.Join(system, "\n\n"))
	}
	b.WriteString("\n\nConversation:\n")
	b.WriteString(strings.TrimSuffix(convo.String(), "\n"))
	b.WriteString("\n\nAssistant:")
	return b.String()
}

// Parse accepts any non-blank text as the reply.
func Parse(text string, _ Input) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, errEmptyReply
	}
	return Reply{Reply: text}, nil
}
