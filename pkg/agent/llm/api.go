// Package llm is the provider-neutral chat-completion surface the negotiation
// agents talk through.
package llm

import (
	"context"

	"layoutpaint/pkg/tools"
)

// CompletionRole is the speaker of a chat message.
type CompletionRole string

// Roles understood by every provider adapter.
const (
	RoleSystem    CompletionRole = "system"
	RoleUser      CompletionRole = "user" // the prompt and other participants' turns
	RoleAssistant CompletionRole = "assistant"
)

// Tool choice modes.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceAny  = "any" // the model must call one of the offered tools
)

// TemperatureDeterministic keeps layout negotiation reproducible.
const TemperatureDeterministic = 0.0

// CompletionMessage is one chat turn.
type CompletionMessage struct {
	Content string
	Role    CompletionRole
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Parameters map[string]any `json:"parameters"`
	ID         string         `json:"id"`
	Name       string         `json:"name"`
}

// CompletionRequest is a provider-neutral chat request.
//
//nolint:govet // fieldalignment
type CompletionRequest struct {
	Messages    []CompletionMessage
	Tools       []tools.ToolDefinition
	ToolChoice  string
	Seed        *int // ignored by providers without seed support
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is what came back: text, tool calls or both.
//
//nolint:govet // fieldalignment
type CompletionResponse struct {
	ToolCalls  []ToolCall
	Content    string
	StopReason string // provider-specific, e.g. "end_turn", "tool_use", "max_tokens"
}

// LLMClient completes chat requests against one model.
type LLMClient interface { //nolint:revive // established name
	Complete(ctx context.Context, in CompletionRequest) (CompletionResponse, error)
	GetModelName() string
}

// NewCompletionRequest returns a request with deterministic sampling and a 2048-token cap.
func NewCompletionRequest(messages []CompletionMessage) CompletionRequest {
	return CompletionRequest{
		Messages:    messages,
		MaxTokens:   2048,
		Temperature: TemperatureDeterministic,
	}
}

func NewSystemMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleSystem, Content: content}
}

func NewUserMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleUser, Content: content}
}

func NewAssistantMessage(content string) CompletionMessage {
	return CompletionMessage{Role: RoleAssistant, Content: content}
}
