package negotiation

import (
	"encoding/json"
	"fmt"
	"strings"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/tools"
)

// MessageKind tells the coordinator how a transcript entry was produced.
type MessageKind int

const (
	// KindPrompt is the user prompt that seeds the conversation.
	KindPrompt MessageKind = iota
	// KindReply is a participant's own turn.
	KindReply
	// KindToolResult is the relay's reply after executing a tool call.
	KindToolResult
	// KindNudge is the relay's reply to a turn that did not use the expected tool.
	KindNudge
)

// String returns human-readable name for MessageKind.
func (k MessageKind) String() string {
	switch k {
	case KindPrompt:
		return "prompt"
	case KindReply:
		return "reply"
	case KindToolResult:
		return "tool_result"
	case KindNudge:
		return "nudge"
	default:
		return fmt.Sprintf("MessageKind(%d)", k)
	}
}

// Message is one transcript entry.
//
//nolint:govet // Field order optimized for readability over memory alignment
type Message struct {
	Sender string
	Kind   MessageKind

	// Content is the text other participants see.
	Content string

	// ToolCalls are the raw calls the model made on this turn.
	ToolCalls []llm.ToolCall

	// Effect is set when a reply tool or the relay's tool execution succeeded.
	Effect *tools.ProcessEffect

	// Failure holds the reason a tool call was rejected, empty otherwise.
	Failure string
}

// Terminates reports whether the message text ends with the terminal token.
// The match is case-sensitive; trailing whitespace is ignored.
func (m Message) Terminates() bool {
	return strings.HasSuffix(strings.TrimRight(m.Content, " \t\r\n"), tools.TerminateToken)
}

// Text renders the message for another participant's prompt.
func (m Message) Text() string {
	if m.Content != "" {
		return m.Content
	}
	if len(m.ToolCalls) == 0 {
		return ""
	}
	calls := make([]string, 0, len(m.ToolCalls))
	for i := range m.ToolCalls {
		args, err := json.Marshal(m.ToolCalls[i].Parameters)
		if err != nil {
			args = []byte("{}")
		}
		calls = append(calls, fmt.Sprintf("Called %s with %s", m.ToolCalls[i].Name, args))
	}
	return strings.Join(calls, "\n")
}
