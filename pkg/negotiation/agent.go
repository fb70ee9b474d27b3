package negotiation

import (
	"context"
	"fmt"
	"time"

	"layoutpaint/pkg/agent/llm"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/tools"
)

// AgentConfig describes an LLM-backed participant.
//
//nolint:govet // Field order optimized for readability over memory alignment
type AgentConfig struct {
	Name         string
	Role         Role
	SystemPrompt string

	// ReplyTool is the tool the agent is expected to answer with.
	ReplyTool string

	// Offered are the tool definitions sent to the model.
	Offered []tools.ToolDefinition

	// Local tools are executed by the agent itself right after the model call.
	// Tools that are offered but not local are left for the relay.
	Local []tools.Tool

	ToolChoice  string
	Temperature float32
	Seed        *int
	MaxTokens   int
}

// Agent is a Participant backed by a language model.
type Agent struct {
	client llm.LLMClient
	logger *logx.Logger
	local  map[string]tools.Tool
	cfg    AgentConfig
}

// NewAgent creates an LLM participant.
func NewAgent(cfg AgentConfig, client llm.LLMClient) *Agent {
	local := make(map[string]tools.Tool, len(cfg.Local))
	for _, t := range cfg.Local {
		local[t.Name()] = t
	}
	if cfg.ToolChoice == "" {
		cfg.ToolChoice = llm.ToolChoiceAny
	}
	return &Agent{
		client: client,
		logger: logx.NewLogger(cfg.Name),
		local:  local,
		cfg:    cfg,
	}
}

// Name returns the participant name.
func (a *Agent) Name() string {
	return a.cfg.Name
}

// Role returns the participant role.
func (a *Agent) Role() Role {
	return a.cfg.Role
}

// ReplyTool returns the tool the agent is expected to call.
func (a *Agent) ReplyTool() string {
	return a.cfg.ReplyTool
}

// Respond asks the model for the next turn and executes the first local tool call.
func (a *Agent) Respond(ctx context.Context, s *Session) (Message, error) {
	req := llm.NewCompletionRequest(a.buildMessages(s))
	req.Tools = a.cfg.Offered
	req.ToolChoice = a.cfg.ToolChoice
	req.Temperature = a.cfg.Temperature
	req.Seed = a.cfg.Seed
	if a.cfg.MaxTokens > 0 {
		req.MaxTokens = a.cfg.MaxTokens
	}

	start := time.Now()
	resp, err := a.client.Complete(ctx, req)
	if err != nil {
		return Message{}, fmt.Errorf("%s completion failed: %w", a.cfg.Name, err)
	}
	logx.Debug(ctx, "negotiation", "%s answered in %.3fs with %d tool calls", a.cfg.Name, time.Since(start).Seconds(), len(resp.ToolCalls))

	msg := Message{
		Sender:    a.cfg.Name,
		Kind:      KindReply,
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
	}

	for i := range resp.ToolCalls {
		call := &resp.ToolCalls[i]
		tool, ok := a.local[call.Name]
		if !ok {
			continue
		}
		result, execErr := tool.Exec(ctx, call.Parameters)
		if execErr != nil {
			a.logger.Warn("%s call rejected: %v", call.Name, execErr)
			msg.Failure = execErr.Error()
			break
		}
		msg.Content = result.Content
		msg.Effect = result.ProcessEffect
		break
	}
	return msg, nil
}

// buildMessages renders the transcript from this agent's point of view: its own
// turns are assistant messages, everyone else speaks as the user.
func (a *Agent) buildMessages(s *Session) []llm.CompletionMessage {
	messages := make([]llm.CompletionMessage, 0, len(s.Transcript)+1)
	messages = append(messages, llm.NewSystemMessage(a.cfg.SystemPrompt))
	for i := range s.Transcript {
		m := &s.Transcript[i]
		text := m.Text()
		if m.Failure != "" && m.Kind == KindReply {
			text += "\n(rejected: " + m.Failure + ")"
		}
		switch {
		case m.Sender == a.cfg.Name:
			messages = append(messages, llm.NewAssistantMessage(text))
		case m.Kind == KindPrompt:
			messages = append(messages, llm.NewUserMessage(text))
		default:
			messages = append(messages, llm.NewUserMessage(m.Sender+": "+text))
		}
	}
	return messages
}
