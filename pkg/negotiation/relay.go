package negotiation

import (
	"context"
	"fmt"
	"slices"

	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/tools"
)

// Relay is the mechanical participant. It executes side-effecting tool calls on
// behalf of other participants and nudges turns that skipped their reply tool.
type Relay struct {
	provider *tools.ToolProvider
	logger   *logx.Logger
	expected map[string]string // participant name -> reply tool
	guards   map[string]Guard  // tool name -> precondition
}

// Guard vets a tool call against the session before the relay executes it.
// A non-nil error is sent back to the caller as a nudge and nothing runs.
type Guard func(s *Session, args map[string]any) error

// NewRelay creates a relay executing the provider's tools.
// expected maps each participant to the tool it must answer with.
func NewRelay(provider *tools.ToolProvider, expected map[string]string) *Relay {
	return &Relay{
		provider: provider,
		logger:   logx.NewLogger(NameRelay),
		expected: expected,
		guards:   make(map[string]Guard),
	}
}

// Guard installs g as the precondition for tool.
func (r *Relay) Guard(tool string, g Guard) *Relay {
	r.guards[tool] = g
	return r
}

// Name returns the participant name.
func (r *Relay) Name() string {
	return NameRelay
}

// Role returns RoleRelay.
func (r *Relay) Role() Role {
	return RoleRelay
}

// Respond answers the latest message. A call to the sender's expected tool that
// the provider allows is executed; anything else gets a nudge.
func (r *Relay) Respond(ctx context.Context, s *Session) (Message, error) {
	last, ok := s.Last()
	if !ok {
		return Message{}, fmt.Errorf("relay has nothing to answer")
	}
	want := r.expected[last.Sender]

	for i := range last.ToolCalls {
		call := &last.ToolCalls[i]
		if call.Name != want {
			continue
		}
		tool, err := r.provider.Get(call.Name)
		if err != nil {
			// Reply tools the sender runs itself are not in the relay's provider.
			break
		}
		if guard := r.guards[call.Name]; guard != nil {
			if err := guard(s, call.Parameters); err != nil {
				r.logger.Warn("Refusing %s from %s: %v", call.Name, last.Sender, err)
				return r.nudge(last.Sender, want, err.Error()), nil
			}
		}
		return r.execute(ctx, tool, call.Parameters), nil
	}

	reason := last.Failure
	if reason == "" && len(last.ToolCalls) > 0 && last.Effect == nil {
		reason = fmt.Sprintf("%s is not available to you", last.ToolCalls[0].Name)
	}
	return r.nudge(last.Sender, want, reason), nil
}

func (r *Relay) nudge(sender, tool, reason string) Message {
	r.logger.Info("Nudging %s to call %s", sender, tool)
	return Message{
		Sender:  NameRelay,
		Kind:    KindNudge,
		Content: nudgeText(sender, tool, reason),
		Failure: reason,
	}
}

// requireApproved only lets the layout the verifier approved be saved.
func requireApproved(s *Session, args map[string]any) error {
	if s.Approved == nil {
		return fmt.Errorf("no layout has been approved yet")
	}
	got, err := tools.ParseLayoutArgs(args)
	if err != nil {
		return err
	}
	want := s.Approved
	if got.NumObjects != want.NumObjects ||
		!slices.Equal(got.ObjectNames, want.ObjectNames) ||
		!slices.EqualFunc(got.PositionList, want.PositionList, func(a, b []int) bool { return slices.Equal(a, b) }) {
		return fmt.Errorf("the layout differs from the approved one; save exactly %s", tools.FormatLayout(*want))
	}
	return nil
}

func (r *Relay) execute(ctx context.Context, tool tools.Tool, args map[string]any) Message {
	result, err := tool.Exec(ctx, args)
	if err != nil {
		r.logger.Warn("%s failed: %v", tool.Name(), err)
		return Message{
			Sender:  NameRelay,
			Kind:    KindToolResult,
			Content: "Error: " + err.Error(),
			Failure: err.Error(),
		}
	}
	return Message{
		Sender:  NameRelay,
		Kind:    KindToolResult,
		Content: result.Content,
		Effect:  result.ProcessEffect,
	}
}
