package tools

import (
	"context"
	"fmt"
)

// ReviewLayoutTool is the verifier's reply tool.
type ReviewLayoutTool struct{}

// ReviewDecision is the structured verdict carried in the tool's ProcessEffect.
type ReviewDecision struct {
	Layout   *LayoutArgs // Forwarded layout; nil when the reviewer did not restate it
	Reason   string
	Approved bool
}

// NewReviewLayoutTool creates a new review_layout tool.
func NewReviewLayoutTool() *ReviewLayoutTool {
	return &ReviewLayoutTool{}
}

// Name returns the tool name.
func (t *ReviewLayoutTool) Name() string {
	return ToolReviewLayout
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ReviewLayoutTool) PromptDocumentation() string {
	return `- **review_layout** - Approve or reject the latest proposal
  - Parameters: approved (boolean, REQUIRED), reason (string, REQUIRED when rejecting),
    object_name, num_objects, position_list (forward the approved layout unchanged)`
}

// Definition returns the tool definition for LLM.
func (t *ReviewLayoutTool) Definition() ToolDefinition {
	props := layoutProperties()
	props["approved"] = Property{
		Type:        "boolean",
		Description: "true if the layout is natural, inside the canvas and free of overlaps",
	}
	props["reason"] = Property{
		Type:        "string",
		Description: "What is wrong and how to fix it when rejecting",
	}
	return ToolDefinition{
		Name:        ToolReviewLayout,
		Description: "Approve the latest layout proposal, forwarding it unchanged, or reject it with a concrete reason.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"approved"},
		},
	}
}

// Exec parses the verdict.
func (t *ReviewLayoutTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	raw, ok := args["approved"]
	if !ok {
		return nil, fmt.Errorf("approved is required")
	}
	approved, err := boolArg(raw)
	if err != nil {
		return nil, fmt.Errorf("approved: %w", err)
	}
	reason, _ := args["reason"].(string)
	if !approved && reason == "" {
		return nil, fmt.Errorf("reason is required when rejecting a layout")
	}

	decision := ReviewDecision{Approved: approved, Reason: reason}
	if _, has := args["position_list"]; has {
		forwarded, err := ParseLayoutArgs(args)
		if err != nil {
			return nil, fmt.Errorf("forwarded layout: %w", err)
		}
		decision.Layout = &forwarded
	}

	content := "REJECTED: " + reason
	if approved {
		content = "APPROVED"
		if reason != "" {
			content += ": " + reason
		}
		if decision.Layout != nil {
			content += "\n" + FormatLayout(*decision.Layout)
		}
	}
	return &ExecResult{
		Content: content,
		ProcessEffect: &ProcessEffect{
			Signal: SignalLayoutReviewed,
			Data:   map[string]any{"decision": decision},
		},
	}, nil
}
