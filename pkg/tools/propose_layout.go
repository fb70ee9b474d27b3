package tools

import (
	"context"
	"fmt"
	"strings"
)

// ProposeLayoutTool is the proposer's reply tool. It only parses and echoes the
// proposal; nothing is persisted.
type ProposeLayoutTool struct{}

// NewProposeLayoutTool creates a new propose_layout tool.
func NewProposeLayoutTool() *ProposeLayoutTool {
	return &ProposeLayoutTool{}
}

// Name returns the tool name.
func (t *ProposeLayoutTool) Name() string {
	return ToolProposeLayout
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *ProposeLayoutTool) PromptDocumentation() string {
	return `- **propose_layout** - Propose the objects and their positions
  - Parameters: object_name (array of strings, REQUIRED), num_objects (integer, REQUIRED),
    position_list (array of [center_x, center_y, width, height], REQUIRED), rationale (string, optional)`
}

// Definition returns the tool definition for LLM.
func (t *ProposeLayoutTool) Definition() ToolDefinition {
	props := layoutProperties()
	props["rationale"] = Property{
		Type:        "string",
		Description: "Short explanation of the arrangement",
	}
	return ToolDefinition{
		Name:        ToolProposeLayout,
		Description: "Propose object names and their [center_x, center_y, width, height] positions on the canvas.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: props,
			Required:   []string{"object_name", "num_objects", "position_list"},
		},
	}
}

// Exec parses the proposal and renders it for the transcript.
func (t *ProposeLayoutTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	proposal, err := ParseLayoutArgs(args)
	if err != nil {
		return nil, fmt.Errorf("invalid proposal: %w", err)
	}
	rationale, _ := args["rationale"].(string)

	content := FormatLayout(proposal)
	if rationale != "" {
		content = rationale + "\n" + content
	}
	return &ExecResult{
		Content: content,
		ProcessEffect: &ProcessEffect{
			Signal: SignalLayoutProposed,
			Data:   map[string]any{"layout": proposal},
		},
	}, nil
}

// FormatLayout renders layout args the way they appear in the transcript.
func FormatLayout(a LayoutArgs) string {
	tuples := make([]string, len(a.PositionList))
	for i, tuple := range a.PositionList {
		parts := make([]string, len(tuple))
		for j, v := range tuple {
			parts[j] = fmt.Sprintf("%d", v)
		}
		tuples[i] = "[" + strings.Join(parts, ", ") + "]"
	}
	quoted := make([]string, len(a.ObjectNames))
	for i, n := range a.ObjectNames {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return fmt.Sprintf("object_name: [%s]\nnum_objects: %d\nposition_list: [%s]",
		strings.Join(quoted, ", "), a.NumObjects, strings.Join(tuples, ", "))
}
