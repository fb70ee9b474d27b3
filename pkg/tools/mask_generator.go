package tools

import (
	"context"
	"fmt"
	"path/filepath"

	"layoutpaint/pkg/layout"
	"layoutpaint/pkg/logx"
	"layoutpaint/pkg/runerrors"
)

// TerminateToken ends the negotiation when it is the suffix of a message.
const TerminateToken = "TERMINATE"

// MaskGeneratorTool persists the approved layout. It is the only tool in the
// negotiation with a side effect.
type MaskGeneratorTool struct {
	logger       *logx.Logger
	layoutPath   string
	canvasWidth  int
	canvasHeight int
}

// NewMaskGeneratorTool creates a mask_generator tool writing to layoutPath.
// Bounds are checked against the canvas when both dimensions are positive.
func NewMaskGeneratorTool(layoutPath string, canvasWidth, canvasHeight int) *MaskGeneratorTool {
	return &MaskGeneratorTool{
		logger:       logx.NewLogger("mask_generator"),
		layoutPath:   layoutPath,
		canvasWidth:  canvasWidth,
		canvasHeight: canvasHeight,
	}
}

// Name returns the tool name.
func (t *MaskGeneratorTool) Name() string {
	return ToolMaskGenerator
}

// PromptDocumentation returns formatted tool documentation for prompts.
func (t *MaskGeneratorTool) PromptDocumentation() string {
	return `- **mask_generator** - Save the approved layout
  - Parameters: object_name (array of strings, REQUIRED), num_objects (integer, REQUIRED),
    position_list (array of [center_x, center_y, width, height], REQUIRED)`
}

// Definition returns the tool definition for LLM.
func (t *MaskGeneratorTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        ToolMaskGenerator,
		Description: "Save the approved object names and positions to the layout file.",
		InputSchema: InputSchema{
			Type:       "object",
			Properties: layoutProperties(),
			Required:   []string{"object_name", "num_objects", "position_list"},
		},
	}
}

// Acknowledgment returns the message emitted after a successful save.
func (t *MaskGeneratorTool) Acknowledgment() string {
	return fmt.Sprintf("Great! All data is saved to %s. %s", filepath.Base(t.layoutPath), TerminateToken)
}

// Exec validates the layout and writes it. Nothing is written when validation fails.
func (t *MaskGeneratorTool) Exec(_ context.Context, args map[string]any) (*ExecResult, error) {
	const op = "mask_generator.exec"

	// The count is checked against the lists, so it must come from the caller.
	if raw, ok := args["num_objects"]; !ok || raw == nil {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, layout.ErrInvalidLayout, "num_objects is required")
	}
	parsed, err := ParseLayoutArgs(args)
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, err, "malformed arguments")
	}

	l, err := layout.New(parsed.ObjectNames, parsed.NumObjects, parsed.PositionList)
	if err != nil {
		return nil, runerrors.Wrap(runerrors.KindNegotiation, op, err, "layout rejected")
	}
	if t.canvasWidth > 0 && t.canvasHeight > 0 {
		if err := l.Validate(t.canvasWidth, t.canvasHeight); err != nil {
			return nil, runerrors.Wrap(runerrors.KindNegotiation, op, err, "layout rejected")
		}
	}

	if err := layout.Save(t.layoutPath, l); err != nil {
		return nil, err
	}
	t.logger.Info("Saved %d objects to %s", l.NumObjects, t.layoutPath)

	return &ExecResult{
		Content: t.Acknowledgment(),
		ProcessEffect: &ProcessEffect{
			Signal: SignalLayoutSaved,
			Data:   map[string]any{"layout": l, "path": t.layoutPath},
		},
	}, nil
}
