// Package tools provides the tool contract, the tool registry and the layout tools
// the negotiation participants call.
package tools

import "context"

// Tool name constants - use these instead of magic strings.
const (
	ToolProposeLayout = "propose_layout"
	ToolReviewLayout  = "review_layout"
	ToolMaskGenerator = "mask_generator"
)

// Signals carried in ProcessEffect to drive the negotiation state machine.
const (
	SignalLayoutProposed = "LAYOUT_PROPOSED"
	SignalLayoutReviewed = "LAYOUT_REVIEWED"
	SignalLayoutSaved    = "LAYOUT_SAVED"
)

// Tool is a callable exposed to a language model.
type Tool interface {
	Name() string
	Definition() ToolDefinition
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
	PromptDocumentation() string
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON schema of a tool's arguments.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property is one schema property. Items describes array elements.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
	MinItems    *int                 `json:"minItems,omitempty"`
	MaxItems    *int                 `json:"maxItems,omitempty"`
}

// ExecResult is the outcome of a tool execution.
// Content is what the model sees; ProcessEffect carries structured data for the caller.
type ExecResult struct {
	ProcessEffect *ProcessEffect
	Content       string
}

// ProcessEffect signals a state change to the caller.
type ProcessEffect struct {
	Data   map[string]any
	Signal string
}

// ToMap renders the schema as a plain map for SDKs that take raw JSON schema.
func (s InputSchema) ToMap() map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = p.toMap()
	}
	out := map[string]any{
		"type":       s.Type,
		"properties": props,
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	return out
}

func (p *Property) toMap() map[string]any {
	out := map[string]any{"type": p.Type}
	if p.Description != "" {
		out["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		out["enum"] = p.Enum
	}
	if p.Items != nil {
		out["items"] = p.Items.toMap()
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for name, sub := range p.Properties {
			props[name] = sub.toMap()
		}
		out["properties"] = props
	}
	if p.MinItems != nil {
		out["minItems"] = *p.MinItems
	}
	if p.MaxItems != nil {
		out["maxItems"] = *p.MaxItems
	}
	return out
}
