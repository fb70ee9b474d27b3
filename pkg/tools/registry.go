package tools

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ToolContext carries the per-run settings tools are built with.
type ToolContext struct {
	LayoutPath   string // where mask_generator writes
	CanvasWidth  int
	CanvasHeight int
}

// ToolFactory builds a tool for one run.
type ToolFactory func(ctx ToolContext) (Tool, error)

// ToolMeta describes a registered tool to the model.
type ToolMeta struct {
	Name        string
	Description string
	InputSchema InputSchema
}

type registration struct {
	factory ToolFactory
	meta    ToolMeta
}

//nolint:gochecknoglobals // filled by init, read-only afterwards
var registry = map[string]registration{}

// Register makes a tool available to providers. Names must be unique.
func Register(factory ToolFactory, meta ToolMeta) {
	if _, dup := registry[meta.Name]; dup {
		panic(fmt.Sprintf("tool %q registered twice", meta.Name))
	}
	registry[meta.Name] = registration{factory: factory, meta: meta}
}

// ToolProvider hands out the tools one participant may execute, building each
// lazily and at most once.
type ToolProvider struct {
	built   map[string]Tool
	allowed []string
	ctx     ToolContext
	mu      sync.Mutex
}

// NewProvider creates a provider restricted to allowed.
func NewProvider(ctx ToolContext, allowed []string) *ToolProvider {
	names := slices.Clone(allowed)
	slices.Sort(names)
	return &ToolProvider{ctx: ctx, allowed: slices.Compact(names), built: map[string]Tool{}}
}

// Get returns the named tool, or an error when it is not allowed or cannot be built.
func (p *ToolProvider) Get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, found := slices.BinarySearch(p.allowed, name); !found {
		return nil, fmt.Errorf("tool %q is not allowed here (allowed: %s)", name, strings.Join(p.allowed, ", "))
	}
	if tool, ok := p.built[name]; ok {
		return tool, nil
	}
	reg, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	tool, err := reg.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("build tool %q: %w", name, err)
	}
	p.built[name] = tool
	return tool, nil
}

// Definitions returns the model-facing definitions of the allowed tools, by name.
func (p *ToolProvider) Definitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(p.allowed))
	for _, name := range p.allowed {
		if reg, ok := registry[name]; ok {
			defs = append(defs, ToolDefinition(reg.meta))
		}
	}
	return defs
}

//nolint:gochecknoinits // tool registration
func init() {
	Register(func(ToolContext) (Tool, error) { return NewProposeLayoutTool(), nil }, ToolMeta{
		Name:        ToolProposeLayout,
		Description: "Propose object names and their [center_x, center_y, width, height] positions",
		InputSchema: NewProposeLayoutTool().Definition().InputSchema,
	})
	Register(func(ToolContext) (Tool, error) { return NewReviewLayoutTool(), nil }, ToolMeta{
		Name:        ToolReviewLayout,
		Description: "Approve the latest proposal or reject it with a concrete reason",
		InputSchema: NewReviewLayoutTool().Definition().InputSchema,
	})
	Register(func(ctx ToolContext) (Tool, error) {
		if ctx.LayoutPath == "" {
			return nil, fmt.Errorf("mask_generator requires a layout path")
		}
		return NewMaskGeneratorTool(ctx.LayoutPath, ctx.CanvasWidth, ctx.CanvasHeight), nil
	}, ToolMeta{
		Name:        ToolMaskGenerator,
		Description: "Save the approved layout to the layout file",
		InputSchema: NewMaskGeneratorTool("", 0, 0).Definition().InputSchema,
	})
}
