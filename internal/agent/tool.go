package agent

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool is a named capability a model may invoke during a generation. Tools
// are pure: no shared mutable state, all effects through the context-aware
// call itself.
type Tool interface {
	// Name returns the identifier models address the tool by.
	Name() string

	// Description returns the natural-language summary sent to vendors.
	Description() string

	// InputSchema returns the JSON Schema for the tool's arguments.
	InputSchema() json.RawMessage

	// Invoke executes the tool. Implementations return an error only for
	// context cancellation; every other failure is reported inside the
	// result so the model can recover from it.
	Invoke(ctx context.Context, args json.RawMessage) (*ToolResult, error)
}

// ToolResult is what a tool invocation produced.
type ToolResult struct {
	// Documents are the retrieved sources, already shaped for citation.
	Documents []DocumentBlock

	// IsError marks results describing a failure rather than content.
	IsError bool
}

// ToolDefinition is the vendor-facing shape of a registered tool.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// ToolRegistry is an immutable named set of tools shared by every adapter
// in a generation. Immutability keeps lookups lock-free on the hot path.
type ToolRegistry struct {
	tools map[string]Tool
	order []string
}

// NewToolRegistry builds a registry from the given tools. Later tools with
// a duplicate name replace earlier ones.
func NewToolRegistry(tools ...Tool) *ToolRegistry {
	r := &ToolRegistry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, seen := r.tools[t.Name()]; !seen {
			r.order = append(r.order, t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r
}

// Len returns the number of registered tools.
func (r *ToolRegistry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.tools)
}

// Get returns a tool by name.
func (r *ToolRegistry) Get(name string) (Tool, bool) {
	if r == nil {
		return nil, false
	}
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the vendor-facing tool definitions in registration
// order.
func (r *ToolRegistry) Definitions() []ToolDefinition {
	if r == nil {
		return nil
	}
	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Invoke runs a named tool. Unknown tools and tool-level failures come back
// as error results, never as Go errors; the returned error is reserved for
// context cancellation, which aborts the whole stream.
func (r *ToolRegistry) Invoke(ctx context.Context, name string, args json.RawMessage) (*ToolResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tool, ok := r.Get(name)
	if !ok {
		return &ToolResult{
			Documents: []DocumentBlock{{
				Title:    "Tool error",
				Text:     fmt.Sprintf("%v: %s", ErrToolNotFound, name),
				Metadata: map[string]string{"error": "true"},
			}},
			IsError: true,
		}, nil
	}
	res, err := tool.Invoke(ctx, args)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Tools report failures in-band; an unexpected error still becomes
		// a recoverable error document.
		return &ToolResult{
			Documents: []DocumentBlock{{
				Title:    "Tool error",
				Text:     fmt.Sprintf("%s failed: %v", name, err),
				Metadata: map[string]string{"error": "true"},
			}},
			IsError: true,
		}, nil
	}
	if res == nil {
		res = &ToolResult{}
	}
	return res, nil
}
