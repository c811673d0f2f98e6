package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dshills/codescope-mcp/internal/protocol"
)

// Handler executes a validated tool call and returns the result value or a
// protocol error.
type Handler func(ctx context.Context, args json.RawMessage) (interface{}, *protocol.Error)

// Tool describes one registered tool as advertised to the peer.
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// registration pairs a tool descriptor with its compiled schema and handler.
type registration struct {
	tool    Tool
	schema  *gojsonschema.Schema
	handler Handler
}

// Registry holds the fixed catalogue of tools. Registration happens once at
// server construction; afterwards the registry is read-only and safe for
// concurrent use.
type Registry struct {
	order   []string
	entries map[string]*registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registration)}
}

// Register adds a tool, compiling its parameter schema. Duplicate names and
// invalid schemas are programming errors surfaced at construction.
func (r *Registry) Register(tool Tool, h Handler) error {
	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("tool %q already registered", tool.Name)
	}
	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.InputSchema))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %q: %w", tool.Name, err)
	}
	r.entries[tool.Name] = &registration{tool: tool, schema: schema, handler: h}
	r.order = append(r.order, tool.Name)
	return nil
}

// Resolve looks up a tool by name.
func (r *Registry) Resolve(name string) (*registration, bool) {
	reg, ok := r.entries[name]
	return reg, ok
}

// Validate checks arguments against the tool's schema before any backend
// call. A nil argument value is validated as an empty object.
func (r *Registry) Validate(name string, args json.RawMessage) *protocol.Error {
	reg, ok := r.entries[name]
	if !ok {
		return protocol.Errorf(protocol.CodeMethodNotFound, "unknown tool: %s", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	result, err := reg.schema.Validate(gojsonschema.NewBytesLoader(args))
	if err != nil {
		return protocol.Errorf(protocol.CodeInvalidParams, "invalid arguments for %s: %v", name, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}
		return protocol.Errorf(protocol.CodeInvalidParams,
			"invalid arguments for %s: %s", name, strings.Join(details, "; "))
	}
	return nil
}

// Descriptors returns the tool descriptors in registration order.
func (r *Registry) Descriptors() []Tool {
	tools := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.entries[name].tool)
	}
	return tools
}
