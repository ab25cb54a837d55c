package tools

import "context"

// Tool pairs an MCP tool descriptor with its invocation closure. Handlers
// return plain text; the MCP layer wraps it in a content array and converts
// failures into isError results.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Handler     func(ctx context.Context, args map[string]any) (string, error)
}

// Descriptor is the wire form of a tool for tools/list.
type Descriptor struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Registry is the fixed set of tools exposed by the server. It is populated
// once at startup and read-only afterwards.
type Registry struct {
	order  []string
	byName map[string]*Tool
}

// NewRegistry builds a registry. A tool registered twice keeps the later
// definition but its original position.
func NewRegistry(list ...*Tool) *Registry {
	r := &Registry{byName: make(map[string]*Tool, len(list))}
	for _, t := range list {
		if _, seen := r.byName[t.Name]; !seen {
			r.order = append(r.order, t.Name)
		}
		r.byName[t.Name] = t
	}
	return r
}

// List returns descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, name := range r.order {
		t := r.byName[name]
		out = append(out, Descriptor{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}
	return out
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// stringArg extracts a string argument, "" when absent or wrong-typed.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// intArg extracts a numeric argument (JSON numbers decode as float64).
func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
