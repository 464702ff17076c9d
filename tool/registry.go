package tool

import (
	"fmt"
	"sync"

	"github.com/taskloom/taskloom/core"
)

// Definition is the describable view of a registered tool handed to the
// router, planner and generation backend.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
	Async       bool           `json:"async,omitempty"`
}

// Registry maps tool names to callable capabilities. Registration happens at
// startup via explicit Register calls; after wiring the registry is treated
// as read-only and is safe for concurrent lookups and invocations.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: map[string]Tool{}}
}

// Register adds a tool. Registering a name twice is a wiring bug and returns
// an error rather than silently replacing the earlier capability.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers a batch of tools, panicking on duplicate names.
// Intended for startup wiring where a duplicate is unrecoverable.
func (r *Registry) MustRegister(tools ...Tool) {
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			panic(err)
		}
	}
}

// Get returns the named tool.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Describe returns tool definitions in registration order.
func (r *Registry) Describe() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
			Async:       t.Async(),
		})
	}
	return defs
}

// IsAsync reports whether the named tool performs its own I/O suspension.
// Unknown names report false.
func (r *Registry) IsAsync(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return ok && t.Async()
}

// Invoke resolves and calls the named tool. Unknown names return a *ToolError
// with code NOT_FOUND so callers surface them as observations rather than
// crashes.
func (r *Registry) Invoke(execCtx *core.ExecutionContext, name string, args map[string]any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, NewToolError(name, "tool not found", CodeNotFound)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Call(execCtx, args)
}
