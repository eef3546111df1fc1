// Package tools is the registry of side-effecting operations that agents
// invoke, together with error categorization and retry.
//
// Every execution path returns a models.ToolResult. Handler errors are
// categorized into retryable and non-retryable codes and never escape as
// raw errors.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/advisorhub/mira/pkg/models"
)

// ErrEmptyToolName is returned when registering a tool without a name.
var ErrEmptyToolName = errors.New("tool name is required")

// ExecuteInput carries the arguments of one invocation.
type ExecuteInput struct {
	Args     map[string]interface{}
	TenantID string
}

// Handler performs a tool's side effect.
type Handler func(ctx context.Context, in ExecuteInput) (interface{}, error)

// ToolDescriptor describes a registered tool.
type ToolDescriptor struct {
	Name        string
	Module      models.MiraModule
	Description string
	Handler     Handler
	// Schema is an optional JSON-schema subset: "required" and
	// "properties"."<name>"."type".
	Schema map[string]interface{}
}

// Registry holds the tools available to agents.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ToolDescriptor)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(d ToolDescriptor) error {
	d.Name = strings.TrimSpace(d.Name)
	if d.Name == "" {
		return ErrEmptyToolName
	}
	if d.Handler == nil {
		return fmt.Errorf("tool %s: handler is required", d.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[d.Name] = d
	return nil
}

// Get returns a registered tool.
func (r *Registry) Get(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ForModule returns the tools registered for a module, sorted by name.
func (r *Registry) ForModule(module models.MiraModule) []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ToolDescriptor
	for _, d := range r.tools {
		if d.Module == module {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute validates arguments and invokes the named tool once.
func (r *Registry) Execute(ctx context.Context, name string, in ExecuteInput) models.ToolResult {
	d, ok := r.Get(name)
	if !ok {
		return failure(&ToolError{
			Code:    CodeToolNotFound,
			Message: fmt.Sprintf("Tool %q is not registered. Available tools: %s", name, strings.Join(r.Names(), ", ")),
		})
	}

	if err := ValidateArgs(d.Schema, in.Args); err != nil {
		return failure(&ToolError{Code: CodeValidation, Message: err.Error()})
	}

	data, err := guard(ctx, name, func(ctx context.Context) (interface{}, error) {
		return d.Handler(ctx, in)
	}, nil)
	if err != nil {
		return failure(CategorizeError(err))
	}
	return models.ToolResult{Success: true, Data: data}
}

// invoke is Execute for use under retry: it surfaces the categorized error.
func (r *Registry) invoke(ctx context.Context, name string, in ExecuteInput) (interface{}, error) {
	res := r.Execute(ctx, name, in)
	if !res.Success {
		return nil, res.Error
	}
	return res.Data, nil
}

func failure(e *ToolError) models.ToolResult {
	return models.ToolResult{Success: false, Error: e}
}
