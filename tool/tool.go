// Package tool implements the execution subsystem that turns a confirmed
// calculation plan into a numeric result: a closed registry of named tools
// plus the restricted sandbox that runs plan scripts. Tools report outcomes
// as structured results rather than Go errors: a failed execution is data the
// chat flow summarizes for the user, not a fault that unwinds the request.
package tool

import (
	"context"
	"sort"
	"time"

	"finpilot/core"
	"finpilot/logging"
)

// Tool is one named executable capability. Implementations must be safe for
// concurrent use: one registry serves every in-flight request.
type Tool interface {
	// Name returns the unique identifier used for dispatch.
	Name() string

	// Description returns a human-readable description of what the tool does.
	Description() string

	// Execute runs the request and always returns a fully-populated result:
	// either Success with Output, or a non-empty Error.
	Execute(ctx context.Context, req core.ToolExecutionRequest) core.ToolExecutionResult
}

// Registry dispatches execution requests by tool name. An unrecognized name
// is a data-validation condition and yields a failed result, not an error.
type Registry struct {
	tools  map[string]Tool
	logger logging.Logger
}

// RegistryOptions configure a Registry.
type RegistryOptions struct {
	Logger logging.Logger
}

// NewRegistry constructs an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{tools: map[string]Tool{}, logger: opts.Logger}
}

// Register adds (or replaces) a tool under its name.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Has reports whether a tool is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns the sorted names of all registered tools.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute dispatches the request to the named tool.
func (r *Registry) Execute(ctx context.Context, req core.ToolExecutionRequest) core.ToolExecutionResult {
	t, ok := r.tools[req.Name]
	if !ok {
		r.logger.Warn("unknown tool requested", "tool", req.Name)
		return core.ToolExecutionResult{Name: req.Name, Success: false, Error: "Unknown tool"}
	}
	start := time.Now()
	result := t.Execute(ctx, req)
	r.logger.Info("tool executed", "tool", req.Name, "success", result.Success, "duration", time.Since(start))
	return result
}
