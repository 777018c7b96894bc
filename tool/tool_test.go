package tool

import (
	"context"
	"testing"

	"finpilot/core"
)

type staticTool struct {
	name   string
	result core.ToolExecutionResult
}

func (s staticTool) Name() string        { return s.name }
func (s staticTool) Description() string { return "static test tool" }
func (s staticTool) Execute(context.Context, core.ToolExecutionRequest) core.ToolExecutionResult {
	return s.result
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticTool{name: "alpha", result: core.ToolExecutionResult{Name: "alpha", Success: true, Output: "42"}})

	res := reg.Execute(context.Background(), core.ToolExecutionRequest{Name: "alpha"})
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Output != "42" {
		t.Fatalf("unexpected output: %q", res.Output)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticTool{name: "alpha"})

	res := reg.Execute(context.Background(), core.ToolExecutionRequest{Name: "beta"})
	if res.Success {
		t.Fatal("expected failure for unknown tool")
	}
	if res.Error != "Unknown tool" {
		t.Fatalf("unexpected error message: %q", res.Error)
	}
	if res.Name != "beta" {
		t.Fatalf("result must echo the requested name, got %q", res.Name)
	}
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticTool{name: "zeta"})
	reg.Register(staticTool{name: "alpha"})

	names := reg.Names()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
		t.Fatalf("expected sorted names, got %v", names)
	}
}

func TestRegistryReplaceExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Register(staticTool{name: "alpha", result: core.ToolExecutionResult{Output: "old"}})
	reg.Register(staticTool{name: "alpha", result: core.ToolExecutionResult{Output: "new", Success: true}})

	res := reg.Execute(context.Background(), core.ToolExecutionRequest{Name: "alpha"})
	if res.Output != "new" {
		t.Fatalf("expected replacement tool to win, got %q", res.Output)
	}
}
