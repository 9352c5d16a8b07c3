package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/felixgeelhaar/recall/internal/provider"
)

// ToolDefinition describes a tool offered to the model.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// FunctionTool wraps a definition the way chat completion APIs expect it in
// their "tools" array.
type FunctionTool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

// ToolExecutor answers one call with the text handed back to the model.
type ToolExecutor func(ctx context.Context, call provider.ToolCall) (string, error)

type registeredTool struct {
	def ToolDefinition
	run ToolExecutor
}

// ToolRegistry is the set of tools one scenario run exposes.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]registeredTool)}
}

// Register adds def. Names are unique and an executor is required.
func (tr *ToolRegistry) Register(def ToolDefinition, run ToolExecutor) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if run == nil {
		return fmt.Errorf("tool %q has no executor", def.Name)
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, dup := tr.tools[def.Name]; dup {
		return fmt.Errorf("tool %q already registered", def.Name)
	}
	tr.tools[def.Name] = registeredTool{def: def, run: run}
	return nil
}

func (tr *ToolRegistry) Lookup(name string) (ToolDefinition, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.tools[name]
	return t.def, ok
}

// Definitions returns every tool ordered by name.
func (tr *ToolRegistry) Definitions() []ToolDefinition {
	tr.mu.RLock()
	defs := make([]ToolDefinition, 0, len(tr.tools))
	for _, t := range tr.tools {
		defs = append(defs, t.def)
	}
	tr.mu.RUnlock()

	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Functions returns the definitions in function-calling form.
func (tr *ToolRegistry) Functions() []FunctionTool {
	defs := tr.Definitions()
	out := make([]FunctionTool, len(defs))
	for i, def := range defs {
		out[i] = FunctionTool{Type: "function", Function: def}
	}
	return out
}

func (tr *ToolRegistry) Execute(ctx context.Context, call provider.ToolCall) (string, error) {
	tr.mu.RLock()
	t, ok := tr.tools[call.Name]
	tr.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", call.Name)
	}
	return t.run(ctx, call)
}
