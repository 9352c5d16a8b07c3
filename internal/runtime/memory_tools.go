package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/recall/internal/memory"
	"github.com/felixgeelhaar/recall/internal/provider"
	"github.com/felixgeelhaar/recall/internal/scenario"
)

var (
	keyParam = map[string]interface{}{
		"type":        "string",
		"description": "The key of the entry. Keys are unique and case-sensitive.",
	}
	valueParam = map[string]interface{}{
		"type":        "string",
		"description": "The value to store.",
	}
)

func params(required ...string) map[string]interface{} {
	props := map[string]interface{}{}
	for _, name := range required {
		switch name {
		case "key":
			props[name] = keyParam
		case "value":
			props[name] = valueParam
		}
	}
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

type memoryTool struct {
	op          string
	description string
	args        []string
	shortOnly   bool
	run         func(st *memory.Store, t memory.Tier, args map[string]string) (interface{}, error)
}

var memoryTools = []memoryTool{
	{
		op:          "add",
		description: "Add a key-value pair to the %s memory. Make sure to use meaningful keys for easy retrieval later.",
		args:        []string{"key", "value"},
		run: func(st *memory.Store, t memory.Tier, a map[string]string) (interface{}, error) {
			return statusOutput(st.Add(t, a["key"], a["value"])), nil
		},
	},
	{
		op:          "remove",
		description: "Remove a key-value pair from the %s memory.",
		args:        []string{"key"},
		run: func(st *memory.Store, t memory.Tier, a map[string]string) (interface{}, error) {
			return statusOutput(st.Remove(t, a["key"])), nil
		},
	},
	{
		op:          "replace",
		description: "Replace the value of an existing key in the %s memory.",
		args:        []string{"key", "value"},
		run: func(st *memory.Store, t memory.Tier, a map[string]string) (interface{}, error) {
			return statusOutput(st.Replace(t, a["key"], a["value"])), nil
		},
	},
	{
		op:          "clear",
		description: "Clear all key-value pairs from the %s memory.",
		run: func(st *memory.Store, t memory.Tier, _ map[string]string) (interface{}, error) {
			return statusOutput(st.Clear(t)), nil
		},
	},
	{
		op:          "retrieve",
		description: "Retrieve the value associated with a key from the %s memory.",
		args:        []string{"key"},
		run: func(st *memory.Store, t memory.Tier, a map[string]string) (interface{}, error) {
			res := st.Retrieve(t, a["key"])
			if !res.OK() {
				return errorOutput(res), nil
			}
			return map[string]string{"value": res.Value}, nil
		},
	},
	{
		op:          "list_keys",
		description: "List all keys currently in the %s memory.",
		run: func(st *memory.Store, t memory.Tier, _ map[string]string) (interface{}, error) {
			res := st.ListKeys(t)
			if !res.OK() {
				return errorOutput(res), nil
			}
			return map[string][]string{"keys": res.Keys}, nil
		},
	},
	{
		op:          "retrieve_all",
		description: "Retrieve all key-value pairs from the %s memory.",
		shortOnly:   true,
		run: func(st *memory.Store, t memory.Tier, _ map[string]string) (interface{}, error) {
			return st.RetrieveAll(t)
		},
	},
}

// MemoryToolName returns the tool name for an operation on a tier, e.g.
// "short_term_memory_add".
func MemoryToolName(t memory.Tier, op string) string {
	return string(t) + "_memory_" + op
}

// RegisterMemoryTools exposes st to the model as the memory tool suite.
func RegisterMemoryTools(tr *ToolRegistry, st *memory.Store) error {
	for _, tier := range []memory.Tier{memory.ShortTerm, memory.LongTerm} {
		label := strings.ReplaceAll(string(tier), "_", "-")
		for _, tool := range memoryTools {
			if tool.shortOnly && tier != memory.ShortTerm {
				continue
			}
			def := ToolDefinition{
				Name:        MemoryToolName(tier, tool.op),
				Description: fmt.Sprintf(tool.description, label),
				Parameters:  params(tool.args...),
			}
			if err := tr.Register(def, memoryExecutor(st, tier, tool)); err != nil {
				return err
			}
		}
	}
	return nil
}

// MemoryToolRegistry returns the memory tool suite over an empty store. It
// serves listings and name checks; runs register against their own store.
func MemoryToolRegistry() *ToolRegistry {
	tr := NewToolRegistry()
	if err := RegisterMemoryTools(tr, memory.New()); err != nil {
		panic(err)
	}
	return tr
}

// UnknownTools returns the distinct scripted call names in sc that no memory
// tool answers to, in script order.
func UnknownTools(sc *scenario.Scenario) []string {
	tr := MemoryToolRegistry()
	seen := map[string]bool{}
	var unknown []string
	for _, turn := range sc.Turns {
		for _, step := range turn.Steps {
			for _, c := range step {
				if _, ok := tr.Lookup(c.Name); ok || seen[c.Name] {
					continue
				}
				seen[c.Name] = true
				unknown = append(unknown, c.Name)
			}
		}
	}
	return unknown
}

func memoryExecutor(st *memory.Store, tier memory.Tier, tool memoryTool) ToolExecutor {
	return func(ctx context.Context, call provider.ToolCall) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		args, err := decodeArgs(call.Args, tool.args)
		if err != nil {
			return "", fmt.Errorf("%s: %w", call.Name, err)
		}
		out, err := tool.run(st, tier, args)
		if err != nil {
			return "", err
		}
		return toJSON(out)
	}
}

// decodeArgs parses the JSON argument object and converts the named
// arguments to text. Numbers keep their literal spelling.
func decodeArgs(raw string, required []string) (map[string]string, error) {
	values := map[string]interface{}{}
	if strings.TrimSpace(raw) != "" {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
	}

	out := make(map[string]string, len(required))
	for _, name := range required {
		v, ok := values[name]
		if !ok {
			return nil, fmt.Errorf("missing required argument %q", name)
		}
		out[name] = memory.Text(v)
	}
	return out, nil
}

func statusOutput(res memory.Result) map[string]string {
	if !res.OK() {
		return errorOutput(res)
	}
	return map[string]string{"status": res.Message}
}

func errorOutput(res memory.Result) map[string]string {
	return map[string]string{"error": res.Message}
}

func toJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
