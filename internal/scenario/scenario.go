// Package scenario loads scripted multi-turn conversations that drive the
// memory tools.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/recall/internal/entry"
	"github.com/felixgeelhaar/recall/internal/provider"
)

// Call is one scripted tool invocation.
type Call struct {
	ID   string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name string         `json:"name" yaml:"name"`
	Args map[string]any `json:"args,omitempty" yaml:"args,omitempty"`
}

// UnmarshalYAML decodes a call keeping numeric arguments in their literal
// spelling, so 3.10 reaches the tools as "3.10" rather than 3.1.
func (c *Call) UnmarshalYAML(node *yaml.Node) error {
	var raw struct {
		ID   string    `yaml:"id"`
		Name string    `yaml:"name"`
		Args yaml.Node `yaml:"args"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	c.ID, c.Name, c.Args = raw.ID, raw.Name, nil
	if raw.Args.Kind == 0 {
		return nil
	}
	v, err := nodeValue(&raw.Args)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	args, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("line %d: call %s: args must be a mapping", raw.Args.Line, raw.Name)
	}
	c.Args = args
	return nil
}

func nodeValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		list := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		return list, nil
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			if json.Valid([]byte(n.Value)) {
				return json.Number(n.Value), nil
			}
		case "!!str":
			return n.Value, nil
		}
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Turn is a user question followed by the model steps that answer it. Each
// step is the batch of calls returned by one model response.
type Turn struct {
	Question string   `json:"question" yaml:"question"`
	Steps    [][]Call `json:"steps" yaml:"steps"`
}

// Scenario is a scripted conversation against one memory store.
type Scenario struct {
	ID          string `json:"id" yaml:"id"`
	Model       string `json:"model" yaml:"model"`
	LongContext bool   `json:"long_context" yaml:"long_context"`
	Turns       []Turn `json:"turns" yaml:"turns"`
}

// ValidationResult represents the outcome of a linting pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Load reads a scenario from a file (JSON or YAML).
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var sc Scenario
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON scenario: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML scenario: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported scenario format: %s (use .json or .yaml)", ext)
	}

	return &sc, nil
}

// Validate checks the scenario for completeness.
func Validate(sc Scenario) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}

	if sc.ID == "" {
		res.Valid = false
		res.Errors = append(res.Errors, "id is required")
	} else if _, err := entry.Parse(sc.ID); err != nil {
		res.Valid = false
		res.Errors = append(res.Errors, err.Error())
	}

	if len(sc.Turns) == 0 {
		res.Valid = false
		res.Errors = append(res.Errors, "at least one turn is required")
	}

	for t, turn := range sc.Turns {
		if strings.TrimSpace(turn.Question) == "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("turn %d has no question", t))
		}
		for s, step := range turn.Steps {
			for c, call := range step {
				if call.Name == "" {
					res.Valid = false
					res.Errors = append(res.Errors, fmt.Sprintf("turn %d step %d call %d has no name", t, s, c))
				}
			}
		}
	}

	return res
}

// ToolCalls converts the script into the form replayed by
// provider.ScriptedProvider. Calls without an id get one derived from their
// position.
func (sc *Scenario) ToolCalls() ([][][]provider.ToolCall, error) {
	turns := make([][][]provider.ToolCall, len(sc.Turns))
	for t, turn := range sc.Turns {
		turns[t] = make([][]provider.ToolCall, len(turn.Steps))
		for s, step := range turn.Steps {
			calls := make([]provider.ToolCall, len(step))
			for c, call := range step {
				args := call.Args
				if args == nil {
					args = map[string]any{}
				}
				raw, err := json.Marshal(args)
				if err != nil {
					return nil, fmt.Errorf("turn %d step %d call %s: encode args: %w", t, s, call.Name, err)
				}
				id := call.ID
				if id == "" {
					id = fmt.Sprintf("call_%d_%d_%d", t, s, c)
				}
				calls[c] = provider.ToolCall{ID: id, Name: call.Name, Args: string(raw)}
			}
			turns[t][s] = calls
		}
	}
	return turns, nil
}
