package guard

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// Policy bounds what a scripted model may do in one scenario.
type Policy struct {
	// MaxStepsPerTurn caps model responses within a single turn.
	MaxStepsPerTurn int `json:"max_steps_per_turn" yaml:"max_steps_per_turn"`
	// AllowedTools are doublestar patterns matched against tool names.
	AllowedTools []string `json:"allowed_tools" yaml:"allowed_tools"`
}

// DefaultPolicy allows the memory suite and twenty steps per turn.
var DefaultPolicy = Policy{
	MaxStepsPerTurn: 20,
	AllowedTools:    []string{"short_term_memory_*", "long_term_memory_*"},
}

// Violation represents a specific breach of policy.
type Violation struct {
	Rule    string
	Message string
	Fatal   bool
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Rule, v.Message)
}

// Guard enforces the policy.
type Guard struct {
	policy Policy
}

func New(p Policy) *Guard {
	return &Guard{policy: p}
}

// Policy returns the guard's current policy configuration.
func (g *Guard) Policy() Policy {
	return g.policy
}

// CheckSteps reports a violation once step exceeds the per-turn budget.
// Steps are counted from 1.
func (g *Guard) CheckSteps(step int) *Violation {
	if g.policy.MaxStepsPerTurn > 0 && step > g.policy.MaxStepsPerTurn {
		return &Violation{
			Rule:    "max_steps_per_turn",
			Message: fmt.Sprintf("step limit of %d exceeded", g.policy.MaxStepsPerTurn),
			Fatal:   false,
		}
	}
	return nil
}

// CheckTool verifies that a tool name matches one of the allowed patterns.
// An empty allow list permits everything.
func (g *Guard) CheckTool(name string) *Violation {
	if len(g.policy.AllowedTools) == 0 {
		return nil
	}
	for _, pattern := range g.policy.AllowedTools {
		if match, err := doublestar.Match(pattern, name); err == nil && match {
			return nil
		}
	}
	return &Violation{Rule: "allowed_tools", Message: "Tool not allowed: " + name, Fatal: false}
}
