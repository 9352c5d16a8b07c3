package provider

import (
	"context"
)

// Message represents a chat message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool results
}

// Response represents the output from the model.
type Response struct {
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	Usage     Usage      `json:"usage"`
}

// ToolCall is a single function call requested by the model. Args holds the
// JSON encoded argument object.
type ToolCall struct {
	ID   string `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	Args string `json:"args" yaml:"-"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Provider defines the interface for model interactions during a scenario.
type Provider interface {
	// Chat sends the conversation so far and returns the next model response.
	Chat(ctx context.Context, messages []Message) (*Response, error)

	// Name returns the provider identifier (e.g., "scripted").
	Name() string
}
