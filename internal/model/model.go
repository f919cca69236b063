// Package model defines the chat model contract the agent loop runs against.
// The concrete network client is supplied by the embedding application; this
// package carries the message types, the model catalog, and a deterministic
// scripted implementation used in tests and offline mode.
package model

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in a conversation transcript.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID   string                 `json:"id"`
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args"`
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// Turn is the model's complete response for one invocation: the assistant
// text plus any tool calls it wants executed.
type Turn struct {
	Content   string
	ToolCalls []ToolCall
}

// Model streams one assistant turn. onToken is invoked for each incremental
// content chunk before the complete turn is returned.
type Model interface {
	Name() string
	Stream(ctx context.Context, system string, msgs []Message, tools []ToolSpec, onToken func(string)) (*Turn, error)
}
