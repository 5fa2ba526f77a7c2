package llm

import (
	"context"
	"encoding/json"
)

// Message is one entry of the conversation sent to the model. Assistant
// messages may carry tool calls; tool messages carry the result for one
// tool call id.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDef describes one callable tool advertised to the model.
type ToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ChatResponse is the model's full turn once the stream has drained.
type ChatResponse struct {
	Content      string     `json:"content"`
	ToolCalls    []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string     `json:"finish_reason"`
}

// Generator defines the interface contract for chat generation services.
// onDelta receives each streamed text fragment as it arrives; it may be nil
// when the caller does not stream.
type Generator interface {
	StreamChat(ctx context.Context, messages []Message, tools []ToolDef, onDelta func(string)) (*ChatResponse, error)
	ModelName() string
}
