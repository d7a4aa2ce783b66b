package llm

import "context"

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ParamSpec describes one parameter of a tool for tool-calling.
type ParamSpec struct {
	Type        string
	Description string
}

// ToolDescriptor describes a callable tool to the model.
type ToolDescriptor struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Name string
	Args map[string]any
}

// ToolResponse is the model's answer when tool-calling is enabled: free text,
// tool calls, or both.
type ToolResponse struct {
	Text      string
	ToolCalls []ToolCall
}

// Client defines the interface for interacting with a generative model.
type Client interface {
	// Complete sends a conversation with an optional system prompt and
	// returns the model's text response.
	Complete(ctx context.Context, messages []Message, systemPrompt string) (string, error)

	// CompleteWithTools sends a conversation with tool descriptors attached
	// and returns text and/or the tool calls the model issued.
	CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ToolResponse, error)

	// IsAPIKeyValid checks if the configured API key is functional.
	IsAPIKeyValid(ctx context.Context) error

	// Close cleans up any resources used by the client.
	Close() error
}
