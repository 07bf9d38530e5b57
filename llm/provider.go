package llm

import (
	"context"
	"time"

	"github.com/BaSui01/agentwatch/types"
)

// Message is one entry of the prompt sent to a provider.
type Message struct {
	Role       types.Role       `json:"role"`
	Content    string           `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCalls  []types.ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"` // set on tool results
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model       string             `json:"model"`
	Messages    []Message          `json:"messages"`
	MaxTokens   int                `json:"max_tokens,omitempty"`
	Temperature float32            `json:"temperature,omitempty"`
	Tools       []types.ToolSchema `json:"tools,omitempty"`
	ToolChoice  string             `json:"tool_choice,omitempty"` // auto/none/<tool name>
	User        string             `json:"user,omitempty"`
}

type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage,omitempty"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// FirstMessage returns the message of the first choice, or false when the
// provider returned no choices.
func (r *ChatResponse) FirstMessage() (Message, bool) {
	if r == nil || len(r.Choices) == 0 {
		return Message{}, false
	}
	return r.Choices[0].Message, true
}

// Provider is a chat completion backend.
// Tools are passed through ChatRequest.Tools; the provider only returns
// ToolCalls and never executes them (see llm/tools).
type Provider interface {
	// Completion sends a request and waits for the full response.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Name identifies the provider in logs and errors.
	Name() string
}
