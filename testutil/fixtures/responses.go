// =============================================================================
// Test fixtures: completion responses
// =============================================================================
package fixtures

import (
	"encoding/json"
	"time"

	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/types"
)

// SimpleResponse returns a text completion.
func SimpleResponse(content string) *llm.ChatResponse {
	return &llm.ChatResponse{
		ID:       "resp-001",
		Provider: "mock",
		Model:    "gpt-4o",
		Choices: []llm.ChatChoice{
			{
				Index:        0,
				FinishReason: "stop",
				Message: llm.Message{
					Role:    types.RoleAssistant,
					Content: content,
				},
			},
		},
		Usage: llm.ChatUsage{
			PromptTokens:     10,
			CompletionTokens: 20,
			TotalTokens:      30,
		},
		CreatedAt: time.Now(),
	}
}

// ResponseWithUsage returns a text completion with custom usage.
func ResponseWithUsage(content string, promptTokens, completionTokens int) *llm.ChatResponse {
	resp := SimpleResponse(content)
	resp.Usage = llm.ChatUsage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
	return resp
}

// ResponseWithToolCalls returns a completion requesting tool calls.
func ResponseWithToolCalls(toolCalls ...types.ToolCall) *llm.ChatResponse {
	resp := SimpleResponse("")
	resp.ID = "resp-tool-001"
	resp.Choices[0].FinishReason = "tool_calls"
	resp.Choices[0].Message.ToolCalls = toolCalls
	return resp
}

// ToolCall builds a call with JSON-encoded arguments.
func ToolCall(id, name string, args any) types.ToolCall {
	raw, err := json.Marshal(args)
	if err != nil {
		panic(err)
	}
	return types.ToolCall{ID: id, Name: name, Arguments: raw}
}
