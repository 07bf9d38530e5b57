package tools

import (
	"context"
	"fmt"

	"github.com/BaSui01/agentwatch/llm"
	"go.uber.org/zap"
)

// ErrMaxIterations is returned when the model keeps requesting tools past
// the configured limit.
var ErrMaxIterations = fmt.Errorf("max tool iterations reached")

// ReActConfig defines ReAct loop configuration.
type ReActConfig struct {
	MaxIterations int // provider round trips per Execute; prevents endless tool loops
}

// ReActStep records one provider round trip.
type ReActStep struct {
	StepNumber   int               `json:"step_number"`
	Thought      string            `json:"thought,omitempty"`
	Actions      []llm.Message     `json:"actions,omitempty"`
	Observations []ToolResult      `json:"observations,omitempty"`
	TokensUsed   int               `json:"tokens_used,omitempty"`
	Response     *llm.ChatResponse `json:"-"`
}

// ReActExecutor drives "provider -> tools -> provider" until the model
// answers without tool calls.
type ReActExecutor struct {
	provider     llm.Provider
	toolExecutor ToolExecutor
	logger       *zap.Logger
	config       ReActConfig
}

// NewReActExecutor creates a ReAct executor.
func NewReActExecutor(provider llm.Provider, toolExecutor ToolExecutor, config ReActConfig, logger *zap.Logger) *ReActExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = 10
	}
	return &ReActExecutor{
		provider:     provider,
		toolExecutor: toolExecutor,
		logger:       logger.With(zap.String("component", "react")),
		config:       config,
	}
}

// Execute runs the loop and returns the final response with every step.
// Provider and tool errors are returned as produced, without wrapping.
func (r *ReActExecutor) Execute(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, []ReActStep, error) {
	steps := make([]ReActStep, 0, 1)
	messages := append([]llm.Message{}, req.Messages...)

	for i := 0; i < r.config.MaxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, steps, err
		}

		callReq := *req
		callReq.Messages = messages
		resp, err := r.provider.Completion(ctx, &callReq)
		if err != nil {
			return nil, steps, err
		}

		msg, ok := resp.FirstMessage()
		if !ok {
			return resp, steps, fmt.Errorf("no choices in %s response", r.provider.Name())
		}

		step := ReActStep{
			StepNumber: i + 1,
			Thought:    msg.Content,
			TokensUsed: resp.Usage.TotalTokens,
			Response:   resp,
		}

		if len(msg.ToolCalls) == 0 || r.toolExecutor == nil {
			r.logger.Debug("react completed", zap.Int("iterations", i+1), zap.String("finish_reason", resp.Choices[0].FinishReason))
			steps = append(steps, step)
			return resp, steps, nil
		}

		r.logger.Debug("executing tools", zap.Int("iteration", i+1), zap.Int("count", len(msg.ToolCalls)))
		step.Actions = []llm.Message{msg}
		results, err := r.toolExecutor.Execute(ctx, msg.ToolCalls)
		step.Observations = results
		steps = append(steps, step)
		if err != nil {
			return nil, steps, err
		}

		messages = append(messages, msg)
		for _, result := range results {
			messages = append(messages, result.ToMessage())
		}
	}

	r.logger.Warn("react max iterations reached", zap.Int("max", r.config.MaxIterations))
	return nil, steps, fmt.Errorf("%w (%d)", ErrMaxIterations, r.config.MaxIterations)
}
