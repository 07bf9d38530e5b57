package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/middleware"
	"github.com/BaSui01/agentwatch/types"
)

// ToolResult is the outcome of one successful call.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result"`
	Duration   time.Duration   `json:"duration"`
}

// ToMessage converts the result into a tool message for the next request.
func (tr ToolResult) ToMessage() llm.Message {
	return llm.Message{
		Role:       types.RoleTool,
		ToolCallID: tr.ToolCallID,
		Name:       tr.Name,
		Content:    string(tr.Result),
	}
}

// ToolExecutor runs tool calls requested by the model.
type ToolExecutor interface {
	// Execute runs calls in order and stops at the first failure.
	Execute(ctx context.Context, calls []types.ToolCall) ([]ToolResult, error)
}

// Executor routes every call through a middleware chain.
type Executor struct {
	registry Registry
	handler  middleware.Handler
}

// NewExecutor wraps the registry lookup with chain. A nil chain means no
// middleware.
func NewExecutor(registry Registry, chain *middleware.Chain) *Executor {
	e := &Executor{registry: registry}
	if chain == nil {
		chain = middleware.NewChain()
	}
	e.handler = chain.Then(e.invoke)
	return e
}

// Invoke runs a single call through the chain. Failures are
// *types.ToolInvocationError unless a middleware itself failed (for
// example a timeout or a recovered panic).
func (e *Executor) Invoke(ctx context.Context, call types.ToolCall) (json.RawMessage, error) {
	return e.handler(ctx, call)
}

func (e *Executor) Execute(ctx context.Context, calls []types.ToolCall) ([]ToolResult, error) {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		start := time.Now()
		res, err := e.Invoke(ctx, call)
		if err != nil {
			return results, err
		}
		results = append(results, ToolResult{
			ToolCallID: call.ID,
			Name:       call.Name,
			Result:     res,
			Duration:   time.Since(start),
		})
	}
	return results, nil
}

// invoke is the innermost handler.
func (e *Executor) invoke(ctx context.Context, call types.ToolCall) (json.RawMessage, error) {
	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		te := types.NewToolInvocationError(call.Name, err)
		if errors.Is(err, ErrToolNotFound) {
			te.Code = types.ErrToolNotFound
		}
		return nil, te
	}

	args := call.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if !json.Valid(args) {
		return nil, types.NewToolInvocationError(call.Name, fmt.Errorf("invalid arguments: %s", string(args)))
	}

	if meta.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, meta.Timeout)
		defer cancel()
	}

	res, err := fn(ctx, args)
	if err != nil {
		return nil, types.NewToolInvocationError(call.Name, err)
	}
	if len(res) == 0 {
		res = json.RawMessage(`null`)
	}
	return res, nil
}
