package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/BaSui01/agentwatch/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FunctionCall is one tool invocation requested by the model.
type FunctionCall = types.ToolCall

// Handler executes a function call and returns its JSON result.
type Handler func(ctx context.Context, call FunctionCall) (json.RawMessage, error)

// Middleware wraps a handler with extra behaviour.
type Middleware func(next Handler) Handler

// Chain is an ordered list of middleware.
type Chain struct {
	middlewares []Middleware
	mu          sync.RWMutex
}

// NewChain creates a chain.
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{
		middlewares: middlewares,
	}
}

// Use appends m; it runs inside everything added before it.
func (c *Chain) Use(m Middleware) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append(c.middlewares, m)
	return c
}

// UseFront makes m the outermost middleware.
func (c *Chain) UseFront(m Middleware) *Chain {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middlewares = append([]Middleware{m}, c.middlewares...)
	return c
}

// Then wraps h with every middleware in the chain.
func (c *Chain) Then(h Handler) Handler {
	c.mu.RLock()
	defer c.mu.RUnlock()

	// applied in reverse so index 0 ends up outermost
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		h = c.middlewares[i](h)
	}
	return h
}

// Len returns the number of middleware in the chain.
func (c *Chain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.middlewares)
}

// =============================================================================
// Built-in middleware
// =============================================================================

// TimeoutMiddleware bounds each invocation. A non-positive timeout disables it.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next Handler) Handler {
		if timeout <= 0 {
			return next
		}
		return func(ctx context.Context, call FunctionCall) (json.RawMessage, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, call)
		}
	}
}

// MetricsCollector receives one record per invocation.
type MetricsCollector interface {
	RecordInvocation(ctx context.Context, function string, duration time.Duration, err error)
}

// MetricsMiddleware reports invocation count and duration.
func MetricsMiddleware(collector MetricsCollector) Middleware {
	return func(next Handler) Handler {
		if collector == nil {
			return next
		}
		return func(ctx context.Context, call FunctionCall) (json.RawMessage, error) {
			start := time.Now()
			result, err := next(ctx, call)
			collector.RecordInvocation(ctx, call.Name, time.Since(start), err)
			return result, err
		}
	}
}

// TracingMiddleware runs each invocation under a "tool.invoke" span.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	return func(next Handler) Handler {
		if tracer == nil {
			return next
		}
		return func(ctx context.Context, call FunctionCall) (json.RawMessage, error) {
			ctx, span := tracer.Start(ctx, "tool.invoke",
				trace.WithSpanKind(trace.SpanKindInternal),
				trace.WithAttributes(
					attribute.String("gen_ai.operation.name", "execute_tool"),
					attribute.String("gen_ai.tool.name", call.Name),
					attribute.String("gen_ai.tool.call.id", call.ID),
				),
			)
			defer span.End()

			result, err := next(ctx, call)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return result, err
			}
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
	}
}

// PanicError reports a tool that panicked with a non-error value.
type PanicError struct {
	Function string
	Value    any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("tool %s panicked: %v", e.Function, e.Value)
}

// RecoveryMiddleware turns a panic into an error. A panic carrying an error
// value is returned as that error; anything else becomes *PanicError.
func RecoveryMiddleware(onPanic func(call FunctionCall, value any)) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, call FunctionCall) (result json.RawMessage, err error) {
			defer func() {
				if r := recover(); r != nil {
					if onPanic != nil {
						onPanic(call, r)
					}
					if e, ok := r.(error); ok {
						err = e
					} else {
						err = &PanicError{Function: call.Name, Value: r}
					}
					result = nil
				}
			}()
			return next(ctx, call)
		}
	}
}
