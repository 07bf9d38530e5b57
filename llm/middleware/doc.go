// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package middleware wraps tool (function) invocations with composable
cross-cutting behaviour: structured logging with timing, tracing, metrics,
timeouts and panic recovery.

# Model

  - Handler: func(ctx, FunctionCall) (json.RawMessage, error), one tool call.
  - Middleware: func(Handler) Handler, a decorator.
  - Chain: ordered middleware; the first one added is the outermost.

# Error fidelity

Middleware never rewrites an error returned by the wrapped handler. The
caller sees exactly the value the tool produced, so errors.As and errors.Is
keep working across the chain. RecoveryMiddleware is the single exception:
it turns a non-error panic value into *PanicError.

# Logging

LoggingMiddleware emits "invocation started" before the call and exactly one
closing entry, "invocation completed" or "invocation failed", from a deferred
block. The closing entry is written even when the handler panics or the
context is cancelled. Elapsed time is rendered as HH:MM:SS.hh by
FormatElapsed and also reported in milliseconds.
*/
package middleware
