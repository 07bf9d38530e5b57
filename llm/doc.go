// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package llm defines the completion provider contract used by agents.

A Provider turns a ChatRequest (ordered messages plus an optional tool
catalog) into a ChatResponse whose first choice carries either text or
tool calls. Failures are reported as *types.ProviderError so callers can
branch on the error code and the retryable flag.

Concrete adapters live under llm/providers. RateLimitedProvider is a
decorator that throttles requests on the client side.
*/
package llm
