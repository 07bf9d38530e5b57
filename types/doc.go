// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types holds the shared error taxonomy and wire-level value types used by
every other agentwatch package.

# Overview

types has no dependency on other agentwatch packages so that agent, llm and
config can all import it without cycles.

# Core types

  - ProviderError: completion provider failure with code and HTTP status
  - ToolInvocationError: a tool call that raised during a turn
  - ConfigurationError: missing or invalid settings, fatal at startup
  - ErrorCode: stable codes shared by the error kinds
  - Role, ToolCall and ToolSchema: minimal message and tool contracts

# Helpers

  - IsRetryable / GetErrorCode work on any error chain via errors.As
  - JoinConfigurationErrors merges field-level validation failures
*/
package types
