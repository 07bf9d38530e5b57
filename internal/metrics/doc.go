// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package metrics records agentwatch metrics through OpenTelemetry
instruments.

# Core types

  - Collector: holds the counters and histograms and implements the
    recorder interfaces of the orchestrator (conversation.MetricsRecorder),
    the tool middleware (middleware.MetricsCollector) and the completer
    (agent.UsageRecorder).

# Instruments

  - agentwatch.conversation.turns / .turn.duration by participant and status
  - agentwatch.conversation.sessions / .session.turns / .session.duration
    by termination reason
  - agentwatch.tool.invocations / .invocation.duration by function and status
  - gen_ai.client.token.usage by model and token type

The meter comes from telemetry.Providers, so the same instruments feed
OTLP, console or the Prometheus scrape endpoint depending on config.
*/
package metrics
