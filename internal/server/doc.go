// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package server runs the HTTP endpoint that exposes agentwatch metrics.

# Core types

  - Manager: wraps net/http.Server with a non-blocking Start, a
    context-driven Run for use in an errgroup, and graceful Shutdown.
  - Config: listen address and timeouts, usually built from
    config.MetricsConfig.

NewMetricsHandler mounts /metrics (promhttp over the registry filled by the
OTel Prometheus exporter) and /healthz.
*/
package server
