package config

import (
	"fmt"
	"strings"

	"github.com/BaSui01/agentwatch/types"
)

// Termination check modes.
const (
	CheckMessage = "message"
	CheckRound   = "round"
)

// Provider kinds.
const (
	ProviderAzure  = "azure"
	ProviderOpenAI = "openai"
)

// Telemetry exporters.
const (
	ExporterNone       = "none"
	ExporterConsole    = "console"
	ExporterOTLP       = "otlp"
	ExporterLangfuse   = "langfuse"
	ExporterPrometheus = "prometheus"
)

// OTLP transports.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Validate reports every invalid setting at once. The result unwraps to
// *types.ConfigurationError values.
func (c *Config) Validate() error {
	var errs []*types.ConfigurationError
	add := func(field, format string, args ...any) {
		errs = append(errs, types.NewConfigurationError(field, fmt.Sprintf(format, args...)))
	}

	if c.Chat.MaxTurns <= 0 {
		add("chat.max_turns", "must be positive, got %d", c.Chat.MaxTurns)
	}
	switch c.Chat.TerminationCheck {
	case CheckMessage, CheckRound:
	default:
		add("chat.termination_check", "unknown mode %q", c.Chat.TerminationCheck)
	}
	if c.Chat.SessionTimeout < 0 {
		add("chat.session_timeout", "must not be negative")
	}

	if len(c.Participants) == 0 {
		add("participants", "at least one participant is required")
	}
	seen := make(map[string]bool, len(c.Participants))
	for i, p := range c.Participants {
		field := fmt.Sprintf("participants[%d]", i)
		switch {
		case strings.TrimSpace(p.ID) == "":
			add(field+".id", "is required")
		case seen[p.ID]:
			add(field+".id", "duplicate participant id %q", p.ID)
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Instructions) == "" {
			add(field+".instructions", "is required")
		}
	}

	switch c.LLM.Provider {
	case ProviderAzure:
		if c.LLM.Endpoint == "" {
			add("llm.endpoint", "is required for azure")
		}
	case ProviderOpenAI:
	default:
		add("llm.provider", "unknown provider %q", c.LLM.Provider)
	}
	if c.LLM.Model == "" {
		add("llm.model", "is required")
	}
	if c.LLM.APIKey == "" {
		add("llm.api_key", "is required")
	}
	if c.LLM.MaxToolRounds <= 0 {
		add("llm.max_tool_rounds", "must be positive, got %d", c.LLM.MaxToolRounds)
	}
	if c.LLM.RequestsPerSecond < 0 {
		add("llm.requests_per_second", "must not be negative")
	}
	if c.LLM.ContextTokens < 0 {
		add("llm.context_tokens", "must not be negative")
	}

	if c.Tools.Timeout < 0 {
		add("tools.timeout", "must not be negative")
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("log.level", "unknown level %q", c.Log.Level)
	}

	if c.Telemetry.Enabled {
		c.validateTelemetry(add)
	}

	return types.JoinConfigurationErrors(errs)
}

func (c *Config) validateTelemetry(add func(field, format string, args ...any)) {
	t := c.Telemetry
	switch t.Exporter {
	case ExporterNone, ExporterConsole:
	case ExporterOTLP:
		if t.OTLPEndpoint == "" {
			add("telemetry.otlp_endpoint", "is required for the otlp exporter")
		}
		switch t.OTLPProtocol {
		case "", ProtocolGRPC, ProtocolHTTP:
		default:
			add("telemetry.otlp_protocol", "unknown protocol %q", t.OTLPProtocol)
		}
	case ExporterLangfuse:
		if t.Langfuse.Endpoint == "" {
			add("telemetry.langfuse.endpoint", "is required for the langfuse exporter")
		}
		if t.Langfuse.PublicKey == "" || t.Langfuse.SecretKey == "" {
			add("telemetry.langfuse", "public_key and secret_key are required")
		}
	default:
		add("telemetry.exporter", "unknown exporter %q", t.Exporter)
	}

	switch t.MetricsExporter {
	case "", ExporterNone, ExporterConsole, ExporterOTLP:
	case ExporterPrometheus:
		if c.Metrics.Addr == "" {
			add("metrics.addr", "is required for the prometheus exporter")
		}
	default:
		add("telemetry.metrics_exporter", "unknown exporter %q", t.MetricsExporter)
	}

	if t.SampleRate < 0 || t.SampleRate > 1 {
		add("telemetry.sample_rate", "must be within [0, 1], got %g", t.SampleRate)
	}
}

// ResolvedMetricsExporter returns the metrics exporter, following the trace
// exporter when none is set. Langfuse accepts traces only, so it maps to none.
func (t TelemetryConfig) ResolvedMetricsExporter() string {
	if t.MetricsExporter != "" {
		return t.MetricsExporter
	}
	switch t.Exporter {
	case ExporterOTLP, ExporterConsole:
		return t.Exporter
	default:
		return ExporterNone
	}
}

// CheckRoundBoundary reports whether the termination policy runs only at
// round boundaries.
func (c ChatConfig) CheckRoundBoundary() bool {
	return c.TerminationCheck == CheckRound
}
