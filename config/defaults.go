// =============================================================================
// agentwatch defaults
// =============================================================================
package config

import "time"

// DefaultConfig returns the built-in configuration: a critic and a producer
// taking turns for at most five turns, until the critic says "approved".
func DefaultConfig() *Config {
	return &Config{
		Chat:         DefaultChatConfig(),
		Participants: DefaultParticipants(),
		Assistant:    DefaultAssistant(),
		LLM:          DefaultLLMConfig(),
		Tools:        DefaultToolsConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
		Metrics:      DefaultMetricsConfig(),
	}
}

// DefaultChatConfig returns the default orchestrator settings.
func DefaultChatConfig() ChatConfig {
	return ChatConfig{
		MaxTurns:            5,
		TerminationCheck:    CheckMessage,
		TerminationKeywords: []string{"approved"},
		CarryHistory:        true,
	}
}

// DefaultParticipants returns the critic/producer pair. The critic speaks first.
func DefaultParticipants() []ParticipantConfig {
	return []ParticipantConfig{
		{
			ID:   "art-director",
			Name: "ArtDirector",
			Instructions: "You are an art director who has opinions about copywriting. " +
				"Decide whether the latest copy is ready to print. If it is, state that it is approved. " +
				"If not, explain how to refine it without giving an example.",
		},
		{
			ID:   "copywriter",
			Name: "CopyWriter",
			Instructions: "You are a copywriter with ten years of experience, brief and dry in tone. " +
				"Produce one proposal per reply, stay on the current goal, and use the feedback you receive to improve it.",
		},
	}
}

// DefaultAssistant returns the single assistant used by assistant mode.
func DefaultAssistant() ParticipantConfig {
	return ParticipantConfig{
		ID:           "assistant",
		Name:         "Assistant",
		Instructions: "You are a helpful assistant that can inspect and switch the lights in the house.",
	}
}

// DefaultLLMConfig returns the default provider settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          ProviderAzure,
		Model:             "gpt-4o",
		APIVersion:        "2024-06-01",
		Timeout:           60 * time.Second,
		Temperature:       0.7,
		MaxTokens:         1024,
		RequestsPerSecond: 0,
		Burst:             1,
		MaxToolRounds:     8,
		ContextTokens:     0,
	}
}

// DefaultToolsConfig returns the default tool catalog settings.
func DefaultToolsConfig() ToolsConfig {
	return ToolsConfig{
		Timeout: 30 * time.Second,
		Lights:  true,
	}
}

// DefaultLogConfig returns the default logger settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default OTel settings. Telemetry is off
// until an exporter is chosen.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		Exporter:     ExporterConsole,
		OTLPEndpoint: "localhost:4317",
		OTLPProtocol: ProtocolGRPC,
		Insecure:     true,
		ServiceName:  "agentwatch",
		SampleRate:   1.0,
		ExportLogs:   true,
	}
}

// DefaultMetricsConfig returns the default scrape endpoint settings.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Addr:            ":9464",
		ReadTimeout:     5 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}
