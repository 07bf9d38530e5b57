package main

import (
	"fmt"
	"io"

	"github.com/BaSui01/agentwatch/agent"
	"github.com/BaSui01/agentwatch/agent/conversation"
	"github.com/BaSui01/agentwatch/config"
	"github.com/BaSui01/agentwatch/internal/metrics"
	"github.com/BaSui01/agentwatch/internal/telemetry"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/middleware"
	"github.com/BaSui01/agentwatch/llm/providers"
	"github.com/BaSui01/agentwatch/llm/providers/openai"
	"github.com/BaSui01/agentwatch/llm/tokenizer"
	"github.com/BaSui01/agentwatch/llm/tools"
	"github.com/BaSui01/agentwatch/llm/tools/lights"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/BaSui01/agentwatch"

// tokenizerFor picks the prompt tokenizer; tests swap in the estimator to
// stay offline.
var tokenizerFor = tokenizer.ForModel

// newProvider builds the go-openai adapter behind the rate limiter.
func newProvider(cfg config.LLMConfig, logger *zap.Logger) llm.Provider {
	p := openai.NewOpenAIProvider(providers.OpenAIConfig{
		BaseProviderConfig: providers.BaseProviderConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.Endpoint,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		},
		Azure:      cfg.Provider == config.ProviderAzure,
		APIVersion: cfg.APIVersion,
	}, logger)
	return llm.NewRateLimitedProvider(p, cfg.RequestsPerSecond, cfg.Burst)
}

// newToolChain orders the invocation middleware from outermost to
// innermost. Recovery sits outside logging so a panicking tool is still
// logged before it is turned into an error.
func newToolChain(cfg config.ToolsConfig, otel *telemetry.Providers, collector *metrics.Collector, logger *zap.Logger) *middleware.Chain {
	return middleware.NewChain(
		middleware.RecoveryMiddleware(func(call middleware.FunctionCall, value any) {
			logger.Error("tool panicked",
				zap.String("function", call.Name),
				zap.Any("value", value))
		}),
		middleware.LoggingMiddleware(logger),
		middleware.TracingMiddleware(otel.Tracer(instrumentationName)),
		middleware.MetricsMiddleware(collector),
		middleware.TimeoutMiddleware(cfg.Timeout),
	)
}

// buildConsole wires provider, tools, participants and orchestrator for
// mode.
func buildConsole(mode string, cfg *config.Config, provider llm.Provider, otel *telemetry.Providers, logger *zap.Logger, in io.Reader, out io.Writer) (*Console, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	collector, err := metrics.NewCollector(otel.Meter(instrumentationName), logger)
	if err != nil {
		return nil, fmt.Errorf("create metrics collector: %w", err)
	}
	tracer := otel.Tracer(instrumentationName)

	completerOpts := []agent.CompleterOption{
		agent.WithTracer(tracer),
		agent.WithUsageRecorder(collector),
		agent.WithLogger(logger),
		agent.WithTokenizer(tokenizerFor(cfg.LLM.Model)),
	}
	if mode == modeAssistant && cfg.Tools.Lights {
		registry := tools.NewDefaultRegistry(logger)
		if err := lights.New().Register(registry); err != nil {
			return nil, fmt.Errorf("register lights: %w", err)
		}
		executor := tools.NewExecutor(registry, newToolChain(cfg.Tools, otel, collector, logger))
		completerOpts = append(completerOpts, agent.WithTools(registry, executor))
	}

	completer, err := agent.NewCompleter(provider, agent.CompleterConfig{
		Model:         cfg.LLM.Model,
		MaxTokens:     cfg.LLM.MaxTokens,
		Temperature:   float32(cfg.LLM.Temperature),
		MaxToolRounds: cfg.LLM.MaxToolRounds,
		ContextTokens: cfg.LLM.ContextTokens,
		SensitiveData: cfg.Telemetry.SensitiveData,
	}, completerOpts...)
	if err != nil {
		return nil, err
	}

	var (
		participants []*conversation.Participant
		policy       conversation.TerminationPolicy
		chatCfg      conversation.Config
		carryHistory bool
	)
	switch mode {
	case modeAssistant:
		p, err := newParticipant(cfg.Assistant, completer)
		if err != nil {
			return nil, err
		}
		// One reply per input; the assistant always remembers the chat.
		participants = []*conversation.Participant{p}
		policy = conversation.NeverPolicy{}
		chatCfg = conversation.Config{MaxTurns: 1, SessionTimeout: cfg.Chat.SessionTimeout}
		carryHistory = true
	default:
		for _, pc := range cfg.Participants {
			p, err := newParticipant(pc, completer)
			if err != nil {
				return nil, err
			}
			participants = append(participants, p)
		}
		policy = conversation.NewKeywordPolicy(cfg.Chat.TerminationKeywords...)
		chatCfg = conversation.Config{
			MaxTurns:       cfg.Chat.MaxTurns,
			Check:          checkMode(cfg.Chat),
			SessionTimeout: cfg.Chat.SessionTimeout,
		}
		carryHistory = cfg.Chat.CarryHistory
	}

	orch, err := conversation.NewOrchestrator(participants, policy, chatCfg,
		conversation.WithLogger(logger),
		conversation.WithTracer(tracer),
		conversation.WithMetrics(collector),
	)
	if err != nil {
		return nil, err
	}
	return NewConsole(orch, in, out, carryHistory, logger), nil
}

func newParticipant(pc config.ParticipantConfig, r conversation.Responder) (*conversation.Participant, error) {
	return conversation.NewParticipant(pc.ID, pc.Name, pc.Instructions, r)
}

func checkMode(c config.ChatConfig) conversation.CheckMode {
	if c.CheckRoundBoundary() {
		return conversation.CheckRoundBoundary
	}
	return conversation.CheckEveryMessage
}
