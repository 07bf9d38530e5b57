package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/agentwatch/agent/conversation"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/tokenizer"
	"github.com/BaSui01/agentwatch/llm/tools"
	"github.com/BaSui01/agentwatch/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// CompleterConfig holds per-request model settings.
type CompleterConfig struct {
	Model         string
	MaxTokens     int
	Temperature   float32
	MaxToolRounds int // provider round trips per turn when tools are attached
	ContextTokens int // prompt budget; 0 uses the tokenizer's context window
	SensitiveData bool
}

// UsageRecorder receives token usage for every completed turn.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, participant, model string, usage llm.ChatUsage)
}

// CompleterOption configures a Completer.
type CompleterOption func(*Completer)

// WithTools attaches a tool catalog. Every call the model requests is run
// through executor, which carries the middleware chain.
func WithTools(registry tools.Registry, executor tools.ToolExecutor) CompleterOption {
	return func(c *Completer) {
		c.registry = registry
		c.executor = executor
	}
}

// WithTokenizer overrides the tokenizer used for prompt trimming.
func WithTokenizer(t tokenizer.Tokenizer) CompleterOption {
	return func(c *Completer) { c.tokenizer = t }
}

func WithTracer(tracer trace.Tracer) CompleterOption {
	return func(c *Completer) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

func WithUsageRecorder(r UsageRecorder) CompleterOption {
	return func(c *Completer) { c.usage = r }
}

func WithLogger(logger *zap.Logger) CompleterOption {
	return func(c *Completer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Completer answers on behalf of a participant using an llm.Provider.
// It holds no per-conversation state and may be shared by participants.
type Completer struct {
	provider  llm.Provider
	registry  tools.Registry
	executor  tools.ToolExecutor
	react     *tools.ReActExecutor
	tokenizer tokenizer.Tokenizer
	tracer    trace.Tracer
	usage     UsageRecorder
	logger    *zap.Logger
	config    CompleterConfig
}

// NewCompleter creates a Completer. Without WithTokenizer the tokenizer is
// chosen from the model name.
func NewCompleter(provider llm.Provider, cfg CompleterConfig, opts ...CompleterOption) (*Completer, error) {
	if provider == nil {
		return nil, ErrProviderNotSet
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, types.NewConfigurationError("llm.model", "is required")
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 8
	}

	c := &Completer{
		provider: provider,
		tracer:   noop.NewTracerProvider().Tracer(""),
		logger:   zap.NewNop(),
		config:   cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenizer == nil {
		c.tokenizer = tokenizer.ForModel(cfg.Model)
	}
	c.logger = c.logger.With(zap.String("component", "completer"), zap.String("model", cfg.Model))
	if c.executor != nil {
		c.react = tools.NewReActExecutor(provider, c.executor, tools.ReActConfig{
			MaxIterations: cfg.MaxToolRounds,
		}, c.logger)
	}
	return c, nil
}

// Respond implements conversation.Responder. Provider and tool errors are
// returned unchanged so callers can match them with errors.As.
func (c *Completer) Respond(ctx context.Context, req conversation.RespondRequest) (string, error) {
	p := req.Participant
	messages := c.trim(BuildMessages(p, req.Transcript))

	ctx, span := c.tracer.Start(ctx, "chat "+c.config.Model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.system", c.provider.Name()),
			attribute.String("gen_ai.request.model", c.config.Model),
			attribute.String("gen_ai.agent.name", p.DisplayName()),
			attribute.Int("gen_ai.request.max_tokens", c.config.MaxTokens),
			attribute.Float64("gen_ai.request.temperature", float64(c.config.Temperature)),
		))
	defer span.End()

	if c.config.SensitiveData {
		span.AddEvent("gen_ai.content.prompt", trace.WithAttributes(
			attribute.String("gen_ai.prompt", encodePrompt(messages))))
	}

	chatReq := &llm.ChatRequest{
		Model:       c.config.Model,
		Messages:    messages,
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
		User:        p.ID(),
	}

	var (
		resp  *llm.ChatResponse
		usage llm.ChatUsage
		err   error
	)
	if c.react != nil && c.registry != nil {
		chatReq.Tools = c.registry.List()
		var steps []tools.ReActStep
		resp, steps, err = c.react.Execute(ctx, chatReq)
		for _, step := range steps {
			if step.Response != nil {
				usage = addUsage(usage, step.Response.Usage)
			}
		}
		span.SetAttributes(attribute.Int("agentwatch.tool_rounds", len(steps)))
	} else {
		resp, err = c.provider.Completion(ctx, chatReq)
		if resp != nil {
			usage = resp.Usage
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	msg, ok := resp.FirstMessage()
	if !ok {
		err = fmt.Errorf("%w: %s", ErrEmptyResponse, c.provider.Name())
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.id", resp.ID),
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.StringSlice("gen_ai.response.finish_reasons", []string{resp.Choices[0].FinishReason}),
		attribute.Int("gen_ai.usage.input_tokens", usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", usage.CompletionTokens),
	)
	if c.config.SensitiveData {
		span.AddEvent("gen_ai.content.completion", trace.WithAttributes(
			attribute.String("gen_ai.completion", msg.Content)))
	}
	span.SetStatus(codes.Ok, "")

	if c.usage != nil {
		c.usage.RecordUsage(ctx, p.ID(), c.config.Model, usage)
	}
	c.logger.Debug("completion done",
		zap.String("participant", p.ID()),
		zap.Int("prompt_tokens", usage.PromptTokens),
		zap.Int("completion_tokens", usage.CompletionTokens))

	return msg.Content, nil
}

// trim drops the oldest non-system messages until the prompt fits. Counting
// failures are logged and the prompt is sent untrimmed.
func (c *Completer) trim(messages []llm.Message) []llm.Message {
	budget := c.config.ContextTokens
	if budget <= 0 {
		budget = c.tokenizer.MaxTokens()
	}
	if c.config.MaxTokens > 0 && budget > c.config.MaxTokens {
		budget -= c.config.MaxTokens
	}

	split := 0
	for split < len(messages) && messages[split].Role == types.RoleSystem {
		split++
	}
	fixed, history := toTokenMessages(messages[:split]), toTokenMessages(messages[split:])

	start, err := tokenizer.Fit(c.tokenizer, fixed, history, budget)
	if err != nil {
		c.logger.Warn("prompt exceeds token budget",
			zap.Int("budget", budget),
			zap.String("tokenizer", c.tokenizer.Name()),
			zap.Error(err))
		if start <= 0 {
			return messages
		}
	}
	if start == 0 {
		return messages
	}
	c.logger.Debug("prompt trimmed", zap.Int("dropped", start), zap.Int("budget", budget))
	out := make([]llm.Message, 0, len(messages)-start)
	out = append(out, messages[:split]...)
	return append(out, messages[split+start:]...)
}

// BuildMessages maps a transcript to the prompt seen by p.
func BuildMessages(p *conversation.Participant, transcript []conversation.Message) []llm.Message {
	out := make([]llm.Message, 0, len(transcript)+1)
	if p.Instructions() != "" {
		out = append(out, llm.Message{Role: types.RoleSystem, Content: p.Instructions()})
	}
	for _, m := range transcript {
		switch {
		case m.Author == p.ID():
			out = append(out, llm.Message{Role: types.RoleAssistant, Content: m.Content})
		case m.FromUser():
			out = append(out, llm.Message{Role: types.RoleUser, Content: m.Content})
		default:
			name := m.AuthorName
			if name == "" {
				name = m.Author
			}
			out = append(out, llm.Message{
				Role:    types.RoleUser,
				Name:    sanitizeName(name),
				Content: m.Content,
			})
		}
	}
	return out
}

// sanitizeName keeps the characters OpenAI accepts in a message name.
func sanitizeName(name string) string {
	s := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		case r == ' ':
			return '_'
		}
		return -1
	}, name)
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

func toTokenMessages(msgs []llm.Message) []tokenizer.Message {
	out := make([]tokenizer.Message, len(msgs))
	for i, m := range msgs {
		out[i] = tokenizer.Message{Role: string(m.Role), Content: m.Content}
	}
	return out
}

func addUsage(a, b llm.ChatUsage) llm.ChatUsage {
	return llm.ChatUsage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

func encodePrompt(messages []llm.Message) string {
	b, err := json.Marshal(messages)
	if err != nil {
		return ""
	}
	return string(b)
}
