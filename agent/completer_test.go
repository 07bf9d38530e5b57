package agent

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/agentwatch/agent/conversation"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/middleware"
	"github.com/BaSui01/agentwatch/llm/tokenizer"
	"github.com/BaSui01/agentwatch/llm/tools"
	"github.com/BaSui01/agentwatch/llm/tools/lights"
	"github.com/BaSui01/agentwatch/testutil"
	"github.com/BaSui01/agentwatch/testutil/fixtures"
	"github.com/BaSui01/agentwatch/testutil/mocks"
	"github.com/BaSui01/agentwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() CompleterConfig {
	return CompleterConfig{Model: "gpt-4o", MaxTokens: 256, Temperature: 0.2}
}

func estimator() CompleterOption {
	return WithTokenizer(tokenizer.NewEstimatorTokenizer(8192))
}

func participant(t *testing.T, id, name, instructions string, r conversation.Responder) *conversation.Participant {
	t.Helper()
	p, err := conversation.NewParticipant(id, name, instructions, r)
	require.NoError(t, err)
	return p
}

func msg(author, name, content string) conversation.Message {
	role := types.RoleAssistant
	if author == conversation.UserAuthor {
		role = types.RoleUser
	}
	return conversation.Message{Author: author, AuthorName: name, Role: role, Content: content, Timestamp: time.Now()}
}

type usageSpy struct {
	mu    sync.Mutex
	calls []llm.ChatUsage
}

func (u *usageSpy) RecordUsage(_ context.Context, _, _ string, usage llm.ChatUsage) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, usage)
}

func TestNewCompleter_Validation(t *testing.T) {
	_, err := NewCompleter(nil, testConfig())
	assert.ErrorIs(t, err, ErrProviderNotSet)

	_, err = NewCompleter(mocks.NewMockProvider(), CompleterConfig{})
	var cfgErr *types.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBuildMessages(t *testing.T) {
	writer := participant(t, "copywriter", "CopyWriter", "write slogans", conversation.ResponderFunc(nil))
	transcript := []conversation.Message{
		msg(conversation.UserAuthor, "", "a slogan for a bike"),
		msg("copywriter", "CopyWriter", "Ride on."),
		msg("art-director", "Art Director", "Too short."),
	}

	got := BuildMessages(writer, transcript)

	require.Len(t, got, 4)
	assert.Equal(t, llm.Message{Role: types.RoleSystem, Content: "write slogans"}, got[0])
	assert.Equal(t, llm.Message{Role: types.RoleUser, Content: "a slogan for a bike"}, got[1])
	assert.Equal(t, llm.Message{Role: types.RoleAssistant, Content: "Ride on."}, got[2])
	assert.Equal(t, llm.Message{Role: types.RoleUser, Name: "Art_Director", Content: "Too short."}, got[3])
}

func TestBuildMessages_NoInstructions(t *testing.T) {
	p := participant(t, "a", "", "", conversation.ResponderFunc(nil))
	got := BuildMessages(p, []conversation.Message{msg(conversation.UserAuthor, "", "hi")})
	require.Len(t, got, 1)
	assert.Equal(t, types.RoleUser, got[0].Role)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Art_Director", sanitizeName("Art Director"))
	assert.Equal(t, "ab-c_1", sanitizeName("a.b-c_1!"))
	assert.Len(t, sanitizeName(strings.Repeat("x", 100)), 64)
}

func TestCompleter_Respond(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("Pedal your way.")
	c, err := NewCompleter(provider, testConfig(), estimator())
	require.NoError(t, err)

	p := participant(t, "copywriter", "CopyWriter", "write slogans", c)
	out, err := p.ProduceResponse(testutil.TestContext(t), []conversation.Message{
		msg(conversation.UserAuthor, "", "bike slogan"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Pedal your way.", out.Content)
	assert.Equal(t, "copywriter", out.Author)

	req := provider.LastRequest()
	require.NotNil(t, req)
	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 256, req.MaxTokens)
	assert.Equal(t, "copywriter", req.User)
	assert.Empty(t, req.Tools)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, types.RoleSystem, req.Messages[0].Role)
}

func TestCompleter_ProviderErrorUnchanged(t *testing.T) {
	provErr := types.NewProviderError(types.ErrUnauthorized, "bad key")
	c, err := NewCompleter(mocks.NewMockProvider().WithError(provErr), testConfig(), estimator())
	require.NoError(t, err)

	p := participant(t, "a", "A", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p})
	assert.Same(t, provErr, err)
}

func TestCompleter_EmptyResponse(t *testing.T) {
	provider := mocks.NewMockProvider().WithCompletionFunc(func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{}, nil
	})
	c, err := NewCompleter(provider, testConfig(), estimator())
	require.NoError(t, err)

	p := participant(t, "a", "A", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func newToolCompleter(t *testing.T, provider llm.Provider, opts ...CompleterOption) (*Completer, *lights.Plugin, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	registry := tools.NewDefaultRegistry(zap.NewNop())
	plugin := lights.New()
	require.NoError(t, plugin.Register(registry))

	chain := middleware.NewChain(middleware.LoggingMiddleware(zap.New(core)))
	executor := tools.NewExecutor(registry, chain)

	opts = append([]CompleterOption{estimator(), WithTools(registry, executor)}, opts...)
	c, err := NewCompleter(provider, testConfig(), opts...)
	require.NoError(t, err)
	return c, plugin, logs
}

func TestCompleter_ToolLoop(t *testing.T) {
	provider := mocks.NewMockProvider().WithoutFallback().WithScript(
		fixtures.ResponseWithToolCalls(fixtures.ToolCall("call_1", "change_state", map[string]any{"id": 1, "is_on": true})),
		fixtures.SimpleResponse("The table lamp is on."),
	)
	usage := &usageSpy{}
	c, plugin, logs := newToolCompleter(t, provider, WithUsageRecorder(usage))

	p := participant(t, "assistant", "Assistant", "", c)
	out, err := c.Respond(testutil.TestContext(t), conversation.RespondRequest{
		Participant: p,
		Transcript:  []conversation.Message{msg(conversation.UserAuthor, "", "turn on the table lamp")},
	})
	require.NoError(t, err)
	assert.Equal(t, "The table lamp is on.", out)

	state := plugin.Lights()
	assert.True(t, state[0].IsOn)

	calls := provider.Calls()
	require.Len(t, calls, 2)
	assert.NotEmpty(t, calls[0].Request.Tools)
	second := calls[1].Request.Messages
	last := second[len(second)-1]
	assert.Equal(t, types.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "invocation started", entries[0].Message)
	assert.Equal(t, "invocation completed", entries[1].Message)

	require.Len(t, usage.calls, 1)
	assert.Equal(t, 60, usage.calls[0].TotalTokens)
}

func TestCompleter_ToolErrorUnchanged(t *testing.T) {
	provider := mocks.NewMockProvider().WithoutFallback().WithScript(
		fixtures.ResponseWithToolCalls(fixtures.ToolCall("call_1", "change_state", map[string]any{"id": 1})),
	)
	c, _, logs := newToolCompleter(t, provider)

	p := participant(t, "assistant", "Assistant", "", c)
	_, err := c.Respond(testutil.TestContext(t), conversation.RespondRequest{Participant: p})

	var invErr *types.ToolInvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "change_state", invErr.Function)
	assert.Equal(t, 1, provider.CallCount())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "invocation failed", entries[1].Message)
}

func TestCompleter_MaxToolRounds(t *testing.T) {
	loop := fixtures.ResponseWithToolCalls(fixtures.ToolCall("call_1", "get_lights", map[string]any{}))
	provider := mocks.NewMockProvider().WithCompletionFunc(func(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
		return loop, nil
	})

	registry := tools.NewDefaultRegistry(nil)
	require.NoError(t, lights.New().Register(registry))
	cfg := testConfig()
	cfg.MaxToolRounds = 3
	c, err := NewCompleter(provider, cfg, estimator(), WithTools(registry, tools.NewExecutor(registry, nil)))
	require.NoError(t, err)

	p := participant(t, "assistant", "", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p})
	assert.ErrorIs(t, err, tools.ErrMaxIterations)
	assert.Equal(t, 3, provider.CallCount())
}

func TestCompleter_Trim(t *testing.T) {
	provider := mocks.NewMockProvider()
	cfg := CompleterConfig{Model: "gpt-4o", ContextTokens: 40}
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewCompleter(provider, cfg, estimator(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	// 40 characters is 10 estimated tokens, 14 with framing.
	line := strings.Repeat("abcd", 10)
	transcript := []conversation.Message{
		msg(conversation.UserAuthor, "", "1"+line[1:]),
		msg("b", "B", "2"+line[1:]),
		msg("b", "B", "3"+line[1:]),
		msg(conversation.UserAuthor, "", "4"+line[1:]),
	}
	p := participant(t, "a", "A", "sys", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p, Transcript: transcript})
	require.NoError(t, err)

	sent := provider.LastRequest().Messages
	require.Len(t, sent, 3)
	assert.Equal(t, types.RoleSystem, sent[0].Role)
	assert.True(t, strings.HasPrefix(sent[1].Content, "3"))
	assert.True(t, strings.HasPrefix(sent[2].Content, "4"))
	assert.Equal(t, 1, logs.FilterMessage("prompt trimmed").Len())
}

func TestCompleter_TrimBudgetTooSmallSendsNewest(t *testing.T) {
	provider := mocks.NewMockProvider()
	core, logs := observer.New(zapcore.DebugLevel)
	c, err := NewCompleter(provider, CompleterConfig{Model: "gpt-4o", ContextTokens: 5}, estimator(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	p := participant(t, "a", "A", "", c)
	transcript := []conversation.Message{
		msg(conversation.UserAuthor, "", strings.Repeat("x", 200)),
		msg(conversation.UserAuthor, "", strings.Repeat("y", 200)),
	}
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p, Transcript: transcript})
	require.NoError(t, err)

	sent := provider.LastRequest().Messages
	require.Len(t, sent, 1)
	assert.True(t, strings.HasPrefix(sent[0].Content, "y"))
	assert.Equal(t, 1, logs.FilterMessage("prompt exceeds token budget").Len())
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestCompleter_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	provider := mocks.NewMockProvider().WithScript(fixtures.ResponseWithUsage("ok", 12, 3))

	c, err := NewCompleter(provider, testConfig(), estimator(), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	p := participant(t, "copywriter", "CopyWriter", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{
		Participant: p,
		Transcript:  []conversation.Message{msg(conversation.UserAuthor, "", "secret words")},
	})
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "chat gpt-4o", span.Name())
	assert.Equal(t, codes.Ok, span.Status().Code)

	attrs := spanAttrs(span)
	assert.Equal(t, "chat", attrs["gen_ai.operation.name"].AsString())
	assert.Equal(t, "mock", attrs["gen_ai.system"].AsString())
	assert.Equal(t, "CopyWriter", attrs["gen_ai.agent.name"].AsString())
	assert.Equal(t, int64(12), attrs["gen_ai.usage.input_tokens"].AsInt64())
	assert.Equal(t, int64(3), attrs["gen_ai.usage.output_tokens"].AsInt64())
	assert.Empty(t, span.Events(), "content is not recorded by default")
}

func TestCompleter_SpanSensitiveData(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	cfg := testConfig()
	cfg.SensitiveData = true

	c, err := NewCompleter(mocks.NewMockProvider().WithResponse("reply"), cfg, estimator(), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	p := participant(t, "a", "A", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{
		Participant: p,
		Transcript:  []conversation.Message{msg(conversation.UserAuthor, "", "secret words")},
	})
	require.NoError(t, err)

	events := recorder.Ended()[0].Events()
	require.Len(t, events, 2)
	assert.Equal(t, "gen_ai.content.prompt", events[0].Name)

	var prompt []llm.Message
	require.NoError(t, json.Unmarshal([]byte(events[0].Attributes[0].Value.AsString()), &prompt))
	assert.Equal(t, "secret words", prompt[0].Content)
	assert.Equal(t, "reply", events[1].Attributes[0].Value.AsString())
}

func TestCompleter_SpanError(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	boom := errors.New("boom")

	c, err := NewCompleter(mocks.NewMockProvider().WithError(boom), testConfig(), estimator(), WithTracer(tp.Tracer("test")))
	require.NoError(t, err)
	p := participant(t, "a", "A", "", c)
	_, err = c.Respond(context.Background(), conversation.RespondRequest{Participant: p})
	require.ErrorIs(t, err, boom)

	span := recorder.Ended()[0]
	assert.Equal(t, codes.Error, span.Status().Code)
}
