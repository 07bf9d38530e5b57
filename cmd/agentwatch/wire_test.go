package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/BaSui01/agentwatch/config"
	"github.com/BaSui01/agentwatch/internal/metrics"
	"github.com/BaSui01/agentwatch/internal/telemetry"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/middleware"
	"github.com/BaSui01/agentwatch/llm/tokenizer"
	"github.com/BaSui01/agentwatch/testutil"
	"github.com/BaSui01/agentwatch/testutil/fixtures"
	"github.com/BaSui01/agentwatch/testutil/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func offlineTokenizer(t *testing.T) {
	t.Helper()
	orig := tokenizerFor
	tokenizerFor = func(string) tokenizer.Tokenizer { return tokenizer.NewEstimatorTokenizer(8192) }
	t.Cleanup(func() { tokenizerFor = orig })
}

func TestBuildConsole_Assistant(t *testing.T) {
	offlineTokenizer(t)
	core, logs := observer.New(zapcore.InfoLevel)
	provider := mocks.NewMockProvider().WithoutFallback().WithScript(
		fixtures.ResponseWithToolCalls(fixtures.ToolCall("call_1", "change_state", map[string]any{"id": 2, "is_on": true})),
		fixtures.SimpleResponse("The porch light is now on."),
		fixtures.SimpleResponse("It is still on."),
	)

	var out bytes.Buffer
	in := strings.NewReader("turn on the porch light\nis it on?\nexit\n")
	c, err := buildConsole(modeAssistant, config.DefaultConfig(), provider, &telemetry.Providers{}, zap.New(core), in, &out)
	require.NoError(t, err)
	require.NoError(t, c.Run(testutil.TestContext(t)))

	assert.Contains(t, out.String(), "# assistant - Assistant: 'The porch light is now on.'")
	assert.Contains(t, out.String(), "# assistant - Assistant: 'It is still on.'")

	invocations := logs.FilterField(zap.String("component", "tool_invocation")).All()
	require.Len(t, invocations, 2)
	assert.Equal(t, "invocation started", invocations[0].Message)
	assert.Equal(t, "invocation completed", invocations[1].Message)

	// The assistant carries history: the third request sees the first exchange.
	calls := provider.Calls()
	require.Len(t, calls, 3)
	assert.NotEmpty(t, calls[0].Request.Tools)
	var contents []string
	for _, m := range calls[2].Request.Messages {
		contents = append(contents, m.Content)
	}
	assert.Contains(t, contents, "turn on the porch light")
	assert.Contains(t, contents, "The porch light is now on.")
}

func TestBuildConsole_ChatStopsOnApproval(t *testing.T) {
	offlineTokenizer(t)
	provider := mocks.NewMockProvider().WithCompletionFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		if req.User == "art-director" {
			return fixtures.SimpleResponse("Approved, ship it."), nil
		}
		return fixtures.SimpleResponse("Ride the city."), nil
	})

	var out bytes.Buffer
	cfg := config.DefaultConfig()
	c, err := buildConsole(modeChat, cfg, provider, &telemetry.Providers{}, zap.NewNop(), strings.NewReader("bike slogan\n"), &out)
	require.NoError(t, err)
	require.NoError(t, c.Run(testutil.TestContext(t)))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	var produced []string
	for _, l := range lines {
		if i := strings.Index(l, "# "); i >= 0 {
			produced = append(produced, l[i:])
		}
	}
	require.NotEmpty(t, produced)
	assert.Contains(t, produced[len(produced)-1], "Approved")
	assert.LessOrEqual(t, len(produced), cfg.Chat.MaxTurns)
	for _, call := range provider.Calls() {
		assert.Empty(t, call.Request.Tools, "chat participants run without tools")
	}
}

func TestBuildConsole_ChatTurnCap(t *testing.T) {
	offlineTokenizer(t)
	provider := mocks.NewMockProvider().WithResponse("needs work")

	var out bytes.Buffer
	cfg := config.DefaultConfig()
	cfg.Chat.MaxTurns = 3
	c, err := buildConsole(modeChat, cfg, provider, &telemetry.Providers{}, nil, strings.NewReader("go\n"), &out)
	require.NoError(t, err)
	require.NoError(t, c.Run(testutil.TestContext(t)))

	assert.Equal(t, 3, strings.Count(out.String(), "# assistant - "))
	assert.Equal(t, 3, provider.CallCount())
}

func TestNewToolChain_RecoversPanics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	otel := &telemetry.Providers{}
	collector, err := metrics.NewCollector(otel.Meter(instrumentationName), nil)
	require.NoError(t, err)

	chain := newToolChain(config.DefaultConfig().Tools, otel, collector, zap.New(core))
	h := chain.Then(func(context.Context, middleware.FunctionCall) (json.RawMessage, error) {
		panic("bulb exploded")
	})

	_, err = h(context.Background(), middleware.FunctionCall{ID: "call_1", Name: "change_state"})
	var panicErr *middleware.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "change_state", panicErr.Function)

	var messages []string
	for _, e := range logs.All() {
		messages = append(messages, e.Message)
	}
	assert.Equal(t, []string{"invocation started", "invocation failed", "tool panicked"}, messages)
}
