package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/agentwatch/internal/ctxkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestLoggingMiddleware_Success(t *testing.T) {
	logger, logs := observedLogger()
	h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) {
		return json.RawMessage(`{"is_on":true}`), nil
	})

	res, err := h(context.Background(), FunctionCall{ID: "c1", Name: "change_state", Arguments: json.RawMessage(`{"id":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"is_on":true}`, string(res))

	entries := logs.All()
	require.Len(t, entries, 2)

	started := entries[0]
	assert.Equal(t, "invocation started", started.Message)
	assert.Equal(t, "change_state", started.ContextMap()["function"])
	assert.Equal(t, `{"id":1}`, started.ContextMap()["arguments"])

	done := entries[1]
	assert.Equal(t, "invocation completed", done.Message)
	assert.Equal(t, zapcore.InfoLevel, done.Level)
	assert.Equal(t, `{"is_on":true}`, done.ContextMap()["result"])
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}\.\d{2}$`, done.ContextMap()["elapsed"])
	assert.Contains(t, done.ContextMap(), "elapsed_ms")
}

func TestLoggingMiddleware_ConversationFields(t *testing.T) {
	logger, logs := observedLogger()
	h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) {
		return nil, nil
	})

	ctx := ctxkeys.WithTurn(ctxkeys.WithParticipant(ctxkeys.WithSessionID(context.Background(), "s-1"), "assistant"), 2)
	_, err := h(ctx, FunctionCall{ID: "c1", Name: "get_lights"})
	require.NoError(t, err)

	for _, e := range logs.All() {
		fields := e.ContextMap()
		assert.Equal(t, "s-1", fields["session_id"])
		assert.Equal(t, "assistant", fields["participant"])
		assert.EqualValues(t, 2, fields["turn"])
	}
}

func TestLoggingMiddleware_Failure(t *testing.T) {
	logger, logs := observedLogger()
	sentinel := errors.New("light 9 not found")
	h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) {
		return nil, sentinel
	})

	_, err := h(context.Background(), FunctionCall{Name: "change_state"})
	assert.Same(t, sentinel, err, "error must be returned unchanged")

	failed := logs.FilterMessage("invocation failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, zapcore.ErrorLevel, failed[0].Level)
	assert.Equal(t, "light 9 not found", failed[0].ContextMap()["error"])
	assert.Equal(t, 0, logs.FilterMessage("invocation completed").Len())
}

func TestLoggingMiddleware_PanicStillCloses(t *testing.T) {
	logger, logs := observedLogger()
	h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) {
		panic("tool exploded")
	})

	assert.PanicsWithValue(t, "tool exploded", func() {
		_, _ = h(context.Background(), FunctionCall{Name: "boom"})
	})
	assert.Equal(t, 1, logs.FilterMessage("invocation started").Len())
	assert.Equal(t, 1, logs.FilterMessage("invocation failed").Len())
}

func TestLoggingMiddleware_Cancelled(t *testing.T) {
	logger, logs := observedLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := LoggingMiddleware(logger)(func(ctx context.Context, _ FunctionCall) (json.RawMessage, error) {
		return nil, ctx.Err()
	})
	_, err := h(ctx, FunctionCall{Name: "get_lights"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, logs.FilterMessage("invocation failed").Len())
}

func TestLoggingMiddleware_TruncatesLargeResult(t *testing.T) {
	logger, logs := observedLogger()
	big := json.RawMessage(`"` + strings.Repeat("x", 2*maxLoggedResult) + `"`)
	h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) { return big, nil })

	res, err := h(context.Background(), FunctionCall{Name: "dump"})
	require.NoError(t, err)
	assert.Equal(t, big, res, "caller receives the full result")

	logged := logs.FilterMessage("invocation completed").All()[0].ContextMap()["result"].(string)
	assert.True(t, strings.HasSuffix(logged, "...(truncated)"))
}

func TestLoggingMiddleware_NilLogger(t *testing.T) {
	h := LoggingMiddleware(nil)(echoHandler)
	_, err := h(context.Background(), FunctionCall{Name: "f"})
	assert.NoError(t, err)
}

// Each invocation yields one start entry and exactly one closing entry,
// whatever the outcome.
func TestLoggingMiddleware_ExactlyOnceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		logger, logs := observedLogger()
		outcomes := rapid.SliceOfN(rapid.IntRange(0, 2), 1, 20).Draw(t, "outcomes")

		for i, o := range outcomes {
			h := LoggingMiddleware(logger)(func(context.Context, FunctionCall) (json.RawMessage, error) {
				switch o {
				case 0:
					return json.RawMessage(`null`), nil
				case 1:
					return nil, errors.New("failed")
				default:
					panic("panicked")
				}
			})
			func() {
				defer func() { _ = recover() }()
				_, _ = h(context.Background(), FunctionCall{Name: "f", ID: string(rune('a' + i))})
			}()
		}

		starts := logs.FilterMessage("invocation started").Len()
		closes := logs.FilterMessage("invocation completed").Len() + logs.FilterMessage("invocation failed").Len()
		if starts != len(outcomes) || closes != len(outcomes) {
			t.Fatalf("starts=%d closes=%d want %d", starts, closes, len(outcomes))
		}
	})
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00:00.00"},
		{9 * time.Millisecond, "00:00:00.00"},
		{10 * time.Millisecond, "00:00:00.01"},
		{1234 * time.Millisecond, "00:00:01.23"},
		{61*time.Second + 990*time.Millisecond, "00:01:01.99"},
		{2*time.Hour + 3*time.Minute + 4*time.Second + 560*time.Millisecond, "02:03:04.56"},
		{-time.Second, "00:00:00.00"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.in), tt.in.String())
	}
}
