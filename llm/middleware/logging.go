package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/BaSui01/agentwatch/internal/ctxkeys"
	"go.uber.org/zap"
)

// maxLoggedResult caps the result excerpt written to the log.
const maxLoggedResult = 512

// LoggingMiddleware logs every invocation with its arguments, result and
// elapsed time. The closing entry is written exactly once, including when
// the handler panics; the panic is not swallowed.
func LoggingMiddleware(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "tool_invocation"))

	return func(next Handler) Handler {
		return func(ctx context.Context, call FunctionCall) (result json.RawMessage, err error) {
			start := time.Now()
			logger := logger.With(conversationFields(ctx)...)
			logger.Info("invocation started",
				zap.String("function", call.Name),
				zap.String("call_id", call.ID),
				zap.ByteString("arguments", call.Arguments),
			)

			returned := false
			defer func() {
				elapsed := time.Since(start)
				fields := []zap.Field{
					zap.String("function", call.Name),
					zap.String("call_id", call.ID),
					zap.String("elapsed", FormatElapsed(elapsed)),
					zap.Int64("elapsed_ms", elapsed.Milliseconds()),
				}
				switch {
				case !returned:
					logger.Error("invocation failed", append(fields, zap.String("error", "panic during invocation"))...)
				case err != nil:
					logger.Error("invocation failed", append(fields, zap.Error(err))...)
				default:
					logger.Info("invocation completed", append(fields, zap.String("result", summarize(result)))...)
				}
			}()

			result, err = next(ctx, call)
			returned = true
			return result, err
		}
	}
}

// conversationFields tags a record with the session and turn it belongs to.
func conversationFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := ctxkeys.SessionID(ctx); ok {
		fields = append(fields, zap.String("session_id", id))
	}
	if p, ok := ctxkeys.Participant(ctx); ok {
		fields = append(fields, zap.String("participant", p))
	}
	if turn, ok := ctxkeys.Turn(ctx); ok {
		fields = append(fields, zap.Int("turn", turn))
	}
	return fields
}

// FormatElapsed renders d as HH:MM:SS.hh (hundredths of a second).
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	cs := d / (10 * time.Millisecond)
	return fmt.Sprintf("%02d:%02d:%02d.%02d", h, m, s, cs)
}

func summarize(result json.RawMessage) string {
	if len(result) <= maxLoggedResult {
		return string(result)
	}
	return string(result[:maxLoggedResult]) + "...(truncated)"
}
