package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentwatch/agent"
	"github.com/BaSui01/agentwatch/agent/conversation"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/llm/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Status attribute values.
const (
	StatusOK        = "ok"
	StatusError     = "error"
	StatusCancelled = "cancelled"
)

var (
	_ conversation.MetricsRecorder = (*Collector)(nil)
	_ middleware.MetricsCollector  = (*Collector)(nil)
	_ agent.UsageRecorder          = (*Collector)(nil)
)

// =============================================================================
// Collector
// =============================================================================

// Collector records conversation, tool and token metrics.
type Collector struct {
	// Conversation
	turnsTotal      metric.Int64Counter
	turnDuration    metric.Float64Histogram
	sessionsTotal   metric.Int64Counter
	sessionTurns    metric.Int64Histogram
	sessionDuration metric.Float64Histogram

	// Tools
	invocationsTotal   metric.Int64Counter
	invocationDuration metric.Float64Histogram

	// LLM
	tokenUsage metric.Int64Histogram

	logger *zap.Logger
}

// NewCollector creates the instruments on meter.
func NewCollector(meter metric.Meter, logger *zap.Logger) (*Collector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{logger: logger.With(zap.String("component", "metrics"))}

	var err error
	var errs []error
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	c.turnsTotal, err = meter.Int64Counter("agentwatch.conversation.turns",
		metric.WithDescription("Participant turns taken"),
		metric.WithUnit("{turn}"))
	collect(err)
	c.turnDuration, err = meter.Float64Histogram("agentwatch.conversation.turn.duration",
		metric.WithDescription("Time a participant took to respond"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60))
	collect(err)
	c.sessionsTotal, err = meter.Int64Counter("agentwatch.conversation.sessions",
		metric.WithDescription("Sessions terminated, by reason"),
		metric.WithUnit("{session}"))
	collect(err)
	c.sessionTurns, err = meter.Int64Histogram("agentwatch.conversation.session.turns",
		metric.WithDescription("Turns taken per session"),
		metric.WithUnit("{turn}"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13, 21))
	collect(err)
	c.sessionDuration, err = meter.Float64Histogram("agentwatch.conversation.session.duration",
		metric.WithDescription("Session wall time"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 30, 60, 120, 300))
	collect(err)

	c.invocationsTotal, err = meter.Int64Counter("agentwatch.tool.invocations",
		metric.WithDescription("Tool invocations"),
		metric.WithUnit("{invocation}"))
	collect(err)
	c.invocationDuration, err = meter.Float64Histogram("agentwatch.tool.invocation.duration",
		metric.WithDescription("Tool invocation duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1, 5, 30))
	collect(err)

	c.tokenUsage, err = meter.Int64Histogram("gen_ai.client.token.usage",
		metric.WithDescription("Tokens used per completion"),
		metric.WithUnit("{token}"),
		metric.WithExplicitBucketBoundaries(16, 64, 256, 1024, 4096, 16384, 65536))
	collect(err)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	c.logger.Debug("metrics collector initialized")
	return c, nil
}

// =============================================================================
// Conversation
// =============================================================================

// RecordTurn implements conversation.MetricsRecorder.
func (c *Collector) RecordTurn(ctx context.Context, participant string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("participant", participant),
		attribute.String("status", statusOf(err)),
	)
	c.turnsTotal.Add(ctx, 1, attrs)
	c.turnDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSession implements conversation.MetricsRecorder.
func (c *Collector) RecordSession(ctx context.Context, reason conversation.TerminationReason, turns int, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("reason", string(reason)))
	c.sessionsTotal.Add(ctx, 1, attrs)
	c.sessionTurns.Record(ctx, int64(turns), attrs)
	c.sessionDuration.Record(ctx, duration.Seconds(), attrs)
}

// =============================================================================
// Tools
// =============================================================================

// RecordInvocation implements middleware.MetricsCollector.
func (c *Collector) RecordInvocation(ctx context.Context, function string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("gen_ai.tool.name", function),
		attribute.String("status", statusOf(err)),
	)
	c.invocationsTotal.Add(ctx, 1, attrs)
	c.invocationDuration.Record(ctx, duration.Seconds(), attrs)
}

// =============================================================================
// LLM
// =============================================================================

// RecordUsage implements agent.UsageRecorder.
func (c *Collector) RecordUsage(ctx context.Context, participant, model string, usage llm.ChatUsage) {
	record := func(tokenType string, n int) {
		c.tokenUsage.Record(ctx, int64(n), metric.WithAttributes(
			attribute.String("gen_ai.token.type", tokenType),
			attribute.String("gen_ai.request.model", model),
			attribute.String("participant", participant),
		))
	}
	record("input", usage.PromptTokens)
	record("output", usage.CompletionTokens)
}

// statusOf classifies an error for the status attribute.
func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCancelled
	default:
		return StatusError
	}
}
