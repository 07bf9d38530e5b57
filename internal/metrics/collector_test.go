package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/BaSui01/agentwatch/agent/conversation"
	"github.com/BaSui01/agentwatch/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

func newTestCollector(t *testing.T) (*Collector, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	c, err := NewCollector(mp.Meter("test"), zap.NewNop())
	require.NoError(t, err)
	return c, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

// sumBy returns counter totals keyed by the value of attribute key.
func sumBy(t *testing.T, data metricdata.Aggregation, key attribute.Key) map[string]int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected Sum[int64], got %T", data)
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(key)
		out[v.Emit()] += dp.Value
	}
	return out
}

func TestCollector_RecordTurn(t *testing.T) {
	c, reader := newTestCollector(t)
	ctx := context.Background()

	c.RecordTurn(ctx, "copywriter", 200*time.Millisecond, nil)
	c.RecordTurn(ctx, "copywriter", 300*time.Millisecond, nil)
	c.RecordTurn(ctx, "copywriter", time.Second, errors.New("boom"))
	c.RecordTurn(ctx, "art-director", time.Second, fmt.Errorf("wrapped: %w", context.Canceled))

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{StatusOK: 2, StatusError: 1, StatusCancelled: 1},
		sumBy(t, data["agentwatch.conversation.turns"], "status"))
	assert.Equal(t, map[string]int64{"copywriter": 3, "art-director": 1},
		sumBy(t, data["agentwatch.conversation.turns"], "participant"))

	hist, ok := data["agentwatch.conversation.turn.duration"].(metricdata.Histogram[float64])
	require.True(t, ok)
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	assert.Equal(t, uint64(4), count)
}

func TestCollector_RecordSession(t *testing.T) {
	c, reader := newTestCollector(t)
	ctx := context.Background()

	c.RecordSession(ctx, conversation.ReasonPolicy, 3, 2*time.Second)
	c.RecordSession(ctx, conversation.ReasonMaxTurns, 5, 4*time.Second)

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"policy": 1, "max_turns": 1},
		sumBy(t, data["agentwatch.conversation.sessions"], "reason"))

	hist, ok := data["agentwatch.conversation.session.turns"].(metricdata.Histogram[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range hist.DataPoints {
		total += dp.Sum
	}
	assert.Equal(t, int64(8), total)
}

func TestCollector_RecordInvocation(t *testing.T) {
	c, reader := newTestCollector(t)
	ctx := context.Background()

	c.RecordInvocation(ctx, "change_state", time.Millisecond, nil)
	c.RecordInvocation(ctx, "get_lights", time.Millisecond, nil)
	c.RecordInvocation(ctx, "change_state", time.Millisecond, errors.New("bad id"))

	data := collect(t, reader)
	assert.Equal(t, map[string]int64{"change_state": 2, "get_lights": 1},
		sumBy(t, data["agentwatch.tool.invocations"], "gen_ai.tool.name"))
	assert.Equal(t, map[string]int64{StatusOK: 2, StatusError: 1},
		sumBy(t, data["agentwatch.tool.invocations"], "status"))
}

func TestCollector_RecordUsage(t *testing.T) {
	c, reader := newTestCollector(t)

	c.RecordUsage(context.Background(), "copywriter", "gpt-4o", llm.ChatUsage{PromptTokens: 120, CompletionTokens: 30})

	data := collect(t, reader)
	hist, ok := data["gen_ai.client.token.usage"].(metricdata.Histogram[int64])
	require.True(t, ok)
	got := make(map[string]int64)
	for _, dp := range hist.DataPoints {
		v, _ := dp.Attributes.Value("gen_ai.token.type")
		got[v.AsString()] += dp.Sum
	}
	assert.Equal(t, map[string]int64{"input": 120, "output": 30}, got)
}

func TestStatusOf(t *testing.T) {
	assert.Equal(t, StatusOK, statusOf(nil))
	assert.Equal(t, StatusCancelled, statusOf(context.DeadlineExceeded))
	assert.Equal(t, StatusError, statusOf(errors.New("x")))
}
