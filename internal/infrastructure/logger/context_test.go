package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns stored logger", func(t *testing.T) {
		log := zap.NewExample()
		ctx := WithContext(context.Background(), log)
		assert.Same(t, log, FromContext(ctx))
	})

	t.Run("returns no-op logger when missing", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	ctx, log := WithRequestID(context.Background(), zap.New(core), "req-123")
	assert.Equal(t, "req-123", GetRequestID(ctx))

	log.Info("hello")
	entries := recorded.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
}

func TestGetRequestID_NotFound(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}

func TestContextLogger_AddsTraceIDs(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)
	ctx = WithContext(ctx, zap.New(core))

	L(ctx).Info("reconciled", zap.String("project_id", "p-1"))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
	assert.Equal(t, "p-1", fields["project_id"])
}

func TestContextLogger_NoSpan(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := context.Background()

	WithLogger(ctx, zap.New(core)).With(zap.Int("year", 2025)).Warn("drift")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.NotContains(t, fields, "trace_id")
	assert.EqualValues(t, 2025, fields["year"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestContextLogger_SweepFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx := WithSweep(context.Background(), "sw-1", "scheduled")

	info, ok := GetSweep(ctx)
	require.True(t, ok)
	assert.Equal(t, "scheduled", info.Trigger)

	WithLogger(ctx, zap.New(core)).Error("Sweep failed to reconcile entity")

	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "sw-1", fields["sweep_id"])
	assert.Equal(t, "scheduled", fields["sweep_trigger"])

	_, ok = GetSweep(context.Background())
	assert.False(t, ok)
}
