package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/charity/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestNewLedgerMetrics(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	require.NotNil(t, lm)
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	lm, err := telemetry.NewLedgerMetrics(nil)
	require.Error(t, err)
	assert.Nil(t, lm)
	assert.Equal(t, "NewLedgerMetrics: meter cannot be nil", err.Error())
}

func TestLedgerMetrics_NilReceiver(t *testing.T) {
	var lm *telemetry.LedgerMetrics
	ctx := context.Background()

	assert.NotPanics(t, func() {
		lm.RecordTransition(ctx, "APPROVED")
		lm.RecordReconciliation(ctx, telemetry.EntityProject, telemetry.OutcomeInSync, time.Millisecond)
		lm.RecordGoalReached(ctx)
		lm.RecordSweep(ctx, "scheduled", "success", time.Second)
		lm.RecordAnnualProgress(ctx, 2024, decimal.NewFromInt(1), decimal.NewFromInt(2))
	})
}

func TestLedgerMetrics_Collects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	lm, err := telemetry.NewLedgerMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	lm.RecordTransition(ctx, "APPROVED")
	lm.RecordTransition(ctx, "APPROVED")
	lm.RecordTransition(ctx, "REJECTED")
	lm.RecordReconciliation(ctx, telemetry.EntityProject, telemetry.OutcomeCorrected, 5*time.Millisecond)
	lm.RecordGoalReached(ctx)
	lm.RecordAnnualProgress(ctx, 2024, decimal.NewFromInt(50), decimal.NewFromInt(200))
	lm.RecordAnnualProgress(ctx, 2025, decimal.NewFromInt(50), decimal.Zero)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	metrics := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			metrics[m.Name] = m
		}
	}

	transitions, ok := metrics["ledger_donation_transitions_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	counts := map[string]int64{}
	for _, dp := range transitions.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status"))
		counts[status.AsString()] = dp.Value
	}
	assert.Equal(t, int64(2), counts["APPROVED"])
	assert.Equal(t, int64(1), counts["REJECTED"])

	reached, ok := metrics["ledger_project_goals_reached_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, reached.DataPoints, 1)
	assert.Equal(t, int64(1), reached.DataPoints[0].Value)

	progress, ok := metrics["ledger_annual_goal_progress_ratio"].Data.(metricdata.Gauge[float64])
	require.True(t, ok)
	require.Len(t, progress.DataPoints, 1)
	assert.InDelta(t, 0.25, progress.DataPoints[0].Value, 1e-9)

	_, ok = metrics["ledger_reconcile_duration_seconds"]
	assert.True(t, ok)
}
