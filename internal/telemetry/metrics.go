package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// SyncMetricsMeterName is the name used for the sync metrics meter
	SyncMetricsMeterName = "github.com/kvk-connect/kvk-sync/sync"
)

// Record outcomes reported by sync jobs
const (
	OutcomeStored   = "stored"
	OutcomeNotFound = "not_found"
	OutcomeFailed   = "failed"
)

// SyncMetrics holds the OpenTelemetry instruments for sync cycles
type SyncMetrics struct {
	cycleDuration    metric.Float64Histogram
	recordsProcessed metric.Int64Counter
	lastSuccess      metric.Float64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	cycleDuration, err := meter.Float64Histogram(
		"kvk_sync_cycle_duration_seconds",
		metric.WithDescription("Duration of sync cycles in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900),
	)
	if err != nil {
		return nil, err
	}

	recordsProcessed, err := meter.Int64Counter(
		"kvk_sync_records_processed_total",
		metric.WithDescription("Number of records handled by sync jobs"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	lastSuccess, err := meter.Float64Gauge(
		"kvk_sync_last_success_timestamp_seconds",
		metric.WithDescription("Unix time of the last successful sync cycle"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		cycleDuration:    cycleDuration,
		recordsProcessed: recordsProcessed,
		lastSuccess:      lastSuccess,
	}, nil
}

// RecordCycle records the duration and result of one sync cycle of a job
func (m *SyncMetrics) RecordCycle(ctx context.Context, job string, duration time.Duration, success bool) {
	if m == nil || m.cycleDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("job", job),
		attribute.Bool("success", success),
	}
	m.cycleDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if success {
		m.lastSuccess.Record(ctx, float64(time.Now().Unix()), metric.WithAttributes(attribute.String("job", job)))
	}
}

// RecordRecords adds count records with the given outcome for a job
func (m *SyncMetrics) RecordRecords(ctx context.Context, job, outcome string, count int64) {
	if m == nil || m.recordsProcessed == nil || count == 0 {
		return
	}

	m.recordsProcessed.Add(ctx, count, metric.WithAttributes(
		attribute.String("job", job),
		attribute.String("outcome", outcome),
	))
}
