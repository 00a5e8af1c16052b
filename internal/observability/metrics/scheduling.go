package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const schedulingMeterName = "scheduling.service"

type SchedulingMetrics struct {
	passesTotal            metric.Int64Counter
	notificationsScheduled metric.Int64Counter
	notificationsCancelled metric.Int64Counter
	reconcileFailures      metric.Int64Counter
	passDuration           metric.Float64Histogram
	dispatchedTotal        metric.Int64Counter
}

func NewSchedulingMetrics() (*SchedulingMetrics, error) {
	meter := otel.Meter(schedulingMeterName)

	passesTotal, err := meter.Int64Counter(
		"scheduling_passes_total",
		metric.WithDescription("Total number of scheduling passes"),
		metric.WithUnit("{pass}"),
	)
	if err != nil {
		return nil, err
	}

	notificationsScheduled, err := meter.Int64Counter(
		"scheduling_notifications_scheduled_total",
		metric.WithDescription("Total number of notifications added to the sink"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	notificationsCancelled, err := meter.Int64Counter(
		"scheduling_notifications_cancelled_total",
		metric.WithDescription("Total number of notifications cancelled during reconciliation"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	reconcileFailures, err := meter.Int64Counter(
		"scheduling_reconcile_failures_total",
		metric.WithDescription("Total number of per-item sink failures"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	passDuration, err := meter.Float64Histogram(
		"scheduling_pass_duration_seconds",
		metric.WithDescription("Scheduling pass duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
		),
	)
	if err != nil {
		return nil, err
	}

	dispatchedTotal, err := meter.Int64Counter(
		"scheduling_notifications_dispatched_total",
		metric.WithDescription("Total number of due notifications handed to the push gateway"),
		metric.WithUnit("{notification}"),
	)
	if err != nil {
		return nil, err
	}

	return &SchedulingMetrics{
		passesTotal:            passesTotal,
		notificationsScheduled: notificationsScheduled,
		notificationsCancelled: notificationsCancelled,
		reconcileFailures:      reconcileFailures,
		passDuration:           passDuration,
		dispatchedTotal:        dispatchedTotal,
	}, nil
}

func (m *SchedulingMetrics) RecordPass(ctx context.Context, trigger, outcome string) {
	m.passesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("trigger", trigger),
		attribute.String("outcome", outcome),
	))
}

func (m *SchedulingMetrics) RecordScheduled(ctx context.Context, kind string, count int) {
	if count <= 0 {
		return
	}
	m.notificationsScheduled.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("kind", kind),
	))
}

func (m *SchedulingMetrics) RecordCancelled(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.notificationsCancelled.Add(ctx, int64(count))
}

func (m *SchedulingMetrics) RecordReconcileFailures(ctx context.Context, count int) {
	if count <= 0 {
		return
	}
	m.reconcileFailures.Add(ctx, int64(count))
}

func (m *SchedulingMetrics) RecordPassDuration(ctx context.Context, trigger string, duration time.Duration) {
	m.passDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("trigger", trigger),
	))
}

func (m *SchedulingMetrics) RecordDispatched(ctx context.Context, outcome string, count int) {
	if count <= 0 {
		return
	}
	m.dispatchedTotal.Add(ctx, int64(count), metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}
