// Package dispatch drains due notifications from the pending store and
// hands them to the push gateway on a cron cadence.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/medbox-genie/reminder-scheduling/internal/domain"
	"github.com/medbox-genie/reminder-scheduling/internal/observability/metrics"
)

const defaultBatchLimit = 200

// DueSource yields notifications whose fire time has passed. Popped items
// are owned by the dispatcher; requeueing puts a failed item back for the
// next tick.
type DueSource interface {
	PopDue(ctx context.Context, now time.Time, limit int64) ([]domain.Notification, error)
	Requeue(ctx context.Context, n domain.Notification) error
}

type Sender interface {
	Send(ctx context.Context, n domain.Notification) error
}

type Dispatcher struct {
	source  DueSource
	sender  Sender
	metrics *metrics.SchedulingMetrics

	batchLimit int64
	now        func() time.Time
	cron       *cron.Cron
}

func NewDispatcher(source DueSource, sender Sender, schedulingMetrics *metrics.SchedulingMetrics) *Dispatcher {
	return &Dispatcher{
		source:     source,
		sender:     sender,
		metrics:    schedulingMetrics,
		batchLimit: defaultBatchLimit,
		now:        time.Now,
	}
}

// Start schedules RunOnce on the given cron spec until Stop is called.
func (d *Dispatcher) Start(ctx context.Context, cronSpec string) error {
	c := cron.New()
	if _, err := c.AddFunc(cronSpec, func() {
		if _, _, err := d.RunOnce(ctx); err != nil {
			slog.ErrorContext(ctx, "dispatch tick failed",
				slog.String("error", err.Error()),
			)
		}
	}); err != nil {
		return fmt.Errorf("failed to register dispatch schedule: %w", err)
	}

	c.Start()
	d.cron = c

	slog.InfoContext(ctx, "dispatcher started",
		slog.String("cron_spec", cronSpec),
	)
	return nil
}

// Stop halts the cron loop and waits for an in-flight tick to finish.
func (d *Dispatcher) Stop() {
	if d.cron == nil {
		return
	}
	<-d.cron.Stop().Done()
}

// RunOnce drains one batch of due notifications. Per-item send failures are
// requeued and never abort the batch.
func (d *Dispatcher) RunOnce(ctx context.Context) (sent, failed int, err error) {
	due, err := d.source.PopDue(ctx, d.now(), d.batchLimit)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to pop due notifications: %w", err)
	}

	for _, n := range due {
		if sendErr := d.sender.Send(ctx, n); sendErr != nil {
			failed++
			slog.WarnContext(ctx, "failed to dispatch notification, requeueing",
				slog.String("identifier", n.Identifier),
				slog.String("error", sendErr.Error()),
			)
			if requeueErr := d.source.Requeue(ctx, n); requeueErr != nil {
				slog.ErrorContext(ctx, "failed to requeue notification",
					slog.String("identifier", n.Identifier),
					slog.String("error", requeueErr.Error()),
				)
			}
			continue
		}
		sent++
	}

	if d.metrics != nil {
		d.metrics.RecordDispatched(ctx, "success", sent)
		d.metrics.RecordDispatched(ctx, "error", failed)
	}

	if sent > 0 || failed > 0 {
		slog.InfoContext(ctx, "dispatch tick completed",
			slog.Int("sent", sent),
			slog.Int("failed", failed),
		)
	}

	return sent, failed, nil
}
