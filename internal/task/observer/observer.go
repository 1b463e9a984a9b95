// Package observer is notified after every recorded task transition.
package observer

import (
	"context"
	"log/slog"
	"time"

	"fitgate/internal/audit"
	"fitgate/internal/platform/metrics"
	"fitgate/internal/task/models"
	"fitgate/pkg/requestcontext"
)

// Event describes one recorded transition. From is empty for creation.
type Event struct {
	Task *models.Task
	From models.Status
	At   time.Time
}

type Observer interface {
	TaskChanged(ctx context.Context, ev Event)
}

// Multi notifies each observer in order.
type Multi []Observer

func (m Multi) TaskChanged(ctx context.Context, ev Event) {
	for _, o := range m {
		o.TaskChanged(ctx, ev)
	}
}

type Metrics struct {
	metrics *metrics.Metrics
}

func NewMetrics(m *metrics.Metrics) *Metrics {
	return &Metrics{metrics: m}
}

func (o *Metrics) TaskChanged(_ context.Context, ev Event) {
	o.metrics.IncTaskTransition(ev.Task.Type, string(ev.Task.Status))
}

type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	return &Log{logger: logger}
}

func (o *Log) TaskChanged(ctx context.Context, ev Event) {
	o.logger.InfoContext(ctx, "task transition",
		"request_id", requestcontext.RequestID(ctx),
		"tenant_id", ev.Task.TenantID.String(),
		"task_id", ev.Task.ID.String(),
		"task_type", ev.Task.Type,
		"from", string(ev.From),
		"to", string(ev.Task.Status),
		"cancel_requested", ev.Task.CancelRequested,
	)
}

// Emitter is satisfied by *audit.Publisher.
type Emitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Events forwards transitions to the event publisher (Kafka in production).
type Events struct {
	emitter Emitter
	logger  *slog.Logger
}

func NewEvents(emitter Emitter, logger *slog.Logger) *Events {
	return &Events{emitter: emitter, logger: logger}
}

func (o *Events) TaskChanged(ctx context.Context, ev Event) {
	action := audit.ActionTaskTransitioned
	switch {
	case ev.From == "":
		action = audit.ActionTaskCreated
	case ev.From == ev.Task.Status && ev.Task.CancelRequested:
		action = audit.ActionTaskCancelRequested
	}
	event := audit.Event{
		Timestamp:   ev.At,
		TenantID:    ev.Task.TenantID.String(),
		PrincipalID: ev.Task.OwnerID,
		Subject:     ev.Task.ID.String(),
		Action:      action,
		Kind:        ev.Task.Type,
		From:        string(ev.From),
		To:          string(ev.Task.Status),
	}
	if ev.Task.Error != nil {
		event.Reason = ev.Task.Error.Code
	}
	if err := o.emitter.Emit(ctx, event); err != nil {
		o.logger.WarnContext(ctx, "failed to publish task event", "error", err, "task_id", event.Subject)
	}
}
