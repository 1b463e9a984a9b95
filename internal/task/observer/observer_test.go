package observer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/audit"
	"fitgate/internal/platform/metrics"
	"fitgate/internal/task/models"
	id "fitgate/pkg/domain"
)

func newTask(t *testing.T) *models.Task {
	t.Helper()
	tenant := id.TenantID(uuid.New())
	task, err := models.New(id.TaskID(uuid.New()), tenant,
		id.AuthContext{TenantID: tenant, PrincipalID: uuid.NewString(), PrincipalKind: id.PrincipalClient},
		"fitness_analysis", json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)
	return task
}

func TestMultiFansOutToMetricsAndEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	store := audit.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	obs := Multi{NewMetrics(m), NewLog(logger), NewEvents(audit.NewPublisher(store), logger)}

	task := newTask(t)
	obs.TaskChanged(context.Background(), Event{Task: task, At: task.CreatedAt})
	require.NoError(t, task.Start(time.Now()))
	obs.TaskChanged(context.Background(), Event{Task: task, From: models.StatusPending, At: time.Now()})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TaskTransitions.WithLabelValues("fitness_analysis", "running")))

	events, err := store.ListByTenant(context.Background(), task.TenantID.String())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionTaskCreated, events[0].Action)
	assert.Equal(t, audit.ActionTaskTransitioned, events[1].Action)
	assert.Equal(t, "running", events[1].To)
}

func TestCancelRequestOnRunningTaskIsItsOwnAction(t *testing.T) {
	store := audit.NewInMemoryStore()
	obs := NewEvents(audit.NewPublisher(store), slog.New(slog.NewTextHandler(io.Discard, nil)))

	task := newTask(t)
	require.NoError(t, task.Start(time.Now()))
	require.NoError(t, task.RequestCancel(time.Now()))
	obs.TaskChanged(context.Background(), Event{Task: task, From: models.StatusRunning, At: time.Now()})

	events, _ := store.ListByTenant(context.Background(), task.TenantID.String())
	require.Len(t, events, 1)
	assert.Equal(t, audit.ActionTaskCancelRequested, events[0].Action)
}
