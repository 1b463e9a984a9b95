// Package manager is the entry point for task operations from the protocol
// handlers. It persists tasks, hands them to the executor and records
// cancellation requests.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fitgate/internal/task/models"
	"fitgate/internal/task/observer"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/requestcontext"
)

const maxListLimit = 100

type Store interface {
	Create(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error)
	List(ctx context.Context, tenantID id.TenantID, f models.Filter) ([]*models.Task, error)
	Transition(ctx context.Context, tenantID id.TenantID, taskID id.TaskID, fn func(*models.Task) error) (*models.Task, error)
}

type Executor interface {
	Supports(taskType string) bool
	Submit(task *models.Task) error
	CancelRunning(taskID id.TaskID)
}

type Manager struct {
	store    Store
	executor Executor
	observer observer.Observer
	logger   *slog.Logger
}

type Option func(*Manager)

func WithObserver(o observer.Observer) Option {
	return func(m *Manager) { m.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func New(store Store, executor Executor, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		executor: executor,
		observer: observer.Multi{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create persists a pending task and queues it. It returns as soon as the
// record is stored; the result is read later with Get.
func (m *Manager) Create(ctx context.Context, auth id.AuthContext, taskType string, input json.RawMessage) (*models.Task, error) {
	if auth.TenantSuspended {
		return nil, dErrors.New(dErrors.CodeTenantSuspended, "tenant is suspended")
	}
	if !m.executor.Supports(taskType) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported task type: %s", taskType))
	}
	if len(input) > 0 && !json.Valid(input) {
		return nil, dErrors.New(dErrors.CodeValidation, "task input must be valid JSON")
	}

	now := requestcontext.Now(ctx)
	task, err := models.New(id.TaskID(uuid.New()), auth.TenantID, auth, taskType, input, now)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, err.Error())
	}
	if err := m.store.Create(ctx, task); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create task")
	}
	m.observer.TaskChanged(ctx, observer.Event{Task: task, At: now})

	if err := m.executor.Submit(task); err != nil {
		m.logger.WarnContext(ctx, "task could not be queued",
			"error", err,
			"task_id", task.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return m.rejectQueued(ctx, task, now)
	}
	return task, nil
}

// rejectQueued records a task the pool had no room for as cancelled. The
// creating call still succeeds; the outcome is visible through Get.
func (m *Manager) rejectQueued(ctx context.Context, task *models.Task, now time.Time) (*models.Task, error) {
	updated, err := m.store.Transition(ctx, task.TenantID, task.ID, func(t *models.Task) error {
		t.Error = &models.Failure{Code: string(dErrors.CodeUnavailable), Message: "task queue is full"}
		return t.Cancel(now)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record rejected task")
	}
	m.observer.TaskChanged(ctx, observer.Event{Task: updated, From: models.StatusPending, At: now})
	return updated, nil
}

func (m *Manager) Get(ctx context.Context, auth id.AuthContext, taskID id.TaskID) (*models.Task, error) {
	task, err := m.store.Get(ctx, auth.TenantID, taskID)
	if err != nil {
		return nil, translate(err)
	}
	return task, nil
}

// List returns the tenant's tasks newest first, optionally by status.
func (m *Manager) List(ctx context.Context, auth id.AuthContext, f models.Filter) ([]*models.Task, error) {
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	tasks, err := m.store.List(ctx, auth.TenantID, f)
	if err != nil {
		return nil, translate(err)
	}
	return tasks, nil
}

// Cancel requests cancellation. Pending tasks are cancelled at once; running
// ones are flagged and their runner context is cancelled. Terminal tasks
// report a conflict.
func (m *Manager) Cancel(ctx context.Context, auth id.AuthContext, taskID id.TaskID) (*models.Task, error) {
	var from models.Status
	task, err := m.store.Transition(ctx, auth.TenantID, taskID, func(t *models.Task) error {
		from = t.Status
		return t.RequestCancel(requestcontext.Now(ctx))
	})
	if err != nil {
		return nil, translate(err)
	}
	if task.Status == models.StatusRunning {
		m.executor.CancelRunning(task.ID)
	}
	m.observer.TaskChanged(ctx, observer.Event{Task: task, From: from, At: task.UpdatedAt})
	return task, nil
}

func translate(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "task not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeConflict, "task is already in a terminal state")
	case errors.Is(err, sentinel.ErrInvalidInput):
		return dErrors.New(dErrors.CodeValidation, err.Error())
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "task store failure")
	}
}
