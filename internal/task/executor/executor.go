// Package executor runs pending tasks on a bounded worker pool.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"fitgate/internal/platform/metrics"
	"fitgate/internal/task/models"
	"fitgate/internal/task/observer"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
)

// ErrQueueFull is returned by Submit when the pool has no room.
var ErrQueueFull = errors.New("task queue is full")

// Runner performs one task type. ctx is cancelled when cancellation of the
// task is requested or its timeout passes; runners should return promptly.
type Runner interface {
	Run(ctx context.Context, task *models.Task) (json.RawMessage, error)
}

type RunnerFunc func(ctx context.Context, task *models.Task) (json.RawMessage, error)

func (f RunnerFunc) Run(ctx context.Context, task *models.Task) (json.RawMessage, error) {
	return f(ctx, task)
}

type Store interface {
	Transition(ctx context.Context, tenantID id.TenantID, taskID id.TaskID, fn func(*models.Task) error) (*models.Task, error)
	ListByStatus(ctx context.Context, status models.Status) ([]*models.Task, error)
}

// FailureInterrupted marks a task that was running when the previous
// process stopped.
const FailureInterrupted = "interrupted"

type job struct {
	tenantID id.TenantID
	taskID   id.TaskID
	taskType string
	readyAt  time.Time
}

func jobFor(t *models.Task, delay time.Duration) job {
	return job{tenantID: t.TenantID, taskID: t.ID, taskType: t.Type, readyAt: t.CreatedAt.Add(delay)}
}

// Executor owns the worker pool. Start must be running for queued tasks to
// make progress.
type Executor struct {
	store    Store
	runners  map[string]Runner
	queue    chan job
	workers  int
	timeout  time.Duration
	delay    time.Duration
	observer observer.Observer
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	mu      sync.Mutex
	running map[id.TaskID]context.CancelFunc
}

type Option func(*Executor)

func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.queue = make(chan job, n)
		}
	}
}

// WithTimeout bounds a single run.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithPickupDelay keeps a task pending for at least d after it was created,
// so a poll right after creation never sees it finished.
func WithPickupDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.delay = d
		}
	}
}

func WithObserver(o observer.Observer) Option {
	return func(e *Executor) { e.observer = o }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

func New(store Store, runners map[string]Runner, opts ...Option) *Executor {
	e := &Executor{
		store:    store,
		runners:  runners,
		queue:    make(chan job, 256),
		workers:  4,
		timeout:  5 * time.Minute,
		observer: observer.Multi{},
		logger:   slog.Default(),
		now:      time.Now,
		running:  make(map[id.TaskID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Executor) Supports(taskType string) bool {
	_, ok := e.runners[taskType]
	return ok
}

// Submit queues a persisted pending task without blocking.
func (e *Executor) Submit(task *models.Task) error {
	select {
	case e.queue <- jobFor(task, e.delay):
		e.metrics.SetTaskQueueDepth(len(e.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// CancelRunning cancels the context of a task that is currently running.
// The recorded status is decided by the transition after the runner returns.
func (e *Executor) CancelRunning(taskID id.TaskID) {
	e.mu.Lock()
	cancel, ok := e.running[taskID]
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

// Start recovers work left by a previous process and runs the workers until
// ctx is cancelled. A task that is running at shutdown gets its context
// cancelled and is recorded as failed or cancelled; queued tasks stay
// pending and are picked up again by the next Start.
func (e *Executor) Start(ctx context.Context) error {
	pending, err := e.resume(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, j := range pending {
			select {
			case e.queue <- j:
				e.metrics.SetTaskQueueDepth(len(e.queue))
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})
	for i := 0; i < e.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case j := <-e.queue:
					e.metrics.SetTaskQueueDepth(len(e.queue))
					if !e.wait(ctx, j) {
						return nil
					}
					e.process(ctx, j)
				}
			}
		})
	}
	return g.Wait()
}

// resume fails tasks that were running when the last process stopped and
// returns the pending ones to be queued again. It assumes a single executor
// per task store.
func (e *Executor) resume(ctx context.Context) ([]job, error) {
	running, err := e.store.ListByStatus(ctx, models.StatusRunning)
	if err != nil {
		return nil, fmt.Errorf("list running tasks: %w", err)
	}
	for _, t := range running {
		task, err := e.store.Transition(ctx, t.TenantID, t.ID, func(t *models.Task) error {
			if t.CancelRequested {
				return t.Cancel(e.now())
			}
			return t.Fail(models.Failure{Code: FailureInterrupted, Message: "task was interrupted by a restart"}, e.now())
		})
		if err != nil {
			if !errors.Is(err, sentinel.ErrInvalidState) {
				e.logger.ErrorContext(ctx, "failed to resolve interrupted task", "error", err, "task_id", t.ID.String())
			}
			continue
		}
		e.observer.TaskChanged(ctx, observer.Event{Task: task, From: models.StatusRunning, At: task.UpdatedAt})
	}

	pending, err := e.store.ListByStatus(ctx, models.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending tasks: %w", err)
	}
	jobs := make([]job, 0, len(pending))
	for _, t := range pending {
		if !e.Supports(t.Type) {
			continue
		}
		jobs = append(jobs, jobFor(t, e.delay))
	}
	if len(running) > 0 || len(jobs) > 0 {
		e.logger.InfoContext(ctx, "recovered tasks", "interrupted", len(running), "requeued", len(jobs))
	}
	return jobs, nil
}

// wait holds j until its pickup time. It reports false when ctx ends first;
// the task then stays pending.
func (e *Executor) wait(ctx context.Context, j job) bool {
	if ctx.Err() != nil {
		return false
	}
	d := j.readyAt.Sub(e.now())
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Executor) process(ctx context.Context, j job) {
	// Safe point: a task cancelled while queued is never started.
	task, err := e.store.Transition(ctx, j.tenantID, j.taskID, func(t *models.Task) error {
		return t.Start(e.now())
	})
	if err != nil {
		if !errors.Is(err, sentinel.ErrInvalidState) {
			e.logger.ErrorContext(ctx, "failed to start task", "error", err, "task_id", j.taskID.String())
		}
		return
	}
	e.observer.TaskChanged(ctx, observer.Event{Task: task, From: models.StatusPending, At: task.UpdatedAt})

	runner, ok := e.runners[j.taskType]
	if !ok {
		e.finish(ctx, j, nil, dErrors.New(dErrors.CodeInternal, "no runner for task type"))
		return
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	e.track(j.taskID, cancel)
	stopOnShutdown := context.AfterFunc(ctx, cancel)
	result, runErr := e.run(runCtx, runner, task)
	stopOnShutdown()
	e.untrack(j.taskID)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)
	cancel()

	if runErr != nil && timedOut {
		runErr = dErrors.New(dErrors.CodeTimeout, "task exceeded its time limit")
	}
	e.finish(context.WithoutCancel(ctx), j, result, runErr)
}

// run shields the worker from runner panics.
func (e *Executor) run(ctx context.Context, runner Runner, task *models.Task) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "task runner panicked", "panic", fmt.Sprint(r), "task_id", task.ID.String())
			err = dErrors.New(dErrors.CodeInternal, "task runner panicked")
		}
	}()
	return runner.Run(ctx, task)
}

// finish records the terminal state. A cancellation recorded before this
// transition wins over the runner's outcome.
func (e *Executor) finish(ctx context.Context, j job, result json.RawMessage, runErr error) {
	var from models.Status
	task, err := e.store.Transition(ctx, j.tenantID, j.taskID, func(t *models.Task) error {
		from = t.Status
		now := e.now()
		switch {
		case t.CancelRequested:
			return t.Cancel(now)
		case runErr != nil:
			return t.Fail(failureOf(runErr), now)
		default:
			if len(result) == 0 {
				result = json.RawMessage(`{}`)
			}
			return t.Complete(result, now)
		}
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to record task outcome", "error", err, "task_id", j.taskID.String())
		return
	}
	e.observer.TaskChanged(ctx, observer.Event{Task: task, From: from, At: task.UpdatedAt})
}

// failureOf turns a runner error into the stored failure. Internal errors
// keep a generic message.
func failureOf(err error) models.Failure {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeInternal {
		return models.Failure{Code: string(code), Message: "task failed"}
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return models.Failure{Code: string(code), Message: de.Message}
	}
	return models.Failure{Code: string(code), Message: err.Error()}
}

func (e *Executor) track(taskID id.TaskID, cancel context.CancelFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.running[taskID] = cancel
}

func (e *Executor) untrack(taskID id.TaskID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.running, taskID)
}
