// Package models defines the task record and its state machine:
//
//	pending -> running -> completed | failed
//	pending | running -> cancelled
//
// Terminal records never change again.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus accepts the empty string as "no filter".
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", nil
	}
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("unknown task status %q: %w", s, sentinel.ErrInvalidInput)
	}
	return st, nil
}

var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Failure is the error captured in a failed task. It is data returned by
// tasks/get, not an error of the call.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Task struct {
	ID              id.TaskID        `json:"id"`
	TenantID        id.TenantID      `json:"-"`
	OwnerID         string           `json:"owner_id"`
	OwnerKind       id.PrincipalKind `json:"owner_kind"`
	ClientID        string           `json:"client_id,omitempty"`
	Type            string           `json:"task_type"`
	Status          Status           `json:"status"`
	Input           json.RawMessage  `json:"input,omitempty"`
	Result          json.RawMessage  `json:"result,omitempty"`
	Error           *Failure         `json:"error,omitempty"`
	CancelRequested bool             `json:"cancel_requested,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
}

func New(taskID id.TaskID, tenantID id.TenantID, auth id.AuthContext, taskType string, input json.RawMessage, now time.Time) (*Task, error) {
	if tenantID.IsNil() {
		return nil, fmt.Errorf("task must belong to a tenant: %w", sentinel.ErrInvalidInput)
	}
	if taskType == "" {
		return nil, fmt.Errorf("task type is required: %w", sentinel.ErrInvalidInput)
	}
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	return &Task{
		ID:        taskID,
		TenantID:  tenantID,
		OwnerID:   auth.PrincipalID,
		OwnerKind: auth.PrincipalKind,
		ClientID:  auth.ClientID,
		Type:      taskType,
		Status:    StatusPending,
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (t *Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// transition moves the task to next. Terminal records and illegal edges
// return sentinel.ErrInvalidState.
func (t *Task) transition(next Status, now time.Time) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("task %s: %s -> %s: %w", t.ID, t.Status, next, sentinel.ErrInvalidState)
	}
	t.Status = next
	t.UpdatedAt = now
	if next.IsTerminal() {
		completed := now
		t.CompletedAt = &completed
	}
	return nil
}

func (t *Task) Start(now time.Time) error {
	return t.transition(StatusRunning, now)
}

func (t *Task) Complete(result json.RawMessage, now time.Time) error {
	if err := t.transition(StatusCompleted, now); err != nil {
		return err
	}
	t.Result = result
	return nil
}

func (t *Task) Fail(failure Failure, now time.Time) error {
	if err := t.transition(StatusFailed, now); err != nil {
		return err
	}
	t.Error = &failure
	return nil
}

func (t *Task) Cancel(now time.Time) error {
	return t.transition(StatusCancelled, now)
}

// RequestCancel records a cancellation request. A pending task is cancelled
// at once; a running one is flagged for the executor to observe.
func (t *Task) RequestCancel(now time.Time) error {
	switch t.Status {
	case StatusPending:
		t.CancelRequested = true
		return t.Cancel(now)
	case StatusRunning:
		t.CancelRequested = true
		t.UpdatedAt = now
		return nil
	default:
		return fmt.Errorf("task %s is %s: %w", t.ID, t.Status, sentinel.ErrInvalidState)
	}
}

// Clone returns a deep copy.
func (t *Task) Clone() *Task {
	out := *t
	out.Input = append(json.RawMessage(nil), t.Input...)
	out.Result = append(json.RawMessage(nil), t.Result...)
	if t.Error != nil {
		e := *t.Error
		out.Error = &e
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		out.CompletedAt = &c
	}
	return &out
}

// Filter narrows List. Limit <= 0 uses the store default.
type Filter struct {
	Status Status
	Limit  int
}
