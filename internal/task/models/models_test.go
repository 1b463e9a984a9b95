package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

var created = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTask(t *testing.T) *Task {
	t.Helper()
	auth := id.AuthContext{TenantID: id.TenantID(uuid.New()), PrincipalID: "user-1", PrincipalKind: id.PrincipalUser, ClientID: "app"}
	task, err := New(id.TaskID(uuid.New()), auth.TenantID, auth, "fitness_analysis", nil, created)
	require.NoError(t, err)
	return task
}

func TestNewTask(t *testing.T) {
	task := newTask(t)
	assert.Equal(t, StatusPending, task.Status)
	assert.JSONEq(t, `{}`, string(task.Input))
	assert.Equal(t, "user-1", task.OwnerID)
	assert.Equal(t, "app", task.ClientID)
	assert.Nil(t, task.CompletedAt)

	_, err := New(id.TaskID(uuid.New()), id.TenantID{}, id.AuthContext{}, "fitness_analysis", nil, created)
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)

	_, err = New(id.TaskID(uuid.New()), id.TenantID(uuid.New()), id.AuthContext{}, "", nil, created)
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
}

func TestTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusCompleted, false},
		{StatusRunning, StatusCompleted, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusCancelled, true},
		{StatusRunning, StatusPending, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusRunning, false},
		{StatusCancelled, StatusRunning, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTerminalTasksNeverChange(t *testing.T) {
	task := newTask(t)
	later := created.Add(time.Minute)
	require.NoError(t, task.Start(later))
	require.NoError(t, task.Complete(json.RawMessage(`{"weeks":4}`), later))
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.IsTerminal())

	assert.ErrorIs(t, task.Fail(Failure{Code: "x"}, later), sentinel.ErrInvalidState)
	assert.ErrorIs(t, task.Cancel(later), sentinel.ErrInvalidState)
	assert.ErrorIs(t, task.RequestCancel(later), sentinel.ErrInvalidState)
	assert.Equal(t, StatusCompleted, task.Status)
	assert.Nil(t, task.Error)
}

func TestRequestCancel(t *testing.T) {
	now := created.Add(time.Second)

	pending := newTask(t)
	require.NoError(t, pending.RequestCancel(now))
	assert.Equal(t, StatusCancelled, pending.Status)
	assert.True(t, pending.CancelRequested)

	running := newTask(t)
	require.NoError(t, running.Start(now))
	require.NoError(t, running.RequestCancel(now))
	assert.Equal(t, StatusRunning, running.Status, "executor observes the flag")
	assert.True(t, running.CancelRequested)
}

func TestCloneIsDeep(t *testing.T) {
	task := newTask(t)
	require.NoError(t, task.Start(created))
	require.NoError(t, task.Fail(Failure{Code: "timeout", Message: "took too long"}, created))

	clone := task.Clone()
	clone.Error.Message = "changed"
	clone.Input[0] = '['
	*clone.CompletedAt = created.Add(time.Hour)

	assert.Equal(t, "took too long", task.Error.Message)
	assert.JSONEq(t, `{}`, string(task.Input))
	assert.Equal(t, created, *task.CompletedAt)
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("")
	require.NoError(t, err)
	assert.Equal(t, Status(""), st)

	st, err = ParseStatus("running")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, st)

	_, err = ParseStatus("paused")
	assert.ErrorIs(t, err, sentinel.ErrInvalidInput)
}
