package audit

import "time"

// Event is a lifecycle record published to the event sinks. It is keyed by
// tenant so consumers can partition by customer.
type Event struct {
	Timestamp   time.Time `json:"timestamp"`
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id,omitempty"`
	Subject     string    `json:"subject"`
	Action      Action    `json:"action"`
	Kind        string    `json:"kind,omitempty"`
	From        string    `json:"from,omitempty"`
	To          string    `json:"to,omitempty"`
	Reason      string    `json:"reason,omitempty"`
}

type Action string

const (
	ActionTaskCreated         Action = "task_created"
	ActionTaskTransitioned    Action = "task_transitioned"
	ActionTaskCancelRequested Action = "task_cancel_requested"
)
