// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"github.com/google/uuid"

	dErrors "fitgate/pkg/domain-errors"
)

// Distinct ID types - compiler prevents passing TaskID where TenantID is expected.
type (
	TenantID   uuid.UUID
	UserID     uuid.UUID
	ClientID   uuid.UUID
	TaskID     uuid.UUID
	ActivityID uuid.UUID
	OAuthAppID uuid.UUID
)

// Parse functions - use at trust boundaries (handlers, JSON-RPC params).

func ParseTenantID(s string) (TenantID, error) {
	id, err := parseUUID(s, "tenant ID")
	return TenantID(id), err
}

func ParseUserID(s string) (UserID, error) {
	id, err := parseUUID(s, "user ID")
	return UserID(id), err
}

func ParseClientID(s string) (ClientID, error) {
	id, err := parseUUID(s, "client ID")
	return ClientID(id), err
}

func ParseTaskID(s string) (TaskID, error) {
	id, err := parseUUID(s, "task ID")
	return TaskID(id), err
}

func ParseActivityID(s string) (ActivityID, error) {
	id, err := parseUUID(s, "activity ID")
	return ActivityID(id), err
}

func ParseOAuthAppID(s string) (OAuthAppID, error) {
	id, err := parseUUID(s, "oauth app ID")
	return OAuthAppID(id), err
}

func (id TenantID) String() string   { return uuid.UUID(id).String() }
func (id UserID) String() string     { return uuid.UUID(id).String() }
func (id ClientID) String() string   { return uuid.UUID(id).String() }
func (id TaskID) String() string     { return uuid.UUID(id).String() }
func (id ActivityID) String() string { return uuid.UUID(id).String() }
func (id OAuthAppID) String() string { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ClientID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id TaskID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ActivityID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OAuthAppID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// Text marshaling lets typed IDs appear as plain UUID strings in JSON and YAML.

func (id TenantID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id UserID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ClientID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id TaskID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ActivityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id OAuthAppID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *TenantID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *UserID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ClientID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TaskID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ActivityID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *OAuthAppID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }

// parseUUID is the shared validation logic.
// Nil UUIDs are allowed here; services use IsNil() so store lookups can
// still answer with a uniform "not found".
func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label+" format")
	}
	return id, nil
}
