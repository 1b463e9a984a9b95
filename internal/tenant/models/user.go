package models

import (
	"net/mail"
	"strings"
	"time"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// User is a human principal. Provisioning happens outside the gateway; the
// gateway only reads users to authenticate logins and resolve tokens.
type User struct {
	ID           id.UserID   `json:"id"`
	TenantID     id.TenantID `json:"tenant_id"`
	Email        string      `json:"email"`
	DisplayName  string      `json:"display_name,omitempty"`
	Role         id.Role     `json:"role"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
}

func NewUser(userID id.UserID, tenantID id.TenantID, email, displayName string, role id.Role, passwordHash string, now time.Time) (*User, error) {
	email = NormalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user email is invalid")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user role is invalid")
	}
	if tenantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "user must belong to a tenant")
	}
	return &User{
		ID:           userID,
		TenantID:     tenantID,
		Email:        email,
		DisplayName:  displayName,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
