package models

import (
	"slices"
	"time"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant is the unit of data isolation. ConfigVersion increases on every
// change that affects what the tenant's callers can see (status, tool policy,
// rate limit), so cached projections can detect staleness.
type Tenant struct {
	ID                 id.TenantID  `json:"id"`
	Name               string       `json:"name"`
	Slug               string       `json:"slug"`
	Status             TenantStatus `json:"status"`
	DisabledTools      []string     `json:"disabled_tools,omitempty"`
	RateLimitPerMinute int          `json:"rate_limit_per_minute,omitempty"`
	ConfigVersion      uint64       `json:"config_version"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	SuspendedAt        *time.Time   `json:"suspended_at,omitempty"`
}

func NewTenant(tenantID id.TenantID, name, slug string, now time.Time) (*Tenant, error) {
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name cannot be empty")
	}
	if len(name) > 128 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant name must be 128 characters or less")
	}
	if !validSlug(slug) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "tenant slug must be 2-63 lowercase letters, digits or dashes")
	}
	return &Tenant{
		ID:            tenantID,
		Name:          name,
		Slug:          slug,
		Status:        TenantStatusActive,
		ConfigVersion: 1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

func (t *Tenant) IsActive() bool {
	return t.Status == TenantStatusActive
}

// Suspend freezes token issuance and task creation for the tenant.
func (t *Tenant) Suspend(now time.Time) error {
	if !t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already suspended")
	}
	t.Status = TenantStatusSuspended
	t.SuspendedAt = &now
	t.touch(now)
	return nil
}

func (t *Tenant) Reactivate(now time.Time) error {
	if t.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already active")
	}
	t.Status = TenantStatusActive
	t.SuspendedAt = nil
	t.touch(now)
	return nil
}

// SetDisabledTools replaces the tool policy. The list is stored sorted and
// de-duplicated so that equal policies compare equal.
func (t *Tenant) SetDisabledTools(tools []string, now time.Time) {
	sorted := slices.Clone(tools)
	slices.Sort(sorted)
	t.DisabledTools = slices.Compact(sorted)
	t.touch(now)
}

func (t *Tenant) SetRateLimit(perMinute int, now time.Time) error {
	if perMinute < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "rate limit cannot be negative")
	}
	t.RateLimitPerMinute = perMinute
	t.touch(now)
	return nil
}

// ToolDisabled reports whether policy hides the named tool.
func (t *Tenant) ToolDisabled(name string) bool {
	_, found := slices.BinarySearch(t.DisabledTools, name)
	return found
}

func (t *Tenant) touch(now time.Time) {
	t.UpdatedAt = now
	t.ConfigVersion++
}

func validSlug(s string) bool {
	if len(s) < 2 || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '-' && i > 0 && i < len(s)-1:
		default:
			return false
		}
	}
	return true
}
