// Package models holds the fitness records tools read: athlete profiles,
// activities and provider connections. All of them are owned by one user of
// one tenant.
package models

import (
	"strings"
	"time"

	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
)

// Providers the gateway can connect to.
const (
	ProviderStrava = "strava"
	ProviderFitbit = "fitbit"
	ProviderGarmin = "garmin"
)

var knownProviders = []string{ProviderFitbit, ProviderGarmin, ProviderStrava}

func KnownProviders() []string {
	out := make([]string, len(knownProviders))
	copy(out, knownProviders)
	return out
}

func IsKnownProvider(p string) bool {
	for _, k := range knownProviders {
		if k == p {
			return true
		}
	}
	return false
}

type Athlete struct {
	TenantID  id.TenantID `json:"-"`
	UserID    id.UserID   `json:"id"`
	Username  string      `json:"username"`
	FirstName string      `json:"firstname,omitempty"`
	LastName  string      `json:"lastname,omitempty"`
	City      string      `json:"city,omitempty"`
	Country   string      `json:"country,omitempty"`
}

func (a *Athlete) Validate() error {
	if a.TenantID.IsNil() || a.UserID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "athlete must belong to a tenant user")
	}
	if strings.TrimSpace(a.Username) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "athlete username is required")
	}
	return nil
}

type Activity struct {
	ID              id.ActivityID `json:"id"`
	TenantID        id.TenantID   `json:"-"`
	UserID          id.UserID     `json:"-"`
	Provider        string        `json:"provider"`
	Name            string        `json:"name"`
	SportType       string        `json:"sport_type"`
	StartDate       time.Time     `json:"start_date"`
	DurationSeconds int           `json:"duration_seconds"`
	DistanceMeters  float64       `json:"distance_meters"`
	ElevationGain   float64       `json:"elevation_gain"`
	AverageHeartBPM int           `json:"average_heart_rate,omitempty"`
}

func (a *Activity) Validate() error {
	if a.TenantID.IsNil() || a.UserID.IsNil() || a.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity must have an id and belong to a tenant user")
	}
	if !IsKnownProvider(a.Provider) {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity provider is unknown")
	}
	if a.DurationSeconds < 0 || a.DistanceMeters < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "activity duration and distance cannot be negative")
	}
	return nil
}

// Connection is a user's link to an upstream provider. Tokens never leave
// the gateway.
type Connection struct {
	TenantID     id.TenantID `json:"-"`
	UserID       id.UserID   `json:"-"`
	Provider     string      `json:"provider"`
	AccessToken  string      `json:"-"`
	RefreshToken string      `json:"-"`
	ExpiresAt    time.Time   `json:"expires_at,omitzero"`
	ConnectedAt  time.Time   `json:"connected_at"`
}

func (c *Connection) IsExpired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// ActivityFilter narrows ListActivities. Zero values mean no filter.
type ActivityFilter struct {
	Provider string
	Before   time.Time
	Since    time.Time
	Limit    int
}
