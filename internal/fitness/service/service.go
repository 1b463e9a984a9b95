// Package service answers fitness-data questions for a resolved caller.
// Users read their own records; agent clients name the athlete, who must
// belong to the caller's tenant.
package service

import (
	"context"
	"errors"
	"time"

	"fitgate/internal/fitness/models"
	id "fitgate/pkg/domain"
	dErrors "fitgate/pkg/domain-errors"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/requestcontext"
)

const (
	DefaultActivityLimit = 10
	MaxActivityLimit     = 100
	DefaultSummaryDays   = 28
	MaxSummaryDays       = 365
)

type Store interface {
	GetAthlete(ctx context.Context, tenantID id.TenantID, userID id.UserID) (*models.Athlete, error)
	GetActivity(ctx context.Context, tenantID id.TenantID, userID id.UserID, activityID id.ActivityID) (*models.Activity, error)
	ListActivities(ctx context.Context, tenantID id.TenantID, userID id.UserID, f models.ActivityFilter) ([]*models.Activity, error)
	ListConnections(ctx context.Context, tenantID id.TenantID, userID id.UserID) ([]*models.Connection, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

var errAthleteNotFound = dErrors.New(dErrors.CodeNotFound, "athlete not found")

// Athlete resolves whose data the caller reads. athleteID may be empty for
// users, meaning themselves.
func (s *Service) Athlete(ctx context.Context, auth id.AuthContext, athleteID string) (*models.Athlete, error) {
	userID, err := target(auth, athleteID)
	if err != nil {
		return nil, err
	}
	athlete, err := s.store.GetAthlete(ctx, auth.TenantID, userID)
	if err != nil {
		return nil, translate(err, errAthleteNotFound)
	}
	return athlete, nil
}

func (s *Service) Activities(ctx context.Context, auth id.AuthContext, athleteID string, f models.ActivityFilter) ([]*models.Activity, error) {
	athlete, err := s.Athlete(ctx, auth, athleteID)
	if err != nil {
		return nil, err
	}
	if f.Provider != "" && !models.IsKnownProvider(f.Provider) {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown provider")
	}
	switch {
	case f.Limit <= 0:
		f.Limit = DefaultActivityLimit
	case f.Limit > MaxActivityLimit:
		f.Limit = MaxActivityLimit
	}
	activities, err := s.store.ListActivities(ctx, auth.TenantID, athlete.UserID, f)
	if err != nil {
		return nil, translate(err, errAthleteNotFound)
	}
	return activities, nil
}

func (s *Service) Activity(ctx context.Context, auth id.AuthContext, athleteID, activityID string) (*models.Activity, error) {
	athlete, err := s.Athlete(ctx, auth, athleteID)
	if err != nil {
		return nil, err
	}
	notFound := dErrors.New(dErrors.CodeNotFound, "activity not found")
	aid, err := id.ParseActivityID(activityID)
	if err != nil {
		return nil, notFound
	}
	activity, err := s.store.GetActivity(ctx, auth.TenantID, athlete.UserID, aid)
	if err != nil {
		return nil, translate(err, notFound)
	}
	return activity, nil
}

func (s *Service) Connections(ctx context.Context, auth id.AuthContext, athleteID string) ([]*models.Connection, error) {
	athlete, err := s.Athlete(ctx, auth, athleteID)
	if err != nil {
		return nil, err
	}
	conns, err := s.store.ListConnections(ctx, auth.TenantID, athlete.UserID)
	if err != nil {
		return nil, translate(err, errAthleteNotFound)
	}
	return conns, nil
}

// Window is the set of activities that started in [From, To).
type Window struct {
	From       time.Time
	To         time.Time
	Activities []*models.Activity
}

// ActivityWindow loads the last days of activity, ending at the request
// time.
func (s *Service) ActivityWindow(ctx context.Context, auth id.AuthContext, athleteID string, days int) (Window, error) {
	if days <= 0 {
		days = DefaultSummaryDays
	}
	if days > MaxSummaryDays {
		return Window{}, dErrors.New(dErrors.CodeValidation, "days must be at most 365")
	}
	athlete, err := s.Athlete(ctx, auth, athleteID)
	if err != nil {
		return Window{}, err
	}
	to := requestcontext.Now(ctx)
	from := to.Add(-time.Duration(days) * 24 * time.Hour)
	activities, err := s.store.ListActivities(ctx, auth.TenantID, athlete.UserID, models.ActivityFilter{Since: from, Before: to})
	if err != nil {
		return Window{}, translate(err, errAthleteNotFound)
	}
	return Window{From: from, To: to, Activities: activities}, nil
}

func (s *Service) TrainingSummary(ctx context.Context, auth id.AuthContext, athleteID string, days int) (models.Summary, error) {
	w, err := s.ActivityWindow(ctx, auth, athleteID, days)
	if err != nil {
		return models.Summary{}, err
	}
	return models.Summarize(w.Activities, w.From, w.To), nil
}

func target(auth id.AuthContext, athleteID string) (id.UserID, error) {
	if auth.PrincipalKind == id.PrincipalUser {
		if athleteID != "" && athleteID != auth.PrincipalID {
			return id.UserID{}, errAthleteNotFound
		}
		athleteID = auth.PrincipalID
	} else if athleteID == "" {
		return id.UserID{}, dErrors.New(dErrors.CodeValidation, "athlete_id is required for client callers")
	}
	userID, err := id.ParseUserID(athleteID)
	if err != nil {
		return id.UserID{}, errAthleteNotFound
	}
	return userID, nil
}

func translate(err, notFound error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return notFound
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "fitness store failure")
}
