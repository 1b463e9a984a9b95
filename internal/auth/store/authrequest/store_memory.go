package authrequest

import (
	"context"
	"fmt"
	"time"

	"fitgate/internal/auth/models"
	"fitgate/pkg/platform/sentinel"
	psync "fitgate/pkg/platform/sync"
)

// InMemoryStore holds pending authorization requests keyed by state.
//
// Error contract:
//   - ConsumeByState returns sentinel.ErrNotFound when the state is unknown,
//     sentinel.ErrExpired when past its TTL, sentinel.ErrAlreadyUsed on replay
//     and sentinel.ErrInvalidInput when code, redirect URI or client differ.
//   - Create returns sentinel.ErrConflict for a duplicate state.
//
// Requests are sharded by state, so callbacks for different tenants or
// different requests do not serialize on one lock.
type InMemoryStore struct {
	requests *psync.ShardedMap[*models.AuthorizationRequest]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: psync.NewShardedMap[*models.AuthorizationRequest](0)}
}

func (s *InMemoryStore) Create(_ context.Context, req *models.AuthorizationRequest) error {
	return s.requests.With(req.State, func(m map[string]*models.AuthorizationRequest) error {
		if _, exists := m[req.State]; exists {
			return fmt.Errorf("authorization request: %w", sentinel.ErrConflict)
		}
		stored := *req
		m[req.State] = &stored
		return nil
	})
}

// ConsumeByState validates and consumes the request in one critical section,
// so two concurrent exchanges of the same state cannot both succeed. A
// mismatched presentation leaves the request unconsumed.
func (s *InMemoryStore) ConsumeByState(_ context.Context, state, code, redirectURI, clientID string, now time.Time) (*models.AuthorizationRequest, error) {
	var out models.AuthorizationRequest
	err := s.requests.With(state, func(m map[string]*models.AuthorizationRequest) error {
		record, ok := m[state]
		if !ok {
			return sentinel.ErrNotFound
		}
		if record.Consumed {
			return sentinel.ErrAlreadyUsed
		}
		if record.IsExpired(now) {
			return sentinel.ErrExpired
		}
		if !record.Matches(code, redirectURI, clientID) {
			return sentinel.ErrInvalidInput
		}
		record.Consumed = true
		out = *record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteExpired removes requests past their TTL, consumed or not.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return s.requests.DeleteFunc(func(_ string, record *models.AuthorizationRequest) bool {
		return record.IsExpired(now)
	}), nil
}
