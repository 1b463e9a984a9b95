package authrequest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/testutil"
)

const redirect = "https://assistant.example.com/callback"

type InMemoryStoreSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *InMemoryStore
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore()
}

func (s *InMemoryStoreSuite) create(state string) {
	req, err := models.NewAuthorizationRequest(state, "code-"+state, "challenge", id.TenantID(uuid.New()),
		"client", id.UserID(uuid.New()), redirect, []string{id.ScopeFitnessRead}, s.now, 10*time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, req))
}

func (s *InMemoryStoreSuite) TestConsumeOnce() {
	s.create("st1")

	got, err := s.store.ConsumeByState(s.ctx, "st1", "code-st1", redirect, "client", s.now)
	s.Require().NoError(err)
	s.True(got.Consumed)

	_, err = s.store.ConsumeByState(s.ctx, "st1", "code-st1", redirect, "client", s.now)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryStoreSuite) TestConsumeFailures() {
	s.create("st2")

	_, err := s.store.ConsumeByState(s.ctx, "missing", "code", redirect, "client", s.now)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.ConsumeByState(s.ctx, "st2", "wrong-code", redirect, "client", s.now)
	s.ErrorIs(err, sentinel.ErrInvalidInput)

	_, err = s.store.ConsumeByState(s.ctx, "st2", "code-st2", redirect+"/", "client", s.now)
	s.ErrorIs(err, sentinel.ErrInvalidInput)

	_, err = s.store.ConsumeByState(s.ctx, "st2", "code-st2", redirect, "other-client", s.now)
	s.ErrorIs(err, sentinel.ErrInvalidInput)

	_, err = s.store.ConsumeByState(s.ctx, "st2", "code-st2", redirect, "client", s.now.Add(10*time.Minute))
	s.ErrorIs(err, sentinel.ErrExpired)
}

func (s *InMemoryStoreSuite) TestConcurrentConsumeSucceedsOnce() {
	s.create("race")

	result := testutil.RunConcurrent(50, func(int) error {
		_, err := s.store.ConsumeByState(s.ctx, "race", "code-race", redirect, "client", s.now)
		return err
	})

	s.Equal(int32(1), result.Successes)
	s.Equal(int32(49), result.Errors)
}

// Callbacks for different tenants proceed independently and each succeeds.
func (s *InMemoryStoreSuite) TestConcurrentConsumeAcrossTenants() {
	const n = 40
	for i := range n {
		s.create(fmt.Sprintf("state-%d", i))
	}

	result := testutil.RunConcurrent(n, func(i int) error {
		state := fmt.Sprintf("state-%d", i)
		_, err := s.store.ConsumeByState(s.ctx, state, "code-"+state, redirect, "client", s.now)
		return err
	})

	s.Equal(int32(n), result.Successes)
	deleted, err := s.store.DeleteExpired(s.ctx, s.now.Add(time.Hour))
	s.Require().NoError(err)
	s.Equal(n, deleted)
}

func (s *InMemoryStoreSuite) TestDuplicateStateConflicts() {
	s.create("dup")
	req, err := models.NewAuthorizationRequest("dup", "c", "challenge", id.TenantID(uuid.New()),
		"client", id.UserID(uuid.New()), redirect, nil, s.now, time.Minute)
	s.Require().NoError(err)
	s.ErrorIs(s.store.Create(s.ctx, req), sentinel.ErrConflict)
}

func (s *InMemoryStoreSuite) TestDeleteExpired() {
	s.create("old")
	n, err := s.store.DeleteExpired(s.ctx, s.now.Add(5*time.Minute))
	s.Require().NoError(err)
	s.Equal(0, n)

	n, err = s.store.DeleteExpired(s.ctx, s.now.Add(11*time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}
