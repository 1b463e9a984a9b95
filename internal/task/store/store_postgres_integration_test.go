//go:build integration

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"fitgate/internal/task/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/testutil"
	"fitgate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.pg.DB.Exec(`TRUNCATE tasks`)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newTask(tenant id.TenantID) *models.Task {
	auth := id.AuthContext{TenantID: tenant, PrincipalID: uuid.NewString(), PrincipalKind: id.PrincipalUser}
	t, err := models.New(id.TaskID(uuid.New()), tenant, auth, "fitness_analysis", json.RawMessage(`{"days":14}`),
		time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), t))
	return t
}

func (s *PostgresStoreSuite) TestRoundTripAndTenantScoping() {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	t := s.newTask(tenant)

	got, err := s.store.Get(ctx, tenant, t.ID)
	s.Require().NoError(err)
	s.Equal(t.OwnerID, got.OwnerID)
	s.Equal(models.StatusPending, got.Status)
	s.JSONEq(`{"days":14}`, string(got.Input))

	_, err = s.store.Get(ctx, id.TenantID(uuid.New()), t.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestTransitionPersistsFailure() {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	t := s.newTask(tenant)
	now := time.Now().UTC()

	_, err := s.store.Transition(ctx, tenant, t.ID, func(t *models.Task) error { return t.Start(now) })
	s.Require().NoError(err)
	_, err = s.store.Transition(ctx, tenant, t.ID, func(t *models.Task) error {
		return t.Fail(models.Failure{Code: "provider_unavailable", Message: "strava timed out"}, now)
	})
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, tenant, t.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusFailed, got.Status)
	s.Require().NotNil(got.Error)
	s.Equal("provider_unavailable", got.Error.Code)
	s.NotNil(got.CompletedAt)

	failed, err := s.store.List(ctx, tenant, models.Filter{Status: models.StatusFailed})
	s.Require().NoError(err)
	s.Len(failed, 1)
}

func (s *PostgresStoreSuite) TestConcurrentCancelAndCompleteFirstWins() {
	ctx := context.Background()
	tenant := id.TenantID(uuid.New())
	t := s.newTask(tenant)
	_, err := s.store.Transition(ctx, tenant, t.ID, func(t *models.Task) error { return t.Start(time.Now()) })
	s.Require().NoError(err)

	result := testutil.RunConcurrent(10, func(i int) error {
		_, err := s.store.Transition(ctx, tenant, t.ID, func(t *models.Task) error {
			if i%2 == 0 {
				return t.Cancel(time.Now())
			}
			return t.Complete(json.RawMessage(`{}`), time.Now())
		})
		return err
	})
	s.Equal(int32(1), result.Successes)
}

func (s *PostgresStoreSuite) TestListByStatusSpansTenants() {
	ctx := context.Background()
	a := s.newTask(id.TenantID(uuid.New()))
	b := s.newTask(id.TenantID(uuid.New()))
	_, err := s.store.Transition(ctx, b.TenantID, b.ID, func(t *models.Task) error { return t.Start(time.Now()) })
	s.Require().NoError(err)

	pending, err := s.store.ListByStatus(ctx, models.StatusPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(a.ID, pending[0].ID)

	running, err := s.store.ListByStatus(ctx, models.StatusRunning)
	s.Require().NoError(err)
	s.Require().Len(running, 1)
	s.Equal(b.ID, running[0].ID)
}
