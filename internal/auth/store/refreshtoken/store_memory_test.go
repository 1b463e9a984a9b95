package refreshtoken

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	"fitgate/pkg/testutil"
)

func newRecord(t *testing.T, token string, now time.Time) *models.RefreshTokenRecord {
	t.Helper()
	rec, err := models.NewRefreshToken(token, id.TenantID(uuid.New()), uuid.NewString(), id.PrincipalUser,
		"assistant", []string{id.ScopeFitnessRead}, now, 30*24*time.Hour)
	require.NoError(t, err)
	return rec
}

func TestConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, newRecord(t, "rt-1", now)))

	got, err := store.Consume(ctx, "rt-1", now)
	require.NoError(t, err)
	assert.False(t, got.Used)
	assert.Equal(t, []string{id.ScopeFitnessRead}, got.Scopes)

	_, err = store.Consume(ctx, "rt-1", now)
	assert.ErrorIs(t, err, sentinel.ErrAlreadyUsed)

	stored, err := store.Find(ctx, "rt-1")
	require.NoError(t, err)
	assert.True(t, stored.Used)
}

func TestConsumeExpiredAndUnknown(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, newRecord(t, "rt-old", now)))

	_, err := store.Consume(ctx, "rt-old", now.Add(31*24*time.Hour))
	assert.ErrorIs(t, err, sentinel.ErrExpired)

	_, err = store.Consume(ctx, "missing", now)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestConcurrentRotationWinsOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, newRecord(t, "rt-race", now)))

	result := testutil.RunConcurrent(20, func(int) error {
		_, err := store.Consume(ctx, "rt-race", now)
		return err
	})
	assert.Equal(t, int32(1), result.Successes)
	assert.Equal(t, int32(19), result.Errors)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	store := NewInMemoryStore()
	require.NoError(t, store.Create(ctx, newRecord(t, "a", now)))
	require.NoError(t, store.Create(ctx, newRecord(t, "b", now.Add(-31*24*time.Hour))))

	n, err := store.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Find(ctx, "b")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
