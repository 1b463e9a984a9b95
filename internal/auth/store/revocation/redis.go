package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	id "fitgate/pkg/domain"
)

const redisKeyPrefix = "fitgate:revoked:"

// RedisList shares revocations across gateway replicas. Each entry expires
// with the token it revokes, so no sweeping is needed.
type RedisList struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewRedisList(client redis.UniversalClient) *RedisList {
	return &RedisList{client: client, now: time.Now}
}

func (l *RedisList) Revoke(ctx context.Context, tenantID id.TenantID, jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(l.now())
	if ttl <= 0 {
		return nil
	}
	if err := l.client.Set(ctx, redisKeyPrefix+jti, tenantID.String(), ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *RedisList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := l.client.Get(ctx, redisKeyPrefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return true, nil
}
