package revocation

import (
	"context"
	"time"

	id "fitgate/pkg/domain"
	psync "fitgate/pkg/platform/sync"
)

// List is the access-token revocation side table, keyed by JTI. Entries only
// need to live until the token's own expiry.
type List interface {
	Revoke(ctx context.Context, tenantID id.TenantID, jti string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// InMemoryList is the single-process revocation list, sharded by JTI.
// Expired entries are removed by DeleteExpired, driven by the cleanup worker.
type InMemoryList struct {
	revoked *psync.ShardedMap[time.Time] // jti -> token expiry
	now     func() time.Time
}

func NewInMemoryList() *InMemoryList {
	return &InMemoryList{
		revoked: psync.NewShardedMap[time.Time](0),
		now:     time.Now,
	}
}

func (l *InMemoryList) Revoke(_ context.Context, _ id.TenantID, jti string, expiresAt time.Time) error {
	return l.revoked.With(jti, func(m map[string]time.Time) error {
		if existing, ok := m[jti]; ok && existing.After(expiresAt) {
			return nil
		}
		m[jti] = expiresAt
		return nil
	})
}

func (l *InMemoryList) IsRevoked(_ context.Context, jti string) (bool, error) {
	expiry, exists := l.revoked.Get(jti)
	if !exists {
		return false, nil
	}
	// Past expiry the token fails validation anyway.
	return l.now().Before(expiry), nil
}

func (l *InMemoryList) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return l.revoked.DeleteFunc(func(_ string, expiry time.Time) bool {
		return !now.Before(expiry)
	}), nil
}
