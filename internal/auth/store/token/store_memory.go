package token

import (
	"context"
	"fmt"
	"slices"
	"time"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
	psync "fitgate/pkg/platform/sync"
)

// InMemoryStore keeps issued access-token records, sharded by tenant and
// JTI. Records are written once and never updated.
type InMemoryStore struct {
	records *psync.ShardedMap[*models.TokenRecord]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: psync.NewShardedMap[*models.TokenRecord](0)}
}

func recordKey(tenantID id.TenantID, jti string) string {
	return psync.Key(tenantID.String(), jti)
}

func (s *InMemoryStore) Save(_ context.Context, record *models.TokenRecord) error {
	key := recordKey(record.TenantID, record.JTI)
	return s.records.With(key, func(m map[string]*models.TokenRecord) error {
		if _, exists := m[key]; exists {
			return fmt.Errorf("token %s: %w", record.JTI, sentinel.ErrConflict)
		}
		m[key] = clone(record)
		return nil
	})
}

// FindByJTI is tenant scoped: a record under another tenant is not found.
func (s *InMemoryStore) FindByJTI(_ context.Context, tenantID id.TenantID, jti string) (*models.TokenRecord, error) {
	record, ok := s.records.Get(recordKey(tenantID, jti))
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(record), nil
}

// ListByRefreshToken returns the access tokens minted alongside a refresh token.
func (s *InMemoryStore) ListByRefreshToken(_ context.Context, tenantID id.TenantID, refreshToken string) ([]*models.TokenRecord, error) {
	if refreshToken == "" {
		return nil, nil
	}
	var out []*models.TokenRecord
	s.records.Range(func(_ string, record *models.TokenRecord) bool {
		if record.TenantID == tenantID && record.RefreshTokenID == refreshToken {
			out = append(out, clone(record))
		}
		return true
	})
	return out, nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return s.records.DeleteFunc(func(_ string, record *models.TokenRecord) bool {
		return !now.Before(record.ExpiresAt)
	}), nil
}

func clone(r *models.TokenRecord) *models.TokenRecord {
	out := *r
	out.Scopes = slices.Clone(r.Scopes)
	return &out
}
