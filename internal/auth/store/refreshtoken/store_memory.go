package refreshtoken

import (
	"context"
	"fmt"
	"slices"
	"time"

	"fitgate/internal/auth/models"
	"fitgate/pkg/platform/sentinel"
	psync "fitgate/pkg/platform/sync"
)

// InMemoryStore keeps refresh tokens by their opaque value.
//
// Error contract: Find and Consume return sentinel.ErrNotFound for unknown
// tokens; Consume returns sentinel.ErrExpired or sentinel.ErrAlreadyUsed when
// the token cannot be rotated. Tokens are sharded by value.
type InMemoryStore struct {
	tokens *psync.ShardedMap[*models.RefreshTokenRecord]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{tokens: psync.NewShardedMap[*models.RefreshTokenRecord](0)}
}

func (s *InMemoryStore) Create(_ context.Context, token *models.RefreshTokenRecord) error {
	return s.tokens.With(token.Token, func(m map[string]*models.RefreshTokenRecord) error {
		if _, exists := m[token.Token]; exists {
			return fmt.Errorf("refresh token: %w", sentinel.ErrConflict)
		}
		m[token.Token] = clone(token)
		return nil
	})
}

func (s *InMemoryStore) Find(_ context.Context, token string) (*models.RefreshTokenRecord, error) {
	var out *models.RefreshTokenRecord
	err := s.tokens.With(token, func(m map[string]*models.RefreshTokenRecord) error {
		record, ok := m[token]
		if !ok {
			return sentinel.ErrNotFound
		}
		out = clone(record)
		return nil
	})
	return out, err
}

// Consume marks the token used and returns the record as it was before use.
// Check and mark happen under the token's shard lock, so a token rotates at
// most once.
func (s *InMemoryStore) Consume(_ context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error) {
	var out *models.RefreshTokenRecord
	err := s.tokens.With(token, func(m map[string]*models.RefreshTokenRecord) error {
		record, ok := m[token]
		if !ok {
			return sentinel.ErrNotFound
		}
		if record.Used {
			return sentinel.ErrAlreadyUsed
		}
		if record.IsExpired(now) {
			return sentinel.ErrExpired
		}
		out = clone(record)
		record.MarkUsed(now)
		return nil
	})
	return out, err
}

func (s *InMemoryStore) Delete(_ context.Context, token string) error {
	return s.tokens.With(token, func(m map[string]*models.RefreshTokenRecord) error {
		if _, ok := m[token]; !ok {
			return sentinel.ErrNotFound
		}
		delete(m, token)
		return nil
	})
}

// DeleteExpired drops expired tokens and used tokens whose expiry has passed.
func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	return s.tokens.DeleteFunc(func(_ string, record *models.RefreshTokenRecord) bool {
		return record.IsExpired(now)
	}), nil
}

func clone(r *models.RefreshTokenRecord) *models.RefreshTokenRecord {
	out := *r
	out.Scopes = slices.Clone(r.Scopes)
	return &out
}
