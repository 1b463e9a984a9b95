package refreshtoken

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitgate/internal/auth/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

// PostgresStore persists refresh tokens in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed refresh token store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, token *models.RefreshTokenRecord) error {
	if token == nil {
		return fmt.Errorf("refresh token is required")
	}
	query := `
		INSERT INTO refresh_tokens (token, tenant_id, principal_id, principal_kind, client_id, scope, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)
		ON CONFLICT (token) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query,
		token.Token,
		uuid.UUID(token.TenantID),
		token.PrincipalID,
		string(token.PrincipalKind),
		token.ClientID,
		strings.Join(token.Scopes, " "),
		token.CreatedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("refresh token: %w", sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Find(ctx context.Context, token string) (*models.RefreshTokenRecord, error) {
	query := `
		SELECT token, tenant_id, principal_id, principal_kind, client_id, scope, created_at, expires_at, used, used_at
		FROM refresh_tokens
		WHERE token = $1
	`
	record, err := scanRefreshToken(s.db.QueryRowContext(ctx, query, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find refresh token: %w", err)
	}
	return record, nil
}

// Consume flips used with a conditional UPDATE so concurrent rotations of the
// same token race on the row and only one wins.
func (s *PostgresStore) Consume(ctx context.Context, token string, now time.Time) (*models.RefreshTokenRecord, error) {
	query := `
		UPDATE refresh_tokens
		SET used = TRUE, used_at = $2
		WHERE token = $1 AND used = FALSE AND expires_at > $2
		RETURNING token, tenant_id, principal_id, principal_kind, client_id, scope, created_at, expires_at, used, used_at
	`
	record, err := scanRefreshToken(s.db.QueryRowContext(ctx, query, token, now))
	if err == nil {
		record.Used = false
		record.UsedAt = nil
		return record, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	existing, findErr := s.Find(ctx, token)
	if findErr != nil {
		return nil, findErr
	}
	if existing.Used {
		return nil, sentinel.ErrAlreadyUsed
	}
	return nil, sentinel.ErrExpired
}

func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRefreshToken(row rowScanner) (*models.RefreshTokenRecord, error) {
	var (
		record   models.RefreshTokenRecord
		tenantID uuid.UUID
		kind     string
		scope    string
		usedAt   sql.NullTime
	)
	if err := row.Scan(
		&record.Token,
		&tenantID,
		&record.PrincipalID,
		&kind,
		&record.ClientID,
		&scope,
		&record.CreatedAt,
		&record.ExpiresAt,
		&record.Used,
		&usedAt,
	); err != nil {
		return nil, err
	}
	record.TenantID = id.TenantID(tenantID)
	record.PrincipalKind = id.PrincipalKind(kind)
	record.Scopes = strings.Fields(scope)
	if usedAt.Valid {
		t := usedAt.Time
		record.UsedAt = &t
	}
	return &record, nil
}
