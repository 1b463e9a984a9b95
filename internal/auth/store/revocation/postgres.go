package revocation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "fitgate/pkg/domain"
)

// PostgresList persists revoked token JTIs in PostgreSQL.
type PostgresList struct {
	db *sql.DB
}

func NewPostgresList(db *sql.DB) *PostgresList {
	return &PostgresList{db: db}
}

func (l *PostgresList) Revoke(ctx context.Context, tenantID id.TenantID, jti string, expiresAt time.Time) error {
	query := `
		INSERT INTO token_revocations (jti, tenant_id, revoked_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (jti) DO UPDATE SET
			expires_at = GREATEST(token_revocations.expires_at, EXCLUDED.expires_at)
	`
	_, err := l.db.ExecContext(ctx, query, jti, uuid.UUID(tenantID), time.Now(), expiresAt)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (l *PostgresList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var expiresAt time.Time
	err := l.db.QueryRowContext(ctx, `SELECT expires_at FROM token_revocations WHERE jti = $1`, jti).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return time.Now().Before(expiresAt), nil
}

func (l *PostgresList) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM token_revocations WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revocations: %w", err)
	}
	return int(n), nil
}
