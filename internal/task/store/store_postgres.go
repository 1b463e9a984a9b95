package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"fitgate/internal/task/models"
	id "fitgate/pkg/domain"
	"fitgate/pkg/platform/sentinel"
)

// PostgresStore persists tasks in PostgreSQL. Transition locks the row with
// SELECT ... FOR UPDATE, which gives the same first-writer-wins ordering as
// the in-memory store across processes.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const taskColumns = `id, tenant_id, owner_id, owner_kind, client_id, task_type, status, input, result,
	error_code, error_message, cancel_requested, created_at, updated_at, completed_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Task) error {
	query := `
		INSERT INTO tasks (` + taskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, insertArgs(t)...)
	if err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", t.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, tenantID id.TenantID, taskID id.TaskID) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id = $1 AND id = $2`
	t, err := scanTask(s.db.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(taskID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context, tenantID id.TenantID, f models.Filter) ([]*models.Task, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	query := `SELECT ` + taskColumns + ` FROM tasks
		WHERE tenant_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id
		LIMIT $3`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(tenantID), string(f.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}

// ListByStatus returns every tenant's tasks in status, oldest first. It is
// used at startup, so it is not paginated.
func (s *PostgresStore) ListByStatus(ctx context.Context, status models.Status) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE status = $1 ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	defer rows.Close()

	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks by status: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Transition(ctx context.Context, tenantID id.TenantID, taskID id.TaskID, fn func(*models.Task) error) (*models.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin task transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `SELECT ` + taskColumns + ` FROM tasks WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	t, err := scanTask(tx.QueryRowContext(ctx, query, uuid.UUID(tenantID), uuid.UUID(taskID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock task: %w", err)
	}
	if err := fn(t); err != nil {
		return nil, err
	}

	var errCode, errMessage sql.NullString
	if t.Error != nil {
		errCode = sql.NullString{String: t.Error.Code, Valid: true}
		errMessage = sql.NullString{String: t.Error.Message, Valid: true}
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE tasks
		SET status = $3, result = $4, error_code = $5, error_message = $6,
			cancel_requested = $7, updated_at = $8, completed_at = $9
		WHERE tenant_id = $1 AND id = $2
	`, uuid.UUID(tenantID), uuid.UUID(taskID), string(t.Status), nullJSON(t.Result),
		errCode, errMessage, t.CancelRequested, t.UpdatedAt, t.CompletedAt)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit task transition: %w", err)
	}
	return t, nil
}

func insertArgs(t *models.Task) []any {
	var errCode, errMessage sql.NullString
	if t.Error != nil {
		errCode = sql.NullString{String: t.Error.Code, Valid: true}
		errMessage = sql.NullString{String: t.Error.Message, Valid: true}
	}
	return []any{
		uuid.UUID(t.ID),
		uuid.UUID(t.TenantID),
		t.OwnerID,
		string(t.OwnerKind),
		t.ClientID,
		t.Type,
		string(t.Status),
		[]byte(t.Input),
		nullJSON(t.Result),
		errCode,
		errMessage,
		t.CancelRequested,
		t.CreatedAt,
		t.UpdatedAt,
		t.CompletedAt,
	}
}

func nullJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var (
		t           models.Task
		taskID      uuid.UUID
		tenantID    uuid.UUID
		ownerKind   string
		clientID    sql.NullString
		status      string
		input       []byte
		result      []byte
		errCode     sql.NullString
		errMessage  sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&taskID, &tenantID, &t.OwnerID, &ownerKind, &clientID, &t.Type, &status,
		&input, &result, &errCode, &errMessage, &t.CancelRequested, &t.CreatedAt, &t.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	t.ID = id.TaskID(taskID)
	t.TenantID = id.TenantID(tenantID)
	t.OwnerKind = id.PrincipalKind(ownerKind)
	t.ClientID = clientID.String
	t.Status = models.Status(status)
	t.Input = input
	if len(result) > 0 {
		t.Result = result
	}
	if errCode.Valid || errMessage.Valid {
		t.Error = &models.Failure{Code: errCode.String, Message: errMessage.String}
	}
	if completedAt.Valid {
		c := completedAt.Time
		t.CompletedAt = &c
	}
	return &t, nil
}
