package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/google/uuid"
)

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.UserAccount) (*models.UserAccount, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, permission_level)
		VALUES ($1, $2)
		RETURNING failed_login_attempts, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, user.ID, string(user.PermissionLevel)).
		Scan(&user.FailedLoginAttempts, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.LockoutUntil = nil
	return user, nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.UserAccount, error) {
	query := `
		SELECT id, permission_level, failed_login_attempts, lockout_until, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) RecordLoginFailure(ctx context.Context, id string, maxAttempts int, lockoutUntil time.Time) (*models.UserAccount, error) {
	// Right-hand references see the pre-update row, so the increment and the
	// threshold test happen in one statement.
	query := `
		UPDATE users
		SET failed_login_attempts = failed_login_attempts + 1,
		    lockout_until = CASE WHEN failed_login_attempts + 1 >= $2 THEN $3 ELSE NULL END,
		    updated_at = now()
		WHERE id = $1
		RETURNING id, permission_level, failed_login_attempts, lockout_until, created_at, updated_at
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id, maxAttempts, lockoutUntil))
}

func (r *PostgresRepository) ResetLoginFailures(ctx context.Context, id string) error {
	query := `
		UPDATE users
		SET failed_login_attempts = 0, lockout_until = NULL, updated_at = now()
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.UserAccount, error) {
	var (
		user    models.UserAccount
		level   string
		lockout sql.NullTime
	)
	err := row.Scan(&user.ID, &level, &user.FailedLoginAttempts, &lockout, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	user.PermissionLevel = models.PermissionLevel(level)
	if lockout.Valid {
		t := lockout.Time
		user.LockoutUntil = &t
	}
	return &user, nil
}
