package mfa

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (*models.MfaEnrollment, error) {
	query := `
		SELECT user_id, secret_base32, enabled, created_at, updated_at
		FROM user_mfa
		WHERE user_id = $1
	`
	return scanEnrollment(r.db.QueryRowContext(ctx, query, userID))
}

func (r *PostgresRepository) Provision(ctx context.Context, userID, secret string) (*models.MfaEnrollment, error) {
	// The no-op update makes RETURNING yield the existing row on conflict.
	query := `
		INSERT INTO user_mfa (user_id, secret_base32, enabled)
		VALUES ($1, $2, FALSE)
		ON CONFLICT (user_id) DO UPDATE SET user_id = user_mfa.user_id
		RETURNING user_id, secret_base32, enabled, created_at, updated_at
	`
	return scanEnrollment(r.db.QueryRowContext(ctx, query, userID, secret))
}

func (r *PostgresRepository) Activate(ctx context.Context, userID string) (bool, error) {
	query := `
		UPDATE user_mfa
		SET enabled = TRUE, updated_at = now()
		WHERE user_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	query := `
		DELETE FROM user_mfa
		WHERE user_id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func scanEnrollment(row *sql.Row) (*models.MfaEnrollment, error) {
	m := &models.MfaEnrollment{}
	if err := row.Scan(&m.UserID, &m.SecretBase32, &m.Enabled, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}
