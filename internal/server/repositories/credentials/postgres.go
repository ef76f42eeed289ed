package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, cred *models.Credential) error {
	query := `
		INSERT INTO user_credentials (user_id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query, cred.UserID, cred.Email, cred.PasswordHash).Scan(&cred.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := `
		SELECT user_id, email, password_hash, created_at
		FROM user_credentials
		WHERE email = $1
	`
	return scanCredential(r.db.QueryRowContext(ctx, query, email))
}

func (r *PostgresRepository) FindByUserID(ctx context.Context, userID string) (*models.Credential, error) {
	query := `
		SELECT user_id, email, password_hash, created_at
		FROM user_credentials
		WHERE user_id = $1
	`
	return scanCredential(r.db.QueryRowContext(ctx, query, userID))
}

func scanCredential(row *sql.Row) (*models.Credential, error) {
	cred := &models.Credential{}
	if err := row.Scan(&cred.UserID, &cred.Email, &cred.PasswordHash, &cred.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return cred, nil
}
