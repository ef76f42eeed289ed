// Package refreshtokens provides a PostgreSQL-backed repository for the
// refresh token ledger used in the server's authentication flow.
package refreshtokens

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

const tokenColumns = `id, user_id, token_hash, expires_at, created_at, revoked_at, replaced_by`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new ledger row with a generated UUID.
func (r *PostgresRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	token := &models.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`
	if err := r.db.QueryRowContext(ctx, query, token.ID, userID, tokenHash, expiresAt).Scan(&token.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return token, nil
}

// FindValid returns the unrevoked, unexpired row for tokenHash.
func (r *PostgresRepository) FindValid(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
	`
	return scanToken(r.db.QueryRowContext(ctx, query, tokenHash, now))
}

// LockValid is FindValid with SELECT ... FOR UPDATE.
func (r *PostgresRepository) LockValid(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		FOR UPDATE
	`
	return scanToken(r.db.QueryRowContext(ctx, query, tokenHash, now))
}

// FindByHash returns the row for tokenHash in any state.
func (r *PostgresRepository) FindByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT ` + tokenColumns + `
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	return scanToken(r.db.QueryRowContext(ctx, query, tokenHash))
}

// Revoke marks the row revoked if it is not already.
func (r *PostgresRepository) Revoke(ctx context.Context, id string, replacedBy *string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
	var next sql.NullString
	if replacedBy != nil {
		next = sql.NullString{String: *replacedBy, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, id, now, next)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

// RevokeSuccessors walks the replaced_by chain starting after id.
func (r *PostgresRepository) RevokeSuccessors(ctx context.Context, id string, now time.Time) (int64, error) {
	query := `
		WITH RECURSIVE chain AS (
			SELECT replaced_by AS id FROM refresh_tokens WHERE id = $1 AND replaced_by IS NOT NULL
			UNION
			SELECT t.replaced_by FROM refresh_tokens t JOIN chain c ON t.id = c.id WHERE t.replaced_by IS NOT NULL
		)
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id IN (SELECT id FROM chain) AND revoked_at IS NULL
	`
	res, err := r.db.ExecContext(ctx, query, id, now)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func scanToken(row *sql.Row) (*models.RefreshToken, error) {
	var (
		t          models.RefreshToken
		revokedAt  sql.NullTime
		replacedBy sql.NullString
	)
	if err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &revokedAt, &replacedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if revokedAt.Valid {
		v := revokedAt.Time
		t.RevokedAt = &v
	}
	if replacedBy.Valid {
		v := replacedBy.String
		t.ReplacedBy = &v
	}
	return &t, nil
}
