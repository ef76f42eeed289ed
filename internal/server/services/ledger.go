package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

// IssuedRefreshToken pairs the opaque token handed to the client with the
// ledger row that stores its hash.
type IssuedRefreshToken struct {
	Token  string
	Record *models.RefreshToken
}

// RefreshLedger issues, rotates and revokes refresh tokens. Plaintext tokens
// never reach the repository.
type RefreshLedger struct {
	tx                 dbx.Transactor
	repos              repomanager.RepositoryManager
	tokens             *auth.RefreshTokenService
	revokeChainOnReuse bool
	logger             logging.Logger
	now                func() time.Time
}

func NewRefreshLedger(tx dbx.Transactor, repos repomanager.RepositoryManager, tokens *auth.RefreshTokenService,
	revokeChainOnReuse bool, logger logging.Logger) *RefreshLedger {
	return &RefreshLedger{
		tx:                 tx,
		repos:              repos,
		tokens:             tokens,
		revokeChainOnReuse: revokeChainOnReuse,
		logger:             logger.With("module", "refresh_ledger"),
		now:                time.Now,
	}
}

// Issue creates a new refresh token for userID.
func (l *RefreshLedger) Issue(ctx context.Context, userID string) (*IssuedRefreshToken, error) {
	token, err := l.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	rec, err := l.repos.RefreshTokens(l.tx.Conn()).Create(ctx, userID, l.tokens.Hash(token), l.tokens.ExpiresAt(l.now()))
	if err != nil {
		return nil, fmt.Errorf("error storing refresh token: %w", err)
	}
	return &IssuedRefreshToken{Token: token, Record: rec}, nil
}

// FindValid returns the ledger row for a presented token, or
// common.ErrInvalidRefreshToken when it is unknown, expired or revoked.
func (l *RefreshLedger) FindValid(ctx context.Context, presented string) (*models.RefreshToken, error) {
	if presented == "" {
		return nil, common.ErrInvalidRefreshToken
	}
	rec, err := l.repos.RefreshTokens(l.tx.Conn()).FindValid(ctx, l.tokens.Hash(presented), l.now())
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	return rec, nil
}

// Rotate atomically replaces the row for oldHash with a new row for newHash.
// The old row is locked, the successor inserted and the old row revoked with
// a link to it, all in one transaction. A caller that loses a race for the
// same token gets common.ErrInvalidRefreshToken. The successor is returned
// only after the transaction has committed.
func (l *RefreshLedger) Rotate(ctx context.Context, oldHash, newHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	var next *models.RefreshToken
	err := l.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		repo := l.repos.RefreshTokens(tx)
		now := l.now()

		old, err := repo.LockValid(ctx, oldHash, now)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrInvalidRefreshToken
			}
			return fmt.Errorf("error locking refresh token: %w", err)
		}

		created, err := repo.Create(ctx, old.UserID, newHash, expiresAt)
		if err != nil {
			return fmt.Errorf("error storing refresh token: %w", err)
		}

		revoked, err := repo.Revoke(ctx, old.ID, &created.ID, now)
		if err != nil {
			return fmt.Errorf("error revoking refresh token: %w", err)
		}
		if !revoked {
			return common.ErrInvalidRefreshToken
		}

		next = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// RotatePresented generates a successor for the presented plaintext token
// and rotates to it.
func (l *RefreshLedger) RotatePresented(ctx context.Context, presented string) (*IssuedRefreshToken, error) {
	if presented == "" {
		return nil, common.ErrInvalidRefreshToken
	}
	token, err := l.tokens.Generate()
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}
	rec, err := l.Rotate(ctx, l.tokens.Hash(presented), l.tokens.Hash(token), l.tokens.ExpiresAt(l.now()))
	if err != nil {
		return nil, err
	}
	return &IssuedRefreshToken{Token: token, Record: rec}, nil
}

// Revoke invalidates the presented token without a successor. Unknown,
// expired and already revoked tokens are ignored so logout can be retried.
func (l *RefreshLedger) Revoke(ctx context.Context, presented string) error {
	rec, err := l.FindValid(ctx, presented)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRefreshToken) {
			return nil
		}
		return err
	}
	if _, err := l.repos.RefreshTokens(l.tx.Conn()).Revoke(ctx, rec.ID, nil, l.now()); err != nil {
		return fmt.Errorf("error revoking refresh token: %w", err)
	}
	return nil
}

// ReportReuse inspects a token that failed validation. When it was revoked
// by rotation (it has a successor) it is being replayed; if chain
// revocation is enabled every token descending from it is revoked so the
// party holding the stolen successor is logged out too. It reports whether
// reuse was detected.
func (l *RefreshLedger) ReportReuse(ctx context.Context, presented string) (bool, error) {
	if presented == "" {
		return false, nil
	}
	repo := l.repos.RefreshTokens(l.tx.Conn())

	rec, err := repo.FindByHash(ctx, l.tokens.Hash(presented))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("error searching refresh token: %w", err)
	}
	if rec.RevokedAt == nil || rec.ReplacedBy == nil {
		return false, nil
	}

	l.logger.Warn(ctx, "rotated refresh token presented again", "user_id", rec.UserID, "token_id", rec.ID)
	if !l.revokeChainOnReuse {
		return true, nil
	}

	n, err := repo.RevokeSuccessors(ctx, rec.ID, l.now())
	if err != nil {
		return true, fmt.Errorf("error revoking refresh token chain: %w", err)
	}
	l.logger.Warn(ctx, "refresh token chain revoked", "user_id", rec.UserID, "revoked", n)
	return true, nil
}
