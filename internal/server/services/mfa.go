package services

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/repomanager"
)

// MfaSetupResult is what an authenticator app needs to enroll.
type MfaSetupResult struct {
	SecretBase32 string
	OtpauthURL   string
}

// MfaService drives the enrollment state machine
// NONE -> PROVISIONED -> ACTIVE, with Disable returning to NONE.
type MfaService struct {
	tx     dbx.Transactor
	repos  repomanager.RepositoryManager
	totp   auth.MfaService
	minter auth.TokenMinter
	ledger *RefreshLedger
	issuer string
	logger logging.Logger
}

func NewMfaService(tx dbx.Transactor, repos repomanager.RepositoryManager, totp auth.MfaService,
	minter auth.TokenMinter, ledger *RefreshLedger, issuer string, logger logging.Logger) *MfaService {
	return &MfaService{
		tx:     tx,
		repos:  repos,
		totp:   totp,
		minter: minter,
		ledger: ledger,
		issuer: issuer,
		logger: logger.With("module", "mfa"),
	}
}

// Setup provisions a TOTP secret. Calling it again before activation returns
// the same secret; after activation it fails with common.ErrMfaAlreadyEnabled.
// An empty label defaults to "<issuer> (<userID>)".
func (s *MfaService) Setup(ctx context.Context, userID, label string) (*MfaSetupResult, error) {
	if userID == "" {
		return nil, common.ErrUserNotFound
	}
	if label == "" {
		label = fmt.Sprintf("%s (%s)", s.issuer, userID)
	}
	conn := s.tx.Conn()

	if _, err := findUser(ctx, s.repos, conn, userID); err != nil {
		return nil, err
	}

	existing, err := findEnrollment(ctx, s.repos, conn, userID)
	if err != nil {
		return nil, err
	}

	switch existing.State() {
	case models.MfaActive:
		return nil, common.ErrMfaAlreadyEnabled
	case models.MfaProvisioned:
		return s.describe(existing.SecretBase32, label)
	}

	secret, err := s.totp.GenerateSecret(label)
	if err != nil {
		return nil, fmt.Errorf("error generating mfa secret: %w", err)
	}

	stored, err := s.repos.Mfa(conn).Provision(ctx, userID, secret.Base32)
	if err != nil {
		return nil, fmt.Errorf("error storing mfa secret: %w", err)
	}
	if stored.Enabled {
		return nil, common.ErrMfaAlreadyEnabled
	}
	if stored.SecretBase32 != secret.Base32 {
		// A concurrent Setup stored its secret first.
		return s.describe(stored.SecretBase32, label)
	}

	s.logger.Info(ctx, "mfa provisioned", "user_id", userID)
	return &MfaSetupResult{SecretBase32: secret.Base32, OtpauthURL: secret.OtpauthURL}, nil
}

// Verify checks code against the stored secret and activates the
// enrollment. A wrong code does not count towards login lockout.
func (s *MfaService) Verify(ctx context.Context, userID, code string) error {
	conn := s.tx.Conn()

	enrollment, err := findEnrollment(ctx, s.repos, conn, userID)
	if err != nil {
		return err
	}
	if enrollment.State() == models.MfaNone {
		return common.ErrMfaNotConfigured
	}

	if !s.totp.Verify(enrollment.SecretBase32, code) {
		s.logger.Info(ctx, "mfa verification failed", "user_id", userID)
		return common.ErrInvalidMfaToken
	}

	if enrollment.Enabled {
		return nil
	}

	activated, err := s.repos.Mfa(conn).Activate(ctx, userID)
	if err != nil {
		return fmt.Errorf("error activating mfa: %w", err)
	}
	if !activated {
		// Disabled between the read and the update.
		return common.ErrMfaNotConfigured
	}

	s.logger.Info(ctx, "mfa activated", "user_id", userID)
	return nil
}

// Disable discards the enrollment whatever its state. Callers are expected
// to hold a fully verified session.
func (s *MfaService) Disable(ctx context.Context, userID string) error {
	if err := s.repos.Mfa(s.tx.Conn()).Delete(ctx, userID); err != nil {
		return fmt.Errorf("error disabling mfa: %w", err)
	}
	s.logger.Info(ctx, "mfa disabled", "user_id", userID)
	return nil
}

// Enabled reports whether the user's enrollment is active.
func (s *MfaService) Enabled(ctx context.Context, userID string) (bool, error) {
	enrollment, err := findEnrollment(ctx, s.repos, s.tx.Conn(), userID)
	if err != nil {
		return false, err
	}
	return enrollment.IsEnabled(), nil
}

// Promote issues a full session for a user that has just passed Verify,
// upgrading a partial session.
func (s *MfaService) Promote(ctx context.Context, userID string) (*SessionGrant, error) {
	conn := s.tx.Conn()

	user, err := findUser(ctx, s.repos, conn, userID)
	if err != nil {
		return nil, err
	}
	enrollment, err := findEnrollment(ctx, s.repos, conn, userID)
	if err != nil {
		return nil, err
	}
	return issueGrant(ctx, s.minter, s.ledger, user, enrollment.IsEnabled())
}

func (s *MfaService) describe(secret, label string) (*MfaSetupResult, error) {
	url, err := s.totp.BuildOtpauthURL(secret, label)
	if err != nil {
		return nil, fmt.Errorf("error building otpauth url: %w", err)
	}
	return &MfaSetupResult{SecretBase32: secret, OtpauthURL: url}, nil
}
