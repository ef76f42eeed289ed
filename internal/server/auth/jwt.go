// Package auth holds the credential and token primitives of the server:
// session token minting, refresh token generation, password hashing,
// TOTP and anti-forgery tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the signed session payload. A nil MfaVerified comes from
// tokens minted before MFA existed and counts as verified.
type SessionClaims struct {
	jwt.RegisteredClaims
	UserID          string                 `json:"userId"`
	PermissionLevel models.PermissionLevel `json:"permissionLevel"`
	MfaVerified     *bool                  `json:"mfaVerified,omitempty"`
}

// NewSessionClaims builds claims for a full (verified) or partial session.
func NewSessionClaims(userID string, level models.PermissionLevel, mfaVerified bool) SessionClaims {
	return SessionClaims{
		UserID:          userID,
		PermissionLevel: level,
		MfaVerified:     &mfaVerified,
	}
}

// Verified reports whether the session passed every required factor.
func (c *SessionClaims) Verified() bool {
	return c.MfaVerified == nil || *c.MfaVerified
}

// TokenMinter signs and verifies session tokens.
type TokenMinter interface {
	Sign(claims SessionClaims) (string, error)
	Verify(token string) (*SessionClaims, error)
}

// JWTMinter is an HS256 TokenMinter with a fixed validity horizon.
type JWTMinter struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewJWTMinter(secret []byte, validity time.Duration) *JWTMinter {
	return &JWTMinter{secret: secret, validity: validity, now: time.Now}
}

// Sign stamps issued-at and expiry on claims and returns the compact token.
func (m *JWTMinter) Sign(claims SessionClaims) (string, error) {
	now := m.now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.validity))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Verify parses tokenString. Every failure (signature, algorithm, structure,
// expiry, missing subject) is reported as common.ErrInvalidToken.
func (m *JWTMinter) Verify(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, common.ErrInvalidToken
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, errors.New("missing user id"))
	}
	return claims, nil
}
