package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
)

const refreshTokenBytes = 32

// RefreshTokenService produces opaque refresh tokens and the digests stored
// in the ledger in their place.
type RefreshTokenService struct {
	validity time.Duration
}

func NewRefreshTokenService(validity time.Duration) *RefreshTokenService {
	return &RefreshTokenService{validity: validity}
}

// Generate returns 32 random bytes, hex encoded.
func (s *RefreshTokenService) Generate() (string, error) {
	return common.MakeRandHexString(refreshTokenBytes)
}

// Hash returns the hex SHA-256 digest of token.
func (s *RefreshTokenService) Hash(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (s *RefreshTokenService) ExpiresAt(now time.Time) time.Time {
	return now.Add(s.validity)
}

// Validity is the configured lifetime, used for cookie max-age.
func (s *RefreshTokenService) Validity() time.Duration {
	return s.validity
}
