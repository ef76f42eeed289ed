package auth

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod     = 30
	totpSecretSize = 20
)

// MfaSecret is a freshly generated TOTP secret and its enrollment URI.
type MfaSecret struct {
	Base32     string
	OtpauthURL string
}

// MfaService generates TOTP secrets and checks one-time codes.
type MfaService interface {
	GenerateSecret(label string) (*MfaSecret, error)
	BuildOtpauthURL(secretBase32, label string) (string, error)
	Verify(secretBase32, code string) bool
}

// TOTPService is an RFC 6238 MfaService (SHA1, 6 digits, 30s period).
// Skew is the number of periods accepted on either side of now.
type TOTPService struct {
	issuer string
	skew   uint
	now    func() time.Time
}

func NewTOTPService(issuer string, skew uint) *TOTPService {
	if strings.TrimSpace(issuer) == "" {
		issuer = "gophguard"
	}
	return &TOTPService{issuer: issuer, skew: skew, now: time.Now}
}

func (s *TOTPService) Issuer() string { return s.issuer }

func (s *TOTPService) GenerateSecret(label string) (*MfaSecret, error) {
	key, err := totp.Generate(s.generateOpts(label, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to generate TOTP key: %w", err)
	}
	return &MfaSecret{Base32: key.Secret(), OtpauthURL: key.URL()}, nil
}

// BuildOtpauthURL rebuilds the enrollment URI for an existing secret.
func (s *TOTPService) BuildOtpauthURL(secretBase32, label string) (string, error) {
	raw, err := decodeSecret(secretBase32)
	if err != nil {
		return "", fmt.Errorf("invalid TOTP secret: %w", err)
	}
	key, err := totp.Generate(s.generateOpts(label, raw))
	if err != nil {
		return "", fmt.Errorf("failed to build TOTP key: %w", err)
	}
	return key.URL(), nil
}

// Verify strips everything but digits from code (users paste "123 456")
// and validates it against secretBase32.
func (s *TOTPService) Verify(secretBase32, code string) bool {
	normalized := digitsOnly(code)
	if normalized == "" || secretBase32 == "" {
		return false
	}

	ok, err := totp.ValidateCustom(normalized, secretBase32, s.now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      s.skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func (s *TOTPService) generateOpts(label string, secret []byte) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: label,
		Period:      totpPeriod,
		SecretSize:  totpSecretSize,
		Secret:      secret,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	}
}

func decodeSecret(secretBase32 string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(secretBase32, "="))
	return base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(s)
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
