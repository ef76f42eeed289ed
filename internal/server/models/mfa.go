package models

import "time"

// MfaState is the enrollment state derived from a (possibly absent) MfaEnrollment.
type MfaState int

const (
	MfaNone MfaState = iota
	MfaProvisioned
	MfaActive
)

func (s MfaState) String() string {
	switch s {
	case MfaProvisioned:
		return "PROVISIONED"
	case MfaActive:
		return "ACTIVE"
	default:
		return "NONE"
	}
}

// MfaEnrollment holds a user's TOTP secret. There is at most one per user.
type MfaEnrollment struct {
	UserID       string
	SecretBase32 string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// State is safe to call on a nil enrollment.
func (m *MfaEnrollment) State() MfaState {
	switch {
	case m == nil || m.SecretBase32 == "":
		return MfaNone
	case m.Enabled:
		return MfaActive
	default:
		return MfaProvisioned
	}
}

// IsEnabled reports whether login must ask for a second factor. It follows
// the enabled flag alone, so an active enrollment that lost its secret still
// blocks a password-only login.
func (m *MfaEnrollment) IsEnabled() bool {
	return m != nil && m.Enabled
}
