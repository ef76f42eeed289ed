package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPermissionLevel_Valid(t *testing.T) {
	for _, l := range PermissionLevels {
		assert.True(t, l.Valid(), l)
	}
	assert.False(t, PermissionLevel("GENERAL").Valid())
	assert.False(t, PermissionLevel("").Valid())
}

func TestMfaEnrollment_State(t *testing.T) {
	var none *MfaEnrollment
	assert.Equal(t, MfaNone, none.State())
	assert.Equal(t, MfaNone, (&MfaEnrollment{UserID: "u"}).State())
	assert.Equal(t, MfaProvisioned, (&MfaEnrollment{SecretBase32: "ABC"}).State())
	assert.Equal(t, MfaActive, (&MfaEnrollment{SecretBase32: "ABC", Enabled: true}).State())
	assert.Equal(t, "ACTIVE", MfaActive.String())
}

func TestMfaEnrollment_IsEnabled(t *testing.T) {
	var none *MfaEnrollment
	assert.False(t, none.IsEnabled())
	assert.False(t, (&MfaEnrollment{SecretBase32: "ABC"}).IsEnabled())
	assert.True(t, (&MfaEnrollment{SecretBase32: "ABC", Enabled: true}).IsEnabled())
	assert.True(t, (&MfaEnrollment{Enabled: true}).IsEnabled(), "flag wins over a missing secret")
}

func TestRefreshToken_Valid(t *testing.T) {
	now := time.Now()
	revoked := now.Add(-time.Minute)

	assert.True(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour)}).Valid(now))
	assert.False(t, (&RefreshToken{ExpiresAt: now}).Valid(now), "expiry is exclusive")
	assert.False(t, (&RefreshToken{ExpiresAt: now.Add(time.Hour), RevokedAt: &revoked}).Valid(now))
}

func TestUserAccount_LockedAt(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&UserAccount{}).LockedAt(now))
	assert.True(t, (&UserAccount{LockoutUntil: &future}).LockedAt(now))
	assert.False(t, (&UserAccount{LockoutUntil: &past}).LockedAt(now))
}
