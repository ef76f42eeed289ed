package services

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophguard/internal/common"
	"github.com/dmitrijs2005/gophguard/internal/dbx"
	"github.com/dmitrijs2005/gophguard/internal/logging"
	"github.com/dmitrijs2005/gophguard/internal/server/auth"
	"github.com/dmitrijs2005/gophguard/internal/server/config"
	"github.com/dmitrijs2005/gophguard/internal/server/models"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/mfa"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/gophguard/internal/server/repositories/users"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- transactor ---

type fakeTx struct {
	beginErr error
	calls    int
}

func (f *fakeTx) Conn() dbx.DBTX { return nil }

func (f *fakeTx) WithTx(ctx context.Context, fn dbx.TxFunc) error {
	f.calls++
	if f.beginErr != nil {
		return f.beginErr
	}
	return fn(ctx, nil)
}

// --- in-memory store behind all repositories ---

type memStore struct {
	mu     sync.Mutex
	users  map[string]models.UserAccount
	creds  map[string]models.Credential // by user id
	mfa    map[string]models.MfaEnrollment
	tokens map[string]models.RefreshToken // by id
	seq    int

	// failures injected per operation name
	fail map[string]error
	// runs inside Provision before the existing row is looked up
	beforeProvision func()
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[string]models.UserAccount{},
		creds:  map[string]models.Credential{},
		mfa:    map[string]models.MfaEnrollment{},
		tokens: map[string]models.RefreshToken{},
		fail:   map[string]error{},
	}
}

func (s *memStore) failure(op string) error { return s.fail[op] }

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memUsers struct{ s *memStore }

func (r memUsers) Create(_ context.Context, u *models.UserAccount) (*models.UserAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.Create"); err != nil {
		return nil, err
	}
	if u.ID == "" {
		u.ID = r.s.nextID("user")
	}
	r.s.users[u.ID] = *u
	out := *u
	return &out, nil
}

func (r memUsers) FindByID(_ context.Context, id string) (*models.UserAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("users.FindByID"); err != nil {
		return nil, err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r memUsers) RecordLoginFailure(_ context.Context, id string, maxAttempts int, lockoutUntil time.Time) (*models.UserAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	u.FailedLoginAttempts++
	u.LockoutUntil = nil
	if u.FailedLoginAttempts >= maxAttempts {
		until := lockoutUntil
		u.LockoutUntil = &until
	}
	r.s.users[id] = u
	return &u, nil
}

func (r memUsers) ResetLoginFailures(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil
	}
	u.FailedLoginAttempts = 0
	u.LockoutUntil = nil
	r.s.users[id] = u
	return nil
}

type memCreds struct{ s *memStore }

func (r memCreds) Create(_ context.Context, c *models.Credential) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("credentials.Create"); err != nil {
		return err
	}
	if _, ok := r.s.creds[c.UserID]; ok {
		return common.ErrorAlreadyExists
	}
	for _, existing := range r.s.creds {
		if existing.Email == c.Email {
			return common.ErrorAlreadyExists
		}
	}
	r.s.creds[c.UserID] = *c
	return nil
}

func (r memCreds) FindByEmail(_ context.Context, email string) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("credentials.FindByEmail"); err != nil {
		return nil, err
	}
	for _, c := range r.s.creds {
		if c.Email == email {
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r memCreds) FindByUserID(_ context.Context, userID string) (*models.Credential, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.creds[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

type memMfa struct{ s *memStore }

func (r memMfa) FindByUserID(_ context.Context, userID string) (*models.MfaEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("mfa.FindByUserID"); err != nil {
		return nil, err
	}
	m, ok := r.s.mfa[userID]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &m, nil
}

func (r memMfa) Provision(_ context.Context, userID, secret string) (*models.MfaEnrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.beforeProvision != nil {
		r.s.beforeProvision()
	}
	m, ok := r.s.mfa[userID]
	if !ok {
		m = models.MfaEnrollment{UserID: userID, SecretBase32: secret}
		r.s.mfa[userID] = m
	}
	return &m, nil
}

func (r memMfa) Activate(_ context.Context, userID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.mfa[userID]
	if !ok {
		return false, nil
	}
	m.Enabled = true
	r.s.mfa[userID] = m
	return true, nil
}

func (r memMfa) Delete(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.mfa, userID)
	return nil
}

type memTokens struct{ s *memStore }

func (r memTokens) Create(_ context.Context, userID, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tokens.Create"); err != nil {
		return nil, err
	}
	t := models.RefreshToken{ID: r.s.nextID("rt"), UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	r.s.tokens[t.ID] = t
	return &t, nil
}

func (r memTokens) find(tokenHash string) (models.RefreshToken, bool) {
	for _, t := range r.s.tokens {
		if t.TokenHash == tokenHash {
			return t, true
		}
	}
	return models.RefreshToken{}, false
}

func (r memTokens) FindValid(_ context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.find(tokenHash)
	if !ok || !t.Valid(now) {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r memTokens) LockValid(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	return r.FindValid(ctx, tokenHash, now)
}

func (r memTokens) FindByHash(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.find(tokenHash)
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r memTokens) Revoke(_ context.Context, id string, replacedBy *string, now time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.failure("tokens.Revoke"); err != nil {
		return false, err
	}
	t, ok := r.s.tokens[id]
	if !ok || t.RevokedAt != nil {
		return false, nil
	}
	at := now
	t.RevokedAt = &at
	t.ReplacedBy = replacedBy
	r.s.tokens[id] = t
	return true, nil
}

func (r memTokens) RevokeSuccessors(_ context.Context, id string, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	cur := r.s.tokens[id]
	for cur.ReplacedBy != nil {
		next, ok := r.s.tokens[*cur.ReplacedBy]
		if !ok {
			break
		}
		if next.RevokedAt == nil {
			at := now
			next.RevokedAt = &at
			r.s.tokens[next.ID] = next
			n++
		}
		cur = next
	}
	return n, nil
}

// liveTokens counts a user's unrevoked ledger rows.
func (s *memStore) liveTokens(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			n++
		}
	}
	return n
}

type memRepos struct{ s *memStore }

func (m memRepos) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m memRepos) Users(dbx.DBTX) users.Repository { return memUsers{m.s} }
func (m memRepos) Credentials(dbx.DBTX) credentials.Repository { return memCreds{m.s} }
func (m memRepos) Mfa(dbx.DBTX) mfa.Repository { return memMfa{m.s} }
func (m memRepos) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return memTokens{m.s} }

// --- TOTP double ---

type fakeTOTP struct {
	validCode string
	generated int
}

func (f *fakeTOTP) GenerateSecret(label string) (*auth.MfaSecret, error) {
	f.generated++
	secret := fmt.Sprintf("SECRET%d", f.generated)
	return &auth.MfaSecret{Base32: secret, OtpauthURL: "otpauth://totp/" + label + "?secret=" + secret}, nil
}

func (f *fakeTOTP) BuildOtpauthURL(secret, label string) (string, error) {
	return "otpauth://totp/" + label + "?secret=" + secret, nil
}

func (f *fakeTOTP) Verify(_ string, code string) bool {
	return code != "" && code == f.validCode
}

// --- fixture ---

const (
	testEmail    = "ana@example.org"
	testPassword = "Str0ng!pass"
	testUserID   = "user-1"
	validCode    = "123456"
)

type fixture struct {
	store       *memStore
	tx          *fakeTx
	clock       time.Time
	minter      *auth.JWTMinter
	tokens      *auth.RefreshTokenService
	totp        *fakeTOTP
	ledger      *RefreshLedger
	sessions    *SessionService
	mfa         *MfaService
	credentials *CredentialService
	users       *UserService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()

	f := &fixture{
		store:  newMemStore(),
		tx:     &fakeTx{},
		clock:  time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
		minter: auth.NewJWTMinter([]byte("test-secret"), cfg.AccessTokenValidityDuration),
		tokens: auth.NewRefreshTokenService(cfg.RefreshTokenValidityDuration),
		totp:   &fakeTOTP{validCode: validCode},
	}
	now := func() time.Time { return f.clock }

	repos := memRepos{f.store}
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	log := logging.Nop{}

	f.ledger = NewRefreshLedger(f.tx, repos, f.tokens, false, log)
	f.ledger.now = now
	f.sessions = NewSessionService(f.tx, repos, hasher, f.totp, f.minter, f.ledger, cfg, log)
	f.sessions.now = now
	f.mfa = NewMfaService(f.tx, repos, f.totp, f.minter, f.ledger, cfg.MfaIssuer, log)
	f.credentials = NewCredentialService(f.tx, repos, hasher, log)
	f.users = NewUserService(f.tx, repos, log)

	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	f.store.users[testUserID] = models.UserAccount{ID: testUserID, PermissionLevel: models.PermissionBase}
	f.store.creds[testUserID] = models.Credential{UserID: testUserID, Email: testEmail, PasswordHash: hash}

	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) user(t *testing.T) models.UserAccount {
	t.Helper()
	u, ok := f.store.users[testUserID]
	require.True(t, ok)
	return u
}

func (f *fixture) enableMfa() {
	f.store.mfa[testUserID] = models.MfaEnrollment{UserID: testUserID, SecretBase32: "SECRET", Enabled: true}
}

func (f *fixture) enrollment(t *testing.T) *models.MfaEnrollment {
	t.Helper()
	m, ok := f.store.mfa[testUserID]
	if !ok {
		return nil
	}
	return &m
}
