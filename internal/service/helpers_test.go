package service

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testAppConfig() config.App {
	return config.App{
		TokenSignKey:        strings.Repeat("k", 32),
		TokenIssuer:         "go-todo-auth-test",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     24 * time.Hour,
		ChallengeTTL:        5 * time.Minute,
		PendingTwoFactorTTL: 10 * time.Minute,
		MaxCodeAttempts:     3,
		BcryptCost:          bcrypt.MinCost,
		MaxConcurrentHashes: 4,
		HashTimeout:         time.Second,
		TOTPIssuer:          "Todo App",
	}
}

// testEnv is a fully wired auth core over in-memory stores.
type testEnv struct {
	clock    *testClock
	users    store.UserRepository
	sessions *store.MemorySessionStore
	tokens   TokenService
	auth     AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithUsers(t, store.NewMemoryUserRepository())
}

func newTestEnvWithUsers(t *testing.T, users store.UserRepository) *testEnv {
	t.Helper()

	cfg := testAppConfig()
	clock := newTestClock()
	sessions := store.NewMemorySessionStore(clock.Now)
	tokens := NewTokenService(sessions, cfg, clock.Now, nil, logger.Nop())
	auth := NewAuthService(users, sessions, NewPasswordHasher(cfg, nil), NewTotpEngine(), tokens, cfg, clock.Now, nil, logger.Nop())

	return &testEnv{clock: clock, users: users, sessions: sessions, tokens: tokens, auth: auth}
}

// faultyUserRepository fails selected calls with ErrStoreUnavailable.
type faultyUserRepository struct {
	store.UserRepository
	failUpdateTwoFactor    atomic.Bool
	failReplaceBackupCodes atomic.Bool
	failDeleteBackupCodes  atomic.Bool
}

func (r *faultyUserRepository) UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error {
	if r.failUpdateTwoFactor.Load() {
		return store.ErrStoreUnavailable
	}
	return r.UserRepository.UpdateTwoFactor(ctx, userID, enabled, secret)
}

func (r *faultyUserRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	if r.failReplaceBackupCodes.Load() {
		return store.ErrStoreUnavailable
	}
	return r.UserRepository.ReplaceBackupCodes(ctx, userID, codeHashes)
}

func (r *faultyUserRepository) DeleteBackupCodes(ctx context.Context, userID string) error {
	if r.failDeleteBackupCodes.Load() {
		return store.ErrStoreUnavailable
	}
	return r.UserRepository.DeleteBackupCodes(ctx, userID)
}

func totpCode(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCode(secret, at)
	require.NoError(t, err)
	return code
}
