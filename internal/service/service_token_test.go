package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/mock"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// flakySessionStore fails the next failPuts calls to Put.
type flakySessionStore struct {
	store.SessionStore
	failPuts atomic.Int32
}

func (f *flakySessionStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failPuts.Add(-1) >= 0 {
		return store.ErrStoreUnavailable
	}
	return f.SessionStore.Put(ctx, key, value, ttl)
}

func newTestTokenService(t *testing.T) (TokenService, *store.MemorySessionStore, *testClock) {
	t.Helper()
	clock := newTestClock()
	sessions := store.NewMemorySessionStore(clock.Now)
	return NewTokenService(sessions, testAppConfig(), clock.Now, nil, logger.Nop()), sessions, clock
}

// ── Issue / VerifyAccess ──────────────────────────────────────────────────────

func TestTokenService_IssueAndVerify(t *testing.T) {
	svc, sessions, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeBearer, pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)
	assert.NotEmpty(t, pair.RefreshToken)

	userID, err := svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	// only the digest is stored
	_, err = sessions.Get(ctx, refreshKeyPrefix+pair.RefreshToken)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	raw, err := sessions.Get(ctx, refreshKeyPrefix+utils.SHA256Hex(pair.RefreshToken))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), pair.RefreshToken)

	members, err := sessions.IndexMembers(ctx, userRefreshIndexPrefix+"user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{utils.SHA256Hex(pair.RefreshToken)}, members)
}

func TestTokenService_AccessTokenExpires(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(15*time.Minute - time.Second)
	_, err = svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = svc.VerifyAccess(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_VerifyAccessRejects(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	otherCfg := testAppConfig()
	otherCfg.TokenSignKey = strings.Repeat("x", 32)
	other := NewTokenService(store.NewMemorySessionStore(nil), otherCfg, newTestClock().Now, nil, logger.Nop())
	foreign, err := other.Issue(ctx, "user-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not.a.jwt"},
		{name: "refresh token", token: pair.RefreshToken},
		{name: "tampered", token: pair.AccessToken[:len(pair.AccessToken)-2] + "xx"},
		{name: "foreign key", token: foreign.AccessToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.VerifyAccess(ctx, tt.token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestTokenService_IssueStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := mock.NewMockSessionStore(ctrl)
	svc := NewTokenService(sessions, testAppConfig(), newTestClock().Now, nil, logger.Nop())

	sessions.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any(), 24*time.Hour).Return(store.ErrStoreUnavailable)

	_, err := svc.Issue(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

// ── Refresh ───────────────────────────────────────────────────────────────────

func TestTokenService_RefreshRotates(t *testing.T) {
	svc, sessions, _ := newTestTokenService(t)
	ctx := context.Background()

	first, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	userID, err := svc.VerifyAccess(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

	members, err := sessions.IndexMembers(ctx, userRefreshIndexPrefix+"user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{utils.SHA256Hex(second.RefreshToken)}, members)
}

func TestTokenService_RefreshRetryableAfterIssueFailure(t *testing.T) {
	clock := newTestClock()
	sessions := &flakySessionStore{SessionStore: store.NewMemorySessionStore(clock.Now)}
	svc := NewTokenService(sessions, testAppConfig(), clock.Now, nil, logger.Nop())
	ctx := context.Background()

	first, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	sessions.failPuts.Store(1)
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err, "the same refresh token must work once the store recovers")

	_, err = svc.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenAlreadyUsed)

	members, err := sessions.IndexMembers(ctx, userRefreshIndexPrefix+"user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{utils.SHA256Hex(second.RefreshToken)}, members)
}

func TestTokenService_RefreshUnknown(t *testing.T) {
	svc, _, _ := newTestTokenService(t)

	_, err := svc.Refresh(context.Background(), "never-issued")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestTokenService_RefreshExpiredRecord(t *testing.T) {
	svc, sessions, clock := newTestTokenService(t)
	ctx := context.Background()

	// a record whose own expiry passed while the store entry is still alive
	hash := utils.SHA256Hex("stale-token")
	record, err := json.Marshal(models.RefreshRecord{UserID: "user-1", ExpiresAt: clock.Now().Add(-time.Second)})
	require.NoError(t, err)
	require.NoError(t, sessions.Put(ctx, refreshKeyPrefix+hash, record, time.Hour))

	_, err = svc.Refresh(ctx, "stale-token")
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = sessions.Get(ctx, refreshKeyPrefix+hash)
	assert.ErrorIs(t, err, store.ErrKeyNotFound, "stale entry is deleted")

	_, err = svc.Refresh(ctx, "stale-token")
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestTokenService_RefreshAfterStoreTTL(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(24 * time.Hour)
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenUnknown)
}

func TestTokenService_ConcurrentRefreshSingleWinner(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Refresh(ctx, pair.RefreshToken)
		}()
	}
	wg.Wait()

	var wins, used int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrTokenAlreadyUsed):
			used++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, used)
}

// ── Revoke ────────────────────────────────────────────────────────────────────

func TestTokenService_Revoke(t *testing.T) {
	svc, sessions, _ := newTestTokenService(t)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken))
	require.NoError(t, svc.Revoke(ctx, pair.RefreshToken), "revoke is idempotent")
	require.NoError(t, svc.Revoke(ctx, "never-issued"))

	_, err = svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenUnknown)

	members, err := sessions.IndexMembers(ctx, userRefreshIndexPrefix+"user-1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestTokenService_RevokeAll(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	a, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	b, err := svc.Issue(ctx, "user-1")
	require.NoError(t, err)
	other, err := svc.Issue(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, svc.RevokeAll(ctx, "user-1"))

	_, err = svc.Refresh(ctx, a.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenUnknown)
	_, err = svc.Refresh(ctx, b.RefreshToken)
	assert.ErrorIs(t, err, ErrTokenUnknown)

	_, err = svc.Refresh(ctx, other.RefreshToken)
	assert.NoError(t, err)

	assert.NoError(t, svc.RevokeAll(ctx, "nobody"))
}

// ── Challenges ────────────────────────────────────────────────────────────────

func TestTokenService_ChallengeLifecycle(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	challenge, err := svc.CreateChallenge(ctx, "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.ChallengeID)
	assert.Equal(t, testEpoch.Add(5*time.Minute), challenge.ExpiresAt)

	peeked, err := svc.PeekChallenge(ctx, challenge.ChallengeID)
	require.NoError(t, err)
	assert.Equal(t, challenge, peeked)

	pair, err := svc.ConsumeChallenge(ctx, challenge.ChallengeID)
	require.NoError(t, err)
	userID, err := svc.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = svc.ConsumeChallenge(ctx, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeExpired)
	_, err = svc.PeekChallenge(ctx, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestTokenService_ChallengeExpires(t *testing.T) {
	svc, _, clock := newTestTokenService(t)
	ctx := context.Background()

	challenge, err := svc.CreateChallenge(ctx, "user-1")
	require.NoError(t, err)

	clock.Advance(5 * time.Minute)
	_, err = svc.PeekChallenge(ctx, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestTokenService_ChallengeAttemptsBounded(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	challenge, err := svc.CreateChallenge(ctx, "user-1")
	require.NoError(t, err)

	// MaxCodeAttempts is 3 in tests
	for range 2 {
		require.NoError(t, svc.RecordChallengeFailure(ctx, challenge.ChallengeID))
		_, err = svc.PeekChallenge(ctx, challenge.ChallengeID)
		require.NoError(t, err)
	}

	require.NoError(t, svc.RecordChallengeFailure(ctx, challenge.ChallengeID))
	_, err = svc.PeekChallenge(ctx, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestTokenService_ConcurrentConsumeSingleWinner(t *testing.T) {
	svc, _, _ := newTestTokenService(t)
	ctx := context.Background()

	challenge, err := svc.CreateChallenge(ctx, "user-1")
	require.NoError(t, err)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.ConsumeChallenge(ctx, challenge.ChallengeID)
		}()
	}
	wg.Wait()

	var wins int
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, ErrChallengeExpired)
	}
	assert.Equal(t, 1, wins)
}

func TestTokenService_ConsumeChallengeRetryableAfterIssueFailure(t *testing.T) {
	clock := newTestClock()
	sessions := &flakySessionStore{SessionStore: store.NewMemorySessionStore(clock.Now)}
	svc := NewTokenService(sessions, testAppConfig(), clock.Now, nil, logger.Nop())
	ctx := context.Background()

	challenge, err := svc.CreateChallenge(ctx, "user-1")
	require.NoError(t, err)

	sessions.failPuts.Store(1)
	_, err = svc.ConsumeChallenge(ctx, challenge.ChallengeID)
	require.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = svc.PeekChallenge(ctx, challenge.ChallengeID)
	require.NoError(t, err)

	pair, err := svc.ConsumeChallenge(ctx, challenge.ChallengeID)
	require.NoError(t, err)
	assert.NotEmpty(t, pair.RefreshToken)

	_, err = svc.ConsumeChallenge(ctx, challenge.ChallengeID)
	assert.ErrorIs(t, err, ErrChallengeExpired)
}

func TestTokenService_ChallengeStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	sessions := mock.NewMockSessionStore(ctrl)
	svc := NewTokenService(sessions, testAppConfig(), newTestClock().Now, nil, logger.Nop())

	sessions.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, store.ErrStoreUnavailable)

	_, err := svc.PeekChallenge(context.Background(), "id")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrChallengeExpired)
}
