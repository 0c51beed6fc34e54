package http_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	handler "github.com/MKhiriev/go-todo-auth/internal/handler/http"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/service"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/go-resty/resty/v2"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type scenarioClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *scenarioClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *scenarioClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scenario struct {
	t      *testing.T
	clock  *scenarioClock
	client *resty.Client
}

func newScenario(t *testing.T) *scenario {
	t.Helper()

	clock := &scenarioClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cfg := config.StructuredConfig{App: config.App{
		TokenSignKey:        strings.Repeat("s", 32),
		TokenIssuer:         "go-todo-auth-e2e",
		AccessTokenTTL:      15 * time.Minute,
		RefreshTokenTTL:     7 * 24 * time.Hour,
		ChallengeTTL:        5 * time.Minute,
		PendingTwoFactorTTL: 10 * time.Minute,
		MaxCodeAttempts:     5,
		BcryptCost:          bcrypt.MinCost,
		MaxConcurrentHashes: 4,
		HashTimeout:         time.Second,
		TOTPIssuer:          "Todo App",
	}}
	storages := &store.Storages{
		UserRepository: store.NewMemoryUserRepository(),
		SessionStore:   store.NewMemorySessionStore(clock.Now),
	}
	m := metrics.New()

	services, err := service.NewServices(storages, cfg, models.NewAppBuildInfo("1.0.0", "", ""), m, logger.Nop(), service.WithClock(clock.Now))
	require.NoError(t, err)

	srv := httptest.NewServer(handler.NewHandler(services, m, cfg.Server, logger.Nop()).Init())
	t.Cleanup(srv.Close)

	return &scenario{
		t:      t,
		clock:  clock,
		client: resty.New().SetBaseURL(srv.URL).SetHeader("Content-Type", "application/json"),
	}
}

// post sends body and decodes a 2xx answer into result. It returns the
// status and the error message of a failed call.
func (s *scenario) post(path, token string, body, result any) (int, string) {
	s.t.Helper()

	var apiErr models.ErrorResponse
	req := s.client.R().SetBody(body).SetError(&apiErr)
	if result != nil {
		req.SetResult(result)
	}
	if token != "" {
		req.SetAuthToken(token)
	}

	resp, err := req.Post(path)
	require.NoError(s.t, err)
	return resp.StatusCode(), apiErr.Error
}

func (s *scenario) profile(token string) (models.ProfileResponse, int, string) {
	s.t.Helper()

	var profile models.ProfileResponse
	var apiErr models.ErrorResponse
	resp, err := s.client.R().SetAuthToken(token).SetResult(&profile).SetError(&apiErr).Get("/api/v1/users/me")
	require.NoError(s.t, err)
	return profile, resp.StatusCode(), apiErr.Error
}

func (s *scenario) code(secret string) string {
	s.t.Helper()
	code, err := totp.GenerateCode(secret, s.clock.Now())
	require.NoError(s.t, err)
	return code
}

func otherCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

const (
	email    = "alice@example.com"
	password = "correct horse"
)

func TestScenario_PasswordOnly(t *testing.T) {
	s := newScenario(t)

	var signup models.SignupResponse
	status, _ := s.post("/api/v1/auth/signup", "", models.SignupRequest{Email: email, Password: password, Name: "Alice"}, &signup)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, signup.UserID)

	status, msg := s.post("/api/v1/auth/signup", "", models.SignupRequest{Email: email, Password: password, Name: "Alice"}, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "email already registered", msg)

	status, wrongPassword := s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	_, unknownEmail := s.post("/api/v1/auth/login", "", models.LoginRequest{Email: "bob@example.com", Password: password}, nil)
	assert.Equal(t, wrongPassword, unknownEmail)

	var pair models.TokenPair
	status, _ = s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &pair)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, models.TokenTypeBearer, pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	profile, status, _ := s.profile(pair.AccessToken)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, signup.UserID, profile.UserID)
	assert.False(t, profile.TwoFactorEnabled)
	assert.Nil(t, profile.BackupCodesRemaining)

	var updated models.ProfileResponse
	resp, err := s.client.R().SetAuthToken(pair.AccessToken).
		SetBody(models.UpdateEmailRequest{Email: "alice@example.org", Password: password}).
		SetResult(&updated).
		Patch("/api/v1/users/me")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "alice@example.org", updated.Email)
	assert.Equal(t, signup.UserID, updated.UserID)

	// refresh rotation: the old token is dead, reusing it is reported
	var rotated models.TokenPair
	status, _ = s.post("/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: pair.RefreshToken}, &rotated)
	require.Equal(t, http.StatusOK, status)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	status, msg = s.post("/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "refresh token already used", msg)

	status, _ = s.post("/api/v1/auth/logout", "", models.RefreshRequest{RefreshToken: rotated.RefreshToken}, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = s.post("/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: rotated.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	// access tokens stay valid until expiry
	s.clock.Advance(14 * time.Minute)
	_, status, _ = s.profile(rotated.AccessToken)
	assert.Equal(t, http.StatusOK, status)

	s.clock.Advance(time.Minute)
	_, status, msg = s.profile(rotated.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "token expired", msg)
}

func TestScenario_TwoFactor(t *testing.T) {
	s := newScenario(t)

	status, _ := s.post("/api/v1/auth/signup", "", models.SignupRequest{Email: email, Password: password, Name: "Alice"}, nil)
	require.Equal(t, http.StatusCreated, status)

	var pair models.TokenPair
	status, _ = s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &pair)
	require.Equal(t, http.StatusOK, status)
	access := pair.AccessToken

	// enrollment
	status, _ = s.post("/api/v1/users/me/2fa/enable", access, models.EnableTwoFactorRequest{Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var enrollment models.TwoFactorEnrollment
	status, _ = s.post("/api/v1/users/me/2fa/enable", access, models.EnableTwoFactorRequest{Password: password}, &enrollment)
	require.Equal(t, http.StatusOK, status)
	require.NotEmpty(t, enrollment.Secret)
	assert.True(t, strings.HasPrefix(enrollment.OTPAuthURI, "otpauth://totp/"))

	status, _ = s.post("/api/v1/users/me/2fa/confirm", access, models.TwoFactorCodeRequest{Code: otherCode(s.code(enrollment.Secret))}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	profile, _, _ := s.profile(access)
	assert.False(t, profile.TwoFactorEnabled)

	var confirmed models.TwoFactorStatusResponse
	status, _ = s.post("/api/v1/users/me/2fa/confirm", access, models.TwoFactorCodeRequest{Code: s.code(enrollment.Secret)}, &confirmed)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, confirmed.TwoFactorEnabled)
	require.Len(t, confirmed.BackupCodes, 10)

	profile, _, _ = s.profile(access)
	assert.True(t, profile.TwoFactorEnabled)
	require.NotNil(t, profile.BackupCodesRemaining)
	assert.Equal(t, 10, *profile.BackupCodesRemaining)

	// login now stops at a challenge
	s.clock.Advance(30 * time.Second)

	var challenge models.ChallengeResponse
	status, _ = s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &challenge)
	require.Equal(t, http.StatusOK, status)
	require.True(t, challenge.TwoFactorRequired)
	assert.Equal(t, int64(300), challenge.ExpiresIn)

	status, msg := s.post("/api/v1/auth/login/2fa", "", models.LoginCodeRequest{ChallengeID: challenge.ChallengeID, Code: otherCode(s.code(enrollment.Secret))}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", msg)

	code := s.code(enrollment.Secret)
	status, _ = s.post("/api/v1/auth/login/2fa", "", models.LoginCodeRequest{ChallengeID: challenge.ChallengeID, Code: code}, &pair)
	require.Equal(t, http.StatusOK, status)
	_, status, _ = s.profile(pair.AccessToken)
	assert.Equal(t, http.StatusOK, status)

	// the consumed challenge and the used code are both spent
	status, _ = s.post("/api/v1/auth/login/2fa", "", models.LoginCodeRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
	assert.Equal(t, http.StatusGone, status)

	status, _ = s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &challenge)
	require.Equal(t, http.StatusOK, status)
	status, _ = s.post("/api/v1/auth/login/2fa", "", models.LoginCodeRequest{ChallengeID: challenge.ChallengeID, Code: code}, nil)
	assert.Equal(t, http.StatusUnauthorized, status, "replayed code")

	// backup code instead of a TOTP code
	status, _ = s.post("/api/v1/auth/login/backup", "", models.LoginBackupCodeRequest{ChallengeID: challenge.ChallengeID, BackupCode: confirmed.BackupCodes[0]}, &pair)
	require.Equal(t, http.StatusOK, status)

	// disabling needs the password and a fresh code, then revokes sessions
	s.clock.Advance(30 * time.Second)
	status, _ = s.post("/api/v1/users/me/2fa/disable", pair.AccessToken, models.DisableTwoFactorRequest{Password: password, Code: otherCode(s.code(enrollment.Secret))}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = s.post("/api/v1/users/me/2fa/disable", pair.AccessToken, models.DisableTwoFactorRequest{Password: password, Code: s.code(enrollment.Secret)}, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.post("/api/v1/auth/refresh", "", models.RefreshRequest{RefreshToken: pair.RefreshToken}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var plain models.TokenPair
	status, _ = s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &plain)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, plain.AccessToken)
}

func TestScenario_ChallengeExpires(t *testing.T) {
	s := newScenario(t)

	status, _ := s.post("/api/v1/auth/signup", "", models.SignupRequest{Email: email, Password: password, Name: "Alice"}, nil)
	require.Equal(t, http.StatusCreated, status)
	var pair models.TokenPair
	s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &pair)

	var enrollment models.TwoFactorEnrollment
	s.post("/api/v1/users/me/2fa/enable", pair.AccessToken, models.EnableTwoFactorRequest{Password: password}, &enrollment)
	status, _ = s.post("/api/v1/users/me/2fa/confirm", pair.AccessToken, models.TwoFactorCodeRequest{Code: s.code(enrollment.Secret)}, nil)
	require.Equal(t, http.StatusOK, status)

	var challenge models.ChallengeResponse
	s.post("/api/v1/auth/login", "", models.LoginRequest{Email: email, Password: password}, &challenge)

	s.clock.Advance(6 * time.Minute)
	status, msg := s.post("/api/v1/auth/login/2fa", "", models.LoginCodeRequest{ChallengeID: challenge.ChallengeID, Code: s.code(enrollment.Secret)}, nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, "login challenge expired", msg)
}
