package service

//go:generate mockgen -source=interfaces.go -destination=../mock/service_mock.go -package=mock

import (
	"context"
	"time"

	"github.com/MKhiriev/go-todo-auth/models"
)

// PasswordHasher produces and checks adaptive salted password hashes.
type PasswordHasher interface {
	Hash(ctx context.Context, password string) (string, error)
	// Verify reports whether password matches hash. A mismatch is not an
	// error.
	Verify(ctx context.Context, password, hash string) (bool, error)
}

// TotpEngine is a pure TOTP toolkit. It keeps no state; replay protection is
// the caller's job.
type TotpEngine interface {
	GenerateSecret() (string, error)
	EnrollmentURI(secret, account, issuer string) (string, error)
	// VerifyCode checks code against the step of at and its neighbours and
	// returns the matched step.
	VerifyCode(secret, code string, at time.Time) (bool, int64, error)
	// QRCode renders uri as a PNG data URI.
	QRCode(uri string) (string, error)
}

// TokenService owns access token signing and every refresh token and login
// challenge record in the session store.
type TokenService interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	VerifyAccess(ctx context.Context, accessToken string) (string, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
	RevokeAll(ctx context.Context, userID string) error

	CreateChallenge(ctx context.Context, userID string) (models.LoginChallenge, error)
	PeekChallenge(ctx context.Context, challengeID string) (models.LoginChallenge, error)
	// ConsumeChallenge deletes the challenge atomically and issues a token
	// pair for its user. Only one caller can consume a given challenge.
	ConsumeChallenge(ctx context.Context, challengeID string) (models.TokenPair, error)
	RecordChallengeFailure(ctx context.Context, challengeID string) error
}

// AuthService orchestrates signup, login and the two-factor lifecycle.
type AuthService interface {
	Signup(ctx context.Context, req models.SignupRequest) (models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (models.LoginResult, error)
	VerifyLoginCode(ctx context.Context, req models.LoginCodeRequest) (models.TokenPair, error)
	VerifyLoginBackupCode(ctx context.Context, req models.LoginBackupCodeRequest) (models.TokenPair, error)
	Refresh(ctx context.Context, req models.RefreshRequest) (models.TokenPair, error)
	Logout(ctx context.Context, req models.RefreshRequest) error

	Profile(ctx context.Context, userID string) (models.ProfileResponse, error)
	UpdateEmail(ctx context.Context, userID string, req models.UpdateEmailRequest) (models.ProfileResponse, error)
	ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error

	EnableTwoFactor(ctx context.Context, userID string, req models.EnableTwoFactorRequest) (models.TwoFactorEnrollment, error)
	ConfirmTwoFactor(ctx context.Context, userID string, req models.TwoFactorCodeRequest) ([]string, error)
	DisableTwoFactor(ctx context.Context, userID string, req models.DisableTwoFactorRequest) error
	RegenerateBackupCodes(ctx context.Context, userID string, req models.TwoFactorCodeRequest) ([]string, error)
}

type AppInfoService interface {
	GetAppVersion(ctx context.Context) models.VersionResponse
}

// HealthService pings the backing stores.
type HealthService interface {
	Check(ctx context.Context) (models.HealthResponse, bool)
}
