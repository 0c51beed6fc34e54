package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/internal/utils"
	"github.com/MKhiriev/go-todo-auth/internal/validators"
	"github.com/MKhiriev/go-todo-auth/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	pendingTwoFactorKeyPrefix = "2fa_pending:"
	totpStepKeyPrefix         = "totp_step:"

	// totpStepTTL outlives the whole ±1 step acceptance window.
	totpStepTTL = 4 * totpPeriod * time.Second

	backupCodeCount    = 10
	backupCodeLength   = 10
	backupCodeAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// authService drives the login state machine and the two-factor lifecycle.
// It is the only writer of the two-factor fields of a user; every refresh
// token and challenge record goes through [TokenService].
type authService struct {
	users    store.UserRepository
	sessions store.SessionStore

	hasher    PasswordHasher
	totp      TotpEngine
	tokens    TokenService
	validator validators.Validator

	totpIssuer string
	pendingTTL time.Duration

	ids     *utils.UUIDGenerator
	now     func() time.Time
	metrics *metrics.Metrics
	logger  *logger.Logger

	// dummyHash is verified against when the email is unknown so both
	// branches of a failed login cost one bcrypt comparison.
	dummyHash string
}

// NewAuthService wires the collaborators together. A nil now defaults to
// time.Now.
func NewAuthService(
	users store.UserRepository,
	sessions store.SessionStore,
	hasher PasswordHasher,
	totp TotpEngine,
	tokens TokenService,
	cfg config.App,
	now func() time.Time,
	m *metrics.Metrics,
	logger *logger.Logger,
) AuthService {
	if now == nil {
		now = time.Now
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte("dummy password for timing"), cfg.BcryptCost)
	if err != nil {
		logger.Warn().Err(err).Msg("error computing dummy password hash")
	}

	return &authService{
		users:      users,
		sessions:   sessions,
		hasher:     hasher,
		totp:       totp,
		tokens:     tokens,
		validator:  validators.NewRequestValidator(),
		totpIssuer: cfg.TOTPIssuer,
		pendingTTL: cfg.PendingTwoFactorTTL,
		ids:        utils.NewUUIDGenerator(),
		now:        now,
		metrics:    m,
		logger:     logger,
		dummyHash:  string(dummy),
	}
}

// Signup creates an account with two-factor authentication disabled.
// Email uniqueness is enforced by the user store.
func (a *authService) Signup(ctx context.Context, req models.SignupRequest) (models.User, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return models.User{}, err
	}

	hash, err := a.hasher.Hash(ctx, req.Password)
	if err != nil {
		log.Err(err).Str("func", "*authService.Signup").Msg("error hashing password")
		return models.User{}, err
	}

	user, err := a.users.CreateUser(ctx, models.User{
		UserID:       a.ids.Generate(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrEmailAlreadyExists) {
			return models.User{}, ErrDuplicateEmail
		}
		log.Err(err).Str("func", "*authService.Signup").Msg("user creation ended with error")
		return models.User{}, fmt.Errorf("user creation ended with error: %w", err)
	}

	log.Info().Str("user_id", user.UserID).Msg("user signed up")
	a.metrics.AuthEvent("signup", metrics.OutcomeSuccess)
	return user, nil
}

// Login verifies the password. Users with two-factor authentication get a
// login challenge instead of tokens.
func (a *authService) Login(ctx context.Context, req models.LoginRequest) (models.LoginResult, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return models.LoginResult{}, err
	}

	user, err := a.checkCredentials(ctx, req.Email, req.Password)
	if err != nil {
		a.metrics.AuthEvent("login", metrics.OutcomeFailure)
		return models.LoginResult{}, err
	}

	if user.TwoFactorEnabled {
		challenge, err := a.tokens.CreateChallenge(ctx, user.UserID)
		if err != nil {
			log.Err(err).Str("func", "*authService.Login").Str("user_id", user.UserID).Msg("error creating login challenge")
			return models.LoginResult{}, err
		}
		log.Info().Str("user_id", user.UserID).Msg("password accepted, second factor required")
		return models.LoginResult{Challenge: &challenge}, nil
	}

	pair, err := a.tokens.Issue(ctx, user.UserID)
	if err != nil {
		return models.LoginResult{}, err
	}
	log.Info().Str("user_id", user.UserID).Msg("user logged in")
	a.metrics.AuthEvent("login", metrics.OutcomeSuccess)
	return models.LoginResult{Tokens: &pair}, nil
}

// VerifyLoginCode answers a login challenge with a TOTP code. A wrong code
// leaves the challenge in place until the attempt limit drops it.
func (a *authService) VerifyLoginCode(ctx context.Context, req models.LoginCodeRequest) (models.TokenPair, error) {
	if err := a.validate(ctx, req); err != nil {
		return models.TokenPair{}, err
	}

	challenge, user, err := a.challengeUser(ctx, req.ChallengeID)
	if err != nil {
		return models.TokenPair{}, err
	}

	if err = a.checkCode(ctx, user.UserID, *user.TwoFactorSecret, req.Code); err != nil {
		return models.TokenPair{}, a.challengeFailure(ctx, challenge.ChallengeID, err)
	}

	return a.finishChallenge(ctx, challenge)
}

// VerifyLoginBackupCode answers a login challenge with a one-time backup
// code instead of a TOTP code.
func (a *authService) VerifyLoginBackupCode(ctx context.Context, req models.LoginBackupCodeRequest) (models.TokenPair, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return models.TokenPair{}, err
	}

	challenge, user, err := a.challengeUser(ctx, req.ChallengeID)
	if err != nil {
		return models.TokenPair{}, err
	}

	code, ok := normalizeBackupCode(req.BackupCode)
	if !ok {
		return models.TokenPair{}, a.challengeFailure(ctx, challenge.ChallengeID, ErrInvalidCode)
	}

	consumed, err := a.users.ConsumeBackupCode(ctx, user.UserID, utils.SHA256Hex(code))
	if err != nil {
		log.Err(err).Str("func", "*authService.VerifyLoginBackupCode").Str("user_id", user.UserID).Msg("error consuming backup code")
		return models.TokenPair{}, err
	}
	if !consumed {
		return models.TokenPair{}, a.challengeFailure(ctx, challenge.ChallengeID, ErrInvalidCode)
	}

	log.Info().Str("user_id", user.UserID).Msg("backup code used")
	return a.finishChallenge(ctx, challenge)
}

func (a *authService) Refresh(ctx context.Context, req models.RefreshRequest) (models.TokenPair, error) {
	if err := a.validate(ctx, req); err != nil {
		return models.TokenPair{}, err
	}
	return a.tokens.Refresh(ctx, req.RefreshToken)
}

// Logout revokes a single refresh token. Unknown tokens are not an error.
func (a *authService) Logout(ctx context.Context, req models.RefreshRequest) error {
	if err := a.validate(ctx, req); err != nil {
		return err
	}
	return a.tokens.Revoke(ctx, req.RefreshToken)
}

// Profile returns the public view of the user. Accounts with two-factor
// authentication also get the number of unused backup codes.
func (a *authService) Profile(ctx context.Context, userID string) (models.ProfileResponse, error) {
	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return models.ProfileResponse{}, err
	}
	return a.profile(ctx, user)
}

// UpdateEmail changes the login handle after re-checking the password.
// Sessions stay valid: the user id, not the email, is the token subject.
func (a *authService) UpdateEmail(ctx context.Context, userID string, req models.UpdateEmailRequest) (models.ProfileResponse, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return models.ProfileResponse{}, err
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return models.ProfileResponse{}, err
	}
	if err = a.checkPassword(ctx, user.PasswordHash, req.Password); err != nil {
		return models.ProfileResponse{}, err
	}

	if user.Email != req.Email {
		if err = a.users.UpdateEmail(ctx, userID, req.Email); err != nil {
			if errors.Is(err, store.ErrEmailAlreadyExists) {
				return models.ProfileResponse{}, ErrDuplicateEmail
			}
			log.Err(err).Str("func", "*authService.UpdateEmail").Str("user_id", userID).Msg("error updating email")
			return models.ProfileResponse{}, a.userError(err)
		}
		user.Email = req.Email
		log.Info().Str("user_id", userID).Msg("email changed")
	}

	return a.profile(ctx, user)
}

func (a *authService) profile(ctx context.Context, user models.User) (models.ProfileResponse, error) {
	profile := user.Profile()
	if !user.TwoFactorEnabled {
		return profile, nil
	}

	remaining, err := a.users.CountBackupCodes(ctx, user.UserID)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*authService.profile").Str("user_id", user.UserID).Msg("error counting backup codes")
		return models.ProfileResponse{}, err
	}
	profile.BackupCodesRemaining = &remaining
	return profile, nil
}

// ChangePassword re-checks the current password, stores the new hash and
// revokes every refresh token of the user.
func (a *authService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return err
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if err = a.checkPassword(ctx, user.PasswordHash, req.CurrentPassword); err != nil {
		return err
	}

	hash, err := a.hasher.Hash(ctx, req.NewPassword)
	if err != nil {
		return err
	}
	if err = a.users.UpdatePassword(ctx, userID, hash); err != nil {
		log.Err(err).Str("func", "*authService.ChangePassword").Str("user_id", userID).Msg("error updating password")
		return a.userError(err)
	}

	log.Info().Str("user_id", userID).Msg("password changed")
	return a.tokens.RevokeAll(ctx, userID)
}

// EnableTwoFactor starts enrollment. The new secret lives only in a pending
// record until ConfirmTwoFactor; the user record is not touched.
func (a *authService) EnableTwoFactor(ctx context.Context, userID string, req models.EnableTwoFactorRequest) (models.TwoFactorEnrollment, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return models.TwoFactorEnrollment{}, err
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return models.TwoFactorEnrollment{}, err
	}
	if user.TwoFactorEnabled {
		return models.TwoFactorEnrollment{}, ErrTwoFactorAlreadyEnabled
	}
	if err = a.checkPassword(ctx, user.PasswordHash, req.Password); err != nil {
		return models.TwoFactorEnrollment{}, err
	}

	secret, err := a.totp.GenerateSecret()
	if err != nil {
		return models.TwoFactorEnrollment{}, err
	}
	uri, err := a.totp.EnrollmentURI(secret, user.Email, a.totpIssuer)
	if err != nil {
		return models.TwoFactorEnrollment{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}

	pending, err := json.Marshal(models.PendingTwoFactor{Secret: secret, CreatedAt: a.now().UTC()})
	if err != nil {
		return models.TwoFactorEnrollment{}, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}
	if err = a.sessions.Put(ctx, pendingTwoFactorKeyPrefix+userID, pending, a.pendingTTL); err != nil {
		log.Err(err).Str("func", "*authService.EnableTwoFactor").Str("user_id", userID).Msg("error storing pending enrollment")
		return models.TwoFactorEnrollment{}, fmt.Errorf("store pending enrollment: %w", err)
	}

	qrCode, err := a.totp.QRCode(uri)
	if err != nil {
		// the secret and uri are enough to enroll manually
		log.Warn().Err(err).Str("func", "*authService.EnableTwoFactor").Msg("qr code generation failed")
	}

	log.Info().Str("user_id", userID).Msg("two-factor enrollment started")
	return models.TwoFactorEnrollment{Secret: secret, OTPAuthURI: uri, QRCode: qrCode}, nil
}

// ConfirmTwoFactor checks code against the pending secret, commits it to the
// user and returns a fresh set of backup codes. A wrong code keeps the
// pending record.
func (a *authService) ConfirmTwoFactor(ctx context.Context, userID string, req models.TwoFactorCodeRequest) ([]string, error) {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return nil, err
	}

	key := pendingTwoFactorKeyPrefix + userID
	raw, err := a.sessions.Get(ctx, key)
	if errors.Is(err, store.ErrKeyNotFound) {
		return nil, ErrPendingExpired
	}
	if err != nil {
		return nil, fmt.Errorf("load pending enrollment: %w", err)
	}

	var pending models.PendingTwoFactor
	if err = json.Unmarshal(raw, &pending); err != nil {
		return nil, ErrPendingExpired
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TwoFactorEnabled {
		return nil, ErrTwoFactorAlreadyEnabled
	}

	if err = a.checkCode(ctx, userID, pending.Secret, req.Code); err != nil {
		return nil, err
	}

	deleted, err := a.sessions.CompareAndDelete(ctx, key, raw)
	if err != nil {
		return nil, fmt.Errorf("consume pending enrollment: %w", err)
	}
	if !deleted {
		return nil, ErrPendingExpired
	}

	// Backup codes go in before the flag flips so an enabled account always
	// has them. Codes are only accepted while two-factor is enabled.
	codes, err := a.replaceBackupCodes(ctx, userID)
	if err != nil {
		a.restorePending(ctx, key, raw, pending)
		return nil, err
	}

	if err = a.users.UpdateTwoFactor(ctx, userID, true, &pending.Secret); err != nil {
		log.Err(err).Str("func", "*authService.ConfirmTwoFactor").Str("user_id", userID).Msg("error enabling two-factor")
		a.restorePending(ctx, key, raw, pending)
		return nil, a.userError(err)
	}

	log.Info().Str("user_id", userID).Msg("two-factor enabled")
	a.metrics.AuthEvent("2fa_enable", metrics.OutcomeSuccess)
	return codes, nil
}

// restorePending puts a consumed enrollment back for the rest of its window
// so the user can retry confirmation with the next code.
func (a *authService) restorePending(ctx context.Context, key string, raw []byte, pending models.PendingTwoFactor) {
	remaining := pending.CreatedAt.Add(a.pendingTTL).Sub(a.now())
	if remaining <= 0 {
		return
	}
	if err := a.sessions.Put(ctx, key, raw, remaining); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*authService.restorePending").Msg("error restoring pending enrollment")
	}
}

// DisableTwoFactor requires both the password and a current code. On
// success every refresh token of the user is revoked.
func (a *authService) DisableTwoFactor(ctx context.Context, userID string, req models.DisableTwoFactorRequest) error {
	log := logger.FromContext(ctx)

	if err := a.validate(ctx, req); err != nil {
		return err
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return ErrTwoFactorNotEnabled
	}
	if err = a.checkPassword(ctx, user.PasswordHash, req.Password); err != nil {
		return err
	}
	if err = a.checkCode(ctx, userID, *user.TwoFactorSecret, req.Code); err != nil {
		return err
	}

	if err = a.users.UpdateTwoFactor(ctx, userID, false, nil); err != nil {
		log.Err(err).Str("func", "*authService.DisableTwoFactor").Str("user_id", userID).Msg("error disabling two-factor")
		return a.userError(err)
	}
	log.Info().Str("user_id", userID).Msg("two-factor disabled")
	a.metrics.AuthEvent("2fa_disable", metrics.OutcomeSuccess)

	if err = a.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}

	// Leftover codes are unusable once the flag is off and are replaced on
	// the next enrollment.
	if err = a.users.DeleteBackupCodes(ctx, userID); err != nil {
		log.Warn().Err(err).Str("func", "*authService.DisableTwoFactor").Str("user_id", userID).Msg("error deleting backup codes")
	}
	return nil
}

// RegenerateBackupCodes replaces every backup code after checking a current
// TOTP code.
func (a *authService) RegenerateBackupCodes(ctx context.Context, userID string, req models.TwoFactorCodeRequest) ([]string, error) {
	if err := a.validate(ctx, req); err != nil {
		return nil, err
	}

	user, err := a.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return nil, ErrTwoFactorNotEnabled
	}
	if err = a.checkCode(ctx, userID, *user.TwoFactorSecret, req.Code); err != nil {
		return nil, err
	}

	return a.replaceBackupCodes(ctx, userID)
}

// checkCredentials looks the user up and verifies the password. An unknown
// email still costs one hash comparison and yields the same error as a wrong
// password.
func (a *authService) checkCredentials(ctx context.Context, email, password string) (models.User, error) {
	log := logger.FromContext(ctx)

	user, err := a.users.FindUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNoUserWasFound) {
		if a.dummyHash != "" {
			_, _ = a.hasher.Verify(ctx, password, a.dummyHash)
		}
		log.Info().Str("func", "*authService.checkCredentials").Msg("login for unknown email")
		return models.User{}, ErrInvalidCredentials
	}
	if err != nil {
		log.Err(err).Str("func", "*authService.checkCredentials").Msg("user search by email failed")
		return models.User{}, fmt.Errorf("user search by email failed: %w", err)
	}

	if err = a.checkPassword(ctx, user.PasswordHash, password); err != nil {
		log.Info().Str("user_id", user.UserID).Msg("wrong password")
		return models.User{}, err
	}
	return user, nil
}

func (a *authService) checkPassword(ctx context.Context, hash, password string) error {
	ok, err := a.hasher.Verify(ctx, password, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}

// checkCode verifies a TOTP code and claims its step for the user, so the
// same code cannot be accepted twice.
func (a *authService) checkCode(ctx context.Context, userID, secret, code string) error {
	ok, step, err := a.totp.VerifyCode(secret, code, a.now())
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*authService.checkCode").Str("user_id", userID).Msg("error verifying totp code")
		return fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}
	if !ok {
		return ErrInvalidCode
	}

	fresh, err := a.sessions.SetIfGreater(ctx, totpStepKeyPrefix+userID, step, totpStepTTL)
	if err != nil {
		return fmt.Errorf("record totp step: %w", err)
	}
	if !fresh {
		logger.FromContext(ctx).Warn().Str("user_id", userID).Msg("totp code replayed")
		return ErrInvalidCode
	}
	return nil
}

// challengeUser resolves a live challenge and its user. The user must still
// have two-factor authentication enabled.
func (a *authService) challengeUser(ctx context.Context, challengeID string) (models.LoginChallenge, models.User, error) {
	challenge, err := a.tokens.PeekChallenge(ctx, challengeID)
	if err != nil {
		return models.LoginChallenge{}, models.User{}, err
	}

	user, err := a.users.FindUserByID(ctx, challenge.UserID)
	if errors.Is(err, store.ErrNoUserWasFound) {
		return models.LoginChallenge{}, models.User{}, ErrChallengeExpired
	}
	if err != nil {
		return models.LoginChallenge{}, models.User{}, err
	}
	if !user.TwoFactorEnabled || user.TwoFactorSecret == nil {
		return models.LoginChallenge{}, models.User{}, ErrChallengeExpired
	}
	return challenge, user, nil
}

// challengeFailure counts a failed attempt and returns cause.
func (a *authService) challengeFailure(ctx context.Context, challengeID string, cause error) error {
	a.metrics.AuthEvent("login_2fa", metrics.OutcomeFailure)
	if err := a.tokens.RecordChallengeFailure(ctx, challengeID); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*authService.challengeFailure").Msg("error recording challenge failure")
		return err
	}
	return cause
}

func (a *authService) finishChallenge(ctx context.Context, challenge models.LoginChallenge) (models.TokenPair, error) {
	pair, err := a.tokens.ConsumeChallenge(ctx, challenge.ChallengeID)
	if err != nil {
		return models.TokenPair{}, err
	}
	logger.FromContext(ctx).Info().Str("user_id", challenge.UserID).Msg("user logged in with second factor")
	a.metrics.AuthEvent("login_2fa", metrics.OutcomeSuccess)
	return pair, nil
}

// replaceBackupCodes generates a new set, stores only the digests and
// returns the display form.
func (a *authService) replaceBackupCodes(ctx context.Context, userID string) ([]string, error) {
	display := make([]string, 0, backupCodeCount)
	hashes := make([]string, 0, backupCodeCount)
	for range backupCodeCount {
		code, err := utils.RandomString(backupCodeLength, backupCodeAlphabet)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInternalFatal, err)
		}
		hashes = append(hashes, utils.SHA256Hex(code))
		display = append(display, code[:backupCodeLength/2]+"-"+code[backupCodeLength/2:])
	}

	if err := a.users.ReplaceBackupCodes(ctx, userID, hashes); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "*authService.replaceBackupCodes").Str("user_id", userID).Msg("error storing backup codes")
		return nil, err
	}
	return display, nil
}

func (a *authService) loadUser(ctx context.Context, userID string) (models.User, error) {
	user, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		return models.User{}, a.userError(err)
	}
	return user, nil
}

// userError maps a missing user to ErrUnauthenticated: the caller holds a
// token for an account that no longer exists.
func (a *authService) userError(err error) error {
	if errors.Is(err, store.ErrNoUserWasFound) {
		return ErrUnauthenticated
	}
	return err
}

func (a *authService) validate(ctx context.Context, req any) error {
	if err := a.validator.Validate(ctx, req); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// normalizeBackupCode accepts "abcde-fghij" as well as "ABCDEFGHIJ".
func normalizeBackupCode(code string) (string, bool) {
	code = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
	if len(code) != backupCodeLength {
		return "", false
	}
	for _, c := range code {
		if !strings.ContainsRune(backupCodeAlphabet, c) {
			return "", false
		}
	}
	return code, true
}
