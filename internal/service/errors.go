package service

import (
	"errors"

	"github.com/MKhiriev/go-todo-auth/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrValidation         = errors.New("validation failed")

	ErrInvalidCode      = errors.New("invalid code")
	ErrChallengeExpired = errors.New("login challenge expired")
	ErrPendingExpired   = errors.New("two-factor enrollment expired")

	ErrTwoFactorAlreadyEnabled = errors.New("two-factor authentication already enabled")
	ErrTwoFactorNotEnabled     = errors.New("two-factor authentication not enabled")

	ErrTokenExpired     = errors.New("token expired")
	ErrTokenUnknown     = errors.New("refresh token unknown")
	ErrTokenAlreadyUsed = errors.New("refresh token already used")
	ErrTokenInvalid     = errors.New("invalid token")
	ErrUnauthenticated  = errors.New("unauthenticated")

	// ErrStoreUnavailable is transient; the caller may retry the whole
	// operation.
	ErrStoreUnavailable = store.ErrStoreUnavailable

	// ErrHasherBusy is returned when no hashing slot frees up before the
	// hash timeout. Transient like ErrStoreUnavailable.
	ErrHasherBusy = errors.New("password hasher busy")

	// ErrInternalFatal marks a failure of a hashing, signing or randomness
	// primitive. Never retried and never detailed to the client.
	ErrInternalFatal = errors.New("internal error")

	ErrVersionIsNotSpecified = errors.New("app version is not specified")
)
