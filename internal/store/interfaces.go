// Package store contains the persistence boundary of the service: the durable
// user store (PostgreSQL, SQLite or in-process) and the expiring key-value
// session store (Redis or in-process).
package store

//go:generate mockgen -source=interfaces.go -destination=../mock/store_mock.go -package=mock

import (
	"context"
	"time"

	"github.com/MKhiriev/go-todo-auth/models"
)

// UserRepository is the durable store of user accounts and their backup codes.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindUserByID(ctx context.Context, userID string) (models.User, error)
	FindUserByEmail(ctx context.Context, email string) (models.User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	// UpdateEmail returns ErrEmailAlreadyExists when another account holds
	// email.
	UpdateEmail(ctx context.Context, userID, email string) error
	// UpdateTwoFactor sets the 2FA flag and secret together. secret must be
	// nil when enabled is false.
	UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error

	// ReplaceBackupCodes atomically drops all existing codes of the user and
	// stores the given hashes as unused.
	ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error
	// ConsumeBackupCode marks an unused code as used. It reports false when no
	// unused code with that hash exists. At most one caller wins per code.
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	DeleteBackupCodes(ctx context.Context, userID string) error
	CountBackupCodes(ctx context.Context, userID string) (int, error)

	Ping(ctx context.Context) error
}

// SessionStore is a shared key-value store with per-key expiry. Every
// operation listed as atomic must be linearizable across processes sharing
// the same backend.
type SessionStore interface {
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns ErrKeyNotFound for missing or expired keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes the keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// CompareAndDelete atomically deletes key if its current value equals
	// expected and reports whether it did.
	CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error)
	// Take atomically removes key, writes marker with markerTTL and returns
	// the removed value. If key is absent it returns ErrKeyConsumed when
	// marker exists and ErrKeyNotFound otherwise.
	Take(ctx context.Context, key, marker string, markerTTL time.Duration) ([]byte, error)
	// Incr atomically increments a counter, starting the ttl on creation.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// SetIfGreater atomically stores value if the key is absent or holds a
	// smaller integer and reports whether it did.
	SetIfGreater(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)

	// IndexAdd adds member to the set stored at index and refreshes its ttl.
	IndexAdd(ctx context.Context, index, member string, ttl time.Duration) error
	IndexMembers(ctx context.Context, index string) ([]string, error)
	IndexRemove(ctx context.Context, index string, members ...string) error

	Ping(ctx context.Context) error
}

// ExpiredPurger is implemented by stores that evict expired entries lazily
// and need a periodic sweep.
type ExpiredPurger interface {
	PurgeExpired() int
}

// ErrorClassificator maps driver errors onto store semantics.
type ErrorClassificator interface {
	Classify(err error) ErrorClassification
	IsUniqueViolation(err error) bool
}
