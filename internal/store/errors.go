package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrEmailAlreadyExists is returned when an attempt to register a new user
	// fails because a user with the same email already exists.
	ErrEmailAlreadyExists = errors.New("email already exists")

	// ErrNoUserWasFound is returned when a lookup or update targets a user
	// that does not exist.
	ErrNoUserWasFound = errors.New("no user was found")

	// ErrKeyNotFound is returned by [SessionStore] reads of missing or
	// expired keys.
	ErrKeyNotFound = errors.New("key not found")

	// ErrKeyConsumed is returned by [SessionStore.Take] when the key was
	// already taken and its marker is still alive.
	ErrKeyConsumed = errors.New("key already consumed")

	// ErrStoreUnavailable is returned when a backend call failed or timed out
	// after the allowed retries. It is transient from the caller's view.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Low-level database operation errors. These are wrapped by repository
// methods when a SQL-level operation fails before any domain logic can be
// applied.
var (
	ErrBuildingSQLQuery     = errors.New("error building sql query")
	ErrExecutingQuery       = errors.New("error executing sql query")
	ErrBeginningTransaction = errors.New("failed to begin transaction")
	ErrCommitingTransaction = errors.New("failed to commit transaction")
	ErrScanningRow          = errors.New("failed to scan row")
)

// isDomainError reports whether err carries a definitive answer from the
// store as opposed to a backend failure.
func isDomainError(err error) bool {
	return errors.Is(err, ErrEmailAlreadyExists) ||
		errors.Is(err, ErrNoUserWasFound) ||
		errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrKeyConsumed)
}
