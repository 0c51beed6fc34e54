package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-todo-auth/models"
	"github.com/sethvargo/go-retry"
)

// retrier bounds every backend call with a timeout and retries idempotent
// calls once. Failures other than domain answers surface as
// [ErrStoreUnavailable].
type retrier struct {
	timeout time.Duration
	backoff time.Duration
}

func (r retrier) do(ctx context.Context, idempotent bool, op func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(r.backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()

		err := op(opCtx)
		if err == nil || isDomainError(err) || !idempotent {
			return err
		}
		return retry.RetryableError(err)
	})
	if err == nil || isDomainError(err) || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func doValue[T any](ctx context.Context, r retrier, idempotent bool, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.do(ctx, idempotent, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type retryingUserRepository struct {
	next UserRepository
	retrier
}

// NewRetryingUserRepository decorates next with per-call timeouts and a
// single retry of idempotent calls.
func NewRetryingUserRepository(next UserRepository, timeout, backoff time.Duration) UserRepository {
	return &retryingUserRepository{next: next, retrier: retrier{timeout: timeout, backoff: backoff}}
}

func (r *retryingUserRepository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	return doValue(ctx, r.retrier, false, func(ctx context.Context) (models.User, error) {
		return r.next.CreateUser(ctx, user)
	})
}

func (r *retryingUserRepository) FindUserByID(ctx context.Context, userID string) (models.User, error) {
	return doValue(ctx, r.retrier, true, func(ctx context.Context) (models.User, error) {
		return r.next.FindUserByID(ctx, userID)
	})
}

func (r *retryingUserRepository) FindUserByEmail(ctx context.Context, email string) (models.User, error) {
	return doValue(ctx, r.retrier, true, func(ctx context.Context) (models.User, error) {
		return r.next.FindUserByEmail(ctx, email)
	})
}

func (r *retryingUserRepository) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return r.do(ctx, true, func(ctx context.Context) error {
		return r.next.UpdatePassword(ctx, userID, passwordHash)
	})
}

func (r *retryingUserRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	return r.do(ctx, true, func(ctx context.Context) error {
		return r.next.UpdateEmail(ctx, userID, email)
	})
}

func (r *retryingUserRepository) UpdateTwoFactor(ctx context.Context, userID string, enabled bool, secret *string) error {
	return r.do(ctx, true, func(ctx context.Context) error {
		return r.next.UpdateTwoFactor(ctx, userID, enabled, secret)
	})
}

func (r *retryingUserRepository) ReplaceBackupCodes(ctx context.Context, userID string, codeHashes []string) error {
	return r.do(ctx, true, func(ctx context.Context) error {
		return r.next.ReplaceBackupCodes(ctx, userID, codeHashes)
	})
}

func (r *retryingUserRepository) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	return doValue(ctx, r.retrier, false, func(ctx context.Context) (bool, error) {
		return r.next.ConsumeBackupCode(ctx, userID, codeHash)
	})
}

func (r *retryingUserRepository) DeleteBackupCodes(ctx context.Context, userID string) error {
	return r.do(ctx, true, func(ctx context.Context) error {
		return r.next.DeleteBackupCodes(ctx, userID)
	})
}

func (r *retryingUserRepository) CountBackupCodes(ctx context.Context, userID string) (int, error) {
	return doValue(ctx, r.retrier, true, func(ctx context.Context) (int, error) {
		return r.next.CountBackupCodes(ctx, userID)
	})
}

func (r *retryingUserRepository) Ping(ctx context.Context) error {
	return r.do(ctx, true, r.next.Ping)
}

type retryingSessionStore struct {
	next SessionStore
	retrier
}

// NewRetryingSessionStore decorates next with per-call timeouts and a single
// retry of idempotent calls. Atomic read-modify-write calls are never
// retried.
func NewRetryingSessionStore(next SessionStore, timeout, backoff time.Duration) SessionStore {
	return &retryingSessionStore{next: next, retrier: retrier{timeout: timeout, backoff: backoff}}
}

func (s *retryingSessionStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.do(ctx, true, func(ctx context.Context) error {
		return s.next.Put(ctx, key, value, ttl)
	})
}

func (s *retryingSessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	return doValue(ctx, s.retrier, true, func(ctx context.Context) ([]byte, error) {
		return s.next.Get(ctx, key)
	})
}

func (s *retryingSessionStore) Delete(ctx context.Context, keys ...string) error {
	return s.do(ctx, true, func(ctx context.Context) error {
		return s.next.Delete(ctx, keys...)
	})
}

func (s *retryingSessionStore) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	return doValue(ctx, s.retrier, false, func(ctx context.Context) (bool, error) {
		return s.next.CompareAndDelete(ctx, key, expected)
	})
}

func (s *retryingSessionStore) Take(ctx context.Context, key, marker string, markerTTL time.Duration) ([]byte, error) {
	return doValue(ctx, s.retrier, false, func(ctx context.Context) ([]byte, error) {
		return s.next.Take(ctx, key, marker, markerTTL)
	})
}

func (s *retryingSessionStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return doValue(ctx, s.retrier, false, func(ctx context.Context) (int64, error) {
		return s.next.Incr(ctx, key, ttl)
	})
}

func (s *retryingSessionStore) SetIfGreater(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error) {
	return doValue(ctx, s.retrier, false, func(ctx context.Context) (bool, error) {
		return s.next.SetIfGreater(ctx, key, value, ttl)
	})
}

func (s *retryingSessionStore) IndexAdd(ctx context.Context, index, member string, ttl time.Duration) error {
	return s.do(ctx, true, func(ctx context.Context) error {
		return s.next.IndexAdd(ctx, index, member, ttl)
	})
}

func (s *retryingSessionStore) IndexMembers(ctx context.Context, index string) ([]string, error) {
	return doValue(ctx, s.retrier, true, func(ctx context.Context) ([]string, error) {
		return s.next.IndexMembers(ctx, index)
	})
}

func (s *retryingSessionStore) IndexRemove(ctx context.Context, index string, members ...string) error {
	return s.do(ctx, true, func(ctx context.Context) error {
		return s.next.IndexRemove(ctx, index, members...)
	})
}

func (s *retryingSessionStore) Ping(ctx context.Context) error {
	return s.do(ctx, true, s.next.Ping)
}
