package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// bcryptHasher bounds concurrent bcrypt work with a weighted semaphore so a
// burst of logins cannot starve the rest of the process of CPU. Waiting for
// a slot honours the context and is capped by the hash timeout.
type bcryptHasher struct {
	cost    int
	slots   *semaphore.Weighted
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewPasswordHasher(cfg config.App, m *metrics.Metrics) PasswordHasher {
	return &bcryptHasher{
		cost:    cfg.BcryptCost,
		slots:   semaphore.NewWeighted(int64(cfg.MaxConcurrentHashes)),
		timeout: cfg.HashTimeout,
		metrics: m,
	}
}

func (h *bcryptHasher) Hash(ctx context.Context, password string) (string, error) {
	release, err := h.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: password exceeds 72 bytes", ErrValidation)
		}
		return "", fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}
	return string(hash), nil
}

func (h *bcryptHasher) Verify(ctx context.Context, password, hash string) (bool, error) {
	release, err := h.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer release()

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", ErrInternalFatal, err)
	}
}

func (h *bcryptHasher) acquire(ctx context.Context) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.slots.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrHasherBusy
	}

	done := h.metrics.TrackHash()
	return func() {
		done()
		h.slots.Release(1)
	}, nil
}
