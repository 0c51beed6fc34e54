package store

import (
	"context"
	"errors"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
)

// Storages bundles the two persistence boundaries consumed by the services.
// Both are wrapped with per-call timeouts and retries.
type Storages struct {
	UserRepository UserRepository
	SessionStore   SessionStore

	// Purger is set when the session store needs periodic eviction.
	Purger ExpiredPurger

	closers []func() error
}

// NewStorages opens the user store selected by cfg.DB.Driver and the session
// store (Redis when cfg.Redis.Address is set, in-process otherwise).
func NewStorages(ctx context.Context, cfg config.Storage, log *logger.Logger) (*Storages, error) {
	s := &Storages{}

	var users UserRepository
	switch cfg.DB.Driver {
	case config.DriverMemory, "":
		log.Warn().Msg("using in-memory user store, data is lost on restart")
		users = NewMemoryUserRepository()
	default:
		db, err := NewDB(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, db.Close)
		users = NewUserRepository(db, log)
	}

	var sessions SessionStore
	if cfg.Redis.Address != "" {
		client, err := NewRedisClient(ctx, cfg.Redis, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, client.Close)
		sessions = NewRedisSessionStore(client, log)
	} else {
		log.Warn().Msg("using in-memory session store, sessions are not shared between instances")
		memory := NewMemorySessionStore(nil)
		s.Purger = memory
		sessions = memory
	}

	s.UserRepository = NewRetryingUserRepository(users, cfg.OperationTimeout, cfg.RetryBackoff)
	s.SessionStore = NewRetryingSessionStore(sessions, cfg.OperationTimeout, cfg.RetryBackoff)

	return s, nil
}

// Close releases backend connections in reverse order of opening.
func (s *Storages) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		errs = append(errs, s.closers[i]())
	}
	s.closers = nil
	return errors.Join(errs...)
}
