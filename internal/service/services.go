package service

import (
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/models"
)

type Services struct {
	AuthService    AuthService
	TokenService   TokenService
	AppInfoService AppInfoService
	HealthService  HealthService

	// Now is the clock shared by every service.
	Now func() time.Time
}

type options struct {
	now func() time.Time
}

// Option customises NewServices.
type Option func(*options)

// WithClock replaces time.Now for every time-dependent decision: token
// expiry, challenge and enrollment windows, TOTP steps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func NewServices(storages *store.Storages, cfg config.StructuredConfig, buildInfo models.AppBuildInfo, m *metrics.Metrics, logger *logger.Logger, opts ...Option) (*Services, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	appInfo, err := NewAppInfoService(buildInfo, logger)
	if err != nil {
		return nil, err
	}

	hasher := NewPasswordHasher(cfg.App, m)
	tokens := NewTokenService(storages.SessionStore, cfg.App, o.now, m, logger)

	return &Services{
		AuthService:    NewAuthService(storages.UserRepository, storages.SessionStore, hasher, NewTotpEngine(), tokens, cfg.App, o.now, m, logger),
		TokenService:   tokens,
		AppInfoService: appInfo,
		HealthService:  NewHealthService(storages.UserRepository, storages.SessionStore, logger),
		Now:            o.now,
	}, nil
}
