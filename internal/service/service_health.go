package service

import (
	"context"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/store"
	"github.com/MKhiriev/go-todo-auth/models"
	"golang.org/x/sync/errgroup"
)

const (
	healthStatusOK          = "ok"
	healthStatusUnavailable = "unavailable"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type healthService struct {
	checks map[string]pinger
	logger *logger.Logger
}

func NewHealthService(users store.UserRepository, sessions store.SessionStore, logger *logger.Logger) HealthService {
	return &healthService{
		checks: map[string]pinger{
			"user_store":    users,
			"session_store": sessions,
		},
		logger: logger,
	}
}

// Check pings every store concurrently. The result is healthy only when all
// of them answer.
func (s *healthService) Check(ctx context.Context) (models.HealthResponse, bool) {
	names := make([]string, 0, len(s.checks))
	errs := make([]error, len(s.checks))

	var g errgroup.Group
	for name, check := range s.checks {
		i := len(names)
		names = append(names, name)
		g.Go(func() error {
			errs[i] = check.Ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	resp := models.HealthResponse{Status: healthStatusOK, Checks: make(map[string]string, len(names))}
	healthy := true
	for i, name := range names {
		if errs[i] != nil {
			logger.FromContext(ctx).Warn().Err(errs[i]).Str("check", name).Msg("health check failed")
			resp.Checks[name] = healthStatusUnavailable
			healthy = false
			continue
		}
		resp.Checks[name] = healthStatusOK
	}
	if !healthy {
		resp.Status = healthStatusUnavailable
	}
	return resp, healthy
}
