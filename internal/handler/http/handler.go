package http

import (
	"time"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/service"
)

const defaultRequestTimeout = 10 * time.Second

type Handler struct {
	services *service.Services
	metrics  *metrics.Metrics

	requestTimeout time.Duration

	logger *logger.Logger
}

func NewHandler(services *service.Services, m *metrics.Metrics, cfg config.Server, logger *logger.Logger) *Handler {
	logger.Info().Msg("http handler created")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	return &Handler{
		services:       services,
		metrics:        m,
		requestTimeout: timeout,
		logger:         logger,
	}
}

func (h *Handler) now() time.Time {
	if h.services.Now != nil {
		return h.services.Now()
	}
	return time.Now()
}
