package handler

import (
	"github.com/MKhiriev/go-todo-auth/internal/config"
	"github.com/MKhiriev/go-todo-auth/internal/handler/grpc"
	"github.com/MKhiriev/go-todo-auth/internal/handler/http"
	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/metrics"
	"github.com/MKhiriev/go-todo-auth/internal/service"
)

type Handlers struct {
	HTTP *http.Handler
	GRPC *grpc.Handler
}

// NewHandlers creates a transport handler for every configured address.
func NewHandlers(services *service.Services, m *metrics.Metrics, cfg config.Server, logger *logger.Logger) (*Handlers, error) {
	logger.Info().Msg("creating new handlers...")

	handlers := &Handlers{}

	if cfg.HTTPAddress != "" {
		handlers.HTTP = http.NewHandler(services, m, cfg, logger)
	}
	if cfg.GRPCAddress != "" {
		handlers.GRPC = grpc.NewHandler(services, logger)
	}

	if handlers.HTTP == nil && handlers.GRPC == nil {
		return nil, errNoHandlersAreCreated
	}

	return handlers, nil
}
