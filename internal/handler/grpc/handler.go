package grpc

import (
	"context"

	"github.com/MKhiriev/go-todo-auth/internal/logger"
	"github.com/MKhiriev/go-todo-auth/internal/service"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the name clients may pass in a health check request. An
// empty name asks about the server as a whole and gets the same answer.
const ServiceName = "todo_auth.v1.Auth"

// Handler is the root gRPC transport handler. It serves the standard
// grpc.health.v1.Health service, backed by the same store pings as GET
// /health.
type Handler struct {
	healthpb.UnimplementedHealthServer

	// services provides access to the health checks.
	services *service.Services

	// logger is used for diagnostic log output.
	logger *logger.Logger
}

// NewHandler constructs a [Handler] with the provided service container and
// logger.
func NewHandler(services *service.Services, logger *logger.Logger) *Handler {
	logger.Debug().Msg("gRPC handler created")
	return &Handler{
		services: services,
		logger:   logger,
	}
}

// Register attaches every service of the handler to s.
func (h *Handler) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h)
}

// Check reports SERVING only when both stores answer their ping.
func (h *Handler) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", name)
	}

	resp, healthy := h.services.HealthService.Check(ctx)
	if !healthy {
		h.logger.Warn().Any("checks", resp.Checks).Msg("grpc health check: not serving")
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
