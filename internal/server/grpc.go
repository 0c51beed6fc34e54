package server

import (
	"errors"
	"net"

	"github.com/MKhiriev/go-todo-auth/internal/config"
	myGRPC "github.com/MKhiriev/go-todo-auth/internal/handler/grpc"
	"github.com/MKhiriev/go-todo-auth/internal/logger"

	"google.golang.org/grpc"
)

type grpcServer struct {
	server  *grpc.Server
	address string

	logger *logger.Logger
}

func newGRPCServer(handler *myGRPC.Handler, cfg config.Server, logger *logger.Logger) *grpcServer {
	s := grpc.NewServer()
	handler.Register(s)

	return &grpcServer{
		server:  s,
		address: cfg.GRPCAddress,
		logger:  logger,
	}
}

// run listens on the configured address and blocks until the server stops.
func (g *grpcServer) run() error {
	lis, err := net.Listen("tcp", g.address)
	if err != nil {
		g.logger.Err(err).Str("address", g.address).Msg("gRPC server Listen")
		return err
	}

	g.logger.Info().Str("address", g.address).Msg("Launching GRPC server")
	if err = g.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		g.logger.Err(err).Msg("gRPC server Serve")
		return err
	}
	return nil
}

func (g *grpcServer) Shutdown() {
	g.logger.Info().Msg("GRPC server Shutdown")
	g.server.GracefulStop()
}
