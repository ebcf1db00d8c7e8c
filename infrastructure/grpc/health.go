// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the relay without speaking its protocol.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported next to the overall ("")
// status.
const ServiceName = "secure-chat.Relay"

// HealthWorker serves grpc.health.v1.Health: SERVING while it runs,
// NOT_SERVING once it is asked to stop.
type HealthWorker struct {
	log     *slog.Logger
	address string
	health  *health.Server
}

func NewHealthWorker(log *slog.Logger, address string) *HealthWorker {
	return &HealthWorker{log: log, address: address, health: health.NewServer()}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", w.address)
	if err != nil {
		return err
	}
	return w.Serve(ctx, listener)
}

// Serve answers health checks on listener until ctx is canceled.
func (w *HealthWorker) Serve(ctx context.Context, listener net.Listener) error {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, w.health)
	w.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	w.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	errChan := make(chan error, 1)
	go func() {
		w.log.Info("Starting gRPC health server", "address", listener.Addr().String())
		if err := s.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		// Watchers see NOT_SERVING before the server goes away
		w.health.Shutdown()
		s.GracefulStop()
		w.log.Info("gRPC health server stopped")
		return nil
	case err := <-errChan:
		w.health.Shutdown()
		return err
	}
}

// Health is the underlying health server, for in-process checks.
func (w *HealthWorker) Health() healthpb.HealthServer {
	return w.health
}
