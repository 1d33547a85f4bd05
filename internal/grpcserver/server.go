// Package grpcserver exposes the standard gRPC health service for the git
// server and records where a running instance listens.
package grpcserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// HealthService is the service name reported next to the overall status.
const HealthService = "gitcove.GitServer"

// Pinger reports whether the metadata store is reachable.
type Pinger interface {
	Ping() error
}

// ServerWithHealth wraps gRPC server and health service for lifecycle management
type ServerWithHealth struct {
	GRPCServer   *grpc.Server
	HealthServer *health.Server

	pinger Pinger
}

// NewServer creates a gRPC server carrying the interceptor chain and the
// health service. The status starts as SERVING when the store answers.
func NewServer(pinger Pinger) *ServerWithHealth {
	opts := []grpc.ServerOption{
		// recovery -> logging -> timeout
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(),
			loggingInterceptor(),
			timeoutInterceptor(30*time.Second),
		),
		grpc.ConnectionTimeout(10 * time.Second),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           20 * time.Second,
		}),
		grpc.MaxRecvMsgSize(4 * 1024 * 1024),
		grpc.MaxSendMsgSize(4 * 1024 * 1024),
	}

	srv := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthServer)

	s := &ServerWithHealth{
		GRPCServer:   srv,
		HealthServer: healthServer,
		pinger:       pinger,
	}
	s.refresh()

	return s
}

// refresh sets the serving status from a store ping.
func (s *ServerWithHealth) refresh() {
	status := healthpb.HealthCheckResponse_SERVING

	if s.pinger != nil {
		if err := s.pinger.Ping(); err != nil {
			slog.Warn("store ping failed", "error", err)

			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.HealthServer.SetServingStatus("", status)
	s.HealthServer.SetServingStatus(HealthService, status)
}

// Watch re-evaluates the health status every interval until ctx is done.
func (s *ServerWithHealth) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// Serve listens on addr until ctx is cancelled, then stops gracefully.
func (s *ServerWithHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.ServeListener(ctx, lis)
}

// ServeListener is Serve on an existing listener.
func (s *ServerWithHealth) ServeListener(ctx context.Context, lis net.Listener) error {
	go s.Watch(ctx, 30*time.Second)

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.GRPCServer.Serve(lis)
	}()

	slog.Info("health service starting", "addr", lis.Addr().String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.HealthServer.Shutdown()
	s.GRPCServer.GracefulStop()

	return nil
}
