package api

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"armada/internal/config"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported for the settlement API as a whole.
const ServiceName = "armada.Settlement"

const healthCheckTimeout = 3 * time.Second

// HealthCheck probes one backing dependency (store, redis).
type HealthCheck func(ctx context.Context) error

// GRPCServer exposes grpc.health.v1 for the API binary. Status follows the checks.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
	checks   map[string]HealthCheck
	log      zerolog.Logger

	mu      sync.Mutex
	serving bool
}

func NewGRPCServer(cfg *config.APIConfig, checks map[string]HealthCheck, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", cfg.GRPC.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}

	unary := ChainUnaryInterceptors(
		RecoveryUnaryInterceptor(logger),
		LoggingUnaryInterceptor(logger),
	)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(unary))

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if cfg.GRPC.Reflection {
		reflection.Register(grpcServer)
	}

	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	s := &GRPCServer{
		server:   grpcServer,
		health:   healthServer,
		listener: lis,
		checks:   checks,
		log:      serverLogger,
	}
	// до первой проверки считаем сервис недоступным
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	for name := range checks {
		healthServer.SetServingStatus(name, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s, nil
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *GRPCServer) Serve() error {
	s.log.Info().Str("addr", s.Addr()).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

// CheckNow runs every health check once and publishes the result.
// It reports whether all checks passed.
func (s *GRPCServer) CheckNow(ctx context.Context) bool {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	allOK := true
	for _, name := range names {
		checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
		err := s.checks[name](checkCtx)
		cancel()

		st := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			allOK = false
			st = healthpb.HealthCheckResponse_NOT_SERVING
			s.log.Warn().Err(err).Str("check", name).Msg("health check failed")
		}
		s.health.SetServingStatus(name, st)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !allOK {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", overall)
	s.health.SetServingStatus(ServiceName, overall)

	s.mu.Lock()
	if s.serving != allOK {
		s.log.Info().Bool("serving", allOK).Msg("health status changed")
	}
	s.serving = allOK
	s.mu.Unlock()

	return allOK
}

// Monitor re-runs the checks every interval until ctx is done.
func (s *GRPCServer) Monitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	s.CheckNow(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckNow(ctx)
		}
	}
}

func (s *GRPCServer) Shutdown(ctx context.Context) {
	if s.server == nil {
		return
	}
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	case <-time.After(10 * time.Second):
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
		return
	}
}
