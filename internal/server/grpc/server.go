// Package grpc runs the gRPC endpoint. It serves the standard health
// service, backed by a periodic dependency check, and authenticates every
// other method with the same bearer tokens as the HTTP API.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/lostfound/internal/logging"
	"github.com/dmitrijs2005/lostfound/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the overall serving status is reported under,
// next to the empty name.
const ServiceName = "lostfound"

const defaultCheckInterval = 15 * time.Second

// Authenticator resolves the authorization metadata value to a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (auth.Principal, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// GRPCServer serves gRPC health checks and guards every other method with a
// bearer token.
type GRPCServer struct {
	address       string
	authenticator Authenticator
	checker       HealthChecker
	health        *health.Server
	interval      time.Duration
	logger        logging.Logger
}

// NewGRPCServer returns a server for address. checker is pinged to keep the
// health status current.
func NewGRPCServer(address string, l logging.Logger, a Authenticator, checker HealthChecker) *GRPCServer {
	return &GRPCServer{
		address:       address,
		authenticator: a,
		checker:       checker,
		health:        health.NewServer(),
		interval:      defaultCheckInterval,
		logger:        l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.accessTokenStreamInterceptor),
	)
	healthpb.RegisterHealthServer(srv, s.health)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	s.checkHealth(ctx)
	go s.watchHealth(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}

func (s *GRPCServer) watchHealth(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkHealth(ctx)
		}
	}
}

// checkHealth pings the dependency and publishes the result for both the
// empty service name and ServiceName.
func (s *GRPCServer) checkHealth(ctx context.Context) {
	status := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.interval/2)
		err := s.checker.PingContext(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "dependency check failed", "error", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}
