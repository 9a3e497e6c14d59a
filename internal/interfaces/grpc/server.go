// Package grpc serves the standard gRPC health protocol for the resolver. The
// overall status and the ResolverService entry follow whether a reference
// store is installed.
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"

	"github.com/turtacn/substance-resolver/internal/config"
	"github.com/turtacn/substance-resolver/internal/domain/substance"
	"github.com/turtacn/substance-resolver/internal/infrastructure/monitoring/logging"
)

// ResolverService is the service name reported alongside the overall status.
const ResolverService = "substance.resolver.v1.Resolver"

const defaultGracefulTimeout = 10 * time.Second

var defaultKeepaliveParams = keepalive.ServerParameters{
	MaxConnectionIdle: 15 * time.Minute,
	Time:              5 * time.Minute,
	Timeout:           time.Second,
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	logger          logging.Logger
	gracefulTimeout time.Duration
}

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(o *serverOptions) { o.logger = l }
}

// WithGracefulTimeout bounds GracefulStop before the server is stopped hard.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *serverOptions) {
		if d > 0 {
			o.gracefulTimeout = d
		}
	}
}

// Server wraps a grpc.Server carrying the health service.
type Server struct {
	grpcServer   *grpc.Server
	healthServer *health.Server
	cfg          config.GRPCConfig
	opts         serverOptions

	mu       sync.Mutex
	listener net.Listener
	started  bool
}

// NewServer builds the server. Both health entries start as NOT_SERVING.
func NewServer(cfg config.GRPCConfig, opts ...Option) *Server {
	so := serverOptions{gracefulTimeout: defaultGracefulTimeout}
	for _, o := range opts {
		o(&so)
	}
	if so.logger == nil {
		so.logger = logging.NewNopLogger()
	}

	gs := grpc.NewServer(
		grpc.KeepaliveParams(defaultKeepaliveParams),
		grpc.ChainUnaryInterceptor(
			recoveryUnaryInterceptor(so.logger),
			loggingUnaryInterceptor(so.logger),
		),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ResolverService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpcServer: gs, healthServer: hs, cfg: cfg, opts: so}
}

// UpdateHealth reports SERVING when p holds a store and NOT_SERVING otherwise.
func (s *Server) UpdateHealth(p substance.Provider) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if p.Current() != nil {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.healthServer.SetServingStatus("", st)
	s.healthServer.SetServingStatus(ResolverService, st)
}

// Start listens on the configured port and serves until Stop.
func (s *Server) Start() error {
	addr := net.JoinHostPort("", fmt.Sprint(s.cfg.Port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc: failed to listen on %s: %w", addr, err)
	}
	return s.Serve(l)
}

// Serve serves on l until Stop.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		_ = l.Close()
		return fmt.Errorf("grpc: server already started")
	}
	s.started = true
	s.listener = l
	s.mu.Unlock()

	s.opts.logger.Info("grpc server starting", logging.String("address", l.Addr().String()))
	return s.grpcServer.Serve(l)
}

// Stop marks the server NOT_SERVING and drains it, forcing a stop when ctx or
// the graceful timeout expires first.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return nil
	}

	s.healthServer.Shutdown()
	ctx, cancel := context.WithTimeout(ctx, s.opts.gracefulTimeout)
	defer cancel()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
		s.opts.logger.Info("grpc server stopped gracefully")
	case <-ctx.Done():
		s.opts.logger.Warn("grpc graceful stop timed out, forcing stop")
		s.grpcServer.Stop()
	}
	return nil
}

// Addr returns the listening address once serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func recoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc panic recovered",
					logging.String("method", info.FullMethod),
					logging.String("panic", fmt.Sprint(r)),
					logging.String("stack", string(debug.Stack())),
				)
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func isHealthCheck(method string) bool {
	return strings.HasPrefix(method, "/grpc.health.v1.Health/")
}

func loggingUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if isHealthCheck(info.FullMethod) {
			return handler(ctx, req)
		}
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Info("grpc request",
			logging.String("method", info.FullMethod),
			logging.Duration("duration", time.Since(start)),
			logging.String("code", status.Code(err).String()),
		)
		return resp, err
	}
}
