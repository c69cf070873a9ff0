// Package rpc is the gRPC listener: the storage query service and the
// standard health service, served over a JSON codec.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/marmos91/bufferdb/pkg/query"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// Config configures the listener.
type Config struct {
	// Addr is the resolved TCP address to bind.
	Addr string

	MaxMessageSize  int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

var errNotBound = errors.New("grpc listener not bound")

// Server is the gRPC listener.
type Server struct {
	cfg    Config
	grpc   *grpc.Server
	health *health.Server

	mu  sync.Mutex
	lis net.Listener
}

// NewServer builds the listener over reg and exec. Nothing is bound until
// Bind.
func NewServer(cfg Config, reg Registry, exec *query.Executor) *Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(
			recoveryInterceptor(),
			contextInterceptor(),
			loggingInterceptor(),
			metricsInterceptor(metrics.NewRPCMetrics()),
			timeoutInterceptor(cfg.RequestTimeout),
		),
		grpc.ConnectionTimeout(10 * time.Second),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: 15 * time.Minute,
			Time:              5 * time.Minute,
			Timeout:           20 * time.Second,
		}),
	}
	if cfg.MaxMessageSize > 0 {
		opts = append(opts,
			grpc.MaxRecvMsgSize(cfg.MaxMessageSize),
			grpc.MaxSendMsgSize(cfg.MaxMessageSize))
	}

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	srv.RegisterService(&ServiceDesc, NewService(reg, exec))
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{cfg: cfg, grpc: srv, health: hs}
}

func (s *Server) Name() string { return "grpc" }

// Bind opens the TCP socket.
func (s *Server) Bind() error {
	lis, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("bind grpc listener on %s: %w", s.cfg.Addr, err)
	}
	s.mu.Lock()
	s.lis = lis
	s.mu.Unlock()
	return nil
}

// Addr returns the bound address, or nil before Bind.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis == nil {
		return nil
	}
	return s.lis.Addr()
}

// Serve accepts connections until ctx is cancelled, then stops gracefully.
// It returns nil after a requested stop and the accept error otherwise.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	lis := s.lis
	s.mu.Unlock()
	if lis == nil {
		return errNotBound
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			s.stop()
		case <-done:
		}
	}()

	logger.Info("gRPC listener serving", logger.Listener(s.Name()), logger.Addr(lis.Addr().String()))
	err := s.grpc.Serve(lis)
	close(done)
	<-stopped

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("grpc listener: %w", err)
	}
	return nil
}

func (s *Server) stop() {
	s.health.Shutdown()

	graceful := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(graceful)
	}()

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	select {
	case <-graceful:
		logger.Info("gRPC listener stopped", logger.Listener(s.Name()))
	case <-time.After(timeout):
		logger.Warn("gRPC graceful stop timed out, forcing", logger.Listener(s.Name()))
		s.grpc.Stop()
		<-graceful
	}
}
