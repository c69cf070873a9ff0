// Package api is the HTTP listener: line protocol writes, simple reads and
// health endpoints over the shared database registry.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/api/handlers"
)

var errNotBound = errors.New("http listener not bound")

// Server is the HTTP listener.
//
// Bind opens the socket; Serve runs until its context is cancelled and
// then shuts down gracefully within Config.ShutdownTimeout.
type Server struct {
	server *http.Server
	config Config

	mu           sync.Mutex
	lis          net.Listener
	shutdownOnce sync.Once
}

// NewServer creates the listener. Nothing is bound until Bind.
func NewServer(config Config, registry handlers.Registry) *Server {
	config.applyDefaults()

	server := &http.Server{
		Addr:         config.Addr,
		Handler:      NewRouter(config, registry),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return &Server{server: server, config: config}
}

func (s *Server) Name() string { return "http" }

// Bind opens the TCP socket.
func (s *Server) Bind() error {
	lis, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("bind http listener on %s: %w", s.config.Addr, err)
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

// Serve blocks until ctx is cancelled or the server fails.
//
// A shutdown that overruns the timeout closes the remaining connections
// and still counts as a requested stop.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	lis := s.lis
	s.mu.Unlock()
	if lis == nil {
		return errNotBound
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("HTTP listener serving", logger.Listener(s.Name()), logger.Addr(lis.Addr().String()))
		errChan <- s.server.Serve(lis)
	}()

	select {
	case <-ctx.Done():
		logger.Debug("HTTP listener shutdown signal received")
		// The cancelled ctx would abort the shutdown immediately.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		_ = s.Stop(shutdownCtx)
		<-errChan
		return nil
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listener: %w", err)
	}
}

// Stop shuts the server down gracefully. Safe to call more than once.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("http listener shutdown: %w", err)
			logger.Warn("HTTP graceful stop timed out, forcing", logger.Err(err))
			_ = s.server.Close()
		} else {
			logger.Info("HTTP listener stopped", logger.Listener(s.Name()))
		}
	})
	return shutdownErr
}
