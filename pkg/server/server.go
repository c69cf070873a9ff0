// Package server coordinates startup and the joint lifetime of the
// listeners: resolve the data directory, recover every database, build the
// query executor, resolve the listener addresses, then serve both
// listeners until both have stopped.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/pkg/api"
	"github.com/marmos91/bufferdb/pkg/config"
	"github.com/marmos91/bufferdb/pkg/datadir"
	"github.com/marmos91/bufferdb/pkg/db"
	"github.com/marmos91/bufferdb/pkg/lifecycle"
	"github.com/marmos91/bufferdb/pkg/query"
	"github.com/marmos91/bufferdb/pkg/recovery"
	"github.com/marmos91/bufferdb/pkg/registry"
	"github.com/marmos91/bufferdb/pkg/rpc"
	"github.com/marmos91/bufferdb/pkg/wal"
)

// Listeners is what a ListenerFactory receives once startup succeeded.
type Listeners struct {
	Registry *registry.Registry
	Executor *query.Executor
	RPCAddr  *net.TCPAddr
	HTTPAddr *net.TCPAddr
}

// ListenerFactory builds the RPC and HTTP listeners, in that order.
type ListenerFactory func(deps Listeners) (rpcListener, httpListener lifecycle.Listener)

// Server runs one bufferdb process.
type Server struct {
	cfg     *config.Config
	version string
	out     io.Writer

	resolveDir   func(override string) (string, error)
	recoverDB    recovery.RecoverFunc
	newExecutor  func(query.Config) (*query.Executor, error)
	newListeners ListenerFactory
}

// Option customises a Server.
type Option func(*Server)

// WithVersion sets the version reported by the HTTP listener.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithReadyWriter sets where the ready line is printed. Default: stdout.
func WithReadyWriter(w io.Writer) Option {
	return func(s *Server) { s.out = w }
}

// WithDirResolver replaces the data directory resolver.
func WithDirResolver(fn func(override string) (string, error)) Option {
	return func(s *Server) { s.resolveDir = fn }
}

// WithRecoverFunc replaces per-database recovery.
func WithRecoverFunc(fn recovery.RecoverFunc) Option {
	return func(s *Server) { s.recoverDB = fn }
}

// WithListenerFactory replaces the listener constructors.
func WithListenerFactory(fn ListenerFactory) Option {
	return func(s *Server) { s.newListeners = fn }
}

// New returns a server for cfg. cfg must already carry defaults.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		cfg:        cfg,
		version:    "dev",
		out:        os.Stdout,
		resolveDir: datadir.Resolve,
	}
	s.recoverDB = recovery.Restore(db.Options{WAL: wal.Options{
		SegmentSize: cfg.WAL.SegmentSize.Int64(),
		SyncOnWrite: cfg.WAL.SyncOnWrite,
	}})
	s.newExecutor = query.NewExecutor
	s.newListeners = s.defaultListeners
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the server and blocks until both listeners have stopped.
// Cancelling ctx stops the listeners gracefully. The returned error is a
// *StartupError for every failure.
func (s *Server) Run(ctx context.Context) error {
	// Address syntax is checked before anything touches the disk.
	if err := s.checkAddrs(); err != nil {
		return err
	}

	// 1. Directory
	root, err := s.resolveDir(s.cfg.DBDir)
	if err != nil {
		return startupError(KindDirectoryUnavailable, "resolve database directory", err)
	}
	logger.Info("Database directory", logger.Dir(root))

	// 2. Recovery
	reg, err := recovery.NewWithFunc(s.recoverDB).Run(ctx, root)
	if err != nil {
		return startupError(KindRecoveryFailure, "recover databases", err)
	}
	defer closeDatabases(reg)

	// 3. Executor
	exec, err := s.newExecutor(query.Config{
		Workers:   s.cfg.Executor.Workers,
		QueueSize: s.cfg.Executor.QueueSize,
	})
	if err != nil {
		return startupError(KindExecutorUnavailable, "create query executor", err)
	}
	defer exec.Release()

	// 4. Addresses
	rpcAddr, err := resolveAddr("grpc.bind_addr", s.cfg.GRPC.BindAddr)
	if err != nil {
		return err
	}
	httpAddr, err := resolveAddr("http.bind_addr", s.cfg.HTTP.BindAddr)
	if err != nil {
		return err
	}

	// 5. Listeners
	rpcL, httpL := s.newListeners(Listeners{
		Registry: reg,
		Executor: exec,
		RPCAddr:  rpcAddr,
		HTTPAddr: httpAddr,
	})
	err = lifecycle.Run(ctx, s.ready, rpcL, httpL)

	var bindErr *lifecycle.BindError
	var runErr *lifecycle.RuntimeError
	switch {
	case err == nil:
		logger.Info("Server stopped")
		return nil
	case errors.As(err, &bindErr):
		return startupError(KindAddressBindFailure, "start listeners", bindErr.Err)
	case errors.As(err, &runErr):
		return startupError(KindListenerRuntimeFailure, runErr.Listener+" listener", runErr.Err)
	default:
		return startupError(KindListenerRuntimeFailure, "serve", err)
	}
}

func (s *Server) checkAddrs() error {
	if err := config.ValidateBindAddr("grpc.bind_addr", s.cfg.GRPC.BindAddr); err != nil {
		return startupError(KindInvalidAddressConfiguration, "check listener addresses", err)
	}
	if err := config.ValidateBindAddr("http.bind_addr", s.cfg.HTTP.BindAddr); err != nil {
		return startupError(KindInvalidAddressConfiguration, "check listener addresses", err)
	}
	return nil
}

func resolveAddr(key, addr string) (*net.TCPAddr, error) {
	tcp, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, startupError(KindInvalidAddressConfiguration, "resolve "+key, err)
	}
	return tcp, nil
}

// ready prints the ready line once both listeners are bound.
func (s *Server) ready(ls []lifecycle.Listener) {
	args := make([]any, 0, 2*len(ls))
	line := "server ready"
	for _, l := range ls {
		addr := l.Addr().String()
		args = append(args, l.Name(), addr)
		line += fmt.Sprintf(" %s=%s", l.Name(), addr)
	}
	logger.Info("Server ready", args...)
	fmt.Fprintln(s.out, line)
}

func (s *Server) defaultListeners(deps Listeners) (lifecycle.Listener, lifecycle.Listener) {
	rpcL := rpc.NewServer(rpc.Config{
		Addr:            deps.RPCAddr.String(),
		MaxMessageSize:  int(s.cfg.GRPC.MaxMessageSize.Int64()),
		RequestTimeout:  s.cfg.GRPC.RequestTimeout,
		ShutdownTimeout: s.cfg.ShutdownTimeout,
	}, deps.Registry, deps.Executor)

	httpL := api.NewServer(api.Config{
		Addr:            deps.HTTPAddr.String(),
		ReadTimeout:     s.cfg.HTTP.ReadTimeout,
		WriteTimeout:    s.cfg.HTTP.WriteTimeout,
		IdleTimeout:     s.cfg.HTTP.IdleTimeout,
		MaxBodySize:     s.cfg.HTTP.MaxBodySize.Int64(),
		ShutdownTimeout: s.cfg.ShutdownTimeout,
		Version:         s.version,
	}, deps.Registry)

	return rpcL, httpL
}

// closeDatabases syncs and closes every WAL once the listeners are done.
func closeDatabases(reg *registry.Registry) {
	err := reg.Each(func(d *db.Db) error {
		if err := d.Sync(); err != nil {
			return fmt.Errorf("sync: %w", err)
		}
		if err := d.Close(); err != nil {
			return fmt.Errorf("close: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to close databases", logger.Err(err))
	}
}
