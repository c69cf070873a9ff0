package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/bufferdb/internal/logger"
	"github.com/marmos91/bufferdb/internal/telemetry"
	"github.com/marmos91/bufferdb/pkg/metrics"
	"github.com/marmos91/bufferdb/pkg/server"
	"github.com/spf13/cobra"

	// Import prometheus metrics to register init() functions
	_ "github.com/marmos91/bufferdb/pkg/metrics/prometheus"
)

var (
	startDBDir    string
	startGRPCAddr string
	startHTTPAddr string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the bufferdb server",
	Long: `Start the bufferdb server in the foreground.

Every database under the database directory is recovered from its WAL
before either listener binds. Once both the gRPC and HTTP listeners are
bound, "server ready" is printed to stdout. SIGINT or SIGTERM stops both
listeners gracefully.

Examples:
  # Start with the default configuration
  bufferdb start

  # Start with a custom database directory and ports
  bufferdb start --db-dir /var/lib/bufferdb --grpc-addr :8082 --http-addr :8086

  # Start with environment variable overrides
  BUFFERDB_LOGGING_LEVEL=DEBUG bufferdb start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startDBDir, "db-dir", "", "Database directory (default: $HOME/.bufferdb)")
	startCmd.Flags().StringVar(&startGRPCAddr, "grpc-addr", "", "gRPC bind address")
	startCmd.Flags().StringVar(&startHTTPAddr, "http-addr", "", "HTTP bind address")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("db-dir") {
		cfg.DBDir = startDBDir
	}
	if cmd.Flags().Changed("grpc-addr") {
		cfg.GRPC.BindAddr = startGRPCAddr
	}
	if cmd.Flags().Changed("http-addr") {
		cfg.HTTP.BindAddr = startHTTPAddr
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "bufferdb",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		// ctx is already cancelled on the signal path.
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "bufferdb",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}

	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		logger.Info("Metrics enabled", "path", "/metrics")
	} else {
		logger.Info("Metrics collection disabled")
	}

	srv := server.New(cfg, server.WithVersion(Version), server.WithReadyWriter(cmd.OutOrStdout()))
	if err := srv.Run(ctx); err != nil {
		logger.Error("Server error", logger.Err(err))
		return err
	}
	return nil
}
