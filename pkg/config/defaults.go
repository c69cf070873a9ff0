package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/marmos91/bufferdb/internal/bytesize"
)

const (
	DefaultGRPCBindAddr = "127.0.0.1:8082"
	DefaultHTTPBindAddr = "127.0.0.1:8080"
)

// ApplyDefaults fills zero-valued fields. Explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyGRPCDefaults(&cfg.GRPC)
	applyHTTPDefaults(&cfg.HTTP)
	applyExecutorDefaults(&cfg.Executor)
	applyWALDefaults(&cfg.WAL)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{"cpu", "alloc_space", "inuse_space", "goroutines"}
	}
}

func applyGRPCDefaults(cfg *GRPCConfig) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultGRPCBindAddr
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = 4 * bytesize.MiB
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
}

func applyHTTPDefaults(cfg *HTTPConfig) {
	if cfg.BindAddr == "" {
		cfg.BindAddr = DefaultHTTPBindAddr
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = 10 * bytesize.MiB
	}
}

func applyExecutorDefaults(cfg *ExecutorConfig) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
}

func applyWALDefaults(cfg *WALConfig) {
	if cfg.SegmentSize == 0 {
		cfg.SegmentSize = 64 * bytesize.MiB
	}
}

// GetDefaultConfig returns a fully defaulted configuration.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: TelemetryConfig{Insecure: true},
		WAL:       WALConfig{SyncOnWrite: true},
	}
	ApplyDefaults(cfg)
	return cfg
}
