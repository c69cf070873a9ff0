package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/bufferdb/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. BUFFERDB_DB_DIR.
const EnvPrefix = "BUFFERDB"

// Config is the static configuration of a bufferdb server.
//
// Sources, highest precedence first:
//  1. CLI flags
//  2. Environment variables (BUFFERDB_*)
//  3. Configuration file (YAML)
//  4. Defaults
type Config struct {
	// DBDir overrides the database root. Empty means $HOME/.bufferdb.
	DBDir string `mapstructure:"db_dir" yaml:"db_dir,omitempty" json:"db_dir,omitempty"`

	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	GRPC     GRPCConfig     `mapstructure:"grpc" yaml:"grpc" json:"grpc"`
	HTTP     HTTPConfig     `mapstructure:"http" yaml:"http" json:"http"`
	Executor ExecutorConfig `mapstructure:"executor" yaml:"executor" json:"executor"`
	WAL      WALConfig      `mapstructure:"wal" yaml:"wal" json:"wal"`

	// ShutdownTimeout bounds graceful listener shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level" json:"level"`
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format" json:"format"`

	// Output is stdout, stderr or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output" json:"output"`
}

// TelemetryConfig controls OpenTelemetry tracing and Pyroscope profiling.
type TelemetryConfig struct {
	Enabled    bool            `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint   string          `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	Insecure   bool            `mapstructure:"insecure" yaml:"insecure" json:"insecure"`
	SampleRate float64         `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate" json:"sample_rate"`
	Profiling  ProfilingConfig `mapstructure:"profiling" yaml:"profiling" json:"profiling"`
}

type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types" json:"profile_types"`
}

// MetricsConfig enables Prometheus collection. Metrics are served by the
// HTTP listener on /metrics.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
}

// GRPCConfig configures the RPC listener.
type GRPCConfig struct {
	BindAddr       string            `mapstructure:"bind_addr" validate:"required,hostname_port|tcp_addr" yaml:"bind_addr" json:"bind_addr"`
	MaxMessageSize bytesize.ByteSize `mapstructure:"max_message_size" validate:"gt=0" yaml:"max_message_size" json:"max_message_size"`
	RequestTimeout time.Duration     `mapstructure:"request_timeout" validate:"gt=0" yaml:"request_timeout" json:"request_timeout"`
}

// HTTPConfig configures the HTTP listener.
type HTTPConfig struct {
	BindAddr     string            `mapstructure:"bind_addr" validate:"required,hostname_port|tcp_addr" yaml:"bind_addr" json:"bind_addr"`
	ReadTimeout  time.Duration     `mapstructure:"read_timeout" yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration     `mapstructure:"write_timeout" yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration     `mapstructure:"idle_timeout" yaml:"idle_timeout" json:"idle_timeout"`
	MaxBodySize  bytesize.ByteSize `mapstructure:"max_body_size" validate:"gt=0" yaml:"max_body_size" json:"max_body_size"`
}

// ExecutorConfig sizes the shared query worker pool.
type ExecutorConfig struct {
	Workers int `mapstructure:"workers" validate:"gte=1" yaml:"workers" json:"workers"`

	// QueueSize caps tasks waiting for a worker; 0 means unbounded.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0" yaml:"queue_size" json:"queue_size"`
}

// WALConfig controls write-ahead log segments.
type WALConfig struct {
	SegmentSize bytesize.ByteSize `mapstructure:"segment_size" validate:"gte=4096" yaml:"segment_size" json:"segment_size"`
	SyncOnWrite bool              `mapstructure:"sync_on_write" yaml:"sync_on_write" json:"sync_on_write"`
}

// Load reads configuration from configPath (or the default location),
// the environment and defaults, then validates it. A missing file is not
// an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// BUFFERDB_BIND_ADDR predates the split into two listeners and still
	// addresses the HTTP one.
	_ = v.BindEnv("http.bind_addr", EnvPrefix+"_HTTP_BIND_ADDR", EnvPrefix+"_BIND_ADDR")

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		return
	}
	v.AddConfigPath(getConfigDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// setDefaults registers every key so that environment overrides reach
// Unmarshal even when no file mentions them.
func setDefaults(v *viper.Viper) {
	d := GetDefaultConfig()

	v.SetDefault("db_dir", "")
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("telemetry.profiling.enabled", d.Telemetry.Profiling.Enabled)
	v.SetDefault("telemetry.profiling.endpoint", d.Telemetry.Profiling.Endpoint)
	v.SetDefault("telemetry.profiling.profile_types", d.Telemetry.Profiling.ProfileTypes)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)

	v.SetDefault("grpc.bind_addr", d.GRPC.BindAddr)
	v.SetDefault("grpc.max_message_size", uint64(d.GRPC.MaxMessageSize))
	v.SetDefault("grpc.request_timeout", d.GRPC.RequestTimeout)

	v.SetDefault("http.bind_addr", d.HTTP.BindAddr)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.max_body_size", uint64(d.HTTP.MaxBodySize))

	v.SetDefault("executor.workers", d.Executor.Workers)
	v.SetDefault("executor.queue_size", d.Executor.QueueSize)

	v.SetDefault("wal.segment_size", uint64(d.WAL.SegmentSize))
	v.SetDefault("wal.sync_on_write", d.WAL.SyncOnWrite)
}

// readConfigFile reports whether a config file was read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook accepts "64Mi", "10MB" or plain numbers for ByteSize.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return bytesize.Parse(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		}
		return data, nil
	}
}

// durationDecodeHook accepts "30s" style strings or raw nanoseconds.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		}
		return data, nil
	}
}

// getConfigDir returns $XDG_CONFIG_HOME/bufferdb, ~/.config/bufferdb or ".".
func getConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bufferdb")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "bufferdb")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether the default config file exists.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}
