package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const sampleConfig = `# bufferdb configuration
#
# Every key can be overridden with an environment variable: prefix with
# BUFFERDB_ and replace dots with underscores, e.g. BUFFERDB_GRPC_BIND_ADDR.

# Database root. Defaults to $HOME/.bufferdb when unset.
# db_dir: /var/lib/bufferdb

logging:
  level: INFO      # DEBUG, INFO, WARN, ERROR
  format: text     # text, json
  output: stdout   # stdout, stderr or a file path

grpc:
  bind_addr: "%s"
  max_message_size: 4Mi
  request_timeout: 30s

http:
  bind_addr: "%s"
  read_timeout: 10s
  write_timeout: 10s
  idle_timeout: 60s
  max_body_size: 10Mi

executor:
  workers: 0       # 0 uses GOMAXPROCS
  queue_size: 0    # 0 is unbounded

wal:
  segment_size: 64Mi
  sync_on_write: true

metrics:
  enabled: false

telemetry:
  enabled: false
  endpoint: localhost:4317
  insecure: true
  sample_rate: 1.0
  profiling:
    enabled: false
    endpoint: http://localhost:4040

shutdown_timeout: 30s
`

// SampleConfig returns the commented sample configuration file.
func SampleConfig() string {
	return fmt.Sprintf(sampleConfig, DefaultGRPCBindAddr, DefaultHTTPBindAddr)
}

// InitConfig writes the sample config to the default location.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the sample config to path. An existing file is
// only replaced when force is set.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(SampleConfig()), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
