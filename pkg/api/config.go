package api

import "time"

// Config configures the HTTP listener.
type Config struct {
	// Addr is the resolved TCP address to bind.
	Addr string

	// ReadTimeout bounds reading a whole request, body included.
	// Default: 10s
	ReadTimeout time.Duration

	// Default: 10s
	WriteTimeout time.Duration

	// Default: 60s
	IdleTimeout time.Duration

	// MaxBodySize caps request bodies; larger writes get 413.
	// Default: 10MiB
	MaxBodySize int64

	// ShutdownTimeout bounds the graceful stop.
	// Default: 30s
	ShutdownTimeout time.Duration

	// Version is reported by /ping and /health.
	Version string
}

// applyDefaults fills in zero values.
func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = 10 << 20
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}
