package config

import (
	"errors"
	"strings"
	"testing"
)

func TestValidate_DefaultConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}

func TestValidate_BindAddresses(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"127.0.0.1:8080", true},
		{"localhost:8082", true},
		{"0.0.0.0:0", true},
		{"[::1]:8080", true},
		{"not-an-address", false},
		{"127.0.0.1", false},
		{"127.0.0.1:99999", false},
		{":", false},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.HTTP.BindAddr = tt.addr
			err := Validate(cfg)
			if tt.valid && err != nil {
				t.Errorf("Expected %q to be valid, got %v", tt.addr, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("Expected ErrInvalidAddress for %q, got %v", tt.addr, err)
			}
		})
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "VERBOSE"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
	if errors.Is(err, ErrInvalidAddress) {
		t.Error("Log level error must not be reported as an address error")
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_SegmentSizeTooSmall(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.WAL.SegmentSize = 100
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for tiny segment size")
	}
}

func TestValidateBindAddr(t *testing.T) {
	if err := ValidateBindAddr("grpc.bind_addr", "127.0.0.1:0"); err != nil {
		t.Errorf("Expected loopback wildcard port to be valid, got %v", err)
	}
	err := ValidateBindAddr("grpc.bind_addr", "not-an-address")
	if !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("Expected ErrInvalidAddress, got %v", err)
	}
	if !strings.Contains(err.Error(), "grpc.bind_addr") {
		t.Errorf("Expected error to name the key, got %v", err)
	}
}
