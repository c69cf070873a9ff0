package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInitConfig(t *testing.T) {
	dir := isolate(t)

	path, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if path != filepath.Join(dir, "bufferdb", "config.yaml") {
		t.Errorf("Unexpected path %s", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}
	for _, section := range []string{"logging:", "grpc:", "http:", "wal:", DefaultGRPCBindAddr} {
		if !strings.Contains(string(content), section) {
			t.Errorf("Expected sample config to contain %q", section)
		}
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Sample config does not load: %v", err)
	}
	if cfg.HTTP.BindAddr != DefaultHTTPBindAddr {
		t.Errorf("Unexpected http bind %q", cfg.HTTP.BindAddr)
	}
}

func TestInitConfig_RefusesOverwrite(t *testing.T) {
	isolate(t)
	if _, err := InitConfig(false); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if _, err := InitConfig(false); err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if _, err := InitConfig(true); err != nil {
		t.Fatalf("Force overwrite failed: %v", err)
	}
}

func TestSchema(t *testing.T) {
	data, err := Schema()
	if err != nil {
		t.Fatalf("Schema failed: %v", err)
	}
	for _, key := range []string{`"bind_addr"`, `"db_dir"`, `"segment_size"`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected schema to mention %s", key)
		}
	}
}
