package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/keystone/internal/bytesize"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"

server:
  address: "0.0.0.0:8000"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.Address != "0.0.0.0:8000" {
		t.Errorf("Expected address '0.0.0.0:8000', got %q", cfg.Server.Address)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.Protocol.MaxHeaderBytes != bytesize.MiB {
		t.Errorf("Expected default max_header_bytes 1MiB, got %v", cfg.Server.Protocol.MaxHeaderBytes)
	}
	if !cfg.Server.Protocol.KeepAliveEnabled() {
		t.Error("Expected keep-alive to default to enabled")
	}
}

func TestLoad_HumanReadableValues(t *testing.T) {
	path := writeConfig(t, `
server:
  threads: 2
  shutdown_timeout: 5s
  accept_policy: retry
  protocol:
    read_timeout: 1m
    idle_timeout: 10s
    max_header_bytes: 64KiB
    buffer_size: 8192
    max_body_drain: 1MB
    keep_alive: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	p := cfg.Server.Protocol
	if cfg.Server.Threads != 2 {
		t.Errorf("Expected threads 2, got %d", cfg.Server.Threads)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if p.ReadTimeout != time.Minute || p.IdleTimeout != 10*time.Second {
		t.Errorf("Unexpected timeouts: read=%v idle=%v", p.ReadTimeout, p.IdleTimeout)
	}
	if p.MaxHeaderBytes != 64*bytesize.KiB {
		t.Errorf("Expected max_header_bytes 64KiB, got %v", p.MaxHeaderBytes)
	}
	if p.BufferSize != 8192 {
		t.Errorf("Expected buffer_size 8192, got %v", p.BufferSize)
	}
	if p.MaxBodyDrain != bytesize.MB {
		t.Errorf("Expected max_body_drain 1MB, got %v", p.MaxBodyDrain)
	}
	if p.KeepAliveEnabled() {
		t.Error("Expected keep-alive to be disabled")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  threads: 2
`)
	t.Setenv("KEYSTONE_SERVER_THREADS", "6")
	t.Setenv("KEYSTONE_SERVER_PROTOCOL_BUFFER_SIZE", "16KiB")
	t.Setenv("KEYSTONE_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Threads != 6 {
		t.Errorf("Expected env to override threads to 6, got %d", cfg.Server.Threads)
	}
	if cfg.Server.Protocol.BufferSize != 16*bytesize.KiB {
		t.Errorf("Expected env buffer_size 16KiB, got %v", cfg.Server.Protocol.BufferSize)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Expected env to enable metrics")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Expected defaults for a missing file, got error: %v", err)
	}
	if cfg.Server.Address != DefaultAddress {
		t.Errorf("Expected default address %q, got %q", DefaultAddress, cfg.Server.Address)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	path := writeConfig(t, `
server:
  accept_policy: sometimes
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Expected validation error for unknown accept policy")
	}
	if !strings.Contains(err.Error(), "server.acceptpolicy") {
		t.Errorf("Expected error to name the field, got: %v", err)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")

	if _, err := Load(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	_, err := MustLoad(path)
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
	if !strings.Contains(err.Error(), "keystone init --config") {
		t.Errorf("Expected init hint in error, got: %v", err)
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Server.Threads = 3
	cfg.Server.Protocol.MaxBodyDrain = 2 * bytesize.MiB

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Server.Threads != 3 {
		t.Errorf("Expected threads 3, got %d", loaded.Server.Threads)
	}
	if loaded.Server.Protocol.MaxBodyDrain != 2*bytesize.MiB {
		t.Errorf("Expected max_body_drain 2MiB, got %v", loaded.Server.Protocol.MaxBodyDrain)
	}
}

func TestConfigKeys(t *testing.T) {
	keys := configKeys(reflect.TypeOf(Config{}), "")

	want := []string{
		"logging.level",
		"telemetry.profiling.profile_types",
		"server.protocol.keep_alive",
	}
	for _, w := range want {
		found := false
		for _, k := range keys {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected key %q in %v", w, keys)
		}
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "keystone") {
		t.Errorf("Expected config dir under XDG_CONFIG_HOME, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "keystone", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: INFO
`)

	changes := make(chan *Config, 4)
	cfg, err := Watch(path, func(c *Config) { changes <- c })
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	if cfg.Logging.Level != "INFO" {
		t.Fatalf("Expected initial level INFO, got %q", cfg.Logging.Level)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: WARN\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changes:
			if c.Logging.Level == "WARN" {
				return
			}
		case <-deadline:
			t.Fatal("Expected a reload with level WARN")
		}
	}
}
