package config

import (
	"strings"
	"time"

	"github.com/marmos91/keystone/internal/bytesize"
)

// Defaults for the server section.
const (
	DefaultAddress        = "127.0.0.1:7878"
	DefaultMetricsAddress = "127.0.0.1:9090"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyServerDefaults(&cfg.Server)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	if cfg.Address == "" {
		cfg.Address = DefaultMetricsAddress
	}
}

// applyServerDefaults sets server and HTTP defaults. Threads stays 0, which
// the executor reads as one worker per CPU.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.AcceptPolicy == "" {
		cfg.AcceptPolicy = "fatal"
	}

	p := &cfg.Protocol
	if p.ReadTimeout == 0 {
		p.ReadTimeout = 30 * time.Second
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = 30 * time.Second
	}
	if p.IdleTimeout == 0 {
		p.IdleTimeout = 2 * time.Minute
	}
	if p.MaxHeaderBytes == 0 {
		p.MaxHeaderBytes = bytesize.MiB
	}
	if p.BufferSize == 0 {
		p.BufferSize = 4 * bytesize.KiB
	}
	if p.MaxBodyDrain == 0 {
		p.MaxBodyDrain = 256 * bytesize.KiB
	}
	if p.KeepAlive == nil {
		keepAlive := true
		p.KeepAlive = &keepAlive
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	// Local collectors rarely terminate TLS; a zero Insecure cannot be told
	// apart from an explicit false, so only the sample sets it.
	cfg.Telemetry.Insecure = true
	ApplyDefaults(cfg)
	return cfg
}
