package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/marmos91/keystone/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "KEYSTONE"

// Config represents the Keystone configuration.
//
// This structure captures the static configuration of a Keystone process:
//   - Logging configuration
//   - Telemetry/tracing and profiling configuration
//   - Metrics endpoint
//   - Server settings (listen address, workers, shutdown, HTTP limits)
//
// Configuration sources (in order of precedence):
//  1. Environment variables (KEYSTONE_*)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
type Config struct {
	// Logging selects level, format and destination of log lines
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry configures span export and continuous profiling
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics endpoint configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Server configures the HTTP server
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the lowest level written. Case-insensitive; stored uppercase.
	// Valid values: DEBUG, INFO, WARN, ERROR
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format is text (colored on a terminal) or json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is stdout, stderr, or a file path opened for append
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, one span per connection and one per request are exported to
// an OTLP-compatible collector (e.g., Jaeger, Tempo, or any OTLP receiver).
type TelemetryConfig struct {
	// Enabled turns on span export. Off by default.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector, host:port.
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure dials the collector without TLS
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate is the fraction of root spans kept, 0.0 to 1.0.
	// Default: 1.0
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`

	// Profiling configures the Pyroscope agent
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
// Worker slots carry a "worker" pprof label, so profiles can be split per
// worker in the Pyroscope UI.
type ProfilingConfig struct {
	// Enabled starts the Pyroscope agent. Off by default.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the Pyroscope server URL.
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint"`

	// ProfileTypes lists the profiles uploaded. The mutex and block
	// profiles are off unless named here.
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
// With Enabled false no registry exists and every recorder is nil.
//
// The endpoint is served by a second Keystone server that shares the
// executor of the main server.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and the endpoint are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the listen address of the metrics endpoint
	// Default: "127.0.0.1:9090"
	Address string `mapstructure:"address" validate:"omitempty,listen_addr" yaml:"address"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Address is the listen address, "host:port". The first address the
	// host resolves to is bound.
	// Default: "127.0.0.1:7878"
	Address string `mapstructure:"address" validate:"required,listen_addr" yaml:"address"`

	// Threads is the number of executor workers.
	// Default: 0 (one per CPU)
	Threads int `mapstructure:"threads" validate:"gte=0" yaml:"threads"`

	// ShutdownTimeout is the maximum time to wait for open connections after
	// a shutdown signal before they are closed.
	// Default: 30s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gte=0" yaml:"shutdown_timeout"`

	// AcceptPolicy selects what an accept error does.
	// Valid values: fatal (stop the server), retry (retry resource exhaustion
	// errors with backoff)
	// Default: fatal
	AcceptPolicy string `mapstructure:"accept_policy" validate:"omitempty,oneof=fatal retry" yaml:"accept_policy"`

	// Protocol holds HTTP/1.x limits and timeouts
	Protocol ProtocolConfig `mapstructure:"protocol" yaml:"protocol"`
}

// ProtocolConfig holds HTTP/1.x limits and timeouts.
type ProtocolConfig struct {
	// ReadTimeout bounds reading a request header.
	// Default: 30s
	ReadTimeout time.Duration `mapstructure:"read_timeout" validate:"gte=0" yaml:"read_timeout"`

	// WriteTimeout bounds writing a response.
	// Default: 30s
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gte=0" yaml:"write_timeout"`

	// IdleTimeout bounds the wait for the next request on a keep-alive
	// connection.
	// Default: 2m
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"gte=0" yaml:"idle_timeout"`

	// MaxHeaderBytes caps the request line plus headers.
	// Supports human-readable formats: "1MiB", "64KB"
	// Default: 1MiB
	MaxHeaderBytes bytesize.ByteSize `mapstructure:"max_header_bytes" yaml:"max_header_bytes"`

	// BufferSize is the size of the pooled read and write buffers.
	// Default: 4KiB
	BufferSize bytesize.ByteSize `mapstructure:"buffer_size" yaml:"buffer_size"`

	// MaxBodyDrain is how much unread request body is discarded to keep a
	// connection open; larger leftovers close it.
	// Default: 256KiB
	MaxBodyDrain bytesize.ByteSize `mapstructure:"max_body_drain" yaml:"max_body_drain"`

	// KeepAlive enables persistent connections.
	// Default: true
	KeepAlive *bool `mapstructure:"keep_alive" yaml:"keep_alive"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (KEYSTONE_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}
	return decode(v)
}

// decode unmarshals the current viper state, applies defaults and validates.
func decode(v *viper.Viper) (*Config, error) {
	// Environment variables only reach Unmarshal for keys viper knows of.
	bindEnv(v)

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

// MustLoad is Load for commands that need a file to exist. The error tells
// the user how to create one.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  keystone init\n\n"+
				"Or specify a custom config file:\n"+
				"  keystone <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  keystone init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as plain YAML, without the sample's comments.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
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

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the KEYSTONE_ prefix and underscores
	// Example: KEYSTONE_SERVER_THREADS=4
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/keystone/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// bindEnv registers every configuration key so that AutomaticEnv can
// override keys missing from the file.
func bindEnv(v *viper.Viper) {
	for _, key := range configKeys(reflect.TypeOf(Config{}), "") {
		_ = v.BindEnv(key)
	}
}

// configKeys lists the dotted mapstructure keys of the leaves of t.
func configKeys(t reflect.Type, prefix string) []string {
	var keys []string
	for i := range t.NumField() {
		f := t.Field(i)
		tag := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if tag == "" {
			continue
		}
		key := prefix + tag
		ft := f.Type
		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Time{}) {
			keys = append(keys, configKeys(ft, key+".")...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// readConfigFile reads the file viper points at. A missing file is not an
// error; found reports whether one was read.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks parses human-readable values: sizes such as "64KiB"
// through bytesize.ByteSize's UnmarshalText, durations such as "30s", and
// comma-separated lists from environment variables.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "keystone")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "keystone")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}

// KeepAliveEnabled reports whether persistent connections are on. Unset
// means on.
func (p ProtocolConfig) KeepAliveEnabled() bool {
	return p.KeepAlive == nil || *p.KeepAlive
}
