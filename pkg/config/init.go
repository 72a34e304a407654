package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
)

// sampleTemplate renders a commented configuration file from a Config.
var sampleTemplate = template.Must(template.New("config").Parse(`# Keystone Configuration File
#
# Every value can be overridden by an environment variable named after its
# key path, e.g. KEYSTONE_SERVER_THREADS=4 or KEYSTONE_LOGGING_LEVEL=DEBUG.

logging:
  # DEBUG, INFO, WARN or ERROR. Changes are picked up without a restart.
  level: {{ .Logging.Level }}
  # text or json
  format: {{ .Logging.Format }}
  # stdout, stderr or a file path
  output: {{ .Logging.Output }}

telemetry:
  enabled: {{ .Telemetry.Enabled }}
  endpoint: {{ .Telemetry.Endpoint }}
  insecure: {{ .Telemetry.Insecure }}
  sample_rate: {{ .Telemetry.SampleRate }}
  profiling:
    enabled: {{ .Telemetry.Profiling.Enabled }}
    endpoint: {{ .Telemetry.Profiling.Endpoint }}
    profile_types:
{{- range .Telemetry.Profiling.ProfileTypes }}
      - {{ . }}
{{- end }}

metrics:
  # Serves /metrics from a second listener on the server's executor.
  enabled: {{ .Metrics.Enabled }}
  address: "{{ .Metrics.Address }}"

server:
  address: "{{ .Server.Address }}"
  # Executor workers, 0 means one per CPU.
  threads: {{ .Server.Threads }}
  shutdown_timeout: {{ .Server.ShutdownTimeout }}
  # fatal or retry
  accept_policy: {{ .Server.AcceptPolicy }}
  protocol:
    read_timeout: {{ .Server.Protocol.ReadTimeout }}
    write_timeout: {{ .Server.Protocol.WriteTimeout }}
    idle_timeout: {{ .Server.Protocol.IdleTimeout }}
    max_header_bytes: {{ .Server.Protocol.MaxHeaderBytes }}
    buffer_size: {{ .Server.Protocol.BufferSize }}
    max_body_drain: {{ .Server.Protocol.MaxBodyDrain }}
    keep_alive: {{ .Server.Protocol.KeepAliveEnabled }}
`))

// InitConfig writes a sample configuration file to the default location.
// It returns the path written. Without force an existing file is an error.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes a sample configuration file to path.
func InitConfigToPath(path string, force bool) error {
	return WriteSampleConfig(GetDefaultConfig(), path, force)
}

// WriteSampleConfig writes cfg as a commented YAML file.
func WriteSampleConfig(cfg *Config, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	data, err := RenderSample(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// RenderSample renders cfg as the commented sample file.
func RenderSample(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := sampleTemplate.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("failed to render config: %w", err)
	}
	return buf.Bytes(), nil
}
