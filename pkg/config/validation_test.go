package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	if err := Validate(GetDefaultConfig()); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_ListenAddr(t *testing.T) {
	tests := []struct {
		addr  string
		valid bool
	}{
		{"127.0.0.1:7878", true},
		{"localhost:80", true},
		{":8080", true},
		{"[::1]:7878", true},
		{"localhost", false},
		{"127.0.0.1:", false},
		{"::1:80", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Server.Address = tt.addr

			err := Validate(cfg)
			if tt.valid && err != nil {
				t.Errorf("Expected %q to be valid, got: %v", tt.addr, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected %q to be rejected", tt.addr)
			}
		})
	}
}

func TestValidate_NegativeThreads(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Threads = -1

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for negative threads")
	}
	if !strings.Contains(err.Error(), "server.threads") {
		t.Errorf("Expected error to name server.threads, got: %v", err)
	}
}

func TestValidate_SampleRateRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.SampleRate = 1.5

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for sample rate above 1")
	}
}

func TestValidate_UnknownProfileType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Telemetry.Profiling.ProfileTypes = []string{"cpu", "heap"}

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for unknown profile type")
	}
}

func TestValidate_TinyBuffers(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.Protocol.BufferSize = 8

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for tiny buffer size")
	}
	if !strings.Contains(err.Error(), "buffer_size") {
		t.Errorf("Expected buffer_size error, got: %v", err)
	}

	cfg = GetDefaultConfig()
	cfg.Server.Protocol.MaxHeaderBytes = 100
	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for tiny header limit")
	}
}

func TestValidate_MetricsAddressClash(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = cfg.Server.Address

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error when metrics share the server address")
	}

	cfg.Metrics.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected disabled metrics to skip the clash check, got: %v", err)
	}
}
