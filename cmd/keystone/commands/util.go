package commands

import (
	"fmt"
	"os"

	"github.com/marmos91/keystone/internal/logger"
	"github.com/marmos91/keystone/pkg/config"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// configSource describes where the configuration came from.
func configSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "defaults"
}

// loadConfig loads the configuration and, when it comes from a file,
// keeps watching it so log level and format follow edits.
func loadConfig(configFile string) (*config.Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  keystone init --config %s", configFile, configFile)
		}
	}

	path := configFile
	if path == "" && config.DefaultConfigExists() {
		path = config.GetDefaultConfigPath()
	}
	if path == "" {
		return config.Load("")
	}
	return config.Watch(path, config.ApplyLogging)
}
