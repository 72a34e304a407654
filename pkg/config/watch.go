package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/keystone/internal/logger"
)

// Watch loads the configuration at path and reloads it whenever the file
// changes. onChange receives every reloaded configuration that validates;
// invalid edits are logged and skipped. Only settings that can change at
// runtime, such as the log level, should be applied by onChange.
func Watch(path string, onChange func(*Config)) (*Config, error) {
	v := viper.New()
	setupViper(v, path)
	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}
	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change", logger.Path(e.Name), logger.Err(err))
			return
		}
		logger.Info("Configuration reloaded", logger.Path(e.Name))
		onChange(next)
	})
	v.WatchConfig()
	return cfg, nil
}

// ApplyLogging applies the runtime-changeable logging settings.
func ApplyLogging(cfg *Config) {
	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
}
