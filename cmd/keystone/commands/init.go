package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/keystone/internal/cli/output"
	"github.com/marmos91/keystone/internal/cli/prompt"
	"github.com/marmos91/keystone/pkg/config"
)

var (
	initForce       bool
	initInteractive bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Create a commented configuration file with default values.

Examples:
  # Write to $XDG_CONFIG_HOME/keystone/config.yaml
  keystone init

  # Answer a few questions instead of taking every default
  keystone init --interactive

  # Write to a custom path, replacing an existing file
  keystone init --config ./keystone.yaml --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	initCmd.Flags().BoolVarP(&initInteractive, "interactive", "i", false, "prompt for the main settings")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := GetConfigFile()
	if path == "" {
		path = config.GetDefaultConfigPath()
	}

	cfg := config.GetDefaultConfig()
	force := initForce
	if initInteractive {
		if err := askConfig(cfg); err != nil {
			if prompt.IsAborted(err) {
				return fmt.Errorf("init aborted")
			}
			return err
		}
		if !force && config.DefaultConfigExists() && path == config.GetDefaultConfigPath() {
			ok, err := prompt.Confirm("A configuration file already exists. Overwrite it?", false)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("init aborted")
			}
			force = true
		}
	}

	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.WriteSampleConfig(cfg, path, force); err != nil {
		return err
	}

	p := output.NewPrinter(cmd.OutOrStdout(), output.FormatTable, true)
	p.Success(fmt.Sprintf("Configuration file created at: %s", path))
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nNext steps:\n"+
		"  1. Edit the configuration file to customize your setup\n"+
		"  2. Start the server with: keystone start --config %s\n", path)
	return nil
}

// askConfig prompts for the settings most installs change.
func askConfig(cfg *config.Config) error {
	var err error
	s := &cfg.Server

	if s.Address, err = prompt.InputAddress("Listen address", s.Address); err != nil {
		return err
	}
	if s.Threads, err = prompt.InputInt("Worker threads (0 = one per CPU)", s.Threads, 0); err != nil {
		return err
	}
	if s.ShutdownTimeout, err = prompt.InputDuration("Shutdown timeout", s.ShutdownTimeout); err != nil {
		return err
	}
	if s.AcceptPolicy, err = prompt.Select("Accept error policy", []prompt.SelectOption{
		{Label: "fatal", Value: "fatal", Description: "Stop the server on any accept error"},
		{Label: "retry", Value: "retry", Description: "Retry descriptor exhaustion and transient errors with backoff"},
	}, s.AcceptPolicy); err != nil {
		return err
	}
	if s.Protocol.MaxHeaderBytes, err = prompt.InputByteSize("Max header bytes", s.Protocol.MaxHeaderBytes); err != nil {
		return err
	}

	if cfg.Logging.Level, err = prompt.SelectString("Log level", []string{"DEBUG", "INFO", "WARN", "ERROR"}, cfg.Logging.Level); err != nil {
		return err
	}
	if cfg.Logging.Format, err = prompt.SelectString("Log format", []string{"text", "json"}, cfg.Logging.Format); err != nil {
		return err
	}

	if cfg.Metrics.Enabled, err = prompt.Confirm("Expose Prometheus metrics?", false); err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Address, err = prompt.InputAddress("Metrics address", cfg.Metrics.Address); err != nil {
			return err
		}
	}

	if cfg.Telemetry.Enabled, err = prompt.Confirm("Export OpenTelemetry traces?", false); err != nil {
		return err
	}
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.Endpoint, err = prompt.Input("OTLP endpoint", cfg.Telemetry.Endpoint); err != nil {
			return err
		}
	}
	return nil
}
