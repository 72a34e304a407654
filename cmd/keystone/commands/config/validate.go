package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/keystone/internal/cli/output"
	"github.com/marmos91/keystone/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate the Keystone configuration file.

Checks for syntax errors, missing required fields, and invalid values.

Examples:
  # Validate default config
  keystone config validate

  # Validate specific config file
  keystone config validate --config /etc/keystone/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	displayPath := configPath
	if displayPath == "" {
		displayPath = config.GetDefaultConfigPath()
	}

	out := cmd.OutOrStdout()
	p := output.NewPrinter(out, output.FormatTable, false)
	_, _ = fmt.Fprintf(out, "Configuration file: %s\n", displayPath)
	p.Success("Validation: OK")

	for _, w := range warnings(cfg) {
		p.Warning("Warning: " + w)
	}

	threads := "one per CPU"
	if cfg.Server.Threads > 0 {
		threads = fmt.Sprint(cfg.Server.Threads)
	}

	summary := output.NewTableData("Setting", "Value")
	summary.AddRow("server.address", cfg.Server.Address)
	summary.AddRow("server.threads", threads)
	summary.AddRow("server.shutdown_timeout", cfg.Server.ShutdownTimeout.String())
	summary.AddRow("server.accept_policy", cfg.Server.AcceptPolicy)
	summary.AddRow("logging.level", cfg.Logging.Level)
	if cfg.Metrics.Enabled {
		summary.AddRow("metrics.address", cfg.Metrics.Address)
	}
	_, _ = fmt.Fprintln(out)
	return p.Print(summary)
}

// warnings lists settings that are valid but probably unintended.
func warnings(cfg *config.Config) []string {
	var w []string
	if cfg.Server.ShutdownTimeout == 0 {
		w = append(w, "server.shutdown_timeout is 0, shutdown waits for every connection")
	}
	p := cfg.Server.Protocol
	if p.ReadTimeout == 0 || p.IdleTimeout == 0 {
		w = append(w, "a zero read or idle timeout lets idle clients keep connections open forever")
	}
	if cfg.Telemetry.Profiling.Enabled && !cfg.Telemetry.Enabled {
		w = append(w, "profiling is enabled while tracing is not")
	}
	return w
}
