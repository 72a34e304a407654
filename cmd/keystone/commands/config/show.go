package config

import (
	"github.com/spf13/cobra"

	"github.com/marmos91/keystone/internal/cli/output"
	"github.com/marmos91/keystone/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Examples:
  # Show as YAML
  keystone config show

  # Show as a flat key/value table
  keystone config show -o table

  # Show a specific config file as JSON
  keystone config show --config /etc/keystone/config.yaml -o json`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json|table)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}
	return output.NewPrinter(cmd.OutOrStdout(), format, false).Print(cfg)
}
