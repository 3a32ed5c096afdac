package config

import (
	"fmt"

	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Load and validate the depositsvc configuration file without starting the
server.

Examples:
  # Validate the default configuration
  depositsvc config validate

  # Validate a specific file
  depositsvc config validate --config /etc/depositsvc/config.yaml`,
	RunE: runConfigValidate,
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}

	fmt.Println("Configuration is valid.")
	fmt.Printf("  %d repositories configured\n", len(cfg.Repositories))
	return nil
}
