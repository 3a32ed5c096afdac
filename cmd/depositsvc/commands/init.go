package commands

import (
	"fmt"
	"os"

	"github.com/eclipse-pass/depositsvc/pkg/config"
	"github.com/spf13/cobra"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample depositsvc configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/depositsvc/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  depositsvc init

  # Initialize with custom path
  depositsvc init --config /etc/depositsvc/config.yaml

  # Force overwrite existing config
  depositsvc init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configPath := GetConfigFile()
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	if !initForce {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", configPath)
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to add repository configurations and a real operator secret")
	fmt.Println("  2. Start the server with: depositsvc start")
	fmt.Printf("  3. Or specify custom config: depositsvc start --config %s\n", configPath)
	fmt.Println("\nSecurity note:")
	fmt.Println("  The generated configuration has no admin_api.operator_secret set, so Validate")
	fmt.Println("  will reject it until one is provided. Generate a secure secret and set it")
	fmt.Println("  directly in the file, or via an environment variable override:")
	fmt.Println("    # Generates a 64-character hex string (32 bytes of entropy)")
	fmt.Println("    export DEPOSITSVC_ADMIN_API_OPERATOR_SECRET=$(openssl rand -hex 32)")

	return nil
}
