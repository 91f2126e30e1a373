package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/facetfs/internal/cli/prompt"
	"github.com/marmos91/facetfs/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample facetfs configuration file.

By default, the configuration file is created at $XDG_CONFIG_HOME/facetfs/config.yaml.
Use --config to specify a custom path.

Examples:
  # Initialize with default location
  facetfs init

  # Initialize with custom path
  facetfs init --config /etc/facetfs/config.yaml

  # Force overwrite existing config
  facetfs init --force`,
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

	if _, err := os.Stat(configPath); err == nil && !initForce {
		ok, err := prompt.Confirm(fmt.Sprintf("Configuration file %s already exists. Overwrite?", configPath), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := config.SaveConfig(config.GetDefaultConfig(), configPath); err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to set scanner.root")
	fmt.Println("  2. Index a tree with: facetfs index")
	fmt.Printf("  3. Or specify custom config: facetfs index --config %s\n", configPath)

	return nil
}
