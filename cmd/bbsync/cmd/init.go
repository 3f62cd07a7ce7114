package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/config"
	"github.com/ssargent/bbsync/pkg/di"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration and create the device image",
	Long: `Write a default configuration with a generated API key, create the
state directory and create an empty device image.

Examples:
  bbsync init
  bbsync init --data-dir ./mydata --config ./bbsync.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")

		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}
		if config.ConfigExists(configPath) && !force {
			cmd.Printf("Configuration already exists at %s. Use --force to overwrite.\n", configPath)
			return nil
		}

		cfg, err := config.BootstrapConfig(configPath, dataDir)
		if err != nil {
			return err
		}
		if err := initializeImage(cfg); err != nil {
			return err
		}

		cmd.Printf("Configuration written to %s\n", configPath)
		cmd.Printf("Device image: %s\n", cfg.Device.ImagePath)
		cmd.Printf("State directory: %s\n", cfg.StateDir)
		cmd.Printf("API key: %s\n", cfg.Server.APIKey)
		return nil
	},
}

// initializeImage creates the state directory and the device image
func initializeImage(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.StateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	c := di.NewContainer(cfg, container.Logger())
	if _, err := c.Device(); err != nil {
		return err
	}
	return c.Close()
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("data-dir", "./data", "Data directory for the image and sync state")
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
}
