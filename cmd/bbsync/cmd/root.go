package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/config"
	"github.com/ssargent/bbsync/pkg/di"
	"github.com/ssargent/bbsync/pkg/logging"
)

var container *di.Container

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "bbsync",
	Short: "bbsync - Blackberry database record tools",
	Long: `bbsync parses and builds Blackberry device database records, keeps a
simulated device image, and runs incremental sync passes against it.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		log, err := cfg.Logger()
		if err != nil {
			return err
		}
		logging.SetDefault(log)
		container = di.NewContainer(cfg, log)
		return nil
	},
}

// loadConfig reads the config file when there is one and applies the
// global flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.Flags().Changed("image") {
		cfg.Device.ImagePath, _ = cmd.Flags().GetString("image")
	}
	if cmd.Flags().Changed("state-dir") {
		cfg.StateDir, _ = cmd.Flags().GetString("state-dir")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Logging.Level, _ = cmd.Flags().GetString("log-level")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := execute(os.Args[1:], os.Stdout); err != nil {
		os.Exit(1)
	}
}

func execute(args []string, out io.Writer) error {
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	err := rootCmd.Execute()
	if container != nil {
		if cerr := container.Close(); cerr != nil && err == nil {
			err = cerr
		}
		container = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: ~/.config/bbsync/config.yaml)")
	rootCmd.PersistentFlags().String("image", "", "Device image directory; empty keeps the device in memory")
	rootCmd.PersistentFlags().String("state-dir", "", "Directory for sync cache and idmap files")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}
