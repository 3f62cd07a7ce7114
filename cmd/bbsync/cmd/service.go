package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/config"
)

const (
	serviceName = "bbsync.service"
	unitPath    = "/etc/systemd/system/" + serviceName
)

// serviceCmd represents the service command
var serviceCmd = &cobra.Command{
	Use:   "service",
	Short: "Manage the bbsync API server as a systemd service",
}

// installServiceCmd represents the service install command
var installServiceCmd = &cobra.Command{
	Use:   "install",
	Short: "Install bbsync serve as a systemd service",
	Long: `Install "bbsync serve" as a systemd service. A configuration is
bootstrapped at --config when none exists.

Examples:
  sudo bbsync service install
  sudo bbsync service install --data-dir /var/lib/bbsync --user bbsync`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		user, _ := cmd.Flags().GetString("user")
		binary, _ := cmd.Flags().GetString("binary")
		startNow, _ := cmd.Flags().GetBool("start")
		configPath, _ := cmd.Flags().GetString("config")
		if configPath == "" {
			configPath = config.GetDefaultConfigPath()
		}

		if os.Geteuid() != 0 {
			return errors.New("service install requires root privileges (run with sudo)")
		}

		var cfg *config.Config
		var err error
		if config.ConfigExists(configPath) {
			cfg, err = config.LoadConfig(configPath)
		} else {
			cfg, err = config.BootstrapConfig(configPath, dataDir)
		}
		if err != nil {
			return err
		}

		if err := os.WriteFile(unitPath, []byte(systemdUnit(cfg, configPath, user, binary)), 0600); err != nil {
			return fmt.Errorf("failed to write unit file: %w", err)
		}
		if err := runSystemctlCommand("daemon-reload"); err != nil {
			return err
		}
		if err := runSystemctlCommand("enable", serviceName); err != nil {
			return err
		}
		if startNow {
			if err := runSystemctlCommand("start", serviceName); err != nil {
				return err
			}
		}

		cmd.Printf("Service: %s\n", serviceName)
		cmd.Printf("Config: %s\n", configPath)
		cmd.Printf("Data: %s\n", cfg.DataDir)
		cmd.Printf("To view logs: sudo journalctl -u %s -f\n", serviceName)
		return nil
	},
}

// uninstallServiceCmd represents the service uninstall command
var uninstallServiceCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Uninstall the bbsync service",
	RunE: func(cmd *cobra.Command, args []string) error {
		if os.Geteuid() != 0 {
			return errors.New("service uninstall requires root privileges (run with sudo)")
		}

		_ = runSystemctlCommand("stop", serviceName) // already stopped is fine
		if err := runSystemctlCommand("disable", serviceName); err != nil {
			cmd.Printf("Warning: could not disable service: %v\n", err)
		}
		if err := os.Remove(unitPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove unit file: %w", err)
		}
		if err := runSystemctlCommand("daemon-reload"); err != nil {
			return err
		}
		cmd.Printf("Service uninstalled. Configuration, image and sync state were kept.\n")
		return nil
	},
}

// systemctlCmd builds a service subcommand that forwards to systemctl
func systemctlCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSystemctlCommand(action, serviceName)
		},
	}
}

// logsCmd represents the service logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show bbsync service logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		follow, _ := cmd.Flags().GetBool("follow")
		lines, _ := cmd.Flags().GetInt("lines")
		return runCommand("journalctl", journalArgs(follow, lines)...)
	},
}

func journalArgs(follow bool, lines int) []string {
	args := []string{"-u", serviceName}
	if follow {
		args = append(args, "-f")
	}
	if lines > 0 {
		args = append(args, fmt.Sprintf("-n%d", lines))
	}
	return args
}

// systemdUnit renders the unit file running "bbsync serve"
func systemdUnit(cfg *config.Config, configPath, user, binary string) string {
	return fmt.Sprintf(`[Unit]
Description=bbsync API Server
After=network-online.target
Wants=network-online.target

[Service]
User=%s
Group=%s
ExecStart=%s serve --config %s
Restart=on-failure
NoNewPrivileges=true
UMask=0077
ReadWritePaths=%s
ReadWritePaths=%s

[Install]
WantedBy=multi-user.target
`, user, user, binary, configPath, cfg.DataDir, filepath.Dir(configPath))
}

// runSystemctlCommand runs a systemctl command
func runSystemctlCommand(args ...string) error {
	return runCommand("systemctl", args...)
}

// runCommand runs a system command and returns its error
func runCommand(command string, args ...string) error {
	c := exec.Command(command, args...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("%s %v: %w", command, args, err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serviceCmd)

	serviceCmd.AddCommand(installServiceCmd)
	serviceCmd.AddCommand(uninstallServiceCmd)
	serviceCmd.AddCommand(systemctlCmd("start", "Start the bbsync service"))
	serviceCmd.AddCommand(systemctlCmd("stop", "Stop the bbsync service"))
	serviceCmd.AddCommand(systemctlCmd("restart", "Restart the bbsync service"))
	serviceCmd.AddCommand(systemctlCmd("status", "Show bbsync service status"))
	serviceCmd.AddCommand(logsCmd)

	installServiceCmd.Flags().String("data-dir", "/var/lib/bbsync", "Data directory for the service")
	installServiceCmd.Flags().String("user", "bbsync", "User to run the service as")
	installServiceCmd.Flags().String("binary", "/usr/local/bin/bbsync", "Path of the installed bbsync binary")
	installServiceCmd.Flags().Bool("start", true, "Start the service after installation")

	logsCmd.Flags().BoolP("follow", "f", false, "Follow log output")
	logsCmd.Flags().IntP("lines", "n", 0, "Number of lines to show")
}
