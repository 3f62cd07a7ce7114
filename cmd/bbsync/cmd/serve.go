package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ssargent/bbsync/pkg/api"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the bbsync REST API server over the device image. Every route
under /api/v1 requires the X-API-Key header; /metrics is open for scraping.

Examples:
  bbsync serve
  bbsync serve --port 9000 --api-key mysecretkey`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := container.Config()
		serverConfig := api.ServerConfig{
			Port:   cfg.Server.Port,
			Bind:   cfg.Server.Bind,
			APIKey: cfg.Server.APIKey,
		}
		if cmd.Flags().Changed("port") {
			serverConfig.Port, _ = cmd.Flags().GetInt("port")
		}
		if cmd.Flags().Changed("bind") {
			serverConfig.Bind, _ = cmd.Flags().GetString("bind")
		}
		if cmd.Flags().Changed("api-key") {
			serverConfig.APIKey, _ = cmd.Flags().GetString("api-key")
		}
		if serverConfig.APIKey == "" {
			return errors.New("no API key configured (run 'bbsync init' or pass --api-key)")
		}

		dev, err := container.Device()
		if err != nil {
			return err
		}
		engine, err := container.Engine()
		if err != nil {
			return err
		}

		metrics := api.NewMetrics(prometheus.DefaultRegisterer)
		server := api.NewServer(dev, engine, serverConfig, metrics, container.Logger())

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cmd.Printf("Starting bbsync server on %s:%d\n", serverConfig.Bind, serverConfig.Port)
		cmd.Printf("Metrics available at: http://%s:%d/metrics\n", serverConfig.Bind, serverConfig.Port)
		return api.StartServer(ctx, server)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	serveCmd.Flags().String("bind", "127.0.0.1", "Address to bind server to")
	serveCmd.Flags().String("api-key", "", "API key for client authentication")
}
