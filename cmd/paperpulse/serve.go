package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the PaperPulse server",
	Long: `Start the PaperPulse HTTP server.

The server reloads LLM providers when the config file changes and shuts
down cleanly on Ctrl+C or SIGTERM.

The server provides:
  - /health               - Basic server health check
  - /ready                - Readiness check (includes store status)
  - /api/parse-pdf        - Section and figure extraction
  - /api/papers/search    - Recent arXiv papers for a keyword
  - /api/digest/run       - Start a digest run

Examples:
  paperpulse serve                    # Start on the configured port
  paperpulse serve --port 3000        # Start on custom port
  paperpulse serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		logger := newLogger(cfg)
		slog.SetDefault(logger)

		h, err := getHome()
		if err != nil {
			return err
		}

		host, port := cfg.Server.Host, cfg.Server.Port
		if cmd.Flags().Changed("host") || host == "" {
			host = serveHost
		}
		if cmd.Flags().Changed("port") || port == "" {
			port = servePort
		}

		if mgr.ConfigFile() != "" {
			mgr.WatchConfig()
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			ConfigManager: mgr,
			Home:          h,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().StringVar(&servePort, "port", "8080", "Port to listen on")

	rootCmd.AddCommand(serveCmd)
}
