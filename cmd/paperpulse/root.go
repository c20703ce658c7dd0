package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/paperpulse/internal/api"
	"github.com/jackzampolin/paperpulse/internal/config"
	"github.com/jackzampolin/paperpulse/internal/home"
	"github.com/jackzampolin/paperpulse/internal/svcctx"
	"github.com/jackzampolin/paperpulse/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
)

var rootCmd = &cobra.Command{
	Use:   "paperpulse",
	Short: "Daily arXiv digests matched to subscriber keywords",
	Long: `PaperPulse searches arXiv for recent papers matching each subscriber's
keywords, summarizes them with an LLM, and emails a daily digest.

It also extracts document structure from paper PDFs:
  - Section segmentation with reading time estimates
  - Figure, table and image detection from captions and page layout
  - Structured paper analysis backed by any configured LLM provider`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.paperpulse/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "paperpulse home directory (default: ~/.paperpulse)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or table",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "", "log level: debug, info, warn or error (default: log_level from config)",
	)

	// Load .env and set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load() // Ignore error if .env doesn't exist
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}

// getHome resolves the home directory from --home.
func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig reads configuration from --config, then the config file in
// --home, then the default search path.
func loadConfig() (*config.Manager, error) {
	path := cfgFile
	if path == "" && homeDir != "" {
		if h, err := home.New(homeDir); err == nil && h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// newLogger writes text logs to stderr so stdout stays parseable.
func newLogger(cfg *config.Config) *slog.Logger {
	level := logLevel
	if level == "" && cfg != nil {
		level = cfg.LogLevel
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadServices builds every service from configuration. Callers must
// Close the result.
func loadServices(cmd *cobra.Command) (*svcctx.Services, error) {
	mgr, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg := mgr.Get()
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	h, err := getHome()
	if err != nil {
		return nil, err
	}

	return svcctx.Build(cmd.Context(), svcctx.BuildConfig{
		Config:          cfg,
		Home:            h,
		Logger:          logger,
		AllowLocalFiles: true,
	})
}

// requireStore returns an error for commands that need a database.
func requireStore(s *svcctx.Services) error {
	if s.Store == nil {
		return fmt.Errorf("no store available: set store.driver and store.dsn in config")
	}
	return nil
}
