package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/roster/internal/config"
	"github.com/aretw0/roster/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster tracks the live client sessions of a server process",
	Long: `Roster accepts client connections, keeps every live session in a process-wide
registry and exposes that registry through an admin API, Prometheus metrics,
MCP tools and an optional Redis presence mirror.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "roster.yaml", "Configuration file (YAML, JSON or TOML)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("admin", "", "Admin API address (overrides config)")
}

// loadConfig reads the configuration and applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	return cfg, nil
}

func newLogger(cfg config.Config) (*slog.Logger, error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return logging.NewJSON(level), nil
	}
	return logging.New(level), nil
}
