package cli

import (
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:   "igt",
	Short: "Intent Goat - adaptive visitor-intent engine",
	Long: `🐐 Intent Goat scores visitor intent from page interactions, reorders
content blocks as intent rises, and raises sales alerts.
Single Go binary, embedded SQLite.

Running without a subcommand starts the server (same as 'igt serve').`,
	SilenceUsage: true,
	RunE:         runServe, // Default action is to start server
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", getEnvOrDefault("IGT_DB_PATH", "./igt.db"), "database path")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", getEnvOrDefault("IGT_CONFIG", ""), "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", getEnvOrDefault("IGT_LOG_MODE", "production"), "log mode (development or production)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
