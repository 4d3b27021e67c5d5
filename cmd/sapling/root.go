package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/sapling/internal/cli"
	"github.com/aretw0/sapling/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sapling",
	Short: "Sapling grows decision trees one node at a time",
	Long: `Sapling loads decision tree models, animates their construction and
replays the path a text takes through them to its label.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Path to the sapling configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error, off); overrides the config file")
}

// loadConfig reads the configuration named by --config and builds the logger.
// Any failure is fatal.
func loadConfig(cmd *cobra.Command) (config.Config, *slog.Logger) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, cli.NewLogger(cfg.LogLevel)
}
