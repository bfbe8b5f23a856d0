package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"winsbygroup.com/licverify/internal/config"
	"winsbygroup.com/licverify/internal/logger"
	"winsbygroup.com/licverify/internal/version"
)

var rootCmd = &cobra.Command{
	Use:           "licverify",
	Short:         "License activation and device binding service",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// commands that load a config file re-initialise with its settings
		logger.Init(logger.Options{Level: rootArgs.logLevel, Pretty: rootArgs.logPretty})
	},
}

type rootFlags struct {
	configPath string
	logLevel   string
	logPretty  bool
}

var rootArgs rootFlags

func init() {
	rootCmd.PersistentFlags().StringVar(&rootArgs.configPath, "config", "config.yaml",
		"path to config file")
	rootCmd.PersistentFlags().StringVar(&rootArgs.logLevel, "log-level", "",
		"log level (trace, debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().BoolVar(&rootArgs.logPretty, "log-pretty", false,
		"human readable console logs instead of JSON")
}

// loadConfig reads the config file and applies the logging flags.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(rootArgs.configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if rootArgs.logLevel != "" {
		cfg.LogLevel = rootArgs.logLevel
	}
	if rootArgs.logPretty {
		cfg.LogPretty = true
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
