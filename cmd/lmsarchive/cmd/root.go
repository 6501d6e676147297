package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/config"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// CLI flags that override config file values
var (
	cfgFile             string
	logLevel            string
	logFormat           string
	debuggerAddress     string
	sleepSeconds        float64
	pollIntervalSeconds float64
)

var rootCmd = &cobra.Command{
	Use:   "lmsarchive",
	Short: "Resumable bulk archiver for LMS course listings",
	Long: `lmsarchive drives an LMS course listing through a browser session and
archives courses one at a time, with operator pause/stop, a dry-run mode,
an exclusion list and a per-run safety cap.

Features:
  - Attach to an already logged-in Chrome over the DevTools protocol
  - Pause, resume and stop through signals or a control directory
  - Dry-run scans that never change remote state
  - Audit export (csv, json, yaml) and optional MySQL run history`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "lmsarchive.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")

	// Browser overrides
	rootCmd.PersistentFlags().StringVar(&debuggerAddress, "debugger-address", "",
		"Override Chrome debugger address (host:port)")

	// Processing overrides
	rootCmd.PersistentFlags().Float64Var(&sleepSeconds, "sleep", 0,
		"Override sleep seconds between actions")
	rootCmd.PersistentFlags().Float64Var(&pollIntervalSeconds, "poll-interval", 0,
		"Override pause poll interval in seconds")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// GetCLIOverrides returns the CLI flag override values
func GetCLIOverrides() config.Overrides {
	return config.Overrides{
		LogLevel:            logLevel,
		LogFormat:           logFormat,
		DebuggerAddress:     debuggerAddress,
		SleepSeconds:        sleepSeconds,
		PollIntervalSeconds: pollIntervalSeconds,
	}
}

// loadConfig loads the config file and applies global CLI overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(GetCLIOverrides())
	return cfg, nil
}
