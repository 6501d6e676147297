package cmd

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/database"
	"github.com/dbsmedya/lmsarchive/internal/lock"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the history database",
	Long: `Validate checks the configuration file without touching the browser.

Checks performed:
  - Configuration syntax and required fields
  - Selectors, processing limits and audit format
  - Per-job listing URL, max_records and excluded_ids
  - History database connectivity and job locks (when history is enabled)

Example:
  lmsarchive validate --config lmsarchive.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cmd.Printf("\n=== Configuration Validation ===\n")
	cmd.Printf("Config file: %s\n", configFile)
	cmd.Printf("Jobs found: %d\n\n", len(cfg.Jobs))

	if err := cfg.Validate(); err != nil {
		if verrs, ok := err.(config.ValidationErrors); ok {
			for _, e := range verrs {
				cmd.Printf("❌ %s\n", e.Error())
			}
		} else {
			cmd.Printf("❌ %v\n", err)
		}
		return fmt.Errorf("validation failed")
	}
	cmd.Printf("✅ Configuration is valid\n")

	if !cfg.History.Enabled {
		cmd.Printf("History database: disabled\n")
		cmd.Println("\n=== Validation Complete ===")
		return nil
	}

	ctx := context.Background()
	dbManager := database.NewManager(&cfg.History)
	if err := dbManager.Connect(ctx); err != nil {
		cmd.Printf("❌ History database: %v\n", err)
		return fmt.Errorf("validation failed")
	}
	defer dbManager.Close()
	cmd.Printf("✅ History database reachable (%s:%d/%s)\n", cfg.History.Host, cfg.History.Port, cfg.History.Database)

	jobNames := cfg.ListJobs()
	sort.Strings(jobNames)
	for _, name := range jobNames {
		running, err := lock.IsJobRunning(ctx, dbManager.DB, name)
		if err != nil {
			cmd.Printf("❌ Job %s: %v\n", name, err)
			continue
		}
		if running {
			cmd.Printf("⚠️  Job %s is currently running on another instance\n", name)
		}
	}

	cmd.Println("\n=== Validation Complete ===")
	return nil
}
