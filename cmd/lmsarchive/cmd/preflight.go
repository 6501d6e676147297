package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/browser"
	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/logger"
)

var preflightJob string

var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check the browser session and listing page",
	Long: `Preflight attaches to Chrome and opens the listing page without
changing anything, to confirm a run can start.

Checks performed:
  - Chrome debugger attach (or local launch)
  - Base URL (when browser.base_url is set)
  - Listing URL navigation
  - Page-size select and listing rows match the selectors

Example:
  lmsarchive preflight --config lmsarchive.yaml --job spring_cleanup`,
	RunE: runPreflight,
}

func init() {
	preflightCmd.Flags().StringVarP(&preflightJob, "job", "j", "",
		"Job whose listing URL is checked (default: listing.url)")

	rootCmd.AddCommand(preflightCmd)
}

func runPreflight(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var job *config.JobConfig
	if preflightJob != "" {
		if job, err = cfg.GetJob(preflightJob); err != nil {
			return err
		}
	}
	listingURL := cfg.EffectiveListingURL(job)
	if listingURL == "" {
		return fmt.Errorf("no listing URL configured (set listing.url or use --job)")
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	report, err := browser.Preflight(context.Background(), cfg, listingURL, log)

	cmd.Printf("\n=== Preflight ===\n")
	if report != nil {
		for _, res := range report.Results {
			switch {
			case res.Skipped:
				cmd.Printf("-  %-18s %s\n", res.Name, res.Detail)
			case res.OK:
				cmd.Printf("✅ %-18s %s\n", res.Name, res.Detail)
			default:
				cmd.Printf("❌ %-18s %s\n", res.Name, res.Detail)
			}
		}
	}
	if err != nil {
		return fmt.Errorf("preflight failed: %w", err)
	}

	cmd.Println("\n✅ Ready to run")
	return nil
}
