package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
	"github.com/dbsmedya/lmsarchive/internal/config"
)

var listJobsCmd = &cobra.Command{
	Use:   "list-jobs",
	Short: "List all jobs defined in configuration",
	Long: `List-jobs displays all bulk archive jobs defined in the configuration
file along with their basic settings.

Example:
  lmsarchive list-jobs --config lmsarchive.yaml`,
	RunE: runListJobs,
}

func init() {
	rootCmd.AddCommand(listJobsCmd)
}

func runListJobs(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	jobNames := cfg.ListJobs()
	if len(jobNames) == 0 {
		cmd.Printf("No jobs defined in %s\n", configFile)
		return nil
	}

	// Sort job names for consistent output
	sort.Strings(jobNames)

	cmd.Printf("Jobs defined in %s:\n\n", configFile)

	for i, jobName := range jobNames {
		job, err := cfg.GetJob(jobName)
		if err != nil {
			return fmt.Errorf("failed to get job %q: %w", jobName, err)
		}

		cmd.Printf("%d. %s\n", i+1, jobName)
		if job.Description != "" {
			cmd.Printf("   Description:   %s\n", job.Description)
		}
		cmd.Printf("   Listing URL:   %s\n", cfg.EffectiveListingURL(job))

		maxRecords := job.MaxRecords
		if maxRecords == 0 {
			maxRecords = archiver.DefaultMaxRecords
		}
		cmd.Printf("   Max records:   %d\n", maxRecords)

		if len(job.ExcludedIDs) > 0 {
			cmd.Printf("   Excluded IDs:  %s\n", strings.Join(job.ExcludedIDs, ", "))
		} else {
			cmd.Printf("   Excluded IDs:  (none)\n")
		}

		if job.DryRun {
			cmd.Printf("   Mode:          dry-run only\n")
		}

		if job.Processing != nil {
			p := job.GetJobProcessing(cfg.Processing)
			cmd.Printf("   Processing:    Custom (sleep=%.1fs, max_stale_retries=%d)\n",
				p.SleepSeconds, p.MaxStaleRetries)
		}

		if i < len(jobNames)-1 {
			cmd.Println()
		}
	}

	cmd.Printf("\nTotal: %d job(s)\n", len(jobNames))
	return nil
}
