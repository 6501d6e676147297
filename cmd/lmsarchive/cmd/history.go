package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/database"
	"github.com/dbsmedya/lmsarchive/internal/history"
	"github.com/dbsmedya/lmsarchive/internal/logger"
	"github.com/dbsmedya/lmsarchive/internal/report"
)

var (
	historyJob     string
	historyLimit   int
	historyRunID   string
	historyNoColor bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs of a job from the history database",
	Long: `History lists the latest recorded runs of a job, newest first. With
--run it prints the result rows of a single run instead.

Requires history.enabled in the configuration.

Example:
  lmsarchive history --config lmsarchive.yaml --job spring_cleanup --limit 5`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyJob, "job", "j", "",
		"Job name from configuration file (required)")
	_ = historyCmd.MarkFlagRequired("job")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10,
		"Number of runs to show")
	historyCmd.Flags().StringVar(&historyRunID, "run", "",
		"Show the result rows of this run id")
	historyCmd.Flags().BoolVar(&historyNoColor, "no-color", false,
		"Disable colored output")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !cfg.History.Enabled {
		return fmt.Errorf("history is disabled in %s", GetConfigFile())
	}
	if _, err := cfg.GetJob(historyJob); err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	dbManager := database.NewManager(&cfg.History)
	if err := dbManager.Connect(ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	store, err := history.NewStore(dbManager.DB, log)
	if err != nil {
		return err
	}

	if historyRunID != "" {
		rows, err := store.Results(ctx, historyRunID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			cmd.Printf("No results recorded for run %s\n", historyRunID)
			return nil
		}
		report.NewPrinter(cmd.OutOrStdout(), historyNoColor).Table(rows)
		return nil
	}

	runs, err := store.RecentRuns(ctx, historyJob, historyLimit)
	if err != nil {
		return err
	}
	printRuns(cmd, historyJob, runs)
	return nil
}

func printRuns(cmd *cobra.Command, jobName string, runs []history.RunSummary) {
	if len(runs) == 0 {
		cmd.Printf("No runs recorded for job %s\n", jobName)
		return
	}

	cmd.Printf("Recent runs of %s:\n\n", jobName)
	cmd.Printf("%-36s  %-19s  %-8s  %-9s  %9s  %6s\n", "RUN ID", "STARTED", "MODE", "STATE", "PROCESSED", "ERRORS")
	for _, r := range runs {
		cmd.Printf("%-36s  %-19s  %-8s  %-9s  %4d/%-4d  %6d\n",
			r.RunID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Mode, r.Lifecycle,
			r.Processed, r.MaxRecords, r.Errors)
	}
}
