package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
	"github.com/dbsmedya/lmsarchive/internal/browser"
	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/control"
	"github.com/dbsmedya/lmsarchive/internal/database"
	"github.com/dbsmedya/lmsarchive/internal/history"
	"github.com/dbsmedya/lmsarchive/internal/lock"
	"github.com/dbsmedya/lmsarchive/internal/logger"
	"github.com/dbsmedya/lmsarchive/internal/report"
)

// runOptions holds the flags shared by run and dry-run.
type runOptions struct {
	job        string
	dryRun     bool
	maxRecords int
	exclude    string
	controlDir string
	output     string
	format     string
	force      bool
	noColor    bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Archive courses from the listing, one at a time",
	Long: `Run walks the configured course listing and archives eligible courses
until the safety cap is reached, nothing eligible is left, or the operator
stops the run.

Operator control:
  - Ctrl-C or SIGTERM stops after the current course (twice to abort)
  - <control-dir>/pause pauses while it exists
  - <control-dir>/stop stops at the next checkpoint

Example:
  lmsarchive run --config lmsarchive.yaml --job spring_cleanup --max-records 20`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return executeRun(cmd, runOpts)
	},
}

func init() {
	addRunFlags(runCmd, &runOpts)
	runCmd.Flags().BoolVar(&runOpts.dryRun, "dry-run", false,
		"Scan and report without archiving anything")

	rootCmd.AddCommand(runCmd)
}

func addRunFlags(cmd *cobra.Command, opts *runOptions) {
	cmd.Flags().StringVarP(&opts.job, "job", "j", "",
		"Job name from configuration file (required)")
	_ = cmd.MarkFlagRequired("job")

	cmd.Flags().IntVar(&opts.maxRecords, "max-records", 0,
		fmt.Sprintf("Safety cap for this run, 1-%d (default: job setting or %d)", config.MaxRecordsLimit, archiver.DefaultMaxRecords))
	cmd.Flags().StringVar(&opts.exclude, "exclude", "",
		"Comma-separated course ids to skip, added to the job's excluded_ids")
	cmd.Flags().StringVar(&opts.controlDir, "control-dir", "",
		"Directory watched for pause and stop files")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "",
		"Audit file path (default: <audit.dir>/<generated name>)")
	cmd.Flags().StringVar(&opts.format, "format", "",
		"Audit file format (csv, json, yaml)")
	cmd.Flags().BoolVar(&opts.force, "force", false,
		"Run even if the job lock cannot be acquired (use with caution)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false,
		"Disable colored output")
}

// resolveMaxRecords picks the cap from the flag, then the job, then the default.
func resolveMaxRecords(flagValue int, job *config.JobConfig) (int, error) {
	limit := archiver.DefaultMaxRecords
	switch {
	case flagValue != 0:
		limit = flagValue
	case job != nil && job.MaxRecords > 0:
		limit = job.MaxRecords
	}
	if limit < 1 || limit > config.MaxRecordsLimit {
		return 0, fmt.Errorf("max records must be between 1 and %d, got %d", config.MaxRecordsLimit, limit)
	}
	return limit, nil
}

// buildRunInput merges job and flag settings into the runner input.
// Pause, Stop and OnLog are wired by the caller.
func buildRunInput(opts runOptions, job *config.JobConfig) (archiver.RunInput, error) {
	limit, err := resolveMaxRecords(opts.maxRecords, job)
	if err != nil {
		return archiver.RunInput{}, err
	}

	excluded := append([]string{}, job.ExcludedIDs...)
	excluded = append(excluded, config.ParseIDList(opts.exclude)...)

	return archiver.RunInput{
		JobName:     opts.job,
		ExcludedIDs: excluded,
		DryRun:      opts.dryRun || job.DryRun,
		MaxRecords:  limit,
	}, nil
}

// streamsAuditLines reports whether audit entries are echoed to the
// terminal. When zap already writes to stdout or stderr they would show twice.
func streamsAuditLines(logging config.LoggingConfig) bool {
	switch logging.Output {
	case "", "stdout", "stderr":
		return false
	default:
		return true
	}
}

// auditPath returns where the audit file for rep is written.
func auditPath(opts runOptions, cfg *config.Config, rep *archiver.Report, format string) string {
	if opts.output != "" {
		return opts.output
	}
	return filepath.Join(cfg.Audit.Dir, report.FileName(rep, format))
}

func executeRun(cmd *cobra.Command, opts runOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if opts.controlDir != "" {
		cfg.Control.Dir = opts.controlDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	job, err := cfg.GetJob(opts.job)
	if err != nil {
		return err
	}

	input, err := buildRunInput(opts, job)
	if err != nil {
		return err
	}

	format := opts.format
	if format == "" {
		format = cfg.Audit.Format
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	out := cmd.OutOrStdout()
	printer := report.NewPrinter(out, opts.noColor)

	controls := &control.Controls{}
	ctx, stopSignals := control.HandleSignals(context.Background(), &controls.Stop, func(sig os.Signal) {
		log.Warnw("Received shutdown signal - stopping after the current course", "signal", sig.String())
	})
	defer stopSignals()

	if cfg.Control.Dir != "" {
		watcher, err := control.NewDirWatcher(cfg.Control.Dir, controls, log)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = watcher.Close() }()
		fmt.Fprintf(out, "Control directory: %s (touch %q to pause, %q to stop)\n",
			watcher.Dir(), control.PauseFile, control.StopFile)
	}

	input.Pause = controls.Pause.IsSet
	input.Stop = controls.Stop.IsSet
	if streamsAuditLines(cfg.Logging) {
		input.OnLog = func(entry archiver.LogEntry) {
			fmt.Fprintln(out, printer.LogLine(entry))
		}
	}

	var (
		db    *sql.DB
		store *history.Store
	)
	if cfg.History.Enabled {
		dbManager := database.NewManager(&cfg.History)
		if err := dbManager.Connect(ctx); err != nil {
			return err
		}
		defer dbManager.Close()

		db = dbManager.DB
		store, err = history.NewStore(db, log)
		if err != nil {
			return err
		}
		if err := store.InitializeTables(ctx); err != nil {
			return err
		}
	}

	processing := cfg.ApplyJobOverrides(opts.job, sleepSeconds, pollIntervalSeconds)

	var rep *archiver.Report
	execute := func() error {
		// The browser session outlives a second Ctrl-C so an in-flight save
		// is never torn down.
		session, err := browser.Connect(context.WithoutCancel(ctx), cfg, cfg.EffectiveListingURL(job), log)
		if err != nil {
			return fmt.Errorf("failed to attach to browser: %w", err)
		}
		defer func() { _ = session.Close() }()

		runner := archiver.NewRunner(session, archiver.OptionsFromConfig(cfg.Listing, processing), log)
		var runErr error
		rep, runErr = runner.Run(ctx, input)
		return runErr
	}

	switch {
	case db == nil:
		err = execute()
	case opts.force:
		log.Warnw("Skipping job lock acquisition (--force flag used)", "job", opts.job)
		err = execute()
	default:
		err = lock.WithJobLock(ctx, db, opts.job, execute)
		if errors.Is(err, lock.ErrLockHeld) {
			return fmt.Errorf("job '%s' is already running on another instance (use --force to override)", opts.job)
		}
	}

	if rep == nil {
		return err
	}
	return finishRun(context.WithoutCancel(ctx), out, printer, opts, cfg, store, rep, format, err)
}

// finishRun exports and records a report, prints the summary and turns
// the outcome into the command's error.
func finishRun(ctx context.Context, out io.Writer, printer *report.Printer, opts runOptions,
	cfg *config.Config, store *history.Store, rep *archiver.Report, format string, runErr error) error {
	var errs []error
	if runErr != nil {
		errs = append(errs, fmt.Errorf("run ended early: %w", runErr))
	}

	path := auditPath(opts, cfg, rep, format)
	if err := report.WriteFile(path, rep, format); err != nil {
		errs = append(errs, err)
	} else {
		fmt.Fprintf(out, "Audit written to %s\n", path)
	}

	if store != nil {
		if err := store.SaveReport(ctx, rep); err != nil {
			errs = append(errs, err)
		}
	}

	printer.Summary(rep)

	if rep.ErrorCount > 0 {
		errs = append(errs, fmt.Errorf("run recorded %d error(s)", rep.ErrorCount))
	}
	return errors.Join(errs...)
}
