// Package archiver implements the resumable bulk archive control loop.
package archiver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/logger"
)

const (
	// AuditSource labels every log entry produced by a run.
	AuditSource = "BulkArchive"

	// DefaultMaxRecords is used when neither the job nor the operator set a cap.
	DefaultMaxRecords = 5

	defaultPageSize           = "100"
	defaultPollInterval       = 400 * time.Millisecond
	defaultMaxStaleRetries    = 3
	defaultMaxListingFailures = 3
)

// ErrAlreadyRunning is returned when Run is called on a busy Runner.
var ErrAlreadyRunning = errors.New("runner is already running")

// Options tunes the control loop.
type Options struct {
	PageSize           string        // visible text of the rows-per-page option
	PollInterval       time.Duration // how often pause is re-checked
	Sleep              time.Duration // delay between actions
	MaxStaleRetries    int           // stale retries per record before it is recorded as an error
	MaxListingFailures int           // consecutive listing failures before the run stops
	Now                func() time.Time
}

// OptionsFromConfig builds runner options from the listing settings and the
// resolved processing settings of a job.
func OptionsFromConfig(listing config.ListingConfig, processing config.ProcessingConfig) Options {
	return Options{
		PageSize:           listing.PageSize,
		PollInterval:       processing.PollInterval(),
		Sleep:              processing.Sleep(),
		MaxStaleRetries:    processing.MaxStaleRetries,
		MaxListingFailures: processing.MaxListingFailures,
	}
}

func (o Options) withDefaults() Options {
	if o.PageSize == "" {
		o.PageSize = defaultPageSize
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.Sleep < 0 {
		o.Sleep = 0
	}
	if o.MaxStaleRetries <= 0 {
		o.MaxStaleRetries = defaultMaxStaleRetries
	}
	if o.MaxListingFailures <= 0 {
		o.MaxListingFailures = defaultMaxListingFailures
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// ProgressFunc is told how many of the allowed records have been attempted.
type ProgressFunc func(current, total int)

// RunInput carries everything the operator controls for one run.
// Pause and Stop are read fresh at every checkpoint.
type RunInput struct {
	JobName     string
	ExcludedIDs []string
	DryRun      bool
	MaxRecords  int
	Pause       func() bool
	Stop        func() bool
	Progress    ProgressFunc
	OnLog       LogCallback
}

// Runner drives the bulk archive loop against a Surface. One Runner runs at
// most one loop at a time.
type Runner struct {
	surface   Surface
	opts      Options
	logger    *logger.Logger
	lifecycle atomic.Value
	busy      atomic.Bool
}

// NewRunner creates a Runner over surface.
func NewRunner(surface Surface, opts Options, log *logger.Logger) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{
		surface: surface,
		opts:    opts.withDefaults(),
		logger:  log,
	}
	r.lifecycle.Store(LifecycleIdle)
	return r
}

// Lifecycle returns the current lifecycle. Safe to call from any goroutine.
func (r *Runner) Lifecycle() Lifecycle {
	return r.lifecycle.Load().(Lifecycle)
}

func (r *Runner) setLifecycle(state *RunState, l Lifecycle) {
	state.Lifecycle = l
	r.lifecycle.Store(l)
}

// run holds the per-run bookkeeping of the loop.
type run struct {
	in       RunInput
	state    RunState
	audit    *AuditSink
	exec     *Executor
	lister   *Lister
	excluded *ExclusionSet
	// virtual holds ids this run must not select again: dry-run picks and
	// records that failed.
	virtual         *ExclusionSet
	staleCounts     map[string]int
	listingFailures int
}

// Run executes the loop until the cap is reached, nothing eligible is left,
// or a stop is requested. A cancelled ctx is treated as a stop. Remote calls
// already in flight are never interrupted.
//
// The returned Report is always non-nil once the run has started, even when
// an error is returned.
func (r *Runner) Run(ctx context.Context, in RunInput) (*Report, error) {
	if in.MaxRecords < 1 {
		return nil, fmt.Errorf("max records must be at least 1, got %d", in.MaxRecords)
	}
	if r.surface == nil {
		return nil, fmt.Errorf("surface is nil")
	}
	if !r.busy.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.busy.Store(false)

	mode := ModeLive
	if in.DryRun {
		mode = ModeDryRun
	}
	exec, err := NewExecutor(r.surface, mode)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := r.logger.WithRun(runID)
	if in.JobName != "" {
		log = log.WithJob(in.JobName)
	}

	rn := &run{
		in: in,
		state: RunState{
			MaxRecords: in.MaxRecords,
			Mode:       mode,
		},
		audit:       NewAuditSink(AuditSource, log, in.OnLog, r.opts.Now),
		exec:        exec,
		lister:      NewLister(r.surface),
		excluded:    NewExclusionSet(in.ExcludedIDs),
		virtual:     NewExclusionSet(nil),
		staleCounts: make(map[string]int),
	}

	startedAt := r.opts.Now()
	r.setLifecycle(&rn.state, LifecycleRunning)

	rn.audit.Infof("Starting %s run (max %d records).", mode, in.MaxRecords)
	rn.audit.Infof("Excluded IDs: %s", rn.excluded)

	runErr := r.loop(ctx, rn)

	rn.audit.Infof("Run %s: %d processed, %d errors.", rn.state.Lifecycle, rn.state.ProcessedCount, rn.state.ErrorCount)

	logs, rows := rn.audit.Export()
	report := &Report{
		RunID:          runID,
		JobName:        in.JobName,
		Mode:           mode,
		Lifecycle:      rn.state.Lifecycle,
		StartedAt:      startedAt,
		FinishedAt:     r.opts.Now(),
		MaxRecords:     in.MaxRecords,
		ProcessedCount: rn.state.ProcessedCount,
		ErrorCount:     rn.state.ErrorCount,
		Rows:           rows,
		Logs:           logs,
	}
	return report, runErr
}

func (r *Runner) loop(ctx context.Context, rn *run) error {
	// Remote calls must finish even if the operator cancels mid-call.
	remoteCtx := context.WithoutCancel(ctx)

	for {
		if r.stopRequested(ctx, rn.in) {
			rn.audit.Warnf("Stop requested. Exiting safely.")
			r.setLifecycle(&rn.state, LifecycleStopped)
			return nil
		}

		if rn.in.Pause != nil && rn.in.Pause() {
			if stopped := r.waitWhilePaused(ctx, rn); stopped {
				r.setLifecycle(&rn.state, LifecycleStopped)
				return nil
			}
		}

		if rn.state.CapReached() {
			rn.audit.Infof("Reached max records safety cap (%d). Completed.", rn.state.MaxRecords)
			r.setLifecycle(&rn.state, LifecycleCompleted)
			return nil
		}

		records, err := r.loadListing(remoteCtx, rn)
		if err != nil {
			rn.listingFailures++
			if rn.listingFailures >= r.opts.MaxListingFailures {
				rn.audit.Errorf("Listing unavailable after %d consecutive attempts: %v", rn.listingFailures, err)
				r.setLifecycle(&rn.state, LifecycleStopped)
				return fmt.Errorf("%w: %v", ErrListingUnavailable, err)
			}
			rn.audit.Warnf("Could not load listing (attempt %d/%d): %v", rn.listingFailures, r.opts.MaxListingFailures, err)
			_ = sleepContext(ctx, r.opts.PollInterval)
			continue
		}
		rn.listingFailures = 0

		if len(records) == 0 {
			rn.audit.Infof("No rows left to process. Completed.")
			r.setLifecycle(&rn.state, LifecycleCompleted)
			return nil
		}

		record, ok := r.pick(rn, records)
		if !ok {
			rn.audit.Infof("No eligible rows left to process. Completed.")
			r.setLifecycle(&rn.state, LifecycleCompleted)
			return nil
		}

		if r.stopRequested(ctx, rn.in) {
			rn.audit.Warnf("Stop requested before archiving %s. Exiting safely.", record.ID)
			r.setLifecycle(&rn.state, LifecycleStopped)
			return nil
		}

		action, err := rn.exec.Archive(remoteCtx, record)
		switch ClassifyError(err) {
		case KindNone:
			r.recordSuccess(rn, record, action)
		case KindStale:
			rn.staleCounts[record.ID]++
			if rn.staleCounts[record.ID] <= r.opts.MaxStaleRetries {
				rn.audit.Warnf("Stale reference while archiving %s; reloading listing.", record.ID)
				continue
			}
			r.recordFailure(rn, record, fmt.Errorf("still stale after %d retries: %w", r.opts.MaxStaleRetries, err))
		default:
			r.recordFailure(rn, record, err)
		}

		if r.opts.Sleep > 0 && !rn.state.CapReached() {
			_ = sleepContext(ctx, r.opts.Sleep)
		}
	}
}

// loadListing reloads the remote listing and reads it back.
func (r *Runner) loadListing(ctx context.Context, rn *run) ([]Record, error) {
	if err := r.surface.ReloadListing(ctx, r.opts.PageSize); err != nil {
		return nil, fmt.Errorf("reload listing: %w", err)
	}

	records, skipped, err := rn.lister.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range skipped {
		rn.audit.Warnf("Skipped unreadable row %d: %v", s.Index, s.Err)
	}
	return records, nil
}

// pick returns the first eligible record, logging operator exclusions it
// passes over.
func (r *Runner) pick(rn *run, records []Record) (Record, bool) {
	record, ok := firstEligible(records, rn.excluded, rn.virtual)
	for _, rec := range records {
		if ok && rec.ID == record.ID {
			break
		}
		if rn.excluded.Contains(rec.ID) {
			rn.audit.Infof("Skipped excluded: %s (%s)", rec.ID, rec.DisplayName)
		}
	}
	return record, ok
}

func (r *Runner) recordSuccess(rn *run, record Record, action Action) {
	delete(rn.staleCounts, record.ID)

	if action == ActionDryRun {
		rn.virtual.add(record.ID)
		rn.audit.Warnf("[DRY-RUN] Would archive %s (%s)", record.ID, record.DisplayName)
	} else {
		rn.audit.Infof("Archived: %s (%s)", record.ID, record.DisplayName)
	}

	rn.audit.Record(ResultRow{RecordID: record.ID, RecordName: record.DisplayName, Action: action})
	rn.state.ProcessedCount++
	r.reportProgress(rn)
}

// recordFailure writes an ERROR row and keeps the record out of the rest of
// the run. Failures do not advance ProcessedCount.
func (r *Runner) recordFailure(rn *run, record Record, err error) {
	delete(rn.staleCounts, record.ID)
	rn.virtual.add(record.ID)

	detail := err.Error()
	if ClassifyError(err) == KindTimeout {
		detail = "timeout: " + detail
	}

	rn.audit.Errorf("Failed to archive %s (%s): %v", record.ID, record.DisplayName, err)
	rn.audit.Record(ResultRow{RecordID: record.ID, RecordName: record.DisplayName, Action: ErrorAction(detail)})
	rn.state.ErrorCount++
	r.reportProgress(rn)
}

func (r *Runner) reportProgress(rn *run) {
	if rn.in.Progress != nil {
		rn.in.Progress(rn.state.Attempted(), rn.state.MaxRecords)
	}
}

// waitWhilePaused blocks until pause clears. It returns true when a stop was
// requested instead.
func (r *Runner) waitWhilePaused(ctx context.Context, rn *run) bool {
	r.setLifecycle(&rn.state, LifecyclePaused)
	rn.audit.Infof("Paused by operator.")

	for rn.in.Pause() {
		if r.stopRequested(ctx, rn.in) {
			rn.audit.Warnf("Stop requested while paused.")
			return true
		}
		if err := sleepContext(ctx, r.opts.PollInterval); err != nil {
			rn.audit.Warnf("Stop requested while paused.")
			return true
		}
	}

	if r.stopRequested(ctx, rn.in) {
		rn.audit.Warnf("Stop requested while paused.")
		return true
	}

	r.setLifecycle(&rn.state, LifecycleRunning)
	rn.audit.Infof("Resumed by operator.")
	return false
}

func (r *Runner) stopRequested(ctx context.Context, in RunInput) bool {
	if ctx.Err() != nil {
		return true
	}
	return in.Stop != nil && in.Stop()
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
