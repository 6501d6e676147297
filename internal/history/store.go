// Package history persists run reports to MySQL so operators can see what
// earlier runs archived.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
	"github.com/dbsmedya/lmsarchive/internal/logger"
)

const createRunTableSQL = `
CREATE TABLE IF NOT EXISTS lmsarchive_run (
	run_id CHAR(36) PRIMARY KEY,
	job_name VARCHAR(255) NOT NULL,
	mode VARCHAR(16) NOT NULL,
	lifecycle VARCHAR(16) NOT NULL,
	max_records INT NOT NULL,
	processed INT NOT NULL DEFAULT 0,
	errors INT NOT NULL DEFAULT 0,
	started_at DATETIME(3) NOT NULL,
	finished_at DATETIME(3) NOT NULL,
	INDEX idx_job_started (job_name, started_at)
) ENGINE=InnoDB;
`

const createResultTableSQL = `
CREATE TABLE IF NOT EXISTS lmsarchive_result (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	run_id CHAR(36) NOT NULL,
	seq INT NOT NULL,
	record_id VARCHAR(64) NOT NULL,
	record_name VARCHAR(512) NOT NULL DEFAULT '',
	action TEXT NOT NULL,
	UNIQUE KEY uk_run_seq (run_id, seq),
	INDEX idx_record (record_id),
	FOREIGN KEY (run_id) REFERENCES lmsarchive_run(run_id) ON DELETE CASCADE
) ENGINE=InnoDB;
`

const insertRunSQL = `INSERT INTO lmsarchive_run
	(run_id, job_name, mode, lifecycle, max_records, processed, errors, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertResultSQL = `INSERT INTO lmsarchive_result (run_id, seq, record_id, record_name, action) VALUES (?, ?, ?, ?, ?)`

// RunSummary is one stored run without its result rows.
type RunSummary struct {
	RunID      string
	JobName    string
	Mode       archiver.Mode
	Lifecycle  archiver.Lifecycle
	MaxRecords int
	Processed  int
	Errors     int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store reads and writes run history.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore creates a history store on db.
func NewStore(db *sql.DB, log *logger.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Store{db: db, logger: log}, nil
}

// InitializeTables creates the history tables if they don't exist. Safe to
// call on every startup.
func (s *Store) InitializeTables(ctx context.Context) error {
	s.logger.Debug("Initializing history tables")

	if _, err := s.db.ExecContext(ctx, createRunTableSQL); err != nil {
		return fmt.Errorf("failed to create lmsarchive_run table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createResultTableSQL); err != nil {
		return fmt.Errorf("failed to create lmsarchive_result table: %w", err)
	}

	s.logger.Info("History tables initialized")
	return nil
}

// SaveReport stores a finished run and its result rows in one transaction.
func (s *Store) SaveReport(ctx context.Context, report *archiver.Report) (err error) {
	if report == nil {
		return fmt.Errorf("report is nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, insertRunSQL,
		report.RunID, report.JobName, string(report.Mode), string(report.Lifecycle),
		report.MaxRecords, report.ProcessedCount, report.ErrorCount,
		report.StartedAt, report.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", report.RunID, err)
	}

	if len(report.Rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, insertResultSQL)
		if err != nil {
			return fmt.Errorf("failed to prepare result insert: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for i, row := range report.Rows {
			if _, err := stmt.ExecContext(ctx, report.RunID, i+1, row.RecordID, row.RecordName, string(row.Action)); err != nil {
				return fmt.Errorf("failed to insert result %d of run %s: %w", i+1, report.RunID, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.RunID, err)
	}

	s.logger.Infow("Run saved to history", "run_id", report.RunID, "rows", len(report.Rows))
	return nil
}

// RecentRuns returns the latest runs of a job, newest first.
func (s *Store) RecentRuns(ctx context.Context, jobName string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, job_name, mode, lifecycle, max_records, processed, errors, started_at, finished_at
		FROM lmsarchive_run WHERE job_name = ? ORDER BY started_at DESC LIMIT ?`,
		jobName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode, lifecycle string
		if err := rows.Scan(&r.RunID, &r.JobName, &mode, &lifecycle, &r.MaxRecords, &r.Processed, &r.Errors, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Mode = archiver.Mode(mode)
		r.Lifecycle = archiver.Lifecycle(lifecycle)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// Results returns the result rows of one run in the order they were
// recorded.
func (s *Store) Results(ctx context.Context, runID string) ([]archiver.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record_id, record_name, action FROM lmsarchive_result WHERE run_id = ? ORDER BY seq",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []archiver.ResultRow
	for rows.Next() {
		var r archiver.ResultRow
		var action string
		if err := rows.Scan(&r.RecordID, &r.RecordName, &action); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		r.Action = archiver.Action(action)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating results: %w", err)
	}
	return results, nil
}
