package archiver

import (
	"context"
	"strings"
	"time"
)

// Record is one remote entity subject to the bulk action. Records are
// re-derived from the remote listing on every reload and never cached.
type Record struct {
	ID          string
	DisplayName string
	Status      string
}

// Row is what the Interaction Surface reads from one visible listing row.
// Err is set when the row could not be read; the row is then skipped.
type Row struct {
	ID     string
	Name   string
	Status string
	Err    error
}

// Surface is the remote-effecting API the runner drives. It is implemented
// by the browser package against a live session, and by fakes in tests.
type Surface interface {
	// ReloadListing reloads the remote listing and normalises its page size
	// and sort order.
	ReloadListing(ctx context.Context, pageSize string) error

	// ListVisibleRows reads the rows currently visible, top to bottom.
	ListVisibleRows(ctx context.Context) ([]Row, error)

	// OpenAndArchive opens the record's detail view and sets it to archived.
	OpenAndArchive(ctx context.Context, id string) error
}

// Mode selects between simulating and performing the action.
type Mode string

const (
	ModeDryRun Mode = "dry-run"
	ModeLive   Mode = "live"
)

// Lifecycle is the state of one run of the control loop.
type Lifecycle string

const (
	LifecycleIdle      Lifecycle = "idle"
	LifecycleRunning   Lifecycle = "running"
	LifecyclePaused    Lifecycle = "paused"
	LifecycleStopped   Lifecycle = "stopped"
	LifecycleCompleted Lifecycle = "completed"
)

// IsTerminal reports whether no further remote interaction will happen.
func (l Lifecycle) IsTerminal() bool {
	return l == LifecycleStopped || l == LifecycleCompleted
}

// RunState is the mutable state of a single run. Only the control loop
// writes it.
type RunState struct {
	ProcessedCount int // ARCHIVED or DRY-RUN rows
	ErrorCount     int // ERROR rows
	MaxRecords     int
	Mode           Mode
	Lifecycle      Lifecycle
}

// Attempted returns the number of records that produced a result row.
func (s *RunState) Attempted() int {
	return s.ProcessedCount + s.ErrorCount
}

// CapReached reports whether the safety cap has been hit.
func (s *RunState) CapReached() bool {
	return s.Attempted() >= s.MaxRecords
}

// Level is the severity of an audit log entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// LogEntry is one line of the run transcript.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Source    string    `json:"source" yaml:"source"`
	Level     Level     `json:"level" yaml:"level"`
	Message   string    `json:"message" yaml:"message"`
}

// Action is the outcome recorded for an attempted record.
type Action string

const (
	ActionArchived Action = "ARCHIVED"
	ActionDryRun   Action = "DRY-RUN"

	errorActionPrefix = "ERROR: "
)

// ErrorAction builds the action recorded for a failed record.
func ErrorAction(detail string) Action {
	return Action(errorActionPrefix + detail)
}

// IsError reports whether the action records a failure.
func (a Action) IsError() bool {
	return strings.HasPrefix(string(a), errorActionPrefix)
}

// ResultRow is the audit record for one attempted record.
type ResultRow struct {
	RecordID   string `json:"record_id" yaml:"record_id"`
	RecordName string `json:"record_name" yaml:"record_name"`
	Action     Action `json:"action" yaml:"action"`
}

// Report is what a run hands back to its caller: the audit trail plus a
// summary of the final state.
type Report struct {
	RunID          string      `json:"run_id" yaml:"run_id"`
	JobName        string      `json:"job" yaml:"job"`
	Mode           Mode        `json:"mode" yaml:"mode"`
	Lifecycle      Lifecycle   `json:"lifecycle" yaml:"lifecycle"`
	StartedAt      time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt     time.Time   `json:"finished_at" yaml:"finished_at"`
	MaxRecords     int         `json:"max_records" yaml:"max_records"`
	ProcessedCount int         `json:"processed" yaml:"processed"`
	ErrorCount     int         `json:"errors" yaml:"errors"`
	Rows           []ResultRow `json:"rows" yaml:"rows"`
	Logs           []LogEntry  `json:"logs" yaml:"logs"`
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrorRows returns only the failed result rows.
func (r *Report) ErrorRows() []ResultRow {
	var out []ResultRow
	for _, row := range r.Rows {
		if row.Action.IsError() {
			out = append(out, row)
		}
	}
	return out
}
