package archiver

import (
	"fmt"
	"sync"
	"time"

	"github.com/dbsmedya/lmsarchive/internal/logger"
)

// LogCallback receives every audit log entry as it is appended.
type LogCallback func(LogEntry)

// AuditSink is the append-only transcript of a run: log entries plus one
// result row per attempted record. Entries are mirrored to the structured
// logger. Nothing is ever deduplicated or rewritten.
type AuditSink struct {
	mu     sync.Mutex
	source string
	logs   []LogEntry
	rows   []ResultRow
	logger *logger.Logger
	onLog  LogCallback
	now    func() time.Time
}

// NewAuditSink creates a sink labelling its entries with source.
func NewAuditSink(source string, log *logger.Logger, onLog LogCallback, now func() time.Time) *AuditSink {
	if log == nil {
		log = logger.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &AuditSink{
		source: source,
		logger: log,
		onLog:  onLog,
		now:    now,
	}
}

// Log appends a log entry.
func (s *AuditSink) Log(level Level, msg string) {
	entry := LogEntry{
		Timestamp: s.now(),
		Source:    s.source,
		Level:     level,
		Message:   msg,
	}

	s.mu.Lock()
	s.logs = append(s.logs, entry)
	s.mu.Unlock()

	switch level {
	case LevelWarn:
		s.logger.Warnw(msg, "source", s.source)
	case LevelError:
		s.logger.Errorw(msg, "source", s.source)
	default:
		s.logger.Infow(msg, "source", s.source)
	}

	if s.onLog != nil {
		s.onLog(entry)
	}
}

func (s *AuditSink) Infof(format string, args ...interface{}) {
	s.Log(LevelInfo, fmt.Sprintf(format, args...))
}

func (s *AuditSink) Warnf(format string, args ...interface{}) {
	s.Log(LevelWarn, fmt.Sprintf(format, args...))
}

func (s *AuditSink) Errorf(format string, args ...interface{}) {
	s.Log(LevelError, fmt.Sprintf(format, args...))
}

// Record appends a result row.
func (s *AuditSink) Record(row ResultRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
}

// Export returns copies of the log entries and result rows, in order.
func (s *AuditSink) Export() ([]LogEntry, []ResultRow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := make([]LogEntry, len(s.logs))
	copy(logs, s.logs)
	rows := make([]ResultRow, len(s.rows))
	copy(rows, s.rows)
	return logs, rows
}
