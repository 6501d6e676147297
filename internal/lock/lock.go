// Package lock prevents two lmsarchive runs of the same job from driving the
// LMS at once, using MySQL named locks on the history database.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrLockHeld is returned when another instance holds the job lock.
var ErrLockHeld = errors.New("job lock is held by another instance")

const (
	// TimeoutImmediate fails at once when the lock is taken.
	TimeoutImmediate = 0

	// TimeoutShort is enough to ride out a previous run still releasing.
	TimeoutShort = 1

	// MySQL rejects lock names longer than this.
	maxLockNameLen = 64

	lockPrefix = "lmsarchive:job:"
)

// JobLockName returns the named lock used for jobName. Characters other
// than letters, digits, '_' and '-' become '_', and the result is cut to
// MySQL's 64 character limit.
func JobLockName(jobName string) string {
	sanitized := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, jobName)

	name := lockPrefix + sanitized
	if len(name) > maxLockNameLen {
		name = name[:maxLockNameLen]
	}
	return name
}

// JobLock is a MySQL named lock bound to one pooled connection. GET_LOCK
// ownership is per session, so acquire and release must share the
// connection.
type JobLock struct {
	db   *sql.DB
	conn *sql.Conn
	name string
}

// NewJobLock creates the lock for jobName. Nothing is acquired yet.
func NewJobLock(db *sql.DB, jobName string) *JobLock {
	return &JobLock{db: db, name: JobLockName(jobName)}
}

// Name returns the MySQL lock name.
func (l *JobLock) Name() string {
	return l.name
}

// IsHeld reports whether this instance holds the lock.
func (l *JobLock) IsHeld() bool {
	return l.conn != nil
}

// Acquire waits up to timeoutSeconds for the lock. It returns ErrLockHeld
// when another session still holds it.
//
// GET_LOCK returns 1 on success, 0 on timeout and NULL on error.
func (l *JobLock) Acquire(ctx context.Context, timeoutSeconds int) error {
	if l.conn != nil {
		return nil
	}
	if l.db == nil {
		return fmt.Errorf("database is nil")
	}

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to reserve connection for lock %q: %w", l.name, err)
	}

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", l.name, timeoutSeconds).Scan(&result); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to execute GET_LOCK: %w", err)
	}

	switch {
	case !result.Valid:
		_ = conn.Close()
		return fmt.Errorf("GET_LOCK returned NULL for lock %q", l.name)
	case result.Int64 == 1:
		l.conn = conn
		return nil
	case result.Int64 == 0:
		_ = conn.Close()
		return fmt.Errorf("%w: %s", ErrLockHeld, l.name)
	default:
		_ = conn.Close()
		return fmt.Errorf("unexpected GET_LOCK return value: %d", result.Int64)
	}
}

// Release gives the lock back and returns its connection to the pool.
// Releasing a lock that is not held is a no-op.
func (l *JobLock) Release(ctx context.Context) error {
	if l.conn == nil {
		return nil
	}
	conn := l.conn
	l.conn = nil
	defer func() { _ = conn.Close() }()

	var result sql.NullInt64
	if err := conn.QueryRowContext(ctx, "SELECT RELEASE_LOCK(?)", l.name).Scan(&result); err != nil {
		return fmt.Errorf("failed to execute RELEASE_LOCK: %w", err)
	}
	if !result.Valid || result.Int64 != 1 {
		return fmt.Errorf("lock %q was not held at release", l.name)
	}
	return nil
}

// IsJobRunning probes the job lock without waiting and releases it again
// if it was free. The answer can be stale by the time it is used.
func IsJobRunning(ctx context.Context, db *sql.DB, jobName string) (bool, error) {
	l := NewJobLock(db, jobName)
	err := l.Acquire(ctx, TimeoutImmediate)
	switch {
	case errors.Is(err, ErrLockHeld):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to check if job %q is running: %w", jobName, err)
	}
	_ = l.Release(ctx)
	return false, nil
}

// WithJobLock runs fn while holding the job lock. The lock is released even
// if fn panics.
func WithJobLock(ctx context.Context, db *sql.DB, jobName string, fn func() error) error {
	l := NewJobLock(db, jobName)
	if err := l.Acquire(ctx, TimeoutShort); err != nil {
		return err
	}
	defer func() {
		// ctx may already be cancelled by a stop; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = l.Release(releaseCtx)
	}()

	return fn()
}
