package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/dbsmedya/lmsarchive/internal/config"
)

func TestBuildDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.HistoryConfig
		expected string
	}{
		{
			name: "default TLS",
			cfg: config.HistoryConfig{
				Host: "localhost", Port: 3306, User: "archiver", Password: "secret", Database: "lmsarchive",
			},
			expected: "archiver:secret@tcp(localhost:3306)/lmsarchive?parseTime=true&tls=preferred",
		},
		{
			name: "TLS disabled",
			cfg: config.HistoryConfig{
				Host: "db.internal", Port: 3307, User: "u", Password: "p", Database: "hist", TLS: "disable",
			},
			expected: "u:p@tcp(db.internal:3307)/hist?parseTime=true&tls=false",
		},
		{
			name: "TLS required",
			cfg: config.HistoryConfig{
				Host: "db.internal", Port: 3306, User: "u", Password: "p", Database: "hist", TLS: "required",
			},
			expected: "u:p@tcp(db.internal:3306)/hist?parseTime=true&tls=true",
		},
		{
			name:     "no database",
			cfg:      config.HistoryConfig{Host: "h", Port: 1, User: "u", Password: "p"},
			expected: "u:p@tcp(h:1)/?parseTime=true&tls=preferred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildDSN(&tt.cfg); got != tt.expected {
				t.Errorf("BuildDSN() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

func TestBuildDSN_PasswordWithSpecialCharacters(t *testing.T) {
	cfg := &config.HistoryConfig{Host: "h", Port: 3306, User: "u", Password: "p@ss:w/rd", Database: "d"}
	dsn := BuildDSN(cfg)
	if !strings.HasPrefix(dsn, "u:p@ss:w/rd@tcp(h:3306)/d") {
		t.Errorf("unexpected DSN %q", dsn)
	}
}

func TestManagerCloseWithoutConnect(t *testing.T) {
	m := NewManager(&config.HistoryConfig{})
	if err := m.Close(); err != nil {
		t.Errorf("Close() without connect should not error, got %v", err)
	}
	if err := m.Ping(context.Background()); err == nil {
		t.Error("Ping() without connect should error")
	}
}

func TestConnect_NilConfig(t *testing.T) {
	m := NewManager(nil)
	if err := m.Connect(context.Background()); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConnect_Success(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	mock.ExpectPing()
	mock.ExpectPing()
	mock.ExpectClose()

	cfg := &config.HistoryConfig{Host: "h", Port: 3306, User: "u", Database: "d", MaxConnections: 4}
	m := NewManager(cfg)
	var gotDSN string
	m.open = func(driver, dsn string) (*sql.DB, error) {
		gotDSN = dsn
		return db, nil
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if gotDSN != BuildDSN(cfg) {
		t.Errorf("opened DSN %q, expected %q", gotDSN, BuildDSN(cfg))
	}
	if err := m.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if m.DB != nil {
		t.Error("DB should be nil after Close")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestConnect_CancelledDuringBackoff(t *testing.T) {
	m := NewManager(&config.HistoryConfig{Host: "h", Port: 3306})
	m.open = func(driver, dsn string) (*sql.DB, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := m.Connect(ctx)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 900*time.Millisecond {
		t.Error("Connect should stop retrying once ctx is done")
	}
}
