package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
)

func sampleReport() *archiver.Report {
	started := time.Date(2025, 12, 9, 10, 30, 0, 0, time.UTC)
	return &archiver.Report{
		RunID:          "run-1",
		JobName:        "spring",
		Mode:           archiver.ModeDryRun,
		Lifecycle:      archiver.LifecycleCompleted,
		StartedAt:      started,
		FinishedAt:     started.Add(90 * time.Second),
		MaxRecords:     2,
		ProcessedCount: 2,
		Rows: []archiver.ResultRow{
			{RecordID: "201", RecordName: "Anatomy, Part 1", Action: archiver.ActionDryRun},
			{RecordID: "305", RecordName: "生理学", Action: archiver.ActionDryRun},
		},
		Logs: []archiver.LogEntry{
			{Timestamp: started, Source: "BulkArchive", Level: archiver.LevelInfo, Message: "Excluded IDs: 104, 610"},
		},
	}
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	want := [][]string{
		{"record_id", "record_name", "action"},
		{"201", "Anatomy, Part 1", "DRY-RUN"},
		{"305", "生理学", "DRY-RUN"},
	}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_CSVNoRows(t *testing.T) {
	report := sampleReport()
	report.Rows = nil

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, report, ""))
	assert.Equal(t, "record_id,record_name,action\n", buf.String())
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), FormatJSON))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got["run_id"])
	assert.Equal(t, "dry-run", got["mode"])
	assert.Len(t, got["rows"], 2)
	assert.Len(t, got["logs"], 1)
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleReport(), "YAML"))

	var got struct {
		Job  string `yaml:"job"`
		Rows []struct {
			RecordID string `yaml:"record_id"`
			Action   string `yaml:"action"`
		} `yaml:"rows"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "spring", got.Job)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "305", got.Rows[1].RecordID)
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, sampleReport(), "xlsx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xlsx")
}

func TestFileName(t *testing.T) {
	report := sampleReport()
	assert.Equal(t, "lmsarchive_spring_dry-run_20251209_103000.csv", FileName(report, ""))
	assert.Equal(t, "lmsarchive_spring_dry-run_20251209_103000.json", FileName(report, "JSON"))

	report.JobName = ""
	assert.True(t, strings.HasPrefix(FileName(report, "csv"), "lmsarchive_adhoc_"))
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "run.csv")
	require.NoError(t, WriteFile(path, sampleReport(), FormatCSV))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "record_id,record_name,action\n201,"))
}

func TestPrinter_Summary(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Summary(sampleReport())

	out := buf.String()
	assert.Contains(t, out, "=== Bulk Archive Dry-Run Complete ===")
	assert.Contains(t, out, "State: completed")
	assert.Contains(t, out, "Processed: 2 / 2")
	assert.Contains(t, out, "Errors: 0")
	assert.Contains(t, out, "1m30s")
}

func TestPrinter_TableAlignsWideNames(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf, true).Table(sampleReport().Rows)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)

	// The ACTION column starts at the same display column on every row.
	headerCol := strings.Index(lines[0], "ACTION")
	for _, line := range lines[2:] {
		idx := strings.Index(line, "DRY-RUN")
		require.NotEqual(t, -1, idx)
		prefix := line[:idx]
		assert.Equal(t, headerCol, runewidth.StringWidth(prefix), "line %q", line)
	}
}

func TestPrinter_EmptyReport(t *testing.T) {
	report := sampleReport()
	report.Rows = nil
	report.Mode = archiver.ModeLive
	report.Lifecycle = archiver.LifecycleStopped

	var buf bytes.Buffer
	NewPrinter(&buf, true).Summary(report)
	assert.Contains(t, buf.String(), "=== Bulk Archive Complete ===")
	assert.Contains(t, buf.String(), "No records were attempted.")
}

func TestPrinter_LogLine(t *testing.T) {
	entry := archiver.LogEntry{
		Timestamp: time.Date(2025, 12, 9, 10, 30, 5, 0, time.UTC),
		Source:    "BulkArchive",
		Level:     archiver.LevelWarn,
		Message:   "Stale reference while archiving 201",
	}
	assert.Equal(t, "10:30:05 [WARN] BulkArchive: Stale reference while archiving 201",
		NewPrinter(&bytes.Buffer{}, true).LogLine(entry))
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("x", 100)
	assert.LessOrEqual(t, len(truncate(long)), maxNameWidth)
	assert.True(t, strings.HasSuffix(truncate(long), "..."))
	assert.Equal(t, "short", truncate("short"))
}
