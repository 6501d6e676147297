package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
	"github.com/dbsmedya/lmsarchive/internal/config"
	"github.com/dbsmedya/lmsarchive/internal/report"
)

func TestRunCommandStructure(t *testing.T) {
	assert.Equal(t, "run", runCmd.Use)
	assert.NotEmpty(t, runCmd.Short)
	assert.Contains(t, runCmd.Long, "Example:")
	assert.NotNil(t, runCmd.RunE)

	flags := runCmd.Flags()
	for _, name := range []string{"job", "dry-run", "max-records", "exclude", "control-dir", "output", "format", "force", "no-color"} {
		assert.NotNil(t, flags.Lookup(name), "flag %s should exist", name)
	}
	assert.Equal(t, "j", flags.Lookup("job").Shorthand)
}

func TestResolveMaxRecords(t *testing.T) {
	tests := []struct {
		name    string
		flag    int
		job     *config.JobConfig
		want    int
		wantErr bool
	}{
		{"default", 0, &config.JobConfig{}, archiver.DefaultMaxRecords, false},
		{"nil job", 0, nil, archiver.DefaultMaxRecords, false},
		{"job value", 0, &config.JobConfig{MaxRecords: 20}, 20, false},
		{"flag wins over job", 7, &config.JobConfig{MaxRecords: 20}, 7, false},
		{"upper bound", config.MaxRecordsLimit, nil, config.MaxRecordsLimit, false},
		{"above limit", config.MaxRecordsLimit + 1, nil, 0, true},
		{"negative", -1, nil, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveMaxRecords(tt.flag, tt.job)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRunInput(t *testing.T) {
	job := &config.JobConfig{ExcludedIDs: []string{"104"}, MaxRecords: 20}
	opts := runOptions{job: "spring_cleanup", exclude: " 610, ,305", maxRecords: 3}

	input, err := buildRunInput(opts, job)
	require.NoError(t, err)

	assert.Equal(t, "spring_cleanup", input.JobName)
	assert.Equal(t, []string{"104", "610", "305"}, input.ExcludedIDs)
	assert.Equal(t, 3, input.MaxRecords)
	assert.False(t, input.DryRun)
	assert.Equal(t, []string{"104"}, job.ExcludedIDs, "job config is not modified")
}

func TestBuildRunInput_DryRunFromJob(t *testing.T) {
	input, err := buildRunInput(runOptions{job: "scan_only"}, &config.JobConfig{DryRun: true})
	require.NoError(t, err)
	assert.True(t, input.DryRun)

	input, err = buildRunInput(runOptions{job: "scan_only", dryRun: true}, &config.JobConfig{})
	require.NoError(t, err)
	assert.True(t, input.DryRun)
}

func TestStreamsAuditLines(t *testing.T) {
	assert.False(t, streamsAuditLines(config.LoggingConfig{Output: "stdout"}))
	assert.False(t, streamsAuditLines(config.LoggingConfig{Output: "stderr"}))
	assert.False(t, streamsAuditLines(config.LoggingConfig{}))
	assert.True(t, streamsAuditLines(config.LoggingConfig{Output: "/var/log/lmsarchive.log"}))
}

func testReport() *archiver.Report {
	started := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return &archiver.Report{
		RunID:          "6f1c2a9e-1111-4c3b-9d2e-000000000001",
		JobName:        "spring_cleanup",
		Mode:           archiver.ModeLive,
		Lifecycle:      archiver.LifecycleCompleted,
		StartedAt:      started,
		FinishedAt:     started.Add(42 * time.Second),
		MaxRecords:     3,
		ProcessedCount: 2,
		Rows: []archiver.ResultRow{
			{RecordID: "201", RecordName: "Anatomy 101", Action: archiver.ActionArchived},
			{RecordID: "305", RecordName: "Physiology", Action: archiver.ActionArchived},
		},
	}
}

func TestAuditPath(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Audit.Dir = "/var/lib/lmsarchive"
	rep := testReport()

	assert.Equal(t, "/tmp/out.json", auditPath(runOptions{output: "/tmp/out.json"}, cfg, rep, "json"))
	assert.Equal(t,
		filepath.Join("/var/lib/lmsarchive", report.FileName(rep, "csv")),
		auditPath(runOptions{}, cfg, rep, "csv"))
}

func TestFinishRun_WritesAuditAndSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "run.csv")
	opts := runOptions{output: path, noColor: true}

	var buf bytes.Buffer
	printer := report.NewPrinter(&buf, true)

	err := finishRun(context.Background(), &buf, printer, opts, config.DefaultConfig(), nil, testReport(), "csv", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "201,Anatomy 101,ARCHIVED")

	output := buf.String()
	assert.Contains(t, output, "Audit written to "+path)
	assert.Contains(t, output, "Bulk Archive Complete")
	assert.Contains(t, output, "Processed: 2 / 3")
}

func TestFinishRun_ErrorRowsFailTheCommand(t *testing.T) {
	rep := testReport()
	rep.ErrorCount = 1
	rep.Rows = append(rep.Rows, archiver.ResultRow{
		RecordID: "412", RecordName: "Histology", Action: archiver.ErrorAction("save button missing"),
	})

	path := filepath.Join(t.TempDir(), "run.json")
	var buf bytes.Buffer
	err := finishRun(context.Background(), &buf, report.NewPrinter(&buf, true),
		runOptions{output: path}, config.DefaultConfig(), nil, rep, "json", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 error(s)")

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "audit file is written before the error is returned")
}

func TestFinishRun_KeepsRunError(t *testing.T) {
	rep := testReport()
	rep.Lifecycle = archiver.LifecycleStopped

	var buf bytes.Buffer
	err := finishRun(context.Background(), &buf, report.NewPrinter(&buf, true),
		runOptions{output: filepath.Join(t.TempDir(), "run.csv")}, config.DefaultConfig(), nil, rep, "csv",
		archiver.ErrListingUnavailable)
	require.Error(t, err)
	assert.True(t, errors.Is(err, archiver.ErrListingUnavailable))
}

func TestExecuteRun_SetupErrors(t *testing.T) {
	writeTestConfig(t, testConfigYAML)

	tests := []struct {
		name string
		opts runOptions
		want string
	}{
		{"unknown job", runOptions{job: "missing"}, "not found"},
		{"cap above limit", runOptions{job: "spring_cleanup", maxRecords: config.MaxRecordsLimit + 1}, "max records"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executeRun(runCmd, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestExecuteRun_InvalidConfig(t *testing.T) {
	writeTestConfig(t, "jobs:\n  broken:\n    max_records: 1\n")

	err := executeRun(runCmd, runOptions{job: "broken"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}
