// Package report writes run reports as audit files and terminal summaries.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
)

// Supported audit file formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

var csvHeader = []string{"record_id", "record_name", "action"}

// Formats lists the supported formats.
func Formats() []string {
	return []string{FormatCSV, FormatJSON, FormatYAML}
}

// Write encodes report to w. CSV carries only the result rows; JSON and
// YAML carry the whole report including the log transcript.
func Write(w io.Writer, report *archiver.Report, format string) error {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return writeCSV(w, report.Rows)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format %q (expected one of %s)", format, strings.Join(Formats(), ", "))
	}
}

func writeCSV(w io.Writer, rows []archiver.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write([]string{row.RecordID, row.RecordName, string(row.Action)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName returns the default audit file name for a report.
func FileName(report *archiver.Report, format string) string {
	if format == "" {
		format = FormatCSV
	}
	job := report.JobName
	if job == "" {
		job = "adhoc"
	}
	return fmt.Sprintf("lmsarchive_%s_%s_%s.%s",
		job, report.Mode, report.StartedAt.Format("20060102_150405"), strings.ToLower(format))
}

// WriteFile writes report to path, creating parent directories.
func WriteFile(path string, report *archiver.Report, format string) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close report file: %w", cerr)
		}
	}()

	if err := Write(f, report, format); err != nil {
		return fmt.Errorf("failed to write %s report: %w", format, err)
	}
	return nil
}
