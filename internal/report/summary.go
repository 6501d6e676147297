package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/gookit/color"
	"github.com/mattn/go-runewidth"

	"github.com/dbsmedya/lmsarchive/internal/archiver"
)

const maxNameWidth = 48

// Printer renders reports for a terminal.
type Printer struct {
	w       io.Writer
	noColor bool
}

// NewPrinter creates a Printer writing to w. Colors are dropped when
// noColor is set.
func NewPrinter(w io.Writer, noColor bool) *Printer {
	return &Printer{w: w, noColor: noColor}
}

func (p *Printer) paint(c color.Color, s string) string {
	if p.noColor {
		return s
	}
	return c.Sprint(s)
}

// Summary prints the run outcome followed by the result table.
func (p *Printer) Summary(report *archiver.Report) {
	title := "Bulk Archive Complete"
	if report.Mode == archiver.ModeDryRun {
		title = "Bulk Archive Dry-Run Complete"
	}

	fmt.Fprintf(p.w, "\n=== %s ===\n", title)
	fmt.Fprintf(p.w, "Job: %s\n", report.JobName)
	fmt.Fprintf(p.w, "Run ID: %s\n", report.RunID)
	fmt.Fprintf(p.w, "State: %s\n", p.lifecycle(report.Lifecycle))
	fmt.Fprintf(p.w, "Duration: %s\n", report.Duration())
	fmt.Fprintf(p.w, "Processed: %d / %d\n", report.ProcessedCount, report.MaxRecords)
	if report.ErrorCount > 0 {
		fmt.Fprintf(p.w, "Errors: %s\n", p.paint(color.FgRed, fmt.Sprint(report.ErrorCount)))
	} else {
		fmt.Fprintf(p.w, "Errors: 0\n")
	}

	if len(report.Rows) == 0 {
		fmt.Fprintln(p.w, "\nNo records were attempted.")
		return
	}
	fmt.Fprintln(p.w)
	p.Table(report.Rows)
}

func (p *Printer) lifecycle(l archiver.Lifecycle) string {
	switch l {
	case archiver.LifecycleCompleted:
		return p.paint(color.FgGreen, string(l))
	case archiver.LifecycleStopped:
		return p.paint(color.FgYellow, string(l))
	default:
		return string(l)
	}
}

// Table prints result rows as aligned columns. Wide characters in record
// names are measured by display width.
func (p *Printer) Table(rows []archiver.ResultRow) {
	idWidth := runewidth.StringWidth("ID")
	nameWidth := runewidth.StringWidth("NAME")
	for _, row := range rows {
		idWidth = max(idWidth, runewidth.StringWidth(row.RecordID))
		nameWidth = max(nameWidth, runewidth.StringWidth(truncate(row.RecordName)))
	}

	header := fmt.Sprintf("%s  %s  %s",
		runewidth.FillRight("ID", idWidth),
		runewidth.FillRight("NAME", nameWidth),
		"ACTION")
	fmt.Fprintln(p.w, header)
	fmt.Fprintln(p.w, strings.Repeat("-", runewidth.StringWidth(header)+8))

	for _, row := range rows {
		fmt.Fprintf(p.w, "%s  %s  %s\n",
			runewidth.FillRight(row.RecordID, idWidth),
			runewidth.FillRight(truncate(row.RecordName), nameWidth),
			p.action(row.Action))
	}
}

func (p *Printer) action(a archiver.Action) string {
	switch {
	case a.IsError():
		return p.paint(color.FgRed, string(a))
	case a == archiver.ActionDryRun:
		return p.paint(color.FgCyan, string(a))
	default:
		return p.paint(color.FgGreen, string(a))
	}
}

// LogLine formats one audit entry for live terminal output.
func (p *Printer) LogLine(entry archiver.LogEntry) string {
	level := strings.ToUpper(string(entry.Level))
	switch entry.Level {
	case archiver.LevelWarn:
		level = p.paint(color.FgYellow, level)
	case archiver.LevelError:
		level = p.paint(color.FgRed, level)
	}
	return fmt.Sprintf("%s [%s] %s: %s",
		entry.Timestamp.Format("15:04:05"), level, entry.Source, entry.Message)
}

func truncate(s string) string {
	return runewidth.Truncate(s, maxNameWidth, "...")
}
