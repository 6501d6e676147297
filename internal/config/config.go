// Package config provides configuration structures and loading for lmsarchive.
package config

import "time"

// MaxRecordsLimit is the largest per-run safety cap accepted from a job or
// the command line.
const MaxRecordsLimit = 2000

// Config represents the complete application configuration.
type Config struct {
	Browser    BrowserConfig        `yaml:"browser" mapstructure:"browser"`
	Listing    ListingConfig        `yaml:"listing" mapstructure:"listing"`
	Selectors  SelectorConfig       `yaml:"selectors" mapstructure:"selectors"`
	Jobs       map[string]JobConfig `yaml:"jobs" mapstructure:"jobs"`
	Processing ProcessingConfig     `yaml:"processing" mapstructure:"processing"`
	Control    ControlConfig        `yaml:"control" mapstructure:"control"`
	History    HistoryConfig        `yaml:"history" mapstructure:"history"`
	Audit      AuditConfig          `yaml:"audit" mapstructure:"audit"`
	Logging    LoggingConfig        `yaml:"logging" mapstructure:"logging"`
}

// BrowserConfig describes how to reach the operator's browser session.
type BrowserConfig struct {
	DebuggerAddress       string  `yaml:"debugger_address" mapstructure:"debugger_address"` // host:port of an already running Chrome
	Launch                bool    `yaml:"launch" mapstructure:"launch"`                     // launch a local Chrome instead of attaching
	Bin                   string  `yaml:"bin" mapstructure:"bin"`
	Headless              bool    `yaml:"headless" mapstructure:"headless"`
	NavigationTimeoutSecs float64 `yaml:"navigation_timeout_seconds" mapstructure:"navigation_timeout_seconds"`
	ElementTimeoutSecs    float64 `yaml:"element_timeout_seconds" mapstructure:"element_timeout_seconds"`
	BaseURL               string  `yaml:"base_url" mapstructure:"base_url"`
}

// ListingConfig describes the remote listing the runner walks.
type ListingConfig struct {
	URL           string  `yaml:"url" mapstructure:"url"`
	PageSize      string  `yaml:"page_size" mapstructure:"page_size"` // visible text of the rows-per-page option
	SortClicks    int     `yaml:"sort_clicks" mapstructure:"sort_clicks"`
	SettleSeconds float64 `yaml:"settle_seconds" mapstructure:"settle_seconds"`
}

// SelectorConfig holds the XPath selectors of the remote application.
type SelectorConfig struct {
	PageSizeSelect string `yaml:"page_size_select" mapstructure:"page_size_select"`
	SortHeader     string `yaml:"sort_header" mapstructure:"sort_header"`
	TableRow       string `yaml:"table_row" mapstructure:"table_row"`
	IDCell         string `yaml:"id_cell" mapstructure:"id_cell"`     // relative to a row
	NameLink       string `yaml:"name_link" mapstructure:"name_link"` // relative to a row
	StatusCell     string `yaml:"status_cell" mapstructure:"status_cell"`
	EditButton     string `yaml:"edit_button" mapstructure:"edit_button"`
	StatusSelect   string `yaml:"status_select" mapstructure:"status_select"`
	SaveButton     string `yaml:"save_button" mapstructure:"save_button"`
	ArchivedOption string `yaml:"archived_option" mapstructure:"archived_option"`
}

// JobConfig represents a bulk archive job.
type JobConfig struct {
	Description string            `yaml:"description" mapstructure:"description"`
	ListingURL  string            `yaml:"listing_url" mapstructure:"listing_url"` // overrides listing.url
	ExcludedIDs []string          `yaml:"excluded_ids" mapstructure:"excluded_ids"`
	MaxRecords  int               `yaml:"max_records" mapstructure:"max_records"`
	DryRun      bool              `yaml:"dry_run" mapstructure:"dry_run"`
	Processing  *ProcessingConfig `yaml:"processing,omitempty" mapstructure:"processing"`
}

// ProcessingConfig represents control loop settings.
type ProcessingConfig struct {
	SleepSeconds        float64 `yaml:"sleep_seconds" mapstructure:"sleep_seconds"` // delay between actions
	PollIntervalSeconds float64 `yaml:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	MaxStaleRetries     int     `yaml:"max_stale_retries" mapstructure:"max_stale_retries"`
	MaxListingFailures  int     `yaml:"max_listing_failures" mapstructure:"max_listing_failures"`
}

// ControlConfig configures operator pause/stop control.
type ControlConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"` // directory watched for "pause" and "stop" files
}

// HistoryConfig represents the optional MySQL run history store.
type HistoryConfig struct {
	Enabled            bool   `yaml:"enabled" mapstructure:"enabled"`
	Host               string `yaml:"host" mapstructure:"host"`
	Port               int    `yaml:"port" mapstructure:"port"`
	User               string `yaml:"user" mapstructure:"user"`
	Password           string `yaml:"password" mapstructure:"password"`
	Database           string `yaml:"database" mapstructure:"database"`
	TLS                string `yaml:"tls" mapstructure:"tls"` // disable, preferred, required
	MaxConnections     int    `yaml:"max_connections" mapstructure:"max_connections"`
	MaxIdleConnections int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
}

// AuditConfig controls where the audit report is written.
type AuditConfig struct {
	Dir    string `yaml:"dir" mapstructure:"dir"`
	Format string `yaml:"format" mapstructure:"format"` // csv, json or yaml
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			DebuggerAddress:       "127.0.0.1:9222",
			NavigationTimeoutSecs: 20,
			ElementTimeoutSecs:    10,
		},
		Listing: ListingConfig{
			PageSize:      "100",
			SortClicks:    2,
			SettleSeconds: 0.8,
		},
		Selectors: SelectorConfig{
			PageSizeSelect: "/html/body/div/div/div/div/div[2]/div/table/tfoot/tr/th/select",
			SortHeader:     `//*[@id="idsorter"]/div/div`,
			TableRow:       `//*[@id="content"]/div/div[2]/div/table/tbody/tr`,
			IDCell:         "./td[1]",
			NameLink:       "./td[2]/a",
			EditButton:     `//*[@id="editCourse"]`,
			StatusSelect:   `//*[@id="stateId"]`,
			SaveButton:     `//*[@id="saveButton"]`,
			ArchivedOption: "Archived",
		},
		Processing: ProcessingConfig{
			SleepSeconds:        0,
			PollIntervalSeconds: 0.4,
			MaxStaleRetries:     3,
			MaxListingFailures:  3,
		},
		History: HistoryConfig{
			Enabled:            false,
			Port:               3306,
			TLS:                "preferred",
			MaxConnections:     4,
			MaxIdleConnections: 2,
		},
		Audit: AuditConfig{
			Format: "csv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// NavigationTimeout returns the per-navigation timeout.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.NavigationTimeoutSecs <= 0 {
		return 20 * time.Second
	}
	return seconds(b.NavigationTimeoutSecs)
}

// ElementTimeout returns the per-element lookup timeout.
func (b BrowserConfig) ElementTimeout() time.Duration {
	if b.ElementTimeoutSecs <= 0 {
		return 10 * time.Second
	}
	return seconds(b.ElementTimeoutSecs)
}

// Settle returns the delay after page-size and sort interactions.
func (l ListingConfig) Settle() time.Duration {
	return seconds(l.SettleSeconds)
}

// Sleep returns the delay between actions.
func (p ProcessingConfig) Sleep() time.Duration {
	return seconds(p.SleepSeconds)
}

// PollInterval returns the pause poll interval.
func (p ProcessingConfig) PollInterval() time.Duration {
	if p.PollIntervalSeconds <= 0 {
		return 400 * time.Millisecond
	}
	return seconds(p.PollIntervalSeconds)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// GetJobProcessing returns the processing config for a job by name, falling back to global if not set.
func (c *Config) GetJobProcessing(jobName string) ProcessingConfig {
	job, err := c.GetJob(jobName)
	if err != nil {
		return c.Processing
	}
	return job.GetJobProcessing(c.Processing)
}

// GetJobProcessing returns the processing config for a job, falling back to global if not set.
func (jc *JobConfig) GetJobProcessing(global ProcessingConfig) ProcessingConfig {
	if jc.Processing == nil {
		return global
	}

	result := global
	if jc.Processing.SleepSeconds > 0 {
		result.SleepSeconds = jc.Processing.SleepSeconds
	}
	if jc.Processing.PollIntervalSeconds > 0 {
		result.PollIntervalSeconds = jc.Processing.PollIntervalSeconds
	}
	if jc.Processing.MaxStaleRetries > 0 {
		result.MaxStaleRetries = jc.Processing.MaxStaleRetries
	}
	if jc.Processing.MaxListingFailures > 0 {
		result.MaxListingFailures = jc.Processing.MaxListingFailures
	}
	return result
}

// EffectiveListingURL returns the job's listing URL, or the global one.
func (c *Config) EffectiveListingURL(job *JobConfig) string {
	if job != nil && job.ListingURL != "" {
		return job.ListingURL
	}
	return c.Listing.URL
}
