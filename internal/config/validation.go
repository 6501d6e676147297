package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid values.
func (c *Config) Validate() error {
	var errors ValidationErrors

	if err := c.validateBrowser(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateSelectors(); err != nil {
		errors = append(errors, err...)
	}

	if len(c.Jobs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "jobs",
			Message: "at least one job must be defined",
		})
	}
	for name, job := range c.Jobs {
		if err := c.validateJob(name, &job); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateProcessing("processing", &c.Processing); err != nil {
		errors = append(errors, err...)
	}

	if c.History.Enabled {
		if err := c.validateHistory(); err != nil {
			errors = append(errors, err...)
		}
	}

	if err := c.validateAudit(); err != nil {
		errors = append(errors, err...)
	}

	if err := c.validateLogging(); err != nil {
		errors = append(errors, err...)
	}

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateBrowser() ValidationErrors {
	var errors ValidationErrors

	if !c.Browser.Launch && c.Browser.DebuggerAddress == "" {
		errors = append(errors, ValidationError{
			Field:   "browser.debugger_address",
			Message: "debugger_address is required unless launch is enabled",
		})
	}

	if c.Browser.NavigationTimeoutSecs < 0 {
		errors = append(errors, ValidationError{
			Field:   "browser.navigation_timeout_seconds",
			Message: "navigation_timeout_seconds cannot be negative",
		})
	}

	if c.Browser.ElementTimeoutSecs < 0 {
		errors = append(errors, ValidationError{
			Field:   "browser.element_timeout_seconds",
			Message: "element_timeout_seconds cannot be negative",
		})
	}

	if c.Listing.PageSize == "" {
		errors = append(errors, ValidationError{
			Field:   "listing.page_size",
			Message: "page_size is required",
		})
	}

	if c.Listing.SortClicks < 0 {
		errors = append(errors, ValidationError{
			Field:   "listing.sort_clicks",
			Message: "sort_clicks cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateSelectors() ValidationErrors {
	var errors ValidationErrors

	required := []struct {
		key   string
		value string
	}{
		{"table_row", c.Selectors.TableRow},
		{"id_cell", c.Selectors.IDCell},
		{"name_link", c.Selectors.NameLink},
		{"edit_button", c.Selectors.EditButton},
		{"status_select", c.Selectors.StatusSelect},
		{"save_button", c.Selectors.SaveButton},
		{"archived_option", c.Selectors.ArchivedOption},
	}
	for _, r := range required {
		if r.value == "" {
			errors = append(errors, ValidationError{
				Field:   "selectors." + r.key,
				Message: r.key + " is required",
			})
		}
	}

	return errors
}

func (c *Config) validateJob(name string, job *JobConfig) ValidationErrors {
	var errors ValidationErrors
	prefix := fmt.Sprintf("jobs.%s", name)

	if c.EffectiveListingURL(job) == "" {
		errors = append(errors, ValidationError{
			Field:   prefix + ".listing_url",
			Message: "listing_url is required when listing.url is not set",
		})
	}

	if job.MaxRecords < 0 || job.MaxRecords > MaxRecordsLimit {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_records",
			Message: fmt.Sprintf("max_records must be between 0 and %d", MaxRecordsLimit),
		})
	}

	for i, id := range job.ExcludedIDs {
		if strings.TrimSpace(id) == "" {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("%s.excluded_ids[%d]", prefix, i),
				Message: "excluded id cannot be blank",
			})
		}
	}

	if job.Processing != nil {
		if err := c.validateProcessing(prefix+".processing", job.Processing); err != nil {
			errors = append(errors, err...)
		}
	}

	return errors
}

func (c *Config) validateProcessing(prefix string, p *ProcessingConfig) ValidationErrors {
	var errors ValidationErrors

	if p.SleepSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".sleep_seconds",
			Message: "sleep_seconds cannot be negative",
		})
	}

	if p.PollIntervalSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".poll_interval_seconds",
			Message: "poll_interval_seconds cannot be negative",
		})
	}

	if p.MaxStaleRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_stale_retries",
			Message: "max_stale_retries cannot be negative",
		})
	}

	if p.MaxListingFailures < 0 {
		errors = append(errors, ValidationError{
			Field:   prefix + ".max_listing_failures",
			Message: "max_listing_failures cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateHistory() ValidationErrors {
	var errors ValidationErrors
	db := &c.History

	if db.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "history.host",
			Message: "host is required when history is enabled",
		})
	}

	if db.Port <= 0 || db.Port > 65535 {
		errors = append(errors, ValidationError{
			Field:   "history.port",
			Message: "port must be between 1 and 65535",
		})
	}

	if db.User == "" {
		errors = append(errors, ValidationError{
			Field:   "history.user",
			Message: "user is required when history is enabled",
		})
	}

	if db.Database == "" {
		errors = append(errors, ValidationError{
			Field:   "history.database",
			Message: "database name is required when history is enabled",
		})
	}

	validTLS := map[string]bool{"disable": true, "preferred": true, "required": true, "": true}
	if !validTLS[db.TLS] {
		errors = append(errors, ValidationError{
			Field:   "history.tls",
			Message: "tls must be 'disable', 'preferred', or 'required'",
		})
	}

	if db.MaxConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "history.max_connections",
			Message: "max_connections cannot be negative",
		})
	}

	if db.MaxIdleConnections < 0 {
		errors = append(errors, ValidationError{
			Field:   "history.max_idle_connections",
			Message: "max_idle_connections cannot be negative",
		})
	}

	return errors
}

func (c *Config) validateAudit() ValidationErrors {
	var errors ValidationErrors

	validFormats := map[string]bool{"csv": true, "json": true, "yaml": true, "": true}
	if !validFormats[c.Audit.Format] {
		errors = append(errors, ValidationError{
			Field:   "audit.format",
			Message: "format must be 'csv', 'json', or 'yaml'",
		})
	}

	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Message: "level must be 'debug', 'info', 'warn', or 'error'",
		})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Message: "format must be 'json' or 'text'",
		})
	}

	return errors
}
