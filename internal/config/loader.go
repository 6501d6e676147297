package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path.
// It supports YAML files and performs environment variable substitution.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// Read the config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal into config struct
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Perform environment variable substitution
	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) error {
	cfg.Browser.DebuggerAddress = expandEnvVar(cfg.Browser.DebuggerAddress)
	cfg.Browser.Bin = expandEnvVar(cfg.Browser.Bin)
	cfg.Browser.BaseURL = expandEnvVar(cfg.Browser.BaseURL)
	cfg.Listing.URL = expandEnvVar(cfg.Listing.URL)

	for name, job := range cfg.Jobs {
		job.ListingURL = expandEnvVar(job.ListingURL)
		cfg.Jobs[name] = job
	}

	cfg.Control.Dir = expandEnvVar(cfg.Control.Dir)

	cfg.History.Host = expandEnvVar(cfg.History.Host)
	cfg.History.User = expandEnvVar(cfg.History.User)
	cfg.History.Password = expandEnvVar(cfg.History.Password)
	cfg.History.Database = expandEnvVar(cfg.History.Database)

	cfg.Audit.Dir = expandEnvVar(cfg.Audit.Dir)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// GetJob retrieves a specific job configuration by name.
func (c *Config) GetJob(name string) (*JobConfig, error) {
	job, exists := c.Jobs[name]
	if !exists {
		return nil, fmt.Errorf("job %q not found in configuration", name)
	}
	return &job, nil
}

// ListJobs returns all job names defined in the configuration.
func (c *Config) ListJobs() []string {
	jobs := make([]string, 0, len(c.Jobs))
	for name := range c.Jobs {
		jobs = append(jobs, name)
	}
	return jobs
}

// ApplyOverrides applies CLI flag overrides to the global configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		c.Logging.Format = o.LogFormat
	}
	if o.DebuggerAddress != "" {
		c.Browser.DebuggerAddress = o.DebuggerAddress
	}
	if o.SleepSeconds > 0 {
		c.Processing.SleepSeconds = o.SleepSeconds
	}
	if o.PollIntervalSeconds > 0 {
		c.Processing.PollIntervalSeconds = o.PollIntervalSeconds
	}
	if o.ControlDir != "" {
		c.Control.Dir = o.ControlDir
	}
}

// Overrides carries CLI values that take precedence over the config file.
type Overrides struct {
	LogLevel            string
	LogFormat           string
	DebuggerAddress     string
	SleepSeconds        float64
	PollIntervalSeconds float64
	ControlDir          string
}

// ApplyJobOverrides combines global, job-specific and CLI processing values
// for a single job.
func (c *Config) ApplyJobOverrides(jobName string, sleepSeconds, pollIntervalSeconds float64) ProcessingConfig {
	processing := c.GetJobProcessing(jobName)

	if sleepSeconds > 0 {
		processing.SleepSeconds = sleepSeconds
	}
	if pollIntervalSeconds > 0 {
		processing.PollIntervalSeconds = pollIntervalSeconds
	}

	return processing
}

// ParseIDList splits a comma-separated id list, trimming blanks.
func ParseIDList(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
