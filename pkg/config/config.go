package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultNamePattern is the time layout used to name archives when no
// output path is given.
const DefaultNamePattern = "dawanda_2006-01-02_15-04-05.zip"

// Config holds all configuration options for the account archiver
type Config struct {
	// Remote site settings
	Site SiteConfig `yaml:"site" json:"site"`

	// Archive output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Which export stages run
	Export ExportConfig `yaml:"export" json:"export"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// SiteConfig holds marketplace connection settings
type SiteConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	UserAgent     string        `yaml:"user_agent" json:"user_agent"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	SessionCookie string        `yaml:"session_cookie" json:"session_cookie"`
	// RequestsPerMinute paces requests to the site. Zero means unlimited.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// OutputConfig holds archive output configuration
type OutputConfig struct {
	Path        string `yaml:"path" json:"path"`
	NamePattern string `yaml:"name_pattern" json:"name_pattern"`
	MetricsFile string `yaml:"metrics_file" json:"metrics_file"`
	// DiagnosticsDir receives page dumps for pages that failed to parse.
	// Empty means the OS temp directory.
	DiagnosticsDir string `yaml:"diagnostics_dir" json:"diagnostics_dir"`
}

// ExportConfig selects the export stages
type ExportConfig struct {
	SkipProducts bool          `yaml:"skip_products" json:"skip_products"`
	SkipImages   bool          `yaml:"skip_images" json:"skip_images"`
	SkipRatings  bool          `yaml:"skip_ratings" json:"skip_ratings"`
	ExitDelay    time.Duration `yaml:"exit_delay" json:"exit_delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
	// Debug turns on HTTP wire dumps.
	Debug bool `yaml:"debug" json:"debug"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:   "https://de.dawanda.com",
			UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
			Timeout:   60 * time.Second,
		},
		Output: OutputConfig{
			NamePattern: DefaultNamePattern,
		},
		Export: ExportConfig{
			ExitDelay: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ArchivePath returns the configured output path, or a name derived from
// the pattern and the given start time.
func (c *Config) ArchivePath(start time.Time) string {
	if c.Output.Path != "" {
		return c.Output.Path
	}
	pattern := c.Output.NamePattern
	if pattern == "" {
		pattern = DefaultNamePattern
	}
	return start.Format(pattern)
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	if baseURL := os.Getenv("DWARCHIVE_BASE_URL"); baseURL != "" {
		c.Site.BaseURL = baseURL
	}
	if userAgent := os.Getenv("DWARCHIVE_USER_AGENT"); userAgent != "" {
		c.Site.UserAgent = userAgent
	}
	if session := os.Getenv("DWARCHIVE_SESSION"); session != "" {
		c.Site.SessionCookie = session
	}
	if timeout := os.Getenv("DWARCHIVE_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid DWARCHIVE_TIMEOUT: %w", err)
		}
		c.Site.Timeout = d
	}
	if rpm := os.Getenv("DWARCHIVE_REQUESTS_PER_MINUTE"); rpm != "" {
		n, err := strconv.Atoi(rpm)
		if err != nil {
			return fmt.Errorf("invalid DWARCHIVE_REQUESTS_PER_MINUTE: %w", err)
		}
		c.Site.RequestsPerMinute = n
	}

	if output := os.Getenv("DWARCHIVE_OUTPUT"); output != "" {
		c.Output.Path = output
	}
	if metrics := os.Getenv("DWARCHIVE_METRICS_FILE"); metrics != "" {
		c.Output.MetricsFile = metrics
	}

	for name, target := range map[string]*bool{
		"DWARCHIVE_SKIP_PRODUCTS": &c.Export.SkipProducts,
		"DWARCHIVE_SKIP_IMAGES":   &c.Export.SkipImages,
		"DWARCHIVE_SKIP_RATINGS":  &c.Export.SkipRatings,
		"DWARCHIVE_DEBUG":         &c.Logging.Debug,
	} {
		raw := os.Getenv(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*target = v
	}

	if delay := os.Getenv("DWARCHIVE_EXIT_TIMEOUT"); delay != "" {
		secs, err := strconv.Atoi(delay)
		if err != nil {
			return fmt.Errorf("invalid DWARCHIVE_EXIT_TIMEOUT: %w", err)
		}
		c.Export.ExitDelay = time.Duration(secs) * time.Second
	}

	if logLevel := os.Getenv("DWARCHIVE_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFile := os.Getenv("DWARCHIVE_LOG_FILE"); logFile != "" {
		c.Logging.File = logFile
	}

	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	locations := []string{
		".dwarchive.yaml",
		".dwarchive.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "dwarchive", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "dwarchive", "config.yml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.Site.BaseURL == "" {
		errs = append(errs, errors.New("site base URL is required"))
	} else if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("site base URL %q is not an absolute URL", c.Site.BaseURL))
	}
	if c.Site.Timeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Site.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Output.Path == "" && c.Output.NamePattern == "" {
		errs = append(errs, errors.New("either an output path or a name pattern is required"))
	}

	if c.Export.ExitDelay < 0 {
		errs = append(errs, errors.New("exit delay cannot be negative"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if session, ok := flags["session"].(string); ok && session != "" {
		c.Site.SessionCookie = session
	}
	if output, ok := flags["output"].(string); ok && output != "" {
		c.Output.Path = output
	}
	if secs, ok := flags["exit-timeout"].(int); ok && secs >= 0 {
		c.Export.ExitDelay = time.Duration(secs) * time.Second
	}
	if v, ok := flags["skip-products"].(bool); ok {
		c.Export.SkipProducts = v
	}
	if v, ok := flags["skip-images"].(bool); ok {
		c.Export.SkipImages = v
	}
	if v, ok := flags["skip-ratings"].(bool); ok {
		c.Export.SkipRatings = v
	}
	if debug, ok := flags["debug"].(bool); ok && debug {
		c.Logging.Debug = true
		c.Logging.Level = "debug"
	}
	if logLevel, ok := flags["log-level"].(string); ok && logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(os.Getenv("HOME"), ".dwarchive.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
