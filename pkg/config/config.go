package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MonthLayout is the accepted format of the month filter
const MonthLayout = "2006-01"

// Config holds every setting of a download run
type Config struct {
	Session       SessionConfig      `yaml:"session" json:"session"`
	Download      DownloadConfig     `yaml:"download" json:"download"`
	Output        OutputConfig       `yaml:"output" json:"output"`
	Ledger        LedgerConfig       `yaml:"ledger" json:"ledger"`
	RateLimit     RateLimitConfig    `yaml:"rate_limit" json:"rate_limit"`
	Retry         RetryConfig        `yaml:"retry" json:"retry"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
}

// SessionConfig identifies the logged-in user. Either the _session_id cookie
// value or a Netscape cookies.txt export may be given.
type SessionConfig struct {
	SessionID  string `yaml:"session_id" json:"session_id"`
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`
	UserAgent  string `yaml:"user_agent" json:"user_agent"`
}

// DownloadConfig controls what gets archived for each post
type DownloadConfig struct {
	Limit              int           `yaml:"limit" json:"limit"`
	DumpMetadata       bool          `yaml:"dump_metadata" json:"dump_metadata"`
	ParseExternalLinks bool          `yaml:"parse_external_links" json:"parse_external_links"`
	DownloadThumbnail  bool          `yaml:"download_thumbnail" json:"download_thumbnail"`
	UseServerFilenames bool          `yaml:"use_server_filenames" json:"use_server_filenames"`
	MarkIncomplete     bool          `yaml:"mark_incomplete" json:"mark_incomplete"`
	ContinueOnError    bool          `yaml:"continue_on_error" json:"continue_on_error"`
	BypassPostCheck    bool          `yaml:"bypass_post_check" json:"bypass_post_check"`
	Month              string        `yaml:"month" json:"month"`
	ExcludeFile        string        `yaml:"exclude_file" json:"exclude_file"`
	Timeout            time.Duration `yaml:"timeout" json:"timeout"`
	ChunkSize          int           `yaml:"chunk_size" json:"chunk_size"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory string `yaml:"base_directory" json:"base_directory"`
}

// LedgerConfig points at the SQLite ledger. An empty path disables it.
type LedgerConfig struct {
	Path string `yaml:"path" json:"path"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
}

// RetryConfig bounds the transport level retries
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" json:"max_backoff"`
	Multiplier     float64       `yaml:"multiplier" json:"multiplier"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	File   string `yaml:"file" json:"file"`
	Format string `yaml:"format" json:"format"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Download: DownloadConfig{
			Timeout:   60 * time.Second,
			ChunkSize: 5 * 1024 * 1024,
		},
		Output: OutputConfig{
			BaseDirectory: ".",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 120,
		},
		Retry: RetryConfig{
			MaxAttempts:    5,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     60 * time.Second,
			Multiplier:     2.0,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// LoadFromEnv loads configuration from FANTIADL_* environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	setString(&c.Session.SessionID, "FANTIADL_SESSION_ID")
	setString(&c.Session.CookieFile, "FANTIADL_COOKIE_FILE")
	setString(&c.Session.UserAgent, "FANTIADL_USER_AGENT")
	setString(&c.Output.BaseDirectory, "FANTIADL_OUTPUT_DIR")
	setString(&c.Ledger.Path, "FANTIADL_LEDGER")
	setString(&c.Download.ExcludeFile, "FANTIADL_EXCLUDE_FILE")
	setString(&c.Download.Month, "FANTIADL_MONTH")
	setString(&c.Logging.Level, "FANTIADL_LOG_LEVEL")
	setString(&c.Logging.File, "FANTIADL_LOG_FILE")
	setString(&c.Logging.Format, "FANTIADL_LOG_FORMAT")

	errs = append(errs,
		setInt(&c.RateLimit.RequestsPerMinute, "FANTIADL_REQUESTS_PER_MINUTE"),
		setInt(&c.Retry.MaxAttempts, "FANTIADL_MAX_RETRIES"),
		setInt(&c.Download.Limit, "FANTIADL_LIMIT"),
		setBool(&c.Download.ContinueOnError, "FANTIADL_CONTINUE_ON_ERROR"),
		setBool(&c.Download.DumpMetadata, "FANTIADL_DUMP_METADATA"),
		setBool(&c.Download.ParseExternalLinks, "FANTIADL_PARSE_EXTERNAL_LINKS"),
		setBool(&c.Notifications.Enabled, "FANTIADL_NOTIFICATIONS_ENABLED"),
	)

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
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
	home, _ := os.UserHomeDir()
	locations := []string{
		".fantiadl.yaml",
		".fantiadl.yml",
		filepath.Join(home, ".config", "fantiadl", "config.yaml"),
		filepath.Join(home, ".config", "fantiadl", "config.yml"),
		filepath.Join(home, ".fantiadl.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// Validate checks value ranges. Credentials are checked separately by
// ValidateSession because they may come from the credential store.
func (c *Config) Validate() error {
	var errs []error

	if c.Download.Limit < 0 {
		errs = append(errs, errors.New("limit cannot be negative"))
	}
	if c.Download.Month != "" {
		if _, err := time.Parse(MonthLayout, c.Download.Month); err != nil {
			errs = append(errs, fmt.Errorf("month must be formatted as YYYY-MM, got %q", c.Download.Month))
		}
	}
	if c.Download.ChunkSize <= 0 {
		errs = append(errs, errors.New("chunk size must be positive"))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Download.ExcludeFile != "" {
		if _, err := os.Stat(c.Download.ExcludeFile); err != nil {
			errs = append(errs, fmt.Errorf("exclude file: %w", err))
		}
	}

	if c.Output.BaseDirectory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}

	if c.Retry.MaxAttempts < 1 {
		errs = append(errs, errors.New("max attempts must be at least 1"))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("backoff multiplier must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "disabled": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}
	if f := strings.ToLower(c.Logging.Format); f != "" && f != "console" && f != "json" {
		errs = append(errs, errors.New("log format must be console or json"))
	}

	return errors.Join(errs...)
}

// ValidateSession reports whether some form of session credential is set
func (c *Config) ValidateSession() error {
	if c.Session.SessionID == "" && c.Session.CookieFile == "" {
		return errors.New("a session id or cookie file is required")
	}
	if c.Session.SessionID != "" && c.Session.CookieFile != "" {
		return errors.New("session id and cookie file are mutually exclusive")
	}
	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	// a credential given on the command line replaces the other form
	if v, ok := flags["session-id"].(string); ok && v != "" {
		c.Session.SessionID = v
		c.Session.CookieFile = ""
	}
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Session.CookieFile = v
		c.Session.SessionID = ""
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["ledger"].(string); ok {
		c.Ledger.Path = v
	}
	if v, ok := flags["exclude"].(string); ok {
		c.Download.ExcludeFile = v
	}
	if v, ok := flags["month"].(string); ok {
		c.Download.Month = v
	}
	if v, ok := flags["limit"].(int); ok {
		c.Download.Limit = v
	}
	if v, ok := flags["requests-per-minute"].(int); ok {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["max-retries"].(int); ok {
		c.Retry.MaxAttempts = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}

	boolFlags := map[string]*bool{
		"dump-metadata":         &c.Download.DumpMetadata,
		"parse-links":           &c.Download.ParseExternalLinks,
		"download-thumb":        &c.Download.DownloadThumbnail,
		"use-server-filenames":  &c.Download.UseServerFilenames,
		"mark-incomplete":       &c.Download.MarkIncomplete,
		"continue-on-error":     &c.Download.ContinueOnError,
		"bypass-post-check":     &c.Download.BypassPostCheck,
		"notifications-enabled": &c.Notifications.Enabled,
	}
	for key, dst := range boolFlags {
		if v, ok := flags[key].(bool); ok {
			*dst = v
		}
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".env"))
	_ = godotenv.Load(filepath.Join(home, ".fantiadl.env"))

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
