package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ".", cfg.Output.BaseDirectory)
	assert.Empty(t, cfg.Ledger.Path)
	assert.Equal(t, 5*1024*1024, cfg.Download.ChunkSize)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.InitialBackoff)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.False(t, cfg.Download.ContinueOnError)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FANTIADL_SESSION_ID", "env-session")
	t.Setenv("FANTIADL_OUTPUT_DIR", "/tmp/fantia")
	t.Setenv("FANTIADL_LEDGER", "/tmp/fantia/db.sqlite")
	t.Setenv("FANTIADL_MONTH", "2023-06")
	t.Setenv("FANTIADL_REQUESTS_PER_MINUTE", "30")
	t.Setenv("FANTIADL_CONTINUE_ON_ERROR", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, "env-session", cfg.Session.SessionID)
	assert.Equal(t, "/tmp/fantia", cfg.Output.BaseDirectory)
	assert.Equal(t, "/tmp/fantia/db.sqlite", cfg.Ledger.Path)
	assert.Equal(t, "2023-06", cfg.Download.Month)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.Download.ContinueOnError)
}

func TestLoadFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("FANTIADL_MAX_RETRIES", "many")

	cfg := DefaultConfig()
	err := cfg.LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FANTIADL_MAX_RETRIES")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad month", func(c *Config) { c.Download.Month = "2023/06" }, "YYYY-MM"},
		{"month out of range", func(c *Config) { c.Download.Month = "2023-13" }, "YYYY-MM"},
		{"negative limit", func(c *Config) { c.Download.Limit = -1 }, "limit"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "max attempts"},
		{"empty output", func(c *Config) { c.Output.BaseDirectory = "" }, "output directory"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"missing exclude file", func(c *Config) { c.Download.ExcludeFile = "/nonexistent/exclusions.txt" }, "exclude file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateSession(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.ValidateSession())

	cfg.Session.SessionID = "abc"
	assert.NoError(t, cfg.ValidateSession())

	cfg.Session.CookieFile = "cookies.txt"
	assert.Error(t, cfg.ValidateSession())

	cfg.Session.SessionID = ""
	assert.NoError(t, cfg.ValidateSession())
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Download.DumpMetadata = true

	cfg.MergeCommandLineFlags(map[string]interface{}{
		"session-id":        "flag-session",
		"output":            "/flag/out",
		"limit":             3,
		"month":             "2024-01",
		"dump-metadata":     false,
		"continue-on-error": true,
	})

	assert.Equal(t, "flag-session", cfg.Session.SessionID)
	assert.Equal(t, "/flag/out", cfg.Output.BaseDirectory)
	assert.Equal(t, 3, cfg.Download.Limit)
	assert.Equal(t, "2024-01", cfg.Download.Month)
	assert.False(t, cfg.Download.DumpMetadata)
	assert.True(t, cfg.Download.ContinueOnError)
	assert.False(t, cfg.Download.ParseExternalLinks)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  session_id: saved\ndownload:\n  month: 2022-12\n"), 0600))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, "saved", loaded.Session.SessionID)
	assert.Equal(t, "2022-12", loaded.Download.Month)
}

func TestCredentialFlagReplacesOtherForm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.SessionID = "from-env"
	cfg.MergeCommandLineFlags(map[string]interface{}{"cookies": "cookies.txt"})
	assert.Equal(t, "cookies.txt", cfg.Session.CookieFile)
	assert.Empty(t, cfg.Session.SessionID)
	assert.NoError(t, cfg.ValidateSession())

	cfg = DefaultConfig()
	cfg.Session.CookieFile = "from-config.txt"
	cfg.MergeCommandLineFlags(map[string]interface{}{"session-id": "flag-session"})
	assert.Equal(t, "flag-session", cfg.Session.SessionID)
	assert.Empty(t, cfg.Session.CookieFile)
	assert.NoError(t, cfg.ValidateSession())
}

func TestDurationParsing(t *testing.T) {
	yamlContent := `
retry:
  initial_backoff: 500ms
  max_backoff: 1m30s
download:
  timeout: 45s
`
	var cfg Config
	require.NoError(t, yaml.Unmarshal([]byte(yamlContent), &cfg))

	assert.Equal(t, 500*time.Millisecond, cfg.Retry.InitialBackoff)
	assert.Equal(t, 90*time.Second, cfg.Retry.MaxBackoff)
	assert.Equal(t, 45*time.Second, cfg.Download.Timeout)
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
session:
  session_id: file-session
output:
  base_directory: /file/output
ledger:
  path: /file/ledger.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("FANTIADL_OUTPUT_DIR", "/env/output")
	t.Setenv("FANTIADL_SESSION_ID", "env-session")

	cfg, err := Load(path, map[string]interface{}{"session-id": "flag-session"})
	require.NoError(t, err)

	assert.Equal(t, "flag-session", cfg.Session.SessionID)
	assert.Equal(t, "/env/output", cfg.Output.BaseDirectory)
	assert.Equal(t, "/file/ledger.db", cfg.Ledger.Path)
}

func TestLoadValidationFailure(t *testing.T) {
	cfg, err := Load("", map[string]interface{}{"month": "June"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
	assert.Nil(t, cfg)
}
