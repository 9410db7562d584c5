package main

import (
	"fmt"
	"os"
	"path/filepath"

	"fantiadl/pkg/auth"
	"fantiadl/pkg/config"
	"fantiadl/pkg/ui"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// defaultConfigPath is where 'config init' writes when --config is not given
const defaultConfigPath = ".fantiadl.yaml"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage fantiadl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FANTIADL_*)
  - .env files
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created as '.fantiadl.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging every source. The session id is
masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# fantiadl configuration file
#
# Every option can also be set with an environment variable prefixed with
# FANTIADL_, for example FANTIADL_SESSION_ID or FANTIADL_OUTPUT_DIR.

session:
  # Value of the _session_id cookie (see 'fantiadl auth guide')
  session_id: ""
  # Or a Netscape cookies.txt export; mutually exclusive with session_id
  cookie_file: ""
  # Leave empty to use the built-in browser user agent
  user_agent: ""

download:
  # Maximum posts per fanclub, 0 for all
  limit: 0
  dump_metadata: false
  parse_external_links: false
  download_thumbnail: false
  use_server_filenames: false
  mark_incomplete: false
  continue_on_error: false
  bypass_post_check: false
  # Only fanclub posts from this month (YYYY-MM)
  month: ""
  # File listing filenames to never download, one per line
  exclude_file: ""
  timeout: 60s
  chunk_size: 5242880

output:
  base_directory: "."

ledger:
  # SQLite database remembering completed posts; empty disables it
  path: ""

rate_limit:
  # 0 disables rate limiting
  requests_per_minute: 120

retry:
  max_attempts: 5
  initial_backoff: 2s
  max_backoff: 60s
  multiplier: 2.0

notifications:
  enabled: false

logging:
  # debug, info, warn, error or disabled
  level: "warn"
  # console or json
  format: "console"
  file: ""
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	console := ui.NewConsole(cmd.OutOrStdout(), false)

	path := configFile
	if path == "" {
		path = defaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	console.Success("Configuration file created: %s", path)
	console.Printf("\nNext steps:\n")
	console.Printf("1. Set session.session_id, or run 'fantiadl auth login'\n")
	console.Printf("2. Run 'fantiadl config validate' to check the configuration\n")
	console.Printf("3. Start downloading with 'fantiadl https://fantia.jp/fanclubs/<id>'\n")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}

	display := *cfg
	if display.Session.SessionID != "" {
		display.Session.SessionID = auth.MaskSecret(display.Session.SessionID)
	}
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "# Effective configuration")
	fmt.Fprint(out, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	console := ui.NewConsole(cmd.OutOrStdout(), false)

	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return err
	}
	if err := cfg.ValidateSession(); err != nil {
		console.Warn("Session: %v (a stored account will be used if present)", err)
	}

	console.Success("Configuration is valid")
	console.Field("Output directory", cfg.Output.BaseDirectory)
	ledgerPath := cfg.Ledger.Path
	if ledgerPath == "" {
		ledgerPath = "(disabled)"
	}
	console.Field("Ledger", ledgerPath)
	console.Field("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	console.Field("Max attempts", fmt.Sprintf("%d", cfg.Retry.MaxAttempts))
	console.Field("Log level", cfg.Logging.Level)
	return nil
}
