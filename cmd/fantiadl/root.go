package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/fantia"

	"github.com/spf13/cobra"
)

// ExitInterrupted is the exit status after Ctrl+C
const ExitInterrupted = 130

var (
	version   = fantia.Version
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	quiet         bool
	notifications bool
)

var rootCmd = &cobra.Command{
	Use:   "fantiadl [flags] <url>...",
	Short: "Archive Fantia posts and fanclubs you have access to",
	Long: `fantiadl downloads the content of Fantia posts and fanclubs into a local
directory tree, skipping everything that is already there.

A URL is either a fanclub (https://fantia.jp/fanclubs/<id>) or a single post
(https://fantia.jp/posts/<id>). With a ledger database, completed posts are
remembered between runs and only re-checked when the creator edits them.`,
	Example: `  # Archive a whole fanclub
  fantiadl https://fantia.jp/fanclubs/1234

  # Only June 2023, remembering progress in a ledger
  fantiadl --month 2023-06 --ledger ~/fantia/fantiadl.db https://fantia.jp/fanclubs/1234

  # Everything from paid plans, continuing past failed posts
  fantiadl --paid --continue-on-error`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	Args:          cobra.ArbitraryArgs,
	RunE:          runDownload,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.fantiadl.yaml or ~/.config/fantiadl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")

	addDownloadFlags(rootCmd)

	rootCmd.SetVersionTemplate(`fantiadl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the command line and returns the process exit status
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errs.IsInterrupt(err) || ctx.Err() != nil:
		fmt.Fprintln(os.Stderr, "Interrupted by user. Exiting...")
		return ExitInterrupted
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}
