package main

import (
	"errors"
	"fmt"
	"os"

	"fantiadl/internal/downloader"
	"fantiadl/pkg/archiver"
	"fantiadl/pkg/auth"
	"fantiadl/pkg/config"
	errs "fantiadl/pkg/errors"
	"fantiadl/pkg/fantia"
	"fantiadl/pkg/ledger"
	"fantiadl/pkg/logger"
	"fantiadl/pkg/ratelimit"
	"fantiadl/pkg/retry"
	"fantiadl/pkg/storage"
	"fantiadl/pkg/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	// Download flags, shared by the root and download commands
	sessionID          string
	cookieFile         string
	outputDir          string
	ledgerPath         string
	excludeFile        string
	month              string
	limit              int
	requestsPerMinute  int
	maxRetries         int
	dumpMetadata       bool
	parseLinks         bool
	downloadThumb      bool
	useServerFilenames bool
	markIncomplete     bool
	continueOnError    bool
	bypassPostCheck    bool
	accountName        string
	followed           bool
	paid               bool
	newPosts           int
)

var downloadCmd = &cobra.Command{
	Use:   "download <url>...",
	Short: "Download fanclubs and posts",
	Long: `Download fanclubs and posts. This is also what fantiadl does when no
subcommand is given.

The session is taken from, in order: --session-id or --cookies, the
configuration, FANTIADL_SESSION_ID, and the stored account (see 'fantiadl auth').`,
	Example: `  fantiadl download https://fantia.jp/posts/98765 --dump-metadata
  fantiadl download --followed --limit 10
  fantiadl download --new-posts 48`,
	Args: cobra.ArbitraryArgs,
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	addDownloadFlags(downloadCmd)
}

func addDownloadFlags(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&sessionID, "session-id", "", "value of the _session_id cookie")
	fs.StringVar(&cookieFile, "cookies", "", "Netscape cookies.txt file instead of a session id")
	fs.StringVarP(&outputDir, "output", "o", "", "directory to download to (default: current directory)")
	fs.StringVar(&ledgerPath, "ledger", "", "SQLite database remembering downloaded posts")
	fs.StringVar(&excludeFile, "exclude", "", "file listing filenames to never download, one per line")
	fs.StringVar(&month, "month", "", "only download fanclub posts from this month (YYYY-MM)")
	fs.IntVarP(&limit, "limit", "l", 0, "download at most this many posts per fanclub")
	fs.IntVar(&requestsPerMinute, "requests-per-minute", 0, "request rate limit (0 disables)")
	fs.IntVar(&maxRetries, "max-retries", 0, "attempts per request on transient failures")
	fs.BoolVarP(&dumpMetadata, "dump-metadata", "m", false, "save post and fanclub metadata as metadata.json")
	fs.BoolVarP(&parseLinks, "parse-links", "x", false, "save external file host links to a crawljob file")
	fs.BoolVarP(&downloadThumb, "download-thumb", "t", false, "download post thumbnails")
	fs.BoolVarP(&useServerFilenames, "use-server-filenames", "s", false, "name photos after their server filename")
	fs.BoolVarP(&markIncomplete, "mark-incomplete", "i", false, "mark posts with restricted content with .incomplete")
	fs.BoolVarP(&continueOnError, "continue-on-error", "r", false, "skip posts and fanclubs that fail")
	fs.BoolVar(&bypassPostCheck, "bypass-post-check", false, "skip posts the ledger marks complete without checking for changes")
	fs.StringVarP(&accountName, "account", "a", "", "use a stored account")
	fs.BoolVarP(&followed, "followed", "f", false, "download every followed fanclub")
	fs.BoolVarP(&paid, "paid", "p", false, "download every fanclub on a paid plan")
	fs.IntVarP(&newPosts, "new-posts", "n", 0, "download this many posts from the new posts timeline")
}

// collectFlags returns the explicitly set flags keyed the way
// config.MergeCommandLineFlags expects.
func collectFlags(fs *pflag.FlagSet) map[string]interface{} {
	flags := make(map[string]interface{})
	fs.Visit(func(f *pflag.Flag) {
		key := f.Name
		if key == "notifications" {
			key = "notifications-enabled"
		}
		switch f.Value.Type() {
		case "bool":
			v, _ := fs.GetBool(f.Name)
			flags[key] = v
		case "int":
			v, _ := fs.GetInt(f.Name)
			flags[key] = v
		case "string":
			flags[key] = f.Value.String()
		}
	})
	return flags
}

// buildOptions turns the loaded configuration into archiver options
func buildOptions(cfg *config.Config) (archiver.Options, error) {
	m, err := archiver.ParseMonth(cfg.Download.Month)
	if err != nil {
		return archiver.Options{}, err
	}
	return archiver.Options{
		Limit:              cfg.Download.Limit,
		DumpMetadata:       cfg.Download.DumpMetadata,
		ParseExternalLinks: cfg.Download.ParseExternalLinks,
		DownloadThumbnail:  cfg.Download.DownloadThumbnail,
		UseServerFilenames: cfg.Download.UseServerFilenames,
		MarkIncomplete:     cfg.Download.MarkIncomplete,
		ContinueOnError:    cfg.Download.ContinueOnError,
		BypassPostCheck:    cfg.Download.BypassPostCheck,
		Month:              m,
	}, nil
}

// resolveSession fills the session from the credential store unless the
// configuration already names one.
func resolveSession(cfg *config.Config, creds *auth.Manager, account string) (string, error) {
	var (
		a   *auth.Account
		err error
	)
	switch {
	case account != "":
		a, err = creds.Retrieve(account)
		if err != nil {
			return "", fmt.Errorf("account %q: %w", account, err)
		}
	case cfg.ValidateSession() == nil:
		return "", nil
	default:
		a, err = creds.RetrieveDefault()
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return "", errs.New(errs.ErrorTypeAuth, 0,
				"no session found; pass --session-id, set FANTIADL_SESSION_ID or run 'fantiadl auth login'")
		}
		if err != nil {
			return "", err
		}
	}

	cfg.Session.SessionID = a.SessionID
	cfg.Session.CookieFile = ""
	if a.UserAgent != "" {
		cfg.Session.UserAgent = a.UserAgent
	}
	return a.Name, nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !followed && !paid && newPosts == 0 {
		return cmd.Help()
	}

	flags := collectFlags(cmd.Flags())
	if quiet && logLevel == "" {
		flags["log-level"] = "error"
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return err
	}
	log := logger.GetLogger()
	console := ui.NewConsole(os.Stdout, quiet)

	if cfg.ValidateSession() != nil || accountName != "" {
		creds, err := auth.NewManager("")
		if err != nil {
			return err
		}
		name, err := resolveSession(cfg, creds, accountName)
		if err != nil {
			return err
		}
		if name != "" {
			console.Field("Account", name)
		}
	}
	if err := cfg.ValidateSession(); err != nil {
		return errs.Wrap(err, errs.ErrorTypeAuth, "invalid session configuration")
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	client, err := fantia.NewClient(fantia.Options{
		SessionID:  cfg.Session.SessionID,
		CookieFile: cfg.Session.CookieFile,
		UserAgent:  cfg.Session.UserAgent,
		Timeout:    cfg.Download.Timeout,
		Limiter:    ratelimit.New(cfg.RateLimit.RequestsPerMinute),
		Retry:      retry.FromSettings(cfg.Retry, log),
		Logger:     log,
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := client.VerifySession(ctx); err != nil {
		return err
	}

	led, err := ledger.Open(ctx, cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer led.Close()

	exclusions, err := storage.LoadExclusions(cfg.Download.ExcludeFile)
	if err != nil {
		return err
	}
	store, err := storage.NewManager(cfg.Output.BaseDirectory)
	if err != nil {
		return err
	}

	engine := downloader.NewEngine(downloader.Options{
		Transport:  client,
		Ledger:     led,
		Exclusions: exclusions,
		Progress:   ui.NewTransferBar(console),
		Output:     console,
		ChunkSize:  cfg.Download.ChunkSize,
		Logger:     log,
	})
	arch := archiver.New(archiver.Deps{
		Platform: client,
		Fetcher:  engine,
		Ledger:   led,
		Storage:  store,
		Output:   console,
		Logger:   log,
	}, opts)

	logger.LogComponentStart("archiver", map[string]interface{}{
		"output":     store.GetOutputDir(),
		"ledger":     led.Persistent(),
		"exclusions": exclusions.Len(),
		"targets":    len(args),
	})

	err = runTargets(cmd, arch, args)

	notifier := ui.NewNotifier(console, cfg.Notifications.Enabled)
	stats := arch.Stats()
	switch {
	case err == nil:
		notifier.SendSuccess("fantiadl", fmt.Sprintf("%d files downloaded, %d posts completed, %d failures",
			stats.FilesDownloaded, stats.PostsCompleted, stats.Failures))
	case !errs.IsInterrupt(err):
		notifier.SendError("fantiadl", err.Error())
	}
	return err
}

func runTargets(cmd *cobra.Command, arch *archiver.Archiver, urls []string) error {
	ctx := cmd.Context()
	if followed {
		if err := arch.DownloadFollowedFanclubs(ctx); err != nil {
			return err
		}
	}
	if paid {
		if err := arch.DownloadPaidFanclubs(ctx); err != nil {
			return err
		}
	}
	if newPosts > 0 {
		if err := arch.DownloadNewPosts(ctx, newPosts); err != nil {
			return err
		}
	}
	return arch.Run(ctx, urls)
}
